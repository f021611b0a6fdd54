package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/pkg/models"
)

func existingFrom(added []models.Record) map[VolumeKey]bool {
	out := make(map[VolumeKey]bool)
	for _, r := range added {
		out[VolumeKey{Key: r.Title, Volume: r.Volume}] = true
	}
	return out
}

func TestRange_FillsEmptyCollection(t *testing.T) {
	meta := models.Record{Author: "author", Publisher: "pub", CoverURL: "cover", Genre: "少年"}

	res, err := Range("Foo", 5, meta, map[VolumeKey]bool{})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Requested)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Added, 5)

	for i, r := range res.Added {
		assert.Equal(t, "Foo", r.Title)
		assert.Equal(t, i+1, r.Volume)
		assert.Equal(t, models.StatusOwned, r.Status)
		assert.Equal(t, 0, r.Score)
		assert.Equal(t, "author", r.Author)
		assert.Equal(t, "pub", r.Publisher)
		assert.Equal(t, "cover", r.CoverURL)
		assert.Empty(t, r.ReleaseDate, "bulk registration never fills release dates")
		assert.NotEmpty(t, r.ID)
	}
}

func TestRange_Idempotent(t *testing.T) {
	meta := models.Record{}

	first, err := Range("Foo", 5, meta, map[VolumeKey]bool{})
	require.NoError(t, err)
	require.Len(t, first.Added, 5)

	existing := existingFrom(first.Added)

	// same range again: nothing new
	again, err := Range("Foo", 5, meta, existing)
	require.NoError(t, err)
	assert.Empty(t, again.Added)
	assert.Equal(t, 5, again.Skipped)
	assert.Equal(t, 5, again.Requested)

	// grown range: only the gap is filled
	grown, err := Range("Foo", 8, meta, existing)
	require.NoError(t, err)
	require.Len(t, grown.Added, 3)
	assert.Equal(t, 6, grown.Added[0].Volume)
	assert.Equal(t, 7, grown.Added[1].Volume)
	assert.Equal(t, 8, grown.Added[2].Volume)
	assert.Equal(t, 5, grown.Skipped)
}

func TestRange_SkipsHoles(t *testing.T) {
	existing := map[VolumeKey]bool{
		{Key: "Foo", Volume: 2}: true,
		{Key: "Foo", Volume: 4}: true,
	}

	res, err := Range("Foo", 5, models.Record{}, existing)
	require.NoError(t, err)
	require.Len(t, res.Added, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{res.Added[0].Volume, res.Added[1].Volume, res.Added[2].Volume})
	assert.Equal(t, 2, res.Skipped)
}

func TestRange_OtherSeriesDoesNotCollide(t *testing.T) {
	existing := map[VolumeKey]bool{{Key: "Bar", Volume: 1}: true}

	res, err := Range("Foo", 1, models.Record{}, existing)
	require.NoError(t, err)
	assert.Len(t, res.Added, 1)
}

func TestRange_RejectsNonPositiveUpto(t *testing.T) {
	_, err := Range("Foo", 0, models.Record{}, nil)
	assert.Error(t, err)
	_, err = Range("Foo", -3, models.Record{}, nil)
	assert.Error(t, err)
}

func TestRange_FreshUniqueIDs(t *testing.T) {
	res, err := Range("Foo", 50, models.Record{}, map[VolumeKey]bool{})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, r := range res.Added {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}
