package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/pkg/models"
)

func rec(id, title string, vol int) models.Record {
	return models.Record{ID: id, Title: title, Volume: vol, Status: models.StatusOwned}
}

func TestGroup_MixedMarkersOneSeries(t *testing.T) {
	groups := Group([]models.Record{
		rec("01", "Bar 1", 1),
		rec("02", "Bar 2", 2),
		rec("03", "Bar(3)", 3),
	})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, "Bar", g.SeriesKey)
	require.Len(t, g.Members, 3)
	assert.Equal(t, 1, g.Members[0].Volume)
	assert.Equal(t, 2, g.Members[1].Volume)
	assert.Equal(t, 3, g.Members[2].Volume)
	assert.Equal(t, 3, g.MaxOwnedVolume)
	assert.Equal(t, "03", g.LastTouchedID)
}

func TestGroup_RepresentativeFromLowestVolume(t *testing.T) {
	v1 := rec("01", "Foo 1", 1) // no cover on volume 1
	v2 := rec("02", "Foo 2", 2)
	v2.CoverURL = "https://covers.example/foo2.jpg"
	v2.Author = "someone"

	groups := Group([]models.Record{v2, v1})
	require.Len(t, groups, 1)
	// no fallback to volume 2's cover
	assert.Empty(t, groups[0].CoverURL)
	assert.Empty(t, groups[0].Author)
}

func TestGroup_OrderedByRecency(t *testing.T) {
	groups := Group([]models.Record{
		rec("01", "Old 1", 1),
		rec("02", "New 1", 1),
		rec("03", "Old 2", 2), // touch Old last
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "Old", groups[0].SeriesKey)
	assert.Equal(t, "03", groups[0].LastTouchedID)
	assert.Equal(t, "New", groups[1].SeriesKey)
}

func TestGroup_RegroupsOnEditedTitle(t *testing.T) {
	// the stored title decides the group, recomputed every call
	r := rec("01", "Foo 1", 1)
	groups := Group([]models.Record{r})
	require.Equal(t, "Foo", groups[0].SeriesKey)

	r.Title = "Bar 1"
	groups = Group([]models.Record{r})
	require.Equal(t, "Bar", groups[0].SeriesKey)
}

func TestGroup_EmptyInput(t *testing.T) {
	assert.Empty(t, Group(nil))
	assert.Empty(t, Group([]models.Record{}))
}

func TestGroup_EmptyKeyIsItsOwnGroup(t *testing.T) {
	groups := Group([]models.Record{
		rec("01", "(12)", 12), // all-marker title strips to the empty key
		rec("02", "Foo 1", 1),
	})
	require.Len(t, groups, 2)

	var found bool
	for _, g := range groups {
		if g.SeriesKey == "" {
			found = true
			assert.Equal(t, 12, g.MaxOwnedVolume)
		}
	}
	assert.True(t, found, "empty series key should form its own group")
}
