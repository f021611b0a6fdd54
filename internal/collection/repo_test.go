package collection

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

func testRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewRepo(db)
}

func testRecord(id, title string, vol int) models.Record {
	return models.Record{
		ID:     id,
		Title:  title,
		Volume: vol,
		Status: models.StatusOwned,
		Genre:  models.GenreUnclassified,
	}
}

func TestRepo_InsertGetRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	in := models.Record{
		ID:          "01",
		Title:       "キングダム",
		Volume:      62,
		Status:      models.StatusOwned,
		ReleaseDate: "2021-09-17",
		Score:       5,
		Genre:       "歴史、少年",
		IsFinished:  false,
		IsUnread:    true,
		CoverURL:    "https://covers.example/k62.jpg",
		Author:      "原泰久",
		Publisher:   "集英社",
		ISBN:        "9784088911953",
		DetailLink:  "https://books.example/k62",
	}
	require.NoError(t, repo.Insert(ctx, in))

	got, err := repo.GetByID(ctx, "01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in, *got)
}

func TestRepo_GetMissingIsNilNil(t *testing.T) {
	repo := testRepo(t)
	got, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepo_InsertBatchIsAtomic(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	batch := []models.Record{
		testRecord("01", "Foo", 1),
		testRecord("02", "Foo", 2),
		testRecord("01", "Foo", 3), // dup id: whole batch must roll back
	}
	require.Error(t, repo.InsertBatch(ctx, batch))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepo_InsertBatchEmptyIsNoop(t *testing.T) {
	repo := testRepo(t)
	assert.NoError(t, repo.InsertBatch(context.Background(), nil))
}

func TestRepo_UpdateEditsInPlace(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, testRecord("01", "Foo", 1)))

	rec := testRecord("01", "Foo (New Edition)", 1)
	rec.Score = 4
	rec.Status = models.StatusWanted
	rec.IsUnread = true

	ok, err := repo.Update(ctx, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, "Foo (New Edition)", got.Title)
	assert.Equal(t, 4, got.Score)
	assert.Equal(t, models.StatusWanted, got.Status)
	assert.True(t, got.IsUnread)
}

func TestRepo_UpdateMissingReportsFalse(t *testing.T) {
	repo := testRepo(t)
	ok, err := repo.Update(context.Background(), testRecord("nope", "Foo", 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepo_DeleteByID(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, testRecord("01", "Foo", 1)))

	ok, err := repo.Delete(ctx, "01")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, "01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepo_ListViews(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	owned := testRecord("01", "Foo", 1)
	owned.Score = 5
	owned.IsFinished = true
	owned.Genre = "少年"

	wanted := testRecord("02", "Bar", 1)
	wanted.Status = models.StatusWanted
	wanted.ReleaseDate = "2026-09-01"

	unreadOwned := testRecord("03", "Baz", 1)
	unreadOwned.IsUnread = true

	require.NoError(t, repo.InsertBatch(ctx, []models.Record{owned, wanted, unreadOwned}))

	// unread/wanted view catches wanted and unread-owned
	items, err := repo.List(ctx, ListQuery{Unread: true, Sort: "release"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Bar", items[0].Title, "dated release sorts first")

	// finished & high score view
	items, err = repo.List(ctx, ListQuery{Finished: true, MinScore: 4})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Foo", items[0].Title)

	// genre shelf
	items, err = repo.List(ctx, ListQuery{Genre: "少年"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	// unclassified shelf picks up the sentinel
	items, err = repo.List(ctx, ListQuery{Genre: models.GenreUnclassified})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// recent view is id-descending
	items, err = repo.List(ctx, ListQuery{Sort: "recent"})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "03", items[0].ID)

	total, err := repo.Count(ctx, ListQuery{Status: models.StatusOwned})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestRepo_VolumeConstraint(t *testing.T) {
	repo := testRepo(t)
	bad := testRecord("01", "Foo", 0)
	assert.Error(t, repo.Insert(context.Background(), bad), "volume below 1 violates the schema check")
}
