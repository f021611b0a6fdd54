package collection

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/catalog"
	"mangashelf/internal/feed"
	"mangashelf/pkg/models"
)

func testRouter(t *testing.T, h *Handler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRecordRoutes(r.Group("/records"))
	h.RegisterSeriesRoutes(r.Group("/series"))
	h.RegisterCatalogRoutes(r.Group("/catalog"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_AddValidation(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	// empty title rejected at the boundary
	w := doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "  ", "volume": 1, "status": "own"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"title"`)

	w = doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "Foo", "volume": 0, "status": "own"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"volume"`)

	w = doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "Foo", "volume": 1, "status": "own", "my_score": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_AddAndGet(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	w := doJSON(t, r, http.MethodPost, "/records", gin.H{
		"title": "呪術廻戦 26", "volume": 26, "status": "own", "my_score": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rec models.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.GenreUnclassified, rec.Genre, "empty genre defaults to the sentinel")

	w = doJSON(t, r, http.MethodGet, "/records/"+rec.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_AddRejectsDuplicateVolume(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	w := doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "Foo 3", "volume": 3, "status": "own"})
	require.Equal(t, http.StatusCreated, w.Code)

	// the exact same volume again: slot already occupied
	w = doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "Foo 3", "volume": 3, "status": "own"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"series_key":"Foo"`)

	// differently-marked title normalizing to the same (series, volume)
	w = doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "Foo(3)", "volume": 3, "status": "want"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// another volume of the same series is fine
	w = doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "Foo 4", "volume": 4, "status": "own"})
	assert.Equal(t, http.StatusCreated, w.Code)

	all, err := h.Repo.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2, "one record per (series, volume) slot")
}

func TestHandler_RangeRegistration(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	// range on a raw (unnormalized) key gets normalized first
	w := doJSON(t, r, http.MethodPost, "/series/range", gin.H{
		"series_key": "Foo 5", "upto": 5, "author": "someone",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		SeriesKey string `json:"series_key"`
		Requested int    `json:"requested"`
		Added     int    `json:"added"`
		Skipped   int    `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Foo", res.SeriesKey)
	assert.Equal(t, 5, res.Added)
	assert.Equal(t, 0, res.Skipped)

	// same request again: everything already present
	w = doJSON(t, r, http.MethodPost, "/series/range", gin.H{"series_key": "Foo", "upto": 5})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 5, res.Skipped)

	// grown range back-fills the gap only
	w = doJSON(t, r, http.MethodPost, "/series/range", gin.H{"series_key": "Foo", "upto": 8})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, 5, res.Skipped)

	// mixed-marker titles added by hand still count as occupied slots
	w = doJSON(t, r, http.MethodPost, "/records", gin.H{"title": "Foo(9)", "volume": 9, "status": "own"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/series/range", gin.H{"series_key": "Foo", "upto": 9})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 9, res.Skipped)
}

func TestHandler_RangeRejectsBadUpto(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	w := doJSON(t, r, http.MethodPost, "/series/range", gin.H{"series_key": "Foo", "upto": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubSource struct {
	cands []models.Candidate
}

func (s stubSource) Name() string { return "stub" }
func (s stubSource) Search(context.Context, string) ([]models.Candidate, error) {
	return s.cands, nil
}

func TestHandler_NextVolume(t *testing.T) {
	searcher := catalog.NewSearcher(stubSource{cands: []models.Candidate{
		{Title: "Foo 9 限定版", ReleaseDate: "2026-03-01", CoverURL: "special"},
		{Title: "Foo 9", ReleaseDate: "2026-03-04", CoverURL: "plain", ISBN: "isbn9"},
	}})
	h := NewHandler(testRepo(t), searcher, nil)
	r := testRouter(t, h)

	w := doJSON(t, r, http.MethodPost, "/series/range", gin.H{"series_key": "Foo", "upto": 8})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/series/next", gin.H{"series_key": "Foo"})
	require.Equal(t, http.StatusCreated, w.Code)

	var rec models.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Foo", rec.Title)
	assert.Equal(t, 9, rec.Volume)
	assert.Equal(t, models.StatusWanted, rec.Status)
	assert.True(t, rec.IsUnread)
	assert.Equal(t, "plain", rec.CoverURL, "standard edition beats the limited printing")
	assert.Equal(t, "2026-03-04", rec.ReleaseDate)
	assert.Equal(t, "isbn9", rec.ISBN)
}

func TestHandler_NextVolumeUnknownSeries(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	w := doJSON(t, r, http.MethodPost, "/series/next", gin.H{"series_key": "Nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_SeriesView(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	for _, body := range []gin.H{
		{"title": "Bar 1", "volume": 1, "status": "own"},
		{"title": "Bar 2", "volume": 2, "status": "own"},
		{"title": "Bar(3)", "volume": 3, "status": "own"},
	} {
		w := doJSON(t, r, http.MethodPost, "/records", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/series", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Total int                  `json:"total"`
		Items []models.SeriesGroup `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "Bar", res.Items[0].SeriesKey)
	assert.Equal(t, 3, res.Items[0].MaxOwnedVolume)
	assert.Len(t, res.Items[0].Members, 3)
}

func TestHandler_MutationsBroadcastInOrder(t *testing.T) {
	hub := feed.NewHub()
	h := NewHandler(testRepo(t), nil, hub)
	r := testRouter(t, h)

	client, server := net.Pipe()
	defer client.Close()
	hub.Add(server)

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for vol := 1; vol <= 3; vol++ {
		w := doJSON(t, r, http.MethodPost, "/records", gin.H{
			"title": "Baz", "volume": vol, "status": "own",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	// the event is on the wire before each response returns, so order
	// matches mutation order
	for vol := 1; vol <= 3; vol++ {
		select {
		case line := <-lines:
			var ev feed.RecordEvent
			require.NoError(t, json.Unmarshal([]byte(line), &ev))
			assert.Equal(t, feed.EventAdd, ev.Type)
			assert.Equal(t, vol, ev.Volume)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for feed event")
		}
	}
}

func TestHandler_SearchCatalogRequiresQuery(t *testing.T) {
	h := NewHandler(testRepo(t), nil, nil)
	r := testRouter(t, h)

	w := doJSON(t, r, http.MethodGet, "/catalog/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
