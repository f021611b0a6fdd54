package collection

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mangashelf/internal/catalog"
	"mangashelf/internal/feed"
	"mangashelf/internal/register"
	"mangashelf/internal/series"
	"mangashelf/pkg/models"
)

// DateFetcher looks up the release date of one specific volume. Google and
// Rakuten both implement it; fetchers are tried in order and a miss or error
// just falls through to the next one.
type DateFetcher interface {
	FetchDate(ctx context.Context, title string, volume int) (string, error)
}

type Handler struct {
	Repo         *Repo
	Searcher     *catalog.Searcher
	DateFetchers []DateFetcher
	Hub          *feed.Hub
}

func NewHandler(repo *Repo, searcher *catalog.Searcher, hub *feed.Hub, fetchers ...DateFetcher) *Handler {
	return &Handler{Repo: repo, Searcher: searcher, DateFetchers: fetchers, Hub: hub}
}

func (h *Handler) RegisterRecordRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("", h.add)
	rg.GET("/:id", h.getByID)
	rg.PUT("/:id", h.edit)
	rg.DELETE("/:id", h.remove)
}

func (h *Handler) RegisterSeriesRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.listSeries)
	rg.POST("/range", h.registerRange)
	rg.POST("/next", h.registerNext)
}

func (h *Handler) RegisterCatalogRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.searchCatalog)
}

// --- records ---

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Status:   models.NormalizeStatus(c.Query("status")),
		Genre:    strings.TrimSpace(c.Query("genre")),
		Unread:   c.Query("unread") == "true",
		Finished: c.Query("finished") == "true",
		MinScore: parseInt(c.Query("min_score"), 0),
		Sort:     c.Query("sort"),
		Limit:    parseInt(c.Query("limit"), 100),
		Offset:   parseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	rec, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type addReq struct {
	Title       string `json:"title"`
	Volume      int    `json:"volume"`
	Status      string `json:"status"`
	Score       int    `json:"my_score"`
	Genre       string `json:"genre"`
	ReleaseDate string `json:"releaseDate"`
	IsFinished  bool   `json:"is_finished"`
	IsUnread    bool   `json:"is_unread"`
	CoverURL    string `json:"image"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	ISBN        string `json:"isbn"`
	DetailLink  string `json:"link"`
}

// add registers a single record, typically from a selected catalog candidate.
// When no release date was entered, the next volume's date is looked up as a
// convenience (the "when does the one after this ship" question); a lookup
// miss leaves the field empty.
func (h *Handler) add(c *gin.Context) {
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required", "field": "title"})
		return
	}
	if req.Volume < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "volume must be >= 1", "field": "volume"})
		return
	}
	if req.Score < 0 || req.Score > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be 0-5", "field": "my_score"})
		return
	}
	status := models.NormalizeStatus(req.Status)
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be own or want", "field": "status"})
		return
	}

	// one record per (series, volume) slot, same rule the range registrar
	// enforces
	key := series.Key(req.Title)
	existing, err := h.existingVolumes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if existing[register.VolumeKey{Key: key, Volume: req.Volume}] {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "volume already registered",
			"series_key": key,
			"volume":     req.Volume,
		})
		return
	}

	if req.ReleaseDate == "" {
		req.ReleaseDate = h.fetchNextDate(c.Request.Context(), req.Title, req.Volume+1)
	}

	rec := models.Record{
		ID:          newID(),
		Title:       req.Title,
		Volume:      req.Volume,
		Status:      status,
		ReleaseDate: req.ReleaseDate,
		Score:       req.Score,
		Genre:       req.Genre,
		IsFinished:  req.IsFinished,
		IsUnread:    req.IsUnread,
		CoverURL:    req.CoverURL,
		Author:      req.Author,
		Publisher:   req.Publisher,
		ISBN:        req.ISBN,
		DetailLink:  req.DetailLink,
	}
	rec.ApplyDefaults()

	if err := h.Repo.Insert(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	h.broadcast(feed.RecordEvent{Type: feed.EventAdd, ID: rec.ID, Title: rec.Title, Volume: rec.Volume})
	c.JSON(http.StatusCreated, rec)
}

type editReq struct {
	Title       *string `json:"title"`
	Volume      *int    `json:"volume"`
	Status      *string `json:"status"`
	Score       *int    `json:"my_score"`
	Genre       *string `json:"genre"`
	ReleaseDate *string `json:"releaseDate"`
	IsFinished  *bool   `json:"is_finished"`
	IsUnread    *bool   `json:"is_unread"`
}

func (h *Handler) edit(c *gin.Context) {
	rec, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req editReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title required", "field": "title"})
			return
		}
		rec.Title = t
	}
	if req.Volume != nil {
		if *req.Volume < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "volume must be >= 1", "field": "volume"})
			return
		}
		rec.Volume = *req.Volume
	}
	if req.Status != nil {
		s := models.NormalizeStatus(*req.Status)
		if s == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be own or want", "field": "status"})
			return
		}
		rec.Status = s
	}
	if req.Score != nil {
		if *req.Score < 0 || *req.Score > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "score must be 0-5", "field": "my_score"})
			return
		}
		rec.Score = *req.Score
	}
	if req.Genre != nil {
		rec.Genre = *req.Genre
	}
	if req.ReleaseDate != nil {
		rec.ReleaseDate = *req.ReleaseDate
	}
	if req.IsFinished != nil {
		rec.IsFinished = *req.IsFinished
	}
	if req.IsUnread != nil {
		rec.IsUnread = *req.IsUnread
	}

	ok, err := h.Repo.Update(c.Request.Context(), *rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.broadcast(feed.RecordEvent{Type: feed.EventUpdate, ID: rec.ID, Title: rec.Title, Volume: rec.Volume})
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("id")
	ok, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.broadcast(feed.RecordEvent{Type: feed.EventDelete, ID: id})
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// --- series ---

func (h *Handler) listSeries(c *gin.Context) {
	all, err := h.Repo.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	groups := series.Group(all)
	c.JSON(http.StatusOK, gin.H{"total": len(groups), "items": groups})
}

type rangeReq struct {
	SeriesKey  string `json:"series_key"`
	Upto       int    `json:"upto"`
	Genre      string `json:"genre"`
	Author     string `json:"author"`
	Publisher  string `json:"publisher"`
	CoverURL   string `json:"image"`
	DetailLink string `json:"link"`
}

// registerRange back-fills owned records for volumes 1..upto of a series,
// skipping volumes already present. The whole batch is persisted in one
// transaction.
func (h *Handler) registerRange(c *gin.Context) {
	var req rangeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	// the key is always the normalized form, whatever the caller typed
	key := series.Key(req.SeriesKey)
	if key == "" && strings.TrimSpace(req.SeriesKey) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series_key required", "field": "series_key"})
		return
	}
	if req.Upto < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upto must be >= 1", "field": "upto"})
		return
	}

	existing, err := h.existingVolumes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	template := models.Record{
		Genre:      req.Genre,
		Author:     req.Author,
		Publisher:  req.Publisher,
		CoverURL:   req.CoverURL,
		DetailLink: req.DetailLink,
	}

	res, err := register.Range(key, req.Upto, template, existing)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Repo.InsertBatch(c.Request.Context(), res.Added); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	if len(res.Added) > 0 {
		h.broadcast(feed.RecordEvent{
			Type:   feed.EventRange,
			Title:  key,
			Volume: req.Upto,
			Count:  len(res.Added),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"series_key": key,
		"requested":  res.Requested,
		"added":      len(res.Added),
		"skipped":    res.Skipped,
		"records":    res.Added,
	})
}

type nextReq struct {
	SeriesKey string `json:"series_key"`
}

// registerNext creates the wanted entry for a series' next volume. The
// catalog is searched for "<series> <n+1>", special editions are filtered
// out, and the earliest-shipping plain edition supplies cover and date.
func (h *Handler) registerNext(c *gin.Context) {
	var req nextReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	key := series.Key(req.SeriesKey)
	all, err := h.Repo.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	var group *models.SeriesGroup
	for _, g := range series.Group(all) {
		if g.SeriesKey == key {
			g := g
			group = &g
			break
		}
	}
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "series not found"})
		return
	}

	nextVol := group.MaxOwnedVolume + 1

	var fetched *models.Candidate
	if h.Searcher != nil {
		query := key + " " + strconv.Itoa(nextVol)
		cands := h.Searcher.Search(c.Request.Context(), query)

		// keep only candidates that actually look like the next volume
		matching := cands[:0]
		for _, cand := range cands {
			if series.Key(cand.Title) == key && series.Volume(cand.Title) == nextVol {
				matching = append(matching, cand)
			}
		}
		if len(matching) > 0 {
			cands = matching
		}
		fetched = register.PickStandardEdition(cands)
	}

	rec := register.NextVolume(*group, fetched)
	if err := h.Repo.Insert(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	h.broadcast(feed.RecordEvent{Type: feed.EventAdd, ID: rec.ID, Title: rec.Title, Volume: rec.Volume})
	c.JSON(http.StatusCreated, rec)
}

// --- catalog ---

func (h *Handler) searchCatalog(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q required", "field": "q"})
		return
	}
	if h.Searcher == nil {
		c.JSON(http.StatusOK, gin.H{"total": 0, "items": []models.Candidate{}})
		return
	}

	cands := h.Searcher.Search(c.Request.Context(), q)
	c.JSON(http.StatusOK, gin.H{"total": len(cands), "items": cands})
}

// --- helpers ---

// existingVolumes builds the (normalized key, volume) occupancy set the
// registrar checks against. Keys are recomputed from stored titles.
func (h *Handler) existingVolumes(ctx context.Context) (map[register.VolumeKey]bool, error) {
	all, err := h.Repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[register.VolumeKey]bool, len(all))
	for _, rec := range all {
		out[register.VolumeKey{Key: series.Key(rec.Title), Volume: rec.Volume}] = true
	}
	return out, nil
}

func (h *Handler) fetchNextDate(ctx context.Context, title string, volume int) string {
	for _, f := range h.DateFetchers {
		date, err := f.FetchDate(ctx, title, volume)
		if err != nil {
			log.Printf("[collection] date fetch failed: %v", err)
			continue
		}
		if date != "" {
			return date
		}
	}
	return ""
}

// broadcast delivers the event before the HTTP response is written.
// Synchronous on purpose: events must reach feed clients in mutation order,
// and the hub's write deadlines already bound how long a slow client can
// hold things up.
func (h *Handler) broadcast(ev feed.RecordEvent) {
	if h.Hub == nil {
		return
	}
	ev.At = time.Now().UTC()
	h.Hub.Broadcast(ev)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
