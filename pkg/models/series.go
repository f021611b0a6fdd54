package models

// SeriesGroup is the derived, never-persisted aggregation of records that
// share one normalized series key. Representative metadata comes from the
// lowest-volume member (the volume-1 cover is the recognizable one); if that
// member has no cover the group simply has none.
type SeriesGroup struct {
	SeriesKey      string   `json:"series_key"`
	Members        []Record `json:"members"` // volume ascending
	CoverURL       string   `json:"image,omitempty"`
	Author         string   `json:"author,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	DetailLink     string   `json:"link,omitempty"`
	MaxOwnedVolume int      `json:"max_owned_volume"`
	LastTouchedID  string   `json:"last_touched_id"` // max record ID, orders series by recency
}
