package models

// Candidate is one external catalog search result. It has not been committed
// to the collection; any field except Title may be empty depending on what
// the source knows.
type Candidate struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	CoverURL    string `json:"image"`
	DetailLink  string `json:"link"`
	ISBN        string `json:"isbn"`
	ReleaseDate string `json:"releaseDate"`
	Source      string `json:"source"` // provenance label, e.g. "Google", "Rakuten", "MADB"
}
