package models

import "strings"

// Record statuses. The wire values ("own"/"want") are kept compatible with
// data files written by earlier versions of the tracker.
const (
	StatusOwned  = "own"
	StatusWanted = "want"
)

// GenreUnclassified is the sentinel used when a record has no genre tags.
const GenreUnclassified = "未分類"

// Record is one book/volume in the collection, either owned or wanted.
//
// ID is a UUIDv7 string: assigned once at creation, never reused, and
// lexicographically ordered by creation time, so "max ID" doubles as
// "most recently added".
//
// JSON field names mirror the legacy manga_data.json layout so exports and
// the import-json migration stay compatible with old data files.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Volume      int    `json:"volume"`
	Status      string `json:"status"`
	ReleaseDate string `json:"releaseDate"` // free-form: sources disagree on format
	Score       int    `json:"my_score"`    // 0-5, 0 = unrated
	Genre       string `json:"genre"`       // comma / 、 separated tags
	IsFinished  bool   `json:"is_finished"`
	IsUnread    bool   `json:"is_unread"`
	CoverURL    string `json:"image,omitempty"`
	Author      string `json:"author,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	DetailLink  string `json:"link,omitempty"`
}

// NormalizeStatus maps loose user/legacy input onto a canonical status,
// returning "" for anything unrecognized.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "own", "owned":
		return StatusOwned
	case "want", "wanted", "wish", "wishlist":
		return StatusWanted
	default:
		return ""
	}
}

// ApplyDefaults fills the fields old data files may lack. Legacy files were
// written by several near-identical revisions of the tracker and any of these
// fields can be missing; the migration step runs this once at load time.
func (r *Record) ApplyDefaults() {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = "No Title"
	}
	if r.Volume < 1 {
		r.Volume = 1
	}
	if NormalizeStatus(r.Status) == "" {
		r.Status = StatusWanted
	} else {
		r.Status = NormalizeStatus(r.Status)
	}
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 5 {
		r.Score = 5
	}
	if strings.TrimSpace(r.Genre) == "" {
		r.Genre = GenreUnclassified
	}
}

// Genres splits the genre string on both ASCII and ideographic commas.
// The unclassified sentinel yields no tags.
func (r Record) Genres() []string {
	g := strings.ReplaceAll(r.Genre, "、", ",")
	var out []string
	for _, part := range strings.Split(g, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == GenreUnclassified {
			continue
		}
		out = append(out, part)
	}
	return out
}
