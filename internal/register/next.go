package register

import (
	"strings"

	"mangashelf/pkg/models"
)

// specialEditionMarkers flag candidates that are not the standard edition:
// bundled goods, limited/deluxe printings, audio-drama bundles. Matching is
// case-insensitive on the folded-to-lower title.
var specialEditionMarkers = []string{
	"特装版",
	"限定版",
	"豪華版",
	"愛蔵版",
	"初回限定",
	"dvd付",
	"cd付",
	"ドラマcd",
	"グッズ付",
	"小冊子付",
	"deluxe",
	"limited",
	"special edition",
	"collector",
}

// IsSpecialEdition reports whether a candidate title carries a known
// special-edition marker.
func IsSpecialEdition(title string) bool {
	t := strings.ToLower(title)
	for _, m := range specialEditionMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}

// PickStandardEdition chooses the "plain" printing among next-volume search
// candidates: special editions are excluded, then the earliest release date
// wins (standard editions ship first; bundles follow). When every candidate
// is a special edition the first result is the best available answer. Empty
// input yields nil.
//
// Release dates are free-form strings, but within one source they compare
// consistently enough lexicographically (YYYY-MM-DD style); empty dates sort
// last so a dated candidate always beats an undated one.
func PickStandardEdition(cands []models.Candidate) *models.Candidate {
	if len(cands) == 0 {
		return nil
	}

	var best *models.Candidate
	for i := range cands {
		c := &cands[i]
		if IsSpecialEdition(c.Title) {
			continue
		}
		if best == nil || dateLess(c.ReleaseDate, best.ReleaseDate) {
			best = c
		}
	}
	if best == nil {
		return &cands[0]
	}
	return best
}

func dateLess(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}

// NextVolume synthesizes the wanted record for a series' next volume
// (max owned + 1). When the catalog lookup produced a usable candidate its
// cover, release date, ISBN and link are preferred; otherwise the group's
// representative metadata fills in and those fields stay empty.
func NextVolume(group models.SeriesGroup, fetched *models.Candidate) models.Record {
	r := models.Record{
		ID:         newID(),
		Title:      group.SeriesKey,
		Volume:     group.MaxOwnedVolume + 1,
		Status:     models.StatusWanted,
		Score:      0,
		IsUnread:   true,
		Author:     group.Author,
		Publisher:  group.Publisher,
		CoverURL:   group.CoverURL,
		DetailLink: group.DetailLink,
	}
	if fetched != nil {
		if fetched.CoverURL != "" {
			r.CoverURL = fetched.CoverURL
		}
		if fetched.ReleaseDate != "" {
			r.ReleaseDate = fetched.ReleaseDate
		}
		if fetched.ISBN != "" {
			r.ISBN = fetched.ISBN
		}
		if fetched.DetailLink != "" {
			r.DetailLink = fetched.DetailLink
		}
		if r.Author == "" {
			r.Author = fetched.Author
		}
		if r.Publisher == "" {
			r.Publisher = fetched.Publisher
		}
	}
	return r
}
