package series

import (
	"sort"

	"mangashelf/pkg/models"
)

// Group partitions records into series by their recomputed key and derives
// the per-series summary. The key is always re-derived from the stored title,
// never read from a stored column, so a manually edited title regroups
// correctly on the next view.
//
// Groups come back ordered by LastTouchedID descending (most recently touched
// series first); record IDs are UUIDv7 so lexicographic order is creation
// order. Members within a group are ordered by volume ascending. An empty
// input yields an empty slice.
func Group(records []models.Record) []models.SeriesGroup {
	byKey := make(map[string]*models.SeriesGroup)
	var order []string

	for _, r := range records {
		key := Key(r.Title)
		g, ok := byKey[key]
		if !ok {
			g = &models.SeriesGroup{SeriesKey: key}
			byKey[key] = g
			order = append(order, key)
		}
		g.Members = append(g.Members, r)
		if r.Volume > g.MaxOwnedVolume {
			g.MaxOwnedVolume = r.Volume
		}
		if r.ID > g.LastTouchedID {
			g.LastTouchedID = r.ID
		}
	}

	out := make([]models.SeriesGroup, 0, len(byKey))
	for _, key := range order {
		g := byKey[key]
		sort.SliceStable(g.Members, func(i, j int) bool {
			if g.Members[i].Volume != g.Members[j].Volume {
				return g.Members[i].Volume < g.Members[j].Volume
			}
			return g.Members[i].ID < g.Members[j].ID
		})

		// Representative metadata comes from the lowest-volume member only.
		// If volume 1 has no cover the group has no cover; falling back to a
		// later volume's art would misrepresent the series.
		head := g.Members[0]
		g.CoverURL = head.CoverURL
		g.Author = head.Author
		g.Publisher = head.Publisher
		g.DetailLink = head.DetailLink

		out = append(out, *g)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastTouchedID > out[j].LastTouchedID
	})
	return out
}
