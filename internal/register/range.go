// Package register materializes new collection records: back-filling a
// contiguous volume range for a series, and synthesizing the "next volume"
// wanted entry from catalog search results.
package register

import (
	"fmt"

	"github.com/google/uuid"

	"mangashelf/pkg/models"
)

// VolumeKey identifies one volume slot within a series. The key side must be
// a normalized series key; matching is exact on (key, volume).
type VolumeKey struct {
	Key    string
	Volume int
}

// Result reports what a range registration actually did. Requested == Skipped
// means every asked-for volume already existed, which callers surface
// differently from a partial fill ("added N of M").
type Result struct {
	Added     []models.Record `json:"added"`
	Requested int             `json:"requested"`
	Skipped   int             `json:"skipped"`
}

// Range synthesizes one owned record per volume 1..upto that is not already
// present, copying descriptive metadata from the template. Existing volumes
// are skipped and counted, never duplicated, so repeated calls with the same
// or a growing upto are safe.
//
// ReleaseDate is deliberately left empty on every synthesized record: filling
// it would cost one external catalog call per volume, which bulk registration
// does not do.
func Range(seriesKey string, upto int, template models.Record, existing map[VolumeKey]bool) (Result, error) {
	if upto < 1 {
		return Result{}, fmt.Errorf("upto volume must be >= 1, got %d", upto)
	}

	res := Result{Requested: upto}
	for vol := 1; vol <= upto; vol++ {
		if existing[VolumeKey{Key: seriesKey, Volume: vol}] {
			res.Skipped++
			continue
		}
		res.Added = append(res.Added, models.Record{
			ID:         newID(),
			Title:      seriesKey,
			Volume:     vol,
			Status:     models.StatusOwned,
			Score:      0,
			Genre:      template.Genre,
			CoverURL:   template.CoverURL,
			Author:     template.Author,
			Publisher:  template.Publisher,
			DetailLink: template.DetailLink,
		})
	}
	return res, nil
}

// newID returns a fresh UUIDv7 string. V7 is time-ordered, so IDs sort by
// creation time and double as the recency key for series ordering.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// rand failure; fall back to v4 rather than dying mid-registration
		return uuid.NewString()
	}
	return id.String()
}
