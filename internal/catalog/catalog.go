// Package catalog talks to the external book-search services. Each source
// fetches its own wire format and maps it into Candidate; the Searcher fans
// a query out over every enabled source and concatenates the results.
package catalog

import (
	"context"
	"log"

	"mangashelf/pkg/models"
)

// Source is implemented by each external book-search service.
type Source interface {
	Name() string
	Search(ctx context.Context, query string) ([]models.Candidate, error)
}

// Searcher coordinates the enabled sources. A broken or unreachable source is
// logged and contributes zero candidates; one bad service must not kill the
// whole search.
type Searcher struct {
	Sources []Source
}

func NewSearcher(sources ...Source) *Searcher {
	return &Searcher{Sources: sources}
}

// Search runs the query against every source in order. The per-source result
// lists are already deduplicated by exact title (sources repeat titles across
// printings); duplicates *across* sources are kept, tagged by provenance, and
// left for the user to pick from.
func (s *Searcher) Search(ctx context.Context, query string) []models.Candidate {
	var all []models.Candidate
	for _, src := range s.Sources {
		cands, err := src.Search(ctx, query)
		if err != nil {
			log.Printf("[catalog] source %s error: %v", src.Name(), err)
			continue
		}
		all = append(all, cands...)
	}
	return all
}

// dedupeByTitle drops candidates whose exact title was already seen,
// preserving order.
func dedupeByTitle(cands []models.Candidate) []models.Candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if c.Title == "" || seen[c.Title] {
			continue
		}
		seen[c.Title] = true
		out = append(out, c)
	}
	return out
}
