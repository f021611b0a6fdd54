package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mangashelf/pkg/models"
)

const madbEndpoint = "https://mediaarts-db.artmuseums.go.jp/sparql"

// MADB queries the Japanese Media Arts Database over SPARQL. It is the
// official archive, so it knows obscure and out-of-print series the
// commercial APIs miss, at the cost of having no cover art.
type MADB struct {
	Client  *http.Client
	Base    string
	Limiter *rate.Limiter
	Hits    int
}

func NewMADB() *MADB {
	return &MADB{
		Client:  &http.Client{Timeout: 20 * time.Second},
		Base:    madbEndpoint,
		Limiter: rate.NewLimiter(rate.Limit(1), 1),
		Hits:    10,
	}
}

func (m *MADB) Name() string { return "MADB" }

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

func (m *MADB) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if m.Limiter != nil {
		if err := m.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("madb: rate wait: %w", err)
		}
	}

	// double quotes in the keyword would break out of the FILTER literal
	escaped := strings.ReplaceAll(query, `"`, `\"`)
	sparql := fmt.Sprintf(`
PREFIX schema: <https://schema.org/>
SELECT DISTINCT ?name ?author ?publisher ?date
WHERE {
  ?s a schema:Book ;
     schema:name ?name .
  FILTER(CONTAINS(?name, "%s"))
  OPTIONAL { ?s schema:author/schema:name ?author . }
  OPTIONAL { ?s schema:publisher/schema:name ?publisher . }
  OPTIONAL { ?s schema:datePublished ?date . }
}
ORDER BY DESC(?date)
LIMIT %d`, escaped, m.Hits)

	form := url.Values{}
	form.Set("query", sparql)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Base, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("madb: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("madb: request: %w", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("madb: status %d: %s", resp.StatusCode, string(b))
	}

	var body sparqlResponse
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, fmt.Errorf("madb: decode: %w", err)
	}

	out := make([]models.Candidate, 0, len(body.Results.Bindings))
	for _, binding := range body.Results.Bindings {
		title := binding["name"].Value
		if title == "" {
			continue
		}
		author := binding["author"].Value
		if author == "" {
			author = "不明"
		}
		out = append(out, models.Candidate{
			Title:       title,
			Author:      author,
			Publisher:   binding["publisher"].Value,
			ReleaseDate: binding["date"].Value,
			// no cover API worth using; link points at the archive itself
			DetailLink: "https://mediaarts-db.artmuseums.go.jp/",
			Source:     m.Name(),
		})
	}
	return dedupeByTitle(out), nil
}
