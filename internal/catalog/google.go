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

const googleBooksBase = "https://www.googleapis.com/books/v1"

// GoogleBooks searches the public Google Books volumes API. It needs no API
// key and is the default source when no Rakuten application ID is configured.
type GoogleBooks struct {
	Client  *http.Client
	Base    string // overridable for tests
	Limiter *rate.Limiter
	Hits    int
}

func NewGoogleBooks() *GoogleBooks {
	return &GoogleBooks{
		Client:  &http.Client{Timeout: 12 * time.Second},
		Base:    googleBooksBase,
		Limiter: rate.NewLimiter(rate.Limit(2), 2),
		Hits:    10,
	}
}

func (g *GoogleBooks) Name() string { return "Google" }

type gbResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			CanonicalVolumeLink string   `json:"canonicalVolumeLink"`
			ImageLinks          struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (g *GoogleBooks) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", fmt.Sprintf("%d", g.Hits))
	q.Set("orderBy", "relevance")
	q.Set("langRestrict", "ja")
	q.Set("printType", "books")

	var body gbResponse
	if err := g.get(ctx, "/volumes", q, &body); err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, len(body.Items))
	for _, item := range body.Items {
		info := item.VolumeInfo
		if info.Title == "" {
			continue
		}

		author := strings.Join(info.Authors, ", ")
		if author == "" {
			author = "不明"
		}

		// Google serves http:// thumbnails; browsers refuse mixed content
		thumb := strings.Replace(info.ImageLinks.Thumbnail, "http://", "https://", 1)

		isbn := ""
		for _, ident := range info.IndustryIdentifiers {
			if ident.Type == "ISBN_13" {
				isbn = ident.Identifier
				break
			}
		}

		out = append(out, models.Candidate{
			Title:       info.Title,
			Author:      author,
			Publisher:   info.Publisher,
			CoverURL:    thumb,
			DetailLink:  info.CanonicalVolumeLink,
			ISBN:        isbn,
			ReleaseDate: info.PublishedDate,
			Source:      g.Name(),
		})
	}
	return dedupeByTitle(out), nil
}

// FetchDate looks up the published date of a specific volume, used by the
// single-item registration flow to autofill the next-volume release date.
// A miss is (empty, nil): no date is a normal answer, not an error.
func (g *GoogleBooks) FetchDate(ctx context.Context, title string, volume int) (string, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%q %d", title, volume))
	q.Set("orderBy", "newest")
	q.Set("langRestrict", "ja")

	var body gbResponse
	if err := g.get(ctx, "/volumes", q, &body); err != nil {
		return "", err
	}
	if len(body.Items) == 0 {
		return "", nil
	}
	return body.Items[0].VolumeInfo.PublishedDate, nil
}

func (g *GoogleBooks) get(ctx context.Context, path string, q url.Values, dst any) error {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("google books: rate wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Base+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("google books: build request: %w", err)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("google books: request: %w", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google books: status %d: %s", resp.StatusCode, string(b))
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("google books: decode: %w", err)
	}
	return nil
}
