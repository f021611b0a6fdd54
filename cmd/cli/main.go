package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mangashelf/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token string `json:"token"`
}

type listResponse struct {
	Total int             `json:"total"`
	Items []models.Record `json:"items"`
}

type seriesResponse struct {
	Total int                  `json:"total"`
	Items []models.SeriesGroup `json:"items"`
}

type searchResponse struct {
	Total int                `json:"total"`
	Items []models.Candidate `json:"items"`
}

type rangeResponse struct {
	SeriesKey string `json:"series_key"`
	Requested int    `json:"requested"`
	Added     int    `json:"added"`
	Skipped   int    `json:"skipped"`
}

func main() {
	global := flag.NewFlagSet("mangashelf", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}

	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "search":
		handleSearch(ctx, client, *baseURL, args[1:])
	case "add":
		handleAdd(ctx, client, *baseURL, *tokenPath, args[1:])
	case "range":
		handleRange(ctx, client, *baseURL, *tokenPath, args[1:])
	case "next":
		handleNext(ctx, client, *baseURL, *tokenPath, args[1:])
	case "list":
		handleList(ctx, client, *baseURL, *tokenPath, args[1:])
	case "series":
		handleSeries(ctx, client, *baseURL, *tokenPath, args[1:])
	case "export":
		handleExport(ctx, client, *baseURL, *tokenPath, args[1:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mangashelf CLI

usage:
  mangashelf auth register -username U -email E -password P
  mangashelf auth login -email E -password P
  mangashelf search -q "title keyword"
  mangashelf add -title T -volume N [-status own|want] [-score 0-5] [-genre G]
  mangashelf range -series S -upto N [-author A] [-publisher P]
  mangashelf next -series S
  mangashelf list [-status own|want] [-unread] [-sort score|recent|release]
  mangashelf series
  mangashelf export [-o file.csv]`)
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}

		var resp authResponse
		payload := map[string]string{"email": *email, "password": *password}
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *username == "" || *email == "" || *password == "" {
			log.Fatal("username, email, and password are required")
		}

		var resp authResponse
		payload := map[string]string{"username": *username, "email": *email, "password": *password}
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/register", "", payload, &resp); err != nil {
			log.Fatalf("register failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("registered and logged in")
	default:
		log.Fatal("auth subcommand must be login or register")
	}
}

func handleSearch(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	q := fs.String("q", "", "search keyword")
	_ = fs.Parse(args)

	if strings.TrimSpace(*q) == "" {
		log.Fatal("-q is required")
	}

	var resp searchResponse
	u := baseURL + "/catalog/search?q=" + url.QueryEscape(*q)
	if err := doJSON(ctx, client, http.MethodGet, u, "", nil, &resp); err != nil {
		log.Fatalf("search failed: %v", err)
	}

	for i, c := range resp.Items {
		fmt.Printf("%2d. [%s] %s - %s (%s)\n", i+1, c.Source, c.Title, c.Author, c.ReleaseDate)
	}
	if resp.Total == 0 {
		fmt.Println("no candidates found")
	}
}

func handleAdd(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "title")
	volume := fs.Int("volume", 1, "volume number")
	status := fs.String("status", "own", "own or want")
	score := fs.Int("score", 0, "personal score 0-5")
	genre := fs.String("genre", "", "genre tags")
	date := fs.String("date", "", "release date")
	_ = fs.Parse(args)

	if strings.TrimSpace(*title) == "" {
		log.Fatal("-title is required")
	}

	payload := map[string]any{
		"title": *title, "volume": *volume, "status": *status,
		"my_score": *score, "genre": *genre, "releaseDate": *date,
	}
	var rec models.Record
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/records", mustToken(tokenPath), payload, &rec); err != nil {
		log.Fatalf("add failed: %v", err)
	}
	fmt.Printf("added %s vol %d (%s)\n", rec.Title, rec.Volume, rec.ID)
}

func handleRange(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	fs := flag.NewFlagSet("range", flag.ExitOnError)
	seriesKey := fs.String("series", "", "series key or title")
	upto := fs.Int("upto", 0, "register volumes 1..N")
	author := fs.String("author", "", "author for synthesized records")
	publisher := fs.String("publisher", "", "publisher for synthesized records")
	genre := fs.String("genre", "", "genre for synthesized records")
	_ = fs.Parse(args)

	if strings.TrimSpace(*seriesKey) == "" || *upto < 1 {
		log.Fatal("-series and -upto >= 1 are required")
	}

	payload := map[string]any{
		"series_key": *seriesKey, "upto": *upto,
		"author": *author, "publisher": *publisher, "genre": *genre,
	}
	var resp rangeResponse
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/series/range", mustToken(tokenPath), payload, &resp); err != nil {
		log.Fatalf("range registration failed: %v", err)
	}

	if resp.Added == 0 {
		fmt.Printf("%s: all %d requested volumes already present\n", resp.SeriesKey, resp.Requested)
		return
	}
	fmt.Printf("%s: added %d of %d volumes (%d already present)\n",
		resp.SeriesKey, resp.Added, resp.Requested, resp.Skipped)
}

func handleNext(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	fs := flag.NewFlagSet("next", flag.ExitOnError)
	seriesKey := fs.String("series", "", "series key")
	_ = fs.Parse(args)

	if strings.TrimSpace(*seriesKey) == "" {
		log.Fatal("-series is required")
	}

	var rec models.Record
	payload := map[string]string{"series_key": *seriesKey}
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/series/next", mustToken(tokenPath), payload, &rec); err != nil {
		log.Fatalf("next-volume registration failed: %v", err)
	}

	date := rec.ReleaseDate
	if date == "" {
		date = "date unknown"
	}
	fmt.Printf("wanted: %s vol %d (%s)\n", rec.Title, rec.Volume, date)
}

func handleList(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "filter: own or want")
	unread := fs.Bool("unread", false, "unread / wanted view")
	sortBy := fs.String("sort", "", "score, recent, or release")
	_ = fs.Parse(args)

	q := url.Values{}
	if *status != "" {
		q.Set("status", *status)
	}
	if *unread {
		q.Set("unread", "true")
	}
	if *sortBy != "" {
		q.Set("sort", *sortBy)
	}

	var resp listResponse
	u := baseURL + "/records?" + q.Encode()
	if err := doJSON(ctx, client, http.MethodGet, u, mustToken(tokenPath), nil, &resp); err != nil {
		log.Fatalf("list failed: %v", err)
	}

	for _, r := range resp.Items {
		marks := ""
		if r.IsFinished {
			marks += " [完結]"
		}
		if r.IsUnread {
			marks += " [未読]"
		}
		fmt.Printf("%-4s %s vol %d score:%d%s\n", r.Status, r.Title, r.Volume, r.Score, marks)
	}
	fmt.Printf("total: %d\n", resp.Total)
}

func handleSeries(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	var resp seriesResponse
	if err := doJSON(ctx, client, http.MethodGet, baseURL+"/series", mustToken(tokenPath), nil, &resp); err != nil {
		log.Fatalf("series failed: %v", err)
	}

	for _, g := range resp.Items {
		key := g.SeriesKey
		if key == "" {
			key = "(untitled)"
		}
		fmt.Printf("%s: %d volumes, up to vol %d (%s)\n", key, len(g.Members), g.MaxOwnedVolume, g.Author)
	}
	fmt.Printf("total series: %d\n", resp.Total)
}

func handleExport(ctx context.Context, client *http.Client, baseURL, tokenPath string, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "", "output CSV path (default stdout)")
	_ = fs.Parse(args)

	token := mustToken(tokenPath)
	var records []models.Record
	for offset := 0; ; {
		var resp listResponse
		u := fmt.Sprintf("%s/records?limit=500&offset=%d", baseURL, offset)
		if err := doJSON(ctx, client, http.MethodGet, u, token, nil, &resp); err != nil {
			log.Fatalf("export failed: %v", err)
		}
		records = append(records, resp.Items...)
		offset += len(resp.Items)
		if len(resp.Items) == 0 || offset >= resp.Total {
			break
		}
	}

	dst := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		dst = f
	}

	// BOM keeps spreadsheets from guessing CP-932 on the Japanese titles.
	if _, err := dst.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		log.Fatalf("write: %v", err)
	}
	w := csv.NewWriter(dst)
	header := []string{
		"title", "volume", "status", "release_date", "score", "genre",
		"is_finished", "is_unread", "cover_url", "author", "publisher",
		"isbn", "detail_link",
	}
	if err := w.Write(header); err != nil {
		log.Fatalf("write: %v", err)
	}
	for _, r := range records {
		row := []string{
			r.Title, strconv.Itoa(r.Volume), r.Status, r.ReleaseDate,
			strconv.Itoa(r.Score), r.Genre,
			strconv.FormatBool(r.IsFinished), strconv.FormatBool(r.IsUnread),
			r.CoverURL, r.Author, r.Publisher, r.ISBN, r.DetailLink,
		}
		if err := w.Write(row); err != nil {
			log.Fatalf("write: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("write: %v", err)
	}
	if *out != "" {
		log.Printf("exported %d records to %s", len(records), *out)
	}
}

// --- plumbing ---

func doJSON(ctx context.Context, client *http.Client, method, u, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".mangashelf", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(tokenData{Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func mustToken(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("no saved token (run `mangashelf auth login` first): %v", err)
	}
	var td tokenData
	if err := json.Unmarshal(b, &td); err != nil || td.Token == "" {
		log.Fatalf("token file %s is corrupt, log in again", path)
	}
	return td.Token
}
