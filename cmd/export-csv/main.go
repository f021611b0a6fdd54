package main

import (
	"context"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mangashelf/internal/collection"
	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

func main() {
	out := flag.String("out", "data/collection.csv", "output CSV path")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	repo := collection.NewRepo(db)
	records, err := repo.All(ctx)
	if err != nil {
		log.Fatalf("load collection: %v", err)
	}

	if err := writeCSV(*out, records); err != nil {
		log.Fatalf("export failed: %v", err)
	}
	log.Printf("exported %d records to %s", len(records), *out)
}

// writeCSV flattens the collection, one row per record, one column per
// attribute with the internal id left out. The file opens with a UTF-8 BOM
// because the usual consumer is a spreadsheet that guesses CP-932 otherwise.
func writeCSV(outPath string, records []models.Record) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	header := []string{
		"title", "volume", "status", "release_date", "score", "genre",
		"is_finished", "is_unread", "cover_url", "author", "publisher",
		"isbn", "detail_link",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.Title,
			strconv.Itoa(r.Volume),
			r.Status,
			r.ReleaseDate,
			strconv.Itoa(r.Score),
			r.Genre,
			strconv.FormatBool(r.IsFinished),
			strconv.FormatBool(r.IsUnread),
			r.CoverURL,
			r.Author,
			r.Publisher,
			r.ISBN,
			r.DetailLink,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
