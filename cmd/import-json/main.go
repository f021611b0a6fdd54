// import-json migrates a legacy manga_data.json file (written by the old
// Streamlit tracker) into the sqlite collection. Records get validated,
// default-filled and re-keyed with fresh ids; volumes already present in the
// database are skipped, so re-running an import is harmless.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"mangashelf/internal/collection"
	"mangashelf/internal/register"
	"mangashelf/internal/series"
	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

func main() {
	in := flag.String("in", "manga_data.json", "legacy JSON data file")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	legacy, err := loadLegacy(*in)
	if err != nil {
		log.Fatalf("read %s: %v", *in, err)
	}
	log.Printf("loaded %d legacy records from %s", len(legacy), *in)

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	repo := collection.NewRepo(db)
	current, err := repo.All(ctx)
	if err != nil {
		log.Fatalf("load collection: %v", err)
	}

	occupied := make(map[register.VolumeKey]bool, len(current))
	for _, rec := range current {
		occupied[register.VolumeKey{Key: series.Key(rec.Title), Volume: rec.Volume}] = true
	}

	var batch []models.Record
	skipped := 0
	for _, rec := range legacy {
		slot := register.VolumeKey{Key: series.Key(rec.Title), Volume: rec.Volume}
		if occupied[slot] {
			skipped++
			continue
		}
		occupied[slot] = true
		batch = append(batch, rec)
	}

	if err := repo.InsertBatch(ctx, batch); err != nil {
		log.Fatalf("import failed: %v", err)
	}
	log.Printf("imported %d records (%d already present)", len(batch), skipped)
}

// loadLegacy parses the legacy file and upgrades each record: defaults for
// fields older revisions never wrote, fresh UUIDv7 ids assigned in legacy
// creation order (the old ids were wall-clock timestamps, so sorting first
// preserves the recency ordering the new ids encode).
func loadLegacy(path string) ([]models.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	for i := range records {
		records[i].ApplyDefaults()
		records[i].ID = newID()
	}
	return records, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
