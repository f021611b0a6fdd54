package collection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mangashelf/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// ListQuery mirrors the views of the tracker UI: all (score ranking), recent
// arrivals, unread/wanted, finished favourites, genre shelves.
type ListQuery struct {
	Status   string // "", "own", "want"
	Genre    string // substring match inside the tag list
	Unread   bool   // unread OR wanted
	Finished bool   // finished AND score >= MinScore
	MinScore int
	Sort     string // "score" (default), "recent", "release"
	Limit    int
	Offset   int
}

const recordCols = `id, title, volume, status, release_date, score, genre,
	is_finished, is_unread, cover_url, author, publisher, isbn, detail_link`

func (r *Repo) Insert(ctx context.Context, rec models.Record) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO records (`+recordCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, insertArgs(rec)...)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// InsertBatch writes every record in one transaction. Range registration
// persists once per batch, not once per volume.
func (r *Repo) InsertBatch(ctx context.Context, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (`+recordCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, insertArgs(rec)...); err != nil {
			return fmt.Errorf("batch insert %s vol %d: %w", rec.Title, rec.Volume, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

// Update rewrites the editable fields of one record in place. The id is the
// sole key; false means no such record.
func (r *Repo) Update(ctx context.Context, rec models.Record) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE records
		SET title = ?, volume = ?, status = ?, release_date = ?, score = ?,
		    genre = ?, is_finished = ?, is_unread = ?
		WHERE id = ?
	`, rec.Title, rec.Volume, rec.Status, rec.ReleaseDate, rec.Score,
		rec.Genre, rec.IsFinished, rec.IsUnread, rec.ID)
	if err != nil {
		return false, fmt.Errorf("update record: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Record, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+recordCols+` FROM records WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &rec, nil
}

// All returns the whole collection in creation order. The series view, the
// registrar's existing-volume set and the CSV export all start here.
func (r *Repo) All(ctx context.Context) ([]models.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+recordCols+` FROM records ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Record, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0, q.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildListSQL assembles either COUNT(*) or the SELECT for a view.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + recordCols + ` FROM records`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM records`
	}

	var where []string
	var args []any

	if s := strings.TrimSpace(q.Status); s != "" {
		where = append(where, "status = ?")
		args = append(args, s)
	}

	if g := strings.TrimSpace(q.Genre); g != "" {
		if g == models.GenreUnclassified {
			where = append(where, "(genre = '' OR genre = ?)")
			args = append(args, models.GenreUnclassified)
		} else {
			where = append(where, "genre LIKE ?")
			args = append(args, "%"+g+"%")
		}
	}

	if q.Unread {
		where = append(where, "(status = 'want' OR is_unread = 1)")
	}

	if q.Finished {
		where = append(where, "is_finished = 1")
	}

	if q.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, q.MinScore)
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		switch q.Sort {
		case "recent":
			sqlStr += " ORDER BY id DESC"
		case "release":
			sqlStr += " ORDER BY release_date DESC, id DESC"
		default:
			sqlStr += " ORDER BY score DESC, title ASC, volume ASC"
		}

		limit := q.Limit
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		sqlStr += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.Record, error) {
	var (
		rec         models.Record
		releaseDate sql.NullString
		genre       sql.NullString
		coverURL    sql.NullString
		author      sql.NullString
		publisher   sql.NullString
		isbn        sql.NullString
		detailLink  sql.NullString
	)

	if err := row.Scan(
		&rec.ID, &rec.Title, &rec.Volume, &rec.Status, &releaseDate, &rec.Score,
		&genre, &rec.IsFinished, &rec.IsUnread, &coverURL, &author, &publisher,
		&isbn, &detailLink,
	); err != nil {
		return models.Record{}, err
	}

	rec.ReleaseDate = releaseDate.String
	rec.Genre = genre.String
	rec.CoverURL = coverURL.String
	rec.Author = author.String
	rec.Publisher = publisher.String
	rec.ISBN = isbn.String
	rec.DetailLink = detailLink.String
	return rec, nil
}

func insertArgs(rec models.Record) []any {
	return []any{
		rec.ID, rec.Title, rec.Volume, rec.Status, rec.ReleaseDate, rec.Score,
		rec.Genre, rec.IsFinished, rec.IsUnread, rec.CoverURL, rec.Author,
		rec.Publisher, rec.ISBN, rec.DetailLink,
	}
}
