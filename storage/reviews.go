package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"radiovespa/models"
)

// SQLiteReviews keeps the append-only review log in a local SQLite file.
type SQLiteReviews struct {
	db  *sql.DB
	now func() time.Time
}

// OpenReviews opens (creating if needed) the review database at dbPath.
func OpenReviews(dbPath string) (*SQLiteReviews, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("reviews: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("reviews: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteReviews{db: db, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteReviews) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			id          TEXT    PRIMARY KEY,
			vespa_id    TEXT    NOT NULL,
			recommend   INTEGER NOT NULL,
			tags        TEXT    NOT NULL DEFAULT '[]',
			comment     TEXT    NOT NULL DEFAULT '',
			source      TEXT    NOT NULL DEFAULT 'web',
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reviews_vespa_created ON reviews(vespa_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("reviews: init schema: %w", err)
	}
	return nil
}

// Submit appends a review. Tags beyond models.MaxReviewTags are dropped and
// the source defaults to "web".
func (s *SQLiteReviews) Submit(ctx context.Context, in models.ReviewInput) (models.Review, error) {
	if in.ListingID == "" {
		return models.Review{}, fmt.Errorf("reviews: submit: listing id is required")
	}

	tags := in.Tags
	if len(tags) > models.MaxReviewTags {
		tags = tags[:models.MaxReviewTags]
	}
	if tags == nil {
		tags = []string{}
	}
	source := in.Source
	if source == "" {
		source = "web"
	}

	r := models.Review{
		ID:        uuid.NewString(),
		ListingID: in.ListingID,
		Recommend: in.Recommend,
		Tags:      tags,
		Comment:   in.Comment,
		Source:    source,
		CreatedAt: s.now().UTC(),
	}

	tagsJSON, err := json.Marshal(r.Tags)
	if err != nil {
		return models.Review{}, fmt.Errorf("reviews: encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, vespa_id, recommend, tags, comment, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ListingID, boolToInt(r.Recommend), string(tagsJSON), r.Comment, r.Source, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return models.Review{}, fmt.Errorf("reviews: insert: %w", err)
	}
	return r, nil
}

// Recent returns up to limit reviews for a listing, newest first.
func (s *SQLiteReviews) Recent(ctx context.Context, listingID string, limit int) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vespa_id, recommend, tags, comment, source, created_at
		FROM reviews
		WHERE vespa_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("reviews: query: %w", err)
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		var (
			r         models.Review
			recommend int
			tagsJSON  string
			created   int64
		)
		if err := rows.Scan(&r.ID, &r.ListingID, &recommend, &tagsJSON, &r.Comment, &r.Source, &created); err != nil {
			return nil, fmt.Errorf("reviews: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, fmt.Errorf("reviews: decode tags of %s: %w", r.ID, err)
		}
		r.Recommend = recommend != 0
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteReviews) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
