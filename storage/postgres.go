package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"radiovespa/models"
)

// Postgres is the relational store shared by the bot and the sync command.
// The pool is opened once by the caller and closed on shutdown; every method
// borrows a connection for a single statement.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the server is reachable and ensures the
// schema exists. An unreachable server is reported immediately.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	pg := &Postgres{db: db}
	if err := pg.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pg, nil
}

// NewPostgres wraps an existing pool without pinging or migrating.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (pg *Postgres) migrate(ctx context.Context) error {
	_, err := pg.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vespas (
			id          INTEGER      PRIMARY KEY,
			nombre      TEXT         NOT NULL DEFAULT '',
			telefono    TEXT         NOT NULL,
			servicios   TEXT         NOT NULL DEFAULT '',
			tamano      VARCHAR(16)  NOT NULL DEFAULT 'mediana',
			visible     BOOLEAN      NOT NULL DEFAULT TRUE,
			destacado   BOOLEAN      NOT NULL DEFAULT FALSE,
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS clics (
			id                SERIAL       PRIMARY KEY,
			vespa_id          INTEGER      NOT NULL,
			telefono_cliente  TEXT         NOT NULL,
			fecha             TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_clics_vespa ON clics(vespa_id);
		CREATE INDEX IF NOT EXISTS idx_clics_fecha ON clics(fecha);
	`)
	return err
}

// RecordClick appends a click record.
func (pg *Postgres) RecordClick(ctx context.Context, c models.Click) error {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := pg.db.ExecContext(ctx,
		`INSERT INTO clics (vespa_id, telefono_cliente, fecha) VALUES ($1, $2, $3)`,
		c.ListingID, c.Requester, at.UTC())
	if err != nil {
		return fmt.Errorf("postgres: record click: %w", err)
	}
	return nil
}

// PhoneByID returns the phone number stored for a listing, or ErrNotFound.
func (pg *Postgres) PhoneByID(ctx context.Context, id int) (string, error) {
	var phone string
	err := pg.db.QueryRowContext(ctx, `SELECT telefono FROM vespas WHERE id = $1`, id).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: phone lookup %d: %w", id, err)
	}
	return phone, nil
}

// UpsertListings writes listings with numeric ids in batches, updating rows
// that already exist. Listings without a numeric id are skipped; the number
// written is returned.
func (pg *Postgres) UpsertListings(ctx context.Context, listings []models.Listing) (int, error) {
	rows := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if _, ok := l.NumericID(); ok {
			rows = append(rows, l)
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		if err := pg.upsertBatch(ctx, rows[i:end]); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}

func (pg *Postgres) upsertBatch(ctx context.Context, batch []models.Listing) error {
	const cols = 7
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*cols)

	for idx, l := range batch {
		id, _ := l.NumericID()
		base := idx * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		valueArgs = append(valueArgs,
			id, l.Name, l.Phone, strings.Join(l.Services, ";"), string(l.Size), l.Visible, l.Featured)
	}

	query := fmt.Sprintf(`
		INSERT INTO vespas (id, nombre, telefono, servicios, tamano, visible, destacado)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
			nombre     = EXCLUDED.nombre,
			telefono   = EXCLUDED.telefono,
			servicios  = EXCLUDED.servicios,
			tamano     = EXCLUDED.tamano,
			visible    = EXCLUDED.visible,
			destacado  = EXCLUDED.destacado,
			updated_at = NOW()
	`, strings.Join(valueStrings, ","))

	if _, err := pg.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: upsert listings: %w", err)
	}
	return nil
}

// ClickCounts returns the number of clicks per listing since the given time.
func (pg *Postgres) ClickCounts(ctx context.Context, since time.Time) (map[int]int, error) {
	rows, err := pg.db.QueryContext(ctx, `
		SELECT vespa_id, COUNT(*)
		FROM clics
		WHERE fecha >= $1
		GROUP BY vespa_id
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: click counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan click count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (pg *Postgres) Close() error {
	return pg.db.Close()
}
