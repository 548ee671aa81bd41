package cv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_cv/internal/engine"
)

// ProfileDB stores accepted candidates per document in Postgres.
// Optional: a nil ProfileDB disables persistence.
type ProfileDB struct {
	pool *pgxpool.Pool
}

var profileDB *ProfileDB

// SetProfileDB sets the package-level profile DB instance.
func SetProfileDB(db *ProfileDB) { profileDB = db }

// GetProfileDB returns the package-level profile DB instance (may be nil).
func GetProfileDB() *ProfileDB { return profileDB }

const profileSchema = `CREATE TABLE IF NOT EXISTS extracted_items (
	id          BIGSERIAL PRIMARY KEY,
	doc_id      TEXT NOT NULL,
	item_type   TEXT NOT NULL,
	status      TEXT NOT NULL,
	fields      JSONB NOT NULL,
	triad       JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS extracted_items_doc_idx ON extracted_items (doc_id)`

// ConnectProfileDB creates a pgx pool and bootstraps the schema.
func ConnectProfileDB(ctx context.Context, databaseURL string) (*ProfileDB, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, profileSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	slog.Info("profile postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &ProfileDB{pool: pool}, nil
}

// Close releases the pool.
func (db *ProfileDB) Close() {
	db.pool.Close()
}

// SaveCandidates persists the accepted candidates of one document.
func (db *ProfileDB) SaveCandidates(ctx context.Context, docID string, items []*CandidateItem) error {
	for _, item := range items {
		fields, err := json.Marshal(item.Fields)
		if err != nil {
			return fmt.Errorf("profile: marshal fields: %w", err)
		}
		triad, err := json.Marshal(item.Triad)
		if err != nil {
			return fmt.Errorf("profile: marshal triad: %w", err)
		}
		_, err = db.pool.Exec(ctx,
			`INSERT INTO extracted_items (doc_id, item_type, status, fields, triad)
			 VALUES ($1, $2, $3, $4, $5)`,
			docID, item.ItemType, item.Status, fields, triad,
		)
		if err != nil {
			return fmt.Errorf("profile: insert: %w", err)
		}
		engine.IncrProfileWrites()
	}
	return nil
}

// ListCandidates returns stored candidates for a document, newest first.
func (db *ProfileDB) ListCandidates(ctx context.Context, docID string, limit int) ([]*CandidateItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT item_type, status, fields, triad FROM extracted_items
		 WHERE doc_id = $1 ORDER BY id DESC LIMIT $2`, docID, limit)
	if err != nil {
		return nil, fmt.Errorf("profile: query: %w", err)
	}
	defer rows.Close()

	var out []*CandidateItem
	for rows.Next() {
		var item CandidateItem
		var fields, triad []byte
		if err := rows.Scan(&item.ItemType, &item.Status, &fields, &triad); err != nil {
			continue
		}
		if err := json.Unmarshal(fields, &item.Fields); err != nil {
			continue
		}
		if err := json.Unmarshal(triad, &item.Triad); err != nil {
			continue
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}
