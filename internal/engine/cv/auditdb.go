package cv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_cv/internal/engine"
)

// SavedExport is one persisted extraction report.
type SavedExport struct {
	ID        int64           `json:"id"`
	DocID     string          `json:"doc_id"`
	Report    json.RawMessage `json:"report"`
	CreatedAt string          `json:"created_at"`
}

var (
	auditDB   *sql.DB
	auditOnce sync.Once
	auditErr  error
)

// openAuditDB opens (or creates) the SQLite audit database.
func openAuditDB() (*sql.DB, error) {
	auditOnce.Do(func() {
		path := engine.Cfg.AuditDBPath
		if path == "" {
			dir := filepath.Join(os.Getenv("HOME"), ".go_cv")
			if err := os.MkdirAll(dir, 0750); err != nil {
				auditErr = fmt.Errorf("audit: mkdir %s: %w", dir, err)
				return
			}
			path = filepath.Join(dir, "audit.db")
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			auditErr = fmt.Errorf("audit: open db: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // SQLite: single writer
		if err := initAuditSchema(db); err != nil {
			auditErr = fmt.Errorf("audit: init schema: %w", err)
			return
		}
		auditDB = db
	})
	return auditDB, auditErr
}

func initAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS exports (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_id     TEXT NOT NULL,
		report     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// SaveExport persists one extraction report for later audit.
func SaveExport(_ context.Context, report *ExportReport) (int64, error) {
	if report == nil {
		return 0, fmt.Errorf("audit: nil report")
	}
	db, err := openAuditDB()
	if err != nil {
		return 0, err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("audit: marshal report: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec(
		`INSERT INTO exports (doc_id, report, created_at) VALUES (?, ?, ?)`,
		report.DocID, string(data), now,
	)
	if err != nil {
		return 0, fmt.Errorf("audit: insert: %w", err)
	}
	engine.IncrAuditWrites()
	id, _ := res.LastInsertId()
	return id, nil
}

// ListExports returns the most recent persisted reports, newest first.
func ListExports(_ context.Context, docID string, limit int) ([]SavedExport, error) {
	db, err := openAuditDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows *sql.Rows
	if docID != "" {
		rows, err = db.Query(
			`SELECT id, doc_id, report, created_at FROM exports
			 WHERE doc_id = ? ORDER BY id DESC LIMIT ?`, docID, limit)
	} else {
		rows, err = db.Query(
			`SELECT id, doc_id, report, created_at FROM exports
			 ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []SavedExport
	for rows.Next() {
		var e SavedExport
		var report string
		if err := rows.Scan(&e.ID, &e.DocID, &report, &e.CreatedAt); err != nil {
			continue
		}
		e.Report = json.RawMessage(report)
		out = append(out, e)
	}
	if out == nil {
		out = []SavedExport{}
	}
	return out, nil
}
