// Package journal keeps a queryable history of print attempts in SQLite.
// The audit log is the tamper-evident record; the journal answers "was this
// serial printed, when and by whom" without scanning the whole log.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// PrintRecord is one print attempt.
type PrintRecord struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	StationID string    `json:"station_id"`
	SessionID string    `json:"session_id"`
	Operator  string    `json:"operator"`
	Order     string    `json:"order"`
	Product   string    `json:"product"`
	Serial    string    `json:"serial"`
	Groups    []string  `json:"groups"`
	Completed []string  `json:"completed"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
}

// Journal is a SQLite-backed print history.
type Journal struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, path: path}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		station_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		operator TEXT NOT NULL,
		order_code TEXT NOT NULL,
		product TEXT NOT NULL,
		serial TEXT NOT NULL,
		trigger_groups TEXT NOT NULL,
		completed TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_prints_serial ON prints(serial);
	CREATE INDEX IF NOT EXISTS idx_prints_at ON prints(at);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores rec and returns its row id. A zero At is set to now.
func (j *Journal) Record(ctx context.Context, rec PrintRecord) (int64, error) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO prints (at, station_id, session_id, operator, order_code, product, serial, trigger_groups, completed, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.At.UTC().Format(timeLayout), rec.StationID, rec.SessionID, rec.Operator,
		rec.Order, rec.Product, rec.Serial,
		strings.Join(rec.Groups, ","), strings.Join(rec.Completed, ","),
		rec.Outcome, rec.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to insert print record: %w", err)
	}
	return res.LastInsertId()
}

const selectColumns = `SELECT id, at, station_id, session_id, operator, order_code, product, serial, trigger_groups, completed, outcome, reason FROM prints`

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]PrintRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return j.query(ctx, selectColumns+` ORDER BY id DESC LIMIT ?`, limit)
}

// BySerial returns every record for serial, oldest first.
func (j *Journal) BySerial(ctx context.Context, serial string) ([]PrintRecord, error) {
	return j.query(ctx, selectColumns+` WHERE serial = ? ORDER BY id ASC`, serial)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]PrintRecord, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PrintRecord
	for rows.Next() {
		var (
			rec              PrintRecord
			at               string
			groups, complete string
		)
		if err := rows.Scan(&rec.ID, &at, &rec.StationID, &rec.SessionID, &rec.Operator,
			&rec.Order, &rec.Product, &rec.Serial, &groups, &complete, &rec.Outcome, &rec.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan print record: %w", err)
		}
		if rec.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("bad timestamp in record %d: %w", rec.ID, err)
		}
		rec.Groups = splitList(groups)
		rec.Completed = splitList(complete)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
