// Package store keeps a history of built survey reports in a SQLite
// database so later runs can be compared against earlier ones.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/dshills/surveyrecon/internal/survey"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("store: snapshot not found")

// timeLayout is fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	year       INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	questions  INTEGER NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_year ON snapshots(year, created_at);`

// Snapshot is one saved report.
type Snapshot struct {
	ID        string        `json:"id"`
	Year      int           `json:"year"`
	CreatedAt time.Time     `json:"created_at"`
	Questions int           `json:"questions"`
	Report    survey.Report `json:"report"`
}

// Store is a snapshot history backed by a single SQLite file.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. A nil logger is replaced by a no-op logger.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	log.Debug("snapshot store opened", zap.String("path", path))
	return &Store{db: db, log: log, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save validates and stores a report, returning the new snapshot.
func (s *Store) Save(ctx context.Context, report survey.Report) (Snapshot, error) {
	if errs := report.Validate(); len(errs) > 0 {
		return Snapshot{}, fmt.Errorf("store: invalid report: %s", errs[0])
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: encode report: %w", err)
	}
	snap := Snapshot{
		ID:        uuid.NewString(),
		Year:      report.Year,
		CreatedAt: s.now().UTC(),
		Questions: len(report.Questions),
		Report:    report,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, year, created_at, questions, payload) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Year, snap.CreatedAt.Format(timeLayout), snap.Questions, string(payload))
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: insert snapshot: %w", err)
	}
	s.log.Info("snapshot saved",
		zap.String("id", snap.ID),
		zap.Int("year", snap.Year),
		zap.Int("questions", snap.Questions))
	return snap, nil
}

// Get returns the snapshot with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, created_at, questions, payload FROM snapshots WHERE id = ?`, id)
	return scan(row)
}

// Latest returns the most recently saved snapshot for a year.
func (s *Store) Latest(ctx context.Context, year int) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, created_at, questions, payload FROM snapshots
		 WHERE year = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, year)
	return scan(row)
}

// List returns snapshots newest first. A year of 0 lists every year.
func (s *Store) List(ctx context.Context, year int) ([]Snapshot, error) {
	query := `SELECT id, year, created_at, questions, payload FROM snapshots`
	var args []any
	if year != 0 {
		query += ` WHERE year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Snapshot, error) {
	var (
		snap    Snapshot
		created string
		payload string
	)
	if err := row.Scan(&snap.ID, &snap.Year, &created, &snap.Questions, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("store: scan snapshot: %w", err)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: snapshot %s: bad created_at: %w", snap.ID, err)
	}
	snap.CreatedAt = t
	if err := json.Unmarshal([]byte(payload), &snap.Report); err != nil {
		return Snapshot{}, fmt.Errorf("store: snapshot %s: decode report: %w", snap.ID, err)
	}
	return snap, nil
}
