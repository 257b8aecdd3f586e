// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists delivered funding reports in a local SQLite
// database so they can be listed, reopened and exported later. Only final
// Results are stored; progress is never persisted.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/plutus/pkg/types"
)

const (
	dbFile       = "reports.db"
	defaultLimit = 20
)

// ErrNotFound is returned by Get for an unknown submission ID.
var ErrNotFound = errors.New("report not found")

// Record is one archived report together with the submission that
// produced it.
type Record struct {
	Submission  types.Submission `json:"submission" yaml:"submission"`
	Result      types.Result     `json:"result" yaml:"result"`
	DeliveredAt time.Time        `json:"delivered_at" yaml:"delivered_at"`
}

// ListOptions filters List.
type ListOptions struct {
	// Query matches case-insensitively against the description and summary.
	Query string

	// Limit caps the number of records. Zero uses the default of 20.
	Limit int
}

// Store manages the report archive database.
type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// NewStore opens or creates the archive at cfg.Dir/reports.db.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("archive directory is not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			max_results INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			delivered_at TEXT NOT NULL,
			search_terms TEXT NOT NULL,
			summary TEXT NOT NULL,
			funders_data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_delivered_at ON reports(delivered_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores res under sub.ID. Saving the same submission again replaces
// the earlier record.
func (s *Store) Save(ctx context.Context, sub types.Submission, res types.Result) error {
	if sub.ID == "" {
		return errors.New("submission has no ID")
	}
	termsJSON, err := json.Marshal(nonNil(res.SearchTerms))
	if err != nil {
		return fmt.Errorf("encoding search terms: %w", err)
	}
	fundersJSON, err := json.Marshal(nonNilRecords(res.FundersData))
	if err != nil {
		return fmt.Errorf("encoding funders data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, description, max_results, created_at, delivered_at, search_terms, summary, funders_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			description=excluded.description, max_results=excluded.max_results,
			created_at=excluded.created_at, delivered_at=excluded.delivered_at,
			search_terms=excluded.search_terms, summary=excluded.summary,
			funders_data=excluded.funders_data`,
		sub.ID, sub.Description, sub.MaxResults,
		sub.CreatedAt.UTC().Format(time.RFC3339Nano),
		s.now().UTC().Format(time.RFC3339Nano),
		string(termsJSON), res.Summary, string(fundersJSON),
	)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", sub.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, description, max_results, created_at, delivered_at, search_terms, summary, funders_data FROM reports`

// Get returns the record for id. A unique ID prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return Record{}, fmt.Errorf("querying report %s: %w", id, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return Record{}, err
	}
	switch {
	case len(recs) == 0:
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	case recs[0].Submission.ID == id || len(recs) == 1:
		return recs[0], nil
	default:
		return Record{}, fmt.Errorf("report ID prefix %q is ambiguous", id)
	}
}

// List returns archived reports, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(selectColumns)
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		qb.WriteString(` WHERE lower(description) LIKE ? ESCAPE '\' OR lower(summary) LIKE ? ESCAPE '\'`)
		args = append(args, pattern, pattern)
	}
	qb.WriteString(` ORDER BY delivered_at DESC, id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var (
			r                  Record
			created, delivered string
			termsJSON, funders string
		)
		if err := rows.Scan(&r.Submission.ID, &r.Submission.Description, &r.Submission.MaxResults,
			&created, &delivered, &termsJSON, &r.Result.Summary, &funders); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		r.Submission.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		r.DeliveredAt, _ = time.Parse(time.RFC3339Nano, delivered)
		if err := json.Unmarshal([]byte(termsJSON), &r.Result.SearchTerms); err != nil {
			return nil, fmt.Errorf("decoding search terms for %s: %w", r.Submission.ID, err)
		}
		if err := json.Unmarshal([]byte(funders), &r.Result.FundersData); err != nil {
			return nil, fmt.Errorf("decoding funders data for %s: %w", r.Submission.ID, err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilRecords(r []types.FunderRecord) []types.FunderRecord {
	if r == nil {
		return []types.FunderRecord{}
	}
	return r
}
