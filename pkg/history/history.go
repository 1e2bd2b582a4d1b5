// Package history keeps a sqlite record of every classified file.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glimps-re/autovt/pkg/datamodel"
	_ "modernc.org/sqlite"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

var ErrEntryNotFound = errors.New("entry not found")

var Now = time.Now

type Entry struct {
	ID        int64
	SessionID string
	SHA256    string
	Filename  string
	Location  string
	Verdict   datamodel.Verdict
	Detected  int
	Total     int
	ReportURL string
	ScannedAt time.Time
}

func (e Entry) Outcome() datamodel.Outcome {
	if e.Verdict == datamodel.Flagged {
		return datamodel.FlaggedOutcome(e.Detected, e.Total)
	}
	return datamodel.CleanOutcome()
}

func EntryFromReport(r datamodel.Report) Entry {
	return Entry{
		SessionID: r.SessionID,
		SHA256:    r.SHA256,
		Filename:  r.Filename,
		Location:  r.Location,
		Verdict:   r.Outcome.Verdict,
		Detected:  r.Outcome.Ratio.Detected,
		Total:     r.Outcome.Ratio.Total,
		ReportURL: r.ReportURL,
		ScannedAt: r.ScannedAt,
	}
}

type Recorder interface {
	Add(ctx context.Context, entry *Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Last(ctx context.Context, sha256 string) (*Entry, error)
	Close() error
}

var _ Recorder = &Store{}

type Store struct {
	db *sql.DB
	sync.Mutex
}

const createTable = `CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	filename TEXT NOT NULL,
	location TEXT NOT NULL,
	verdict TEXT NOT NULL,
	detected INTEGER NOT NULL,
	total INTEGER NOT NULL,
	report_url TEXT,
	scanned_at INTEGER NOT NULL );
CREATE INDEX IF NOT EXISTS scans_sha256 ON scans (sha256);`

// NewStore opens the history at location, in memory when location is empty.
func NewStore(location string) (s *Store, err error) {
	if location == "" {
		location = "file::memory:"
	} else {
		dir := filepath.Dir(location)
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("could not create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", location)
	if err != nil {
		return
	}
	// one connection, an in-memory database lives per connection
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create history table: %w", err)
	}
	logger.Debug("history opened", slog.String("location", location))
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Add(ctx context.Context, entry *Entry) (err error) {
	s.Lock()
	defer s.Unlock()
	if entry.ScannedAt.IsZero() {
		entry.ScannedAt = Now()
	}
	result, err := s.db.ExecContext(ctx, `
INSERT INTO scans (session_id, sha256, filename, location, verdict, detected, total, report_url, scanned_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.SessionID,
		entry.SHA256,
		entry.Filename,
		entry.Location,
		string(entry.Verdict),
		entry.Detected,
		entry.Total,
		entry.ReportURL,
		entry.ScannedAt.UnixMilli(),
	)
	if err != nil {
		return
	}
	entry.ID, err = result.LastInsertId()
	return
}

const selectEntries = `SELECT id, session_id, sha256, filename, location, verdict, detected, total, report_url, scanned_at FROM scans`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (entry Entry, err error) {
	var verdict string
	var reportURL sql.NullString
	var scannedAt int64
	err = row.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.SHA256,
		&entry.Filename,
		&entry.Location,
		&verdict,
		&entry.Detected,
		&entry.Total,
		&reportURL,
		&scannedAt,
	)
	if err != nil {
		return
	}
	entry.Verdict = datamodel.Verdict(verdict)
	entry.ReportURL = reportURL.String
	entry.ScannedAt = time.UnixMilli(scannedAt)
	return
}

// List returns the latest entries first. limit <= 0 lists everything.
func (s *Store) List(ctx context.Context, limit int) (entries []Entry, err error) {
	s.Lock()
	defer s.Unlock()
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectEntries+` ORDER BY scanned_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	for rows.Next() {
		var entry Entry
		if entry, err = scanEntry(rows); err != nil {
			return
		}
		entries = append(entries, entry)
	}
	err = rows.Err()
	return
}

// Last returns the latest scan of a file content.
func (s *Store) Last(ctx context.Context, sha256 string) (entry *Entry, err error) {
	s.Lock()
	defer s.Unlock()
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntries+` WHERE sha256 = $1 ORDER BY scanned_at DESC, id DESC LIMIT 1`, sha256))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return
	}
	return &e, nil
}
