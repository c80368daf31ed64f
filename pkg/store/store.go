// Package store implements C7: an embedded SQLite store for transcripts and
// summaries, with a full-text index over transcription and summary content.
// Schema management follows the embed-driven migration pattern of
// hubenschmidt-asr-llm-tts's trace store, re-targeted from Postgres to
// SQLite+FTS5 (spec.md §4.7).
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scribeflow/meetcore/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists meetings, transcriptions, summaries, and usage to a SQLite
// database file.
type Store struct {
	db     *sql.DB
	logger logging.Logger

	queryLatency prometheus.Histogram
}

// Open opens (creating if absent) the SQLite database at path, applies any
// unapplied migrations, and returns a ready Store. reg may be nil.
func Open(path string, reg prometheus.Registerer, logger logging.Logger) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(10)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	s := &Store{db: db, logger: logging.OrDefault(logger)}
	if reg != nil {
		s.queryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "meetcore_store_query_latency_seconds",
			Help: "Latency of store queries.",
		})
		reg.MustRegister(s.queryLatency)
	}
	return s, nil
}

// migrate applies every migration in migrations/*.sql not yet recorded in
// the _migrations table, in filename order, each at most once.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query(`SELECT name FROM _migrations`)
	if err != nil {
		return fmt.Errorf("read _migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations (name, applied_at) VALUES (?, ?)`, name, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateMeeting inserts a new meeting row.
func (s *Store) CreateMeeting(ctx context.Context, m Meeting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, title, meeting_type, organizer, started_at, ended_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.MeetingType, m.Organizer, m.StartedAt, nullableTime(m.EndedAt), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: create meeting: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

var validTransition = map[Status]map[Status]bool{
	StatusActive: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// CreateSession inserts a new Active transcription session.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcription_sessions (id, meeting_id, status, started_at, completed_at, sequence_counter, chunk_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.MeetingID, StatusActive, sess.StartedAt, nullableTime(nil), sess.SequenceCounter, sess.ChunkCount,
	)
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// SessionPatch describes a partial update to a transcription session.
// Nil fields are left unchanged.
type SessionPatch struct {
	Status          *Status
	SequenceCounter *int
	ChunkCount      *int
	CompletedAt     *time.Time
}

// UpdateSession applies patch to sessionID inside a single transaction,
// validating the status transition against the table in spec.md §3.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, patch SessionPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: update session: begin: %w", err)
	}
	defer tx.Rollback()

	var current Status
	if err := tx.QueryRowContext(ctx, `SELECT status FROM transcription_sessions WHERE id = ?`, sessionID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("store: update session: %w", ErrNotFound)
		}
		return fmt.Errorf("store: update session: read status: %w", err)
	}

	if patch.Status != nil && *patch.Status != current {
		if !validTransition[current][*patch.Status] {
			return fmt.Errorf("store: update session: %w: %s -> %s", ErrInvalidTransition, current, *patch.Status)
		}
	}

	newStatus := current
	if patch.Status != nil {
		newStatus = *patch.Status
	}

	var completedAt interface{}
	if patch.CompletedAt != nil {
		completedAt = *patch.CompletedAt
	}

	query := `UPDATE transcription_sessions SET status = ?`
	args := []interface{}{newStatus}
	if patch.SequenceCounter != nil {
		query += `, sequence_counter = ?`
		args = append(args, *patch.SequenceCounter)
	}
	if patch.ChunkCount != nil {
		query += `, chunk_count = ?`
		args = append(args, *patch.ChunkCount)
	}
	if patch.CompletedAt != nil {
		query += `, completed_at = ?`
		args = append(args, completedAt)
	}
	query += ` WHERE id = ?`
	args = append(args, sessionID)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}
	return tx.Commit()
}
