package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared", nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedMeeting(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateMeeting(context.Background(), Meeting{
		ID:          id,
		Title:       "Q3 planning",
		MeetingType: "planning",
		Organizer:   "avery",
		StartedAt:   time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := migrate(s.db); err != nil {
		t.Fatalf("second migrate call failed: %v", err)
	}
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != len(entries) {
		t.Fatalf("expected %d applied migrations, got %d", len(entries), count)
	}
}

func TestCreateAndUpdateSession(t *testing.T) {
	s := newTestStore(t)
	seedMeeting(t, s, "m1")

	sess := Session{ID: "s1", MeetingID: "m1", StartedAt: time.Now()}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	completed := StatusCompleted
	now := time.Now()
	if err := s.UpdateSession(context.Background(), "s1", SessionPatch{Status: &completed, CompletedAt: &now}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM transcription_sessions WHERE id = ?`, "s1").Scan(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != string(StatusCompleted) {
		t.Fatalf("expected Completed, got %s", status)
	}
}

func TestUpdateSessionRejectsLeavingTerminal(t *testing.T) {
	s := newTestStore(t)
	seedMeeting(t, s, "m1")
	s.CreateSession(context.Background(), Session{ID: "s1", MeetingID: "m1", StartedAt: time.Now()})

	failed := StatusFailed
	if err := s.UpdateSession(context.Background(), "s1", SessionPatch{Status: &failed}); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	active := StatusActive
	err := s.UpdateSession(context.Background(), "s1", SessionPatch{Status: &active})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateSessionUnknownID(t *testing.T) {
	s := newTestStore(t)
	completed := StatusCompleted
	err := s.UpdateSession(context.Background(), "missing", SessionPatch{Status: &completed})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
