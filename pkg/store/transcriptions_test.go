package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedSession(t *testing.T, s *Store, meetingID, sessionID string) {
	t.Helper()
	seedMeeting(t, s, meetingID)
	if err := s.CreateSession(context.Background(), Session{ID: sessionID, MeetingID: meetingID, StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
}

func TestSaveTranscriptionUpsertsByChunkID(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "m1", "s1")

	rec := TranscriptionRecord{ChunkID: "c1", SessionID: "s1", MeetingID: "m1", Content: "hello world", Confidence: 0.9, StartTimeMs: 0, EndTimeMs: 1000}
	if err := s.SaveTranscription(context.Background(), rec); err != nil {
		t.Fatalf("SaveTranscription: %v", err)
	}

	rec.Content = "hello world revised"
	if err := s.SaveTranscription(context.Background(), rec); err != nil {
		t.Fatalf("SaveTranscription (update): %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transcriptions WHERE chunk_id = 'c1'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 row after upsert, got %d", count)
	}

	var content string
	if err := s.db.QueryRow(`SELECT content FROM transcriptions WHERE chunk_id = 'c1'`).Scan(&content); err != nil {
		t.Fatalf("read content: %v", err)
	}
	if content != "hello world revised" {
		t.Fatalf("expected revised content, got %q", content)
	}
}

func TestSaveTranscriptionsBatchRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "m1", "s1")

	chunks := []TranscriptionRecord{
		{ChunkID: "c1", SessionID: "s1", MeetingID: "m1", Content: "first"},
		{ChunkID: "c2", SessionID: "does-not-exist", MeetingID: "m1", Content: "second"},
	}
	err := s.SaveTranscriptionsBatch(context.Background(), chunks)
	if err == nil {
		t.Fatalf("expected an error from the foreign-key violation")
	}

	var count int
	s.db.QueryRow(`SELECT COUNT(*) FROM transcriptions`).Scan(&count)
	if count != 0 {
		t.Fatalf("expected the whole batch rolled back, found %d rows", count)
	}
}

func TestLoadTranscriptConcatenatesInOrder(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "m1", "s1")

	s.SaveTranscription(context.Background(), TranscriptionRecord{ChunkID: "c2", SessionID: "s1", MeetingID: "m1", Content: "second", StartTimeMs: 30000})
	s.SaveTranscription(context.Background(), TranscriptionRecord{ChunkID: "c1", SessionID: "s1", MeetingID: "m1", Content: "first", StartTimeMs: 0})

	text, err := s.LoadTranscript(context.Background(), "m1")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if text != "first second" {
		t.Fatalf("expected chronological concatenation, got %q", text)
	}
}

func TestLoadTranscriptNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadTranscript(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
