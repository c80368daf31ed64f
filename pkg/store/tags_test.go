package store

import (
	"context"
	"testing"
)

func TestAddAndListTags(t *testing.T) {
	s := newTestStore(t)
	seedMeeting(t, s, "m1")

	if err := s.AddTag(context.Background(), "m1", "budget"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if err := s.AddTag(context.Background(), "m1", "budget"); err != nil {
		t.Fatalf("AddTag (repeat): %v", err)
	}

	tags, err := s.ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "budget" {
		t.Fatalf("expected exactly one distinct tag, got %v", tags)
	}
}

func TestListParticipants(t *testing.T) {
	s := newTestStore(t)
	seedMeeting(t, s, "m1")
	s.db.Exec(`INSERT INTO participants (id, meeting_id, name, email) VALUES ('p1', 'm1', 'Avery', '')`)

	names, err := s.ListParticipants(context.Background())
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(names) != 1 || names[0] != "Avery" {
		t.Fatalf("unexpected participants: %v", names)
	}
}

func TestPopularTerms(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "m1", "s1")
	s.SaveTranscription(context.Background(), TranscriptionRecord{ChunkID: "c1", SessionID: "s1", MeetingID: "m1", Content: "budget budget roadmap"})

	terms, err := s.PopularTerms(context.Background(), 5)
	if err != nil {
		t.Fatalf("PopularTerms: %v", err)
	}
	if len(terms) == 0 || terms[0] != "budget" {
		t.Fatalf("expected budget to be the most popular term, got %v", terms)
	}
}
