package store

import (
	"context"
	"testing"
	"time"
)

func TestSearchRanksByRelevance(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "m1", "s1")

	s.SaveTranscription(context.Background(), TranscriptionRecord{
		ChunkID: "c1", SessionID: "s1", MeetingID: "m1",
		Content: "we discussed the quarterly budget in detail", Confidence: 0.95,
	})
	s.SaveTranscription(context.Background(), TranscriptionRecord{
		ChunkID: "c2", SessionID: "s1", MeetingID: "m1",
		Content: "budget mentioned briefly at the end", Confidence: 0.4,
	})

	results, err := s.Search(context.Background(), "budget", Filters{}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "c1" {
		t.Errorf("expected the higher-confidence match ranked first, got %s", results[0].ChunkID)
	}
}

func TestSearchFiltersByMinConfidence(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "m1", "s1")

	s.SaveTranscription(context.Background(), TranscriptionRecord{ChunkID: "c1", SessionID: "s1", MeetingID: "m1", Content: "roadmap review", Confidence: 0.9})
	s.SaveTranscription(context.Background(), TranscriptionRecord{ChunkID: "c2", SessionID: "s1", MeetingID: "m1", Content: "roadmap skim", Confidence: 0.2})

	results, err := s.Search(context.Background(), "roadmap", Filters{MinConfidence: 0.5}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "c1" {
		t.Fatalf("expected only the high-confidence match, got %+v", results)
	}
}

func TestSearchPagination(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "m1", "s1")
	for i := 0; i < 5; i++ {
		s.SaveTranscription(context.Background(), TranscriptionRecord{
			ChunkID: string(rune('a' + i)), SessionID: "s1", MeetingID: "m1",
			Content: "standup notes", Confidence: 0.8,
		})
	}

	page1, err := s.Search(context.Background(), "standup", Filters{}, 2, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected page size 2, got %d", len(page1))
	}

	page2, err := s.Search(context.Background(), "standup", Filters{}, 2, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected page size 2, got %d", len(page2))
	}
	if page1[0].ChunkID == page2[0].ChunkID {
		t.Fatalf("expected distinct pages")
	}
}

func TestBuildFTSQuerySyntax(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"budget", "budget*"},
		{"quarterly budget", "quarterly AND budget"},
		{`"quarterly budget"`, `"quarterly budget"`},
	}
	for _, c := range cases {
		got, err := buildFTSQuery(c.in)
		if err != nil {
			t.Fatalf("buildFTSQuery(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("buildFTSQuery(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRecencyBoostDecaysLinearly(t *testing.T) {
	now := time.Now()
	if got := recencyBoostFor(now, now); got != 1 {
		t.Errorf("expected boost 1 for now, got %v", got)
	}
	if got := recencyBoostFor(now.Add(-31*24*time.Hour), now); got != 0 {
		t.Errorf("expected boost 0 past the window, got %v", got)
	}
	mid := recencyBoostFor(now.Add(-15*24*time.Hour), now)
	if mid <= 0 || mid >= 1 {
		t.Errorf("expected a mid-window boost strictly between 0 and 1, got %v", mid)
	}
}
