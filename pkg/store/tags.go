package store

import (
	"context"
	"fmt"
)

// AddTag associates tag with meetingID. Re-adding the same tag is a no-op.
func (s *Store) AddTag(ctx context.Context, meetingID, tag string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meeting_tags (meeting_id, tag) VALUES (?, ?) ON CONFLICT(meeting_id, tag) DO NOTHING`,
		meetingID, tag,
	)
	if err != nil {
		return fmt.Errorf("store: add tag: %w", err)
	}
	return nil
}

// ListTags returns every distinct tag in use, for C9's tag-list suggestion
// source.
func (s *Store) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tag FROM meeting_tags ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("store: list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("store: list tags: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ListParticipants returns every distinct participant name, for C9's
// participant-list suggestion source.
func (s *Store) ListParticipants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM participants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list participants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: list participants: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// PopularTerms returns the most frequent words (four or more characters)
// across all stored transcription content, for C9's popular-terms
// suggestion source. It's a simple frequency count, not a ranked IR model.
func (s *Store) PopularTerms(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content FROM transcriptions`)
	if err != nil {
		return nil, fmt.Errorf("store: popular terms: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("store: popular terms: %w", err)
		}
		for _, term := range splitWords(content) {
			counts[term]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: popular terms: %w", err)
	}

	return topN(counts, limit), nil
}

func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) >= 4 { // skip short/stopword-ish tokens
			words = append(words, string(cur))
		}
		cur = cur[:0]
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			flush()
			continue
		}
		cur = append(cur, toLower(r))
	}
	flush()
	return words
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func topN(counts map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	// simple selection: not optimized, caller-side lists are small
	for i := 0; i < len(all); i++ {
		max := i
		for j := i + 1; j < len(all); j++ {
			if all[j].v > all[max].v {
				max = j
			}
		}
		all[i], all[max] = all[max], all[i]
	}
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.k
	}
	return out
}
