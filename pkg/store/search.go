package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// confidenceBoostAlpha is α in confidence_boost = 1 + α·confidence
// (spec.md §4.7).
const confidenceBoostAlpha = 0.3

// recencyWindow is the window over which recency_boost decays linearly to
// zero (spec.md §4.7).
const recencyWindow = 30 * 24 * time.Hour

// Filters narrows a Search call.
type Filters struct {
	MeetingID     string
	From          *time.Time
	To            *time.Time
	MinConfidence float64
	Participant   string
	Tag           string
	MinDuration   *time.Duration
	MaxDuration   *time.Duration
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ChunkID    string
	MeetingID  string
	Content    string
	Confidence float64
	CreatedAt  time.Time
	Relevance  float64
}

// Search runs query against the transcription full-text index and returns
// results ordered by relevance := rank(fts) × confidence_boost ×
// recency_boost (spec.md §4.7). buildFTSQuery translates the query-string
// syntax (whitespace→AND, quoted→phrase, single bare word→prefix) into an
// FTS5 MATCH expression.
func (s *Store) Search(ctx context.Context, query string, filters Filters, limit, offset int) ([]SearchResult, error) {
	ftsQuery, err := buildFTSQuery(query)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	sqlQuery := `
		SELECT t.chunk_id, t.meeting_id, t.content, t.confidence, t.created_at, bm25(transcriptions_fts) AS rank
		FROM transcriptions_fts
		JOIN transcriptions t ON t.rowid = transcriptions_fts.rowid
		WHERE transcriptions_fts MATCH ?
	`
	args := []interface{}{ftsQuery}

	if filters.MeetingID != "" {
		sqlQuery += ` AND t.meeting_id = ?`
		args = append(args, filters.MeetingID)
	}
	if filters.From != nil {
		sqlQuery += ` AND t.created_at >= ?`
		args = append(args, *filters.From)
	}
	if filters.To != nil {
		sqlQuery += ` AND t.created_at <= ?`
		args = append(args, *filters.To)
	}
	if filters.MinConfidence > 0 {
		sqlQuery += ` AND t.confidence >= ?`
		args = append(args, filters.MinConfidence)
	}
	if filters.Participant != "" {
		sqlQuery += ` AND EXISTS (SELECT 1 FROM participants p WHERE p.meeting_id = t.meeting_id AND p.name = ?)`
		args = append(args, filters.Participant)
	}
	if filters.Tag != "" {
		sqlQuery += ` AND EXISTS (SELECT 1 FROM meeting_tags mt WHERE mt.meeting_id = t.meeting_id AND mt.tag = ?)`
		args = append(args, filters.Tag)
	}
	if filters.MinDuration != nil {
		sqlQuery += ` AND EXISTS (SELECT 1 FROM meetings mm WHERE mm.id = t.meeting_id AND mm.ended_at IS NOT NULL AND (julianday(mm.ended_at) - julianday(mm.started_at)) * 86400 >= ?)`
		args = append(args, filters.MinDuration.Seconds())
	}
	if filters.MaxDuration != nil {
		sqlQuery += ` AND EXISTS (SELECT 1 FROM meetings mm WHERE mm.id = t.meeting_id AND mm.ended_at IS NOT NULL AND (julianday(mm.ended_at) - julianday(mm.started_at)) * 86400 <= ?)`
		args = append(args, filters.MaxDuration.Seconds())
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.ChunkID, &r.MeetingID, &r.Content, &r.Confidence, &r.CreatedAt, &rank); err != nil {
			return nil, fmt.Errorf("store: search: scan: %w", err)
		}
		// bm25 is more negative for a better match; flip sign so higher is
		// better, matching confidence_boost and recency_boost.
		baseRank := -rank
		confidenceBoost := 1 + confidenceBoostAlpha*r.Confidence
		recencyBoost := recencyBoostFor(r.CreatedAt, now)
		r.Relevance = baseRank * confidenceBoost * recencyBoost
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	// Ranking combines SQL-native bm25 with boosts computed in Go, so the
	// final ordering and pagination happen here rather than in SQL.
	sort.Slice(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })

	if offset >= len(results) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(results) {
		end = len(results)
	}
	return results[offset:end], nil
}

func recencyBoostFor(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age <= 0 {
		return 1
	}
	if age >= recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(recencyWindow)
}

// buildFTSQuery translates the query-string syntax from spec.md §4.7 into
// an FTS5 MATCH expression: whitespace-separated bare terms are ANDed,
// quoted segments pass through as phrase queries, and a query consisting of
// a single bare word is treated as a prefix match.
func buildFTSQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("empty query")
	}

	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return "", fmt.Errorf("empty query")
	}
	if len(terms) == 1 && !strings.HasPrefix(terms[0], `"`) {
		return terms[0] + "*", nil
	}
	return strings.Join(terms, " AND "), nil
}

// tokenizeQuery splits on whitespace outside of double-quoted segments,
// keeping each quoted segment (including its quotes) as a single token.
func tokenizeQuery(query string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range query {
		switch {
		case r == '"':
			current.WriteRune(r)
			inQuote = !inQuote
			if !inQuote {
				flush()
			}
		case r == ' ' && !inQuote:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
