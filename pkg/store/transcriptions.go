package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SaveTranscription upserts t by chunk_id: a repeated save of the same
// chunk_id updates the row in place (spec.md §4.7 idempotence).
func (s *Store) SaveTranscription(ctx context.Context, t TranscriptionRecord) error {
	return s.saveTranscription(ctx, s.db, t)
}

func (s *Store) saveTranscription(ctx context.Context, execer execer, t TranscriptionRecord) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO transcriptions (
			chunk_id, session_id, meeting_id, content, confidence, language,
			start_time_ms, end_time_ms, word_count, processing_time_ms,
			processed_locally, model_used, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			content = excluded.content,
			confidence = excluded.confidence,
			language = excluded.language,
			start_time_ms = excluded.start_time_ms,
			end_time_ms = excluded.end_time_ms,
			word_count = excluded.word_count,
			processing_time_ms = excluded.processing_time_ms,
			processed_locally = excluded.processed_locally,
			model_used = excluded.model_used
	`,
		t.ChunkID, t.SessionID, t.MeetingID, t.Content, t.Confidence, t.Language,
		t.StartTimeMs, t.EndTimeMs, t.WordCount, t.ProcessingTimeMs,
		boolToInt(t.ProcessedLocally), t.ModelUsed, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: save transcription %s: %w", t.ChunkID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SaveTranscriptionsBatch saves chunks in a single transaction; any row
// failure rolls back the whole batch (spec.md §4.7).
func (s *Store) SaveTranscriptionsBatch(ctx context.Context, chunks []TranscriptionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		if err := s.saveTranscription(ctx, tx, c); err != nil {
			return fmt.Errorf("store: save batch: %w", err)
		}
	}
	return tx.Commit()
}

// LoadTranscript concatenates every transcription for meetingID, ordered by
// start time, into one document. It implements pkg/summarize.TranscriptStore.
func (s *Store) LoadTranscript(ctx context.Context, meetingID string) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM transcriptions WHERE meeting_id = ? ORDER BY start_time_ms ASC`, meetingID)
	if err != nil {
		return "", fmt.Errorf("store: load transcript: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("store: load transcript: scan: %w", err)
		}
		parts = append(parts, content)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("store: load transcript: %w", err)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("store: load transcript: %w", ErrNotFound)
	}
	return strings.Join(parts, " "), nil
}
