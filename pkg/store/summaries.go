package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scribeflow/meetcore/pkg/summarize"
)

// SaveSummary persists rec. It implements pkg/summarize.SummaryStore.
func (s *Store) SaveSummary(ctx context.Context, rec summarize.SummaryRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var tokenCount interface{}
	if rec.TokenCount > 0 {
		tokenCount = rec.TokenCount
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (
			id, meeting_id, template_id, content, provider, model,
			cost_usd, processing_time_ms, token_count, confidence_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			provider = excluded.provider,
			model = excluded.model,
			cost_usd = excluded.cost_usd,
			processing_time_ms = excluded.processing_time_ms,
			token_count = excluded.token_count
	`,
		rec.ID, rec.MeetingID, rec.TemplateID, rec.Content, rec.Provider, rec.Model,
		rec.CostUSD, rec.ProcessingTimeMs, tokenCount, nil, createdAt,
	)
	if err != nil {
		return fmt.Errorf("store: save summary: %w", err)
	}
	return nil
}

// RecordUsage appends a usage row. It implements pkg/summarize.SummaryStore.
func (s *Store) RecordUsage(ctx context.Context, rec summarize.UsageRecord) error {
	occurred := rec.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (meeting_id, operation, provider, cost_usd, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		rec.MeetingID, rec.Operation, rec.Provider, rec.CostUSD, occurred,
	)
	if err != nil {
		return fmt.Errorf("store: record usage: %w", err)
	}
	return nil
}

// Qualified so the column list also works joined against summaries_fts,
// which carries its own content column.
const summaryColumns = `summaries.id, summaries.meeting_id, summaries.template_id,
	summaries.content, summaries.provider, summaries.model, summaries.cost_usd,
	summaries.processing_time_ms, COALESCE(summaries.token_count, 0), summaries.created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (summarize.SummaryRecord, error) {
	var rec summarize.SummaryRecord
	err := row.Scan(&rec.ID, &rec.MeetingID, &rec.TemplateID, &rec.Content,
		&rec.Provider, &rec.Model, &rec.CostUSD, &rec.ProcessingTimeMs,
		&rec.TokenCount, &rec.CreatedAt)
	return rec, err
}

func (s *Store) querySummaries(ctx context.Context, query string, args ...interface{}) ([]summarize.SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []summarize.SummaryRecord
	for rows.Next() {
		rec, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSummary returns the canonical summary for a meeting — the most recent
// row (spec.md §3). It implements pkg/summarize.SummaryLibrary.
func (s *Store) GetSummary(ctx context.Context, meetingID string) (summarize.SummaryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE meeting_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		meetingID)
	rec, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return summarize.SummaryRecord{}, fmt.Errorf("store: summary for %s: %w", meetingID, ErrNotFound)
	}
	if err != nil {
		return summarize.SummaryRecord{}, fmt.Errorf("store: summary for %s: %w", meetingID, err)
	}
	return rec, nil
}

// ListSummaries returns every summary for a meeting, newest first.
func (s *Store) ListSummaries(ctx context.Context, meetingID string) ([]summarize.SummaryRecord, error) {
	recs, err := s.querySummaries(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE meeting_id = ? ORDER BY created_at DESC, rowid DESC`,
		meetingID)
	if err != nil {
		return nil, fmt.Errorf("store: list summaries for %s: %w", meetingID, err)
	}
	return recs, nil
}

// RecentSummaries returns the newest summaries across all meetings.
func (s *Store) RecentSummaries(ctx context.Context, limit int) ([]summarize.SummaryRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	recs, err := s.querySummaries(ctx,
		`SELECT `+summaryColumns+` FROM summaries ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent summaries: %w", err)
	}
	return recs, nil
}

// SearchSummaries runs a full-text query over summary content, best match
// first. The query string uses the same syntax as transcript search.
func (s *Store) SearchSummaries(ctx context.Context, query string, limit int) ([]summarize.SummaryRecord, error) {
	fts, err := buildFTSQuery(query)
	if err != nil {
		return nil, fmt.Errorf("store: search summaries: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}
	recs, err := s.querySummaries(ctx, `
		SELECT `+summaryColumns+` FROM summaries
		JOIN summaries_fts ON summaries_fts.rowid = summaries.rowid
		WHERE summaries_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		fts, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search summaries: %w", err)
	}
	return recs, nil
}

// DeleteSummariesForMeeting removes every summary row for a meeting. The
// delete trigger keeps the full-text index in sync.
func (s *Store) DeleteSummariesForMeeting(ctx context.Context, meetingID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE meeting_id = ?`, meetingID); err != nil {
		return fmt.Errorf("store: delete summaries for %s: %w", meetingID, err)
	}
	return nil
}

// SaveTemplate inserts or replaces a summary template.
func (s *Store) SaveTemplate(ctx context.Context, t SummaryTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summary_templates (id, name, meeting_type, prompt) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, meeting_type = excluded.meeting_type, prompt = excluded.prompt
	`, t.ID, t.Name, t.MeetingType, t.Prompt)
	if err != nil {
		return fmt.Errorf("store: save template: %w", err)
	}
	return nil
}

// GetTemplate resolves a template by id. It implements
// pkg/summarize.TemplateStore.
func (s *Store) GetTemplate(ctx context.Context, id string) (*summarize.Template, error) {
	var row SummaryTemplate
	err := s.db.QueryRowContext(ctx, `SELECT id, name, meeting_type, prompt FROM summary_templates WHERE id = ?`, id).
		Scan(&row.ID, &row.Name, &row.MeetingType, &row.Prompt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: get template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get template %s: %w", id, err)
	}
	return summarize.NewTemplate(row.ID, row.Name, row.MeetingType, row.Prompt)
}

// DefaultTemplate resolves the default template for meetingType, falling
// back to the generic default (meeting_type = '') if none is specific to
// that type. It implements pkg/summarize.TemplateStore.
func (s *Store) DefaultTemplate(ctx context.Context, meetingType string) (*summarize.Template, error) {
	var row SummaryTemplate
	if meetingType != "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT id, name, meeting_type, prompt FROM summary_templates WHERE meeting_type = ? LIMIT 1`, meetingType).
			Scan(&row.ID, &row.Name, &row.MeetingType, &row.Prompt)
		if err == nil {
			return summarize.NewTemplate(row.ID, row.Name, row.MeetingType, row.Prompt)
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("store: default template for %s: %w", meetingType, err)
		}
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, meeting_type, prompt FROM summary_templates WHERE meeting_type = '' LIMIT 1`).
		Scan(&row.ID, &row.Name, &row.MeetingType, &row.Prompt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: default template: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: default template: %w", err)
	}
	return summarize.NewTemplate(row.ID, row.Name, row.MeetingType, row.Prompt)
}

// MeetingContext builds a summarize.Context from the meeting and
// participant rows. It implements pkg/summarize.TemplateStore.
func (s *Store) MeetingContext(ctx context.Context, meetingID string) (summarize.Context, error) {
	var m Meeting
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, meeting_type, organizer, started_at, ended_at FROM meetings WHERE id = ?`, meetingID).
		Scan(&m.ID, &m.Title, &m.MeetingType, &m.Organizer, &m.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return summarize.Context{}, fmt.Errorf("store: meeting context %s: %w", meetingID, ErrNotFound)
	}
	if err != nil {
		return summarize.Context{}, fmt.Errorf("store: meeting context %s: %w", meetingID, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM participants WHERE meeting_id = ?`, meetingID)
	if err != nil {
		return summarize.Context{}, fmt.Errorf("store: meeting context %s: participants: %w", meetingID, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return summarize.Context{}, fmt.Errorf("store: meeting context %s: participants: %w", meetingID, err)
		}
		names = append(names, name)
	}

	duration := ""
	if endedAt.Valid {
		duration = endedAt.Time.Sub(m.StartedAt).Round(time.Minute).String()
	}

	return summarize.Context{
		MeetingTitle:     m.Title,
		MeetingDuration:  duration,
		MeetingDate:      m.StartedAt.Format("2006-01-02"),
		Participants:     strings.Join(names, ", "),
		ParticipantCount: strconv.Itoa(len(names)),
		MeetingType:      m.MeetingType,
		Organizer:        m.Organizer,
	}, nil
}
