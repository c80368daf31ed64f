package summarize

import (
	"context"
	"errors"
	"fmt"
)

// ErrReadsUnsupported is returned by the orchestrator's read operations
// when the injected SummaryStore only implements the write half.
var ErrReadsUnsupported = errors.New("summarize: store does not support summary reads")

// SummaryLibrary is the read/delete side of summary persistence. pkg/store
// implements it; test fakes that only need the write path can skip it. The
// orchestrator's convenience operations check for it at call time.
type SummaryLibrary interface {
	GetSummary(ctx context.Context, meetingID string) (SummaryRecord, error)
	ListSummaries(ctx context.Context, meetingID string) ([]SummaryRecord, error)
	RecentSummaries(ctx context.Context, limit int) ([]SummaryRecord, error)
	SearchSummaries(ctx context.Context, query string, limit int) ([]SummaryRecord, error)
	DeleteSummariesForMeeting(ctx context.Context, meetingID string) error
}

// ProgressLister is an optional ProgressTracker capability for listing every
// tracked task at once. pkg/session's registry implements it.
type ProgressLister interface {
	ListProgress() map[string]Progress
}

func (o *Orchestrator) library() (SummaryLibrary, error) {
	lib, ok := o.store.(SummaryLibrary)
	if !ok {
		return nil, ErrReadsUnsupported
	}
	return lib, nil
}

// GetSummary returns the canonical (most recent) summary for a meeting.
func (o *Orchestrator) GetSummary(ctx context.Context, meetingID string) (SummaryRecord, error) {
	lib, err := o.library()
	if err != nil {
		return SummaryRecord{}, err
	}
	return lib.GetSummary(ctx, meetingID)
}

// ListSummaries returns every summary for a meeting, newest first.
func (o *Orchestrator) ListSummaries(ctx context.Context, meetingID string) ([]SummaryRecord, error) {
	lib, err := o.library()
	if err != nil {
		return nil, err
	}
	return lib.ListSummaries(ctx, meetingID)
}

// RecentSummaries returns the newest summaries across all meetings.
func (o *Orchestrator) RecentSummaries(ctx context.Context, limit int) ([]SummaryRecord, error) {
	lib, err := o.library()
	if err != nil {
		return nil, err
	}
	return lib.RecentSummaries(ctx, limit)
}

// SearchSummaries runs a full-text query over stored summary content.
func (o *Orchestrator) SearchSummaries(ctx context.Context, query string, limit int) ([]SummaryRecord, error) {
	lib, err := o.library()
	if err != nil {
		return nil, err
	}
	return lib.SearchSummaries(ctx, query, limit)
}

// RegenerateSummary discards a meeting's existing summaries and runs the
// synchronous path again, typically against a different template.
func (o *Orchestrator) RegenerateSummary(ctx context.Context, taskID string, req Request) (SummaryRecord, error) {
	lib, err := o.library()
	if err != nil {
		return SummaryRecord{}, err
	}
	if err := lib.DeleteSummariesForMeeting(ctx, req.MeetingID); err != nil {
		return SummaryRecord{}, fmt.Errorf("summarize: regenerate: %w", err)
	}
	return o.SummarizeSync(ctx, taskID, req)
}

// ActiveTasks returns a snapshot of every tracked task's progress, or nil
// when the injected tracker can't enumerate tasks.
func (o *Orchestrator) ActiveTasks() map[string]Progress {
	lister, ok := o.tracker.(ProgressLister)
	if !ok {
		return nil
	}
	return lister.ListProgress()
}
