package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row-level lookup misses.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidTransition is returned by UpdateSession when the requested
// status change isn't reachable from the session's current status.
var ErrInvalidTransition = errors.New("store: invalid status transition")

// Status mirrors the transcription session status field (spec.md §3).
type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// Meeting is the parent row every session, transcription, and summary
// belongs to.
type Meeting struct {
	ID          string
	Title       string
	MeetingType string
	Organizer   string
	StartedAt   time.Time
	EndedAt     *time.Time
}

// Participant is one attendee of a meeting.
type Participant struct {
	ID        string
	MeetingID string
	Name      string
	Email     string
}

// Session is the persisted form of a capture session (spec.md §3).
type Session struct {
	ID              string
	MeetingID       string
	Status          Status
	StartedAt       time.Time
	CompletedAt     *time.Time
	SequenceCounter int
	ChunkCount      int
}

// TranscriptionRecord is the persistent form of a TranscriptionChunk
// (spec.md §3).
type TranscriptionRecord struct {
	ChunkID          string
	SessionID        string
	MeetingID        string
	Content          string
	Confidence       float64
	Language         string
	StartTimeMs      int64
	EndTimeMs        int64
	WordCount        int
	ProcessingTimeMs int64
	ProcessedLocally bool
	ModelUsed        string
}

// SummaryTemplate is a stored, reusable prompt template row.
type SummaryTemplate struct {
	ID          string
	Name        string
	MeetingType string
	Prompt      string
}
