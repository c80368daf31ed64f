// Package session implements C8: a small in-process registry of active
// capture sessions and active summarization tasks. It generalizes the
// teacher's per-conversation ConversationSession (pkg/orchestrator/types.go)
// from a single ambient session to a keyed registry of many (spec.md §4.8).
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scribeflow/meetcore/pkg/summarize"
)

// Status mirrors the capture Session status field (spec.md §3).
type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// ErrInvalidTransition is returned by Session.Transition when the requested
// status change isn't reachable from the current one.
var ErrInvalidTransition = errors.New("session: invalid status transition")

// ErrNotFound is returned by registry lookups for an unknown id.
var ErrNotFound = errors.New("session: not found")

// Session is a registered capture session. Every exported method is
// synchronized; callers never see a torn read.
type Session struct {
	mu sync.RWMutex

	sessionID       string
	meetingID       string
	startedAt       time.Time
	completedAt     *time.Time
	sequenceCounter int
	chunkCount      int
	status          Status
}

func newSession(sessionID, meetingID string, now time.Time) *Session {
	return &Session{
		sessionID: sessionID,
		meetingID: meetingID,
		startedAt: now,
		status:    StatusActive,
	}
}

// NextSequence increments and returns the session's monotonic sequence
// counter (spec.md §3: "sequence is monotonic within a session").
func (s *Session) NextSequence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequenceCounter++
	return s.sequenceCounter
}

// IncrementChunkCount records that one more chunk was produced.
func (s *Session) IncrementChunkCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkCount++
}

// Transition moves the session to a terminal status. Active is the only
// status a terminal transition may start from; transitioning away from a
// terminal status is rejected.
func (s *Session) Transition(to Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}
	switch to {
	case StatusCompleted, StatusFailed, StatusCancelled:
		s.status = to
		s.completedAt = &now
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}
}

// Snapshot is a point-in-time, unsynchronized copy of a Session's fields,
// safe to read after the call returns.
type Snapshot struct {
	SessionID       string
	MeetingID       string
	StartedAt       time.Time
	CompletedAt     *time.Time
	SequenceCounter int
	ChunkCount      int
	Status          Status
}

// Snapshot copies out s's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		SessionID:       s.sessionID,
		MeetingID:       s.meetingID,
		StartedAt:       s.startedAt,
		CompletedAt:     s.completedAt,
		SequenceCounter: s.sequenceCounter,
		ChunkCount:      s.chunkCount,
		Status:          s.status,
	}
}

// Registry maps session_id -> *Session and task_id -> summarize.Progress.
// Entries are inserted before any work begins and removed only after a
// terminal status has been persisted by the caller (spec.md §4.8); the
// registry itself never decides when that is.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	progress map[string]summarize.Progress

	now func() time.Time
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		progress: make(map[string]summarize.Progress),
		now:      time.Now,
	}
}

// StartSession registers a new Active session. It is an error to start a
// session_id that is already registered.
func (r *Registry) StartSession(sessionID, meetingID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[sessionID]; exists {
		return nil, fmt.Errorf("session: %s already registered", sessionID)
	}
	s := newSession(sessionID, meetingID, r.now())
	r.sessions[sessionID] = s
	return s, nil
}

// Session returns the registered session, or ErrNotFound.
func (r *Registry) Session(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// RemoveSession unregisters sessionID. Callers must have already persisted
// the session's terminal status before calling this.
func (r *Registry) RemoveSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// ActiveSessions returns a snapshot of every currently registered session.
func (r *Registry) ActiveSessions() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// SetProgress implements summarize.ProgressTracker: it records the latest
// progress for taskID, inserting the entry on first use.
func (r *Registry) SetProgress(taskID string, p summarize.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[taskID] = p
}

// Progress returns the last known progress for taskID, or ErrNotFound.
func (r *Registry) Progress(taskID string) (summarize.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.progress[taskID]
	if !ok {
		return summarize.Progress{}, ErrNotFound
	}
	return p, nil
}

// ListProgress implements summarize.ProgressLister: it returns a snapshot
// of every tracked task's latest progress.
func (r *Registry) ListProgress() map[string]summarize.Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]summarize.Progress, len(r.progress))
	for id, p := range r.progress {
		out[id] = p
	}
	return out
}

// RemoveProgress unregisters taskID. Callers must have already persisted
// the task's terminal outcome before calling this.
func (r *Registry) RemoveProgress(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.progress, taskID)
}
