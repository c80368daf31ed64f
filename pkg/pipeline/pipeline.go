// Package pipeline wires C1–C5, C7 and C8 into the end-to-end capture →
// transcription flow: audio capture feeds a chunker, chunks go to the local
// ASR host, low-confidence results fall back through the provider
// dispatcher, and every outcome is persisted and published as an event to
// the host application (spec.md §5, §6). The goroutine/channel/cancellation
// idiom is grounded on the teacher's pkg/orchestrator/managed_stream.go:
// mutex-guarded state, a cancel func threaded through context, and
// non-blocking event emission rather than a blocking publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/meetcore/internal/logging"
	"github.com/scribeflow/meetcore/pkg/asrlocal"
	"github.com/scribeflow/meetcore/pkg/asrremote"
	"github.com/scribeflow/meetcore/pkg/audio"
	"github.com/scribeflow/meetcore/pkg/chunker"
	"github.com/scribeflow/meetcore/pkg/dispatch"
	"github.com/scribeflow/meetcore/pkg/session"
	"github.com/scribeflow/meetcore/pkg/store"
)

// EventType discriminates the host-facing events from spec.md §6.
type EventType string

const (
	EventAudioLevelUpdate        EventType = "audio_level_update"
	EventAudioStatusChanged      EventType = "audio_status_changed"
	EventTranscriptionChunk      EventType = "transcription_chunk"
	EventSessionStarted          EventType = "transcription_session_started"
	EventSessionStopped          EventType = "transcription_session_stopped"
	EventTranscriptionProcessing EventType = "transcription_processing_status"
	EventTranscriptionError      EventType = "transcription_error"
)

// Event is one item on the pipeline's event stream.
type Event struct {
	Type      EventType
	SessionID string
	Data      interface{}
	At        time.Time
}

// ErrSessionActive is returned by StartSession when a capture stream
// already has a session attached (spec.md §4.1: exactly one at a time).
var ErrSessionActive = errors.New("pipeline: a session is already active")

// TranscriptStore is the subset of pkg/store.Store the pipeline persists
// through.
type TranscriptStore interface {
	CreateSession(ctx context.Context, sess store.Session) error
	UpdateSession(ctx context.Context, sessionID string, patch store.SessionPatch) error
	SaveTranscription(ctx context.Context, t store.TranscriptionRecord) error
}

// Config tunes the pipeline. Zero-value Config is usable (falls back to
// DefaultConfig).
type Config struct {
	PollInterval           time.Duration
	ModelID                string
	AutoDetectLanguage     bool
	RemoteFallbackDeadline time.Duration
}

// DefaultConfig returns the pipeline's defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:           250 * time.Millisecond,
		ModelID:                "default",
		AutoDetectLanguage:     true,
		RemoteFallbackDeadline: 30 * time.Second,
	}
}

// Pipeline owns the capture service and drives one active transcription
// session at a time through the chunker, local ASR host, and remote
// fallback dispatcher.
type Pipeline struct {
	capture          *audio.Service
	chunkerCfg       chunker.Config
	host             *asrlocal.Host
	remoteDispatcher *dispatch.Dispatcher
	sessions         *session.Registry
	store            TranscriptStore
	cfg              Config
	logger           logging.Logger

	events chan Event

	mu     sync.Mutex
	active *activeSession

	captureCancel context.CancelFunc
}

type activeSession struct {
	sessionID string
	meetingID string
	sess      *session.Session
	chunker   *chunker.Chunker
	cancel    context.CancelFunc
	done      chan struct{}
}

// New builds a Pipeline. remoteDispatcher must be registered with
// pkg/asrremote providers (via asrremote.AsDispatchProvider) — a dispatcher
// wired for summarization's llm.Provider set cannot serve transcription
// fallback, since each Provider's Execute type-asserts a specific Operation.
func New(capture *audio.Service, chunkerCfg chunker.Config, host *asrlocal.Host, remoteDispatcher *dispatch.Dispatcher, sessions *session.Registry, store TranscriptStore, cfg Config, logger logging.Logger) *Pipeline {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Pipeline{
		capture:          capture,
		chunkerCfg:       chunkerCfg,
		host:             host,
		remoteDispatcher: remoteDispatcher,
		sessions:         sessions,
		store:            store,
		cfg:              cfg,
		logger:           logging.OrDefault(logger),
		events:           make(chan Event, 1024),
	}
}

// Events returns the pipeline's event stream. The host application
// subscribes once and reads until the pipeline is torn down.
func (p *Pipeline) Events() <-chan Event { return p.events }

// StartCapture opens the audio device and begins forwarding level/status
// events. It is independent of any transcription session.
func (p *Pipeline) StartCapture(ctx context.Context, deviceName string) error {
	if err := p.capture.Start(deviceName); err != nil {
		return fmt.Errorf("pipeline: start capture: %w", err)
	}

	captureCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.captureCancel = cancel
	p.mu.Unlock()

	go p.forwardLevels(captureCtx)
	go p.forwardStatus(captureCtx)
	return nil
}

// StopCapture stops the audio device. Any active transcription session
// should be stopped first.
func (p *Pipeline) StopCapture() error {
	p.mu.Lock()
	if p.captureCancel != nil {
		p.captureCancel()
		p.captureCancel = nil
	}
	p.mu.Unlock()
	if err := p.capture.Stop(); err != nil {
		return fmt.Errorf("pipeline: stop capture: %w", err)
	}
	return nil
}

func (p *Pipeline) forwardLevels(ctx context.Context) {
	ch := p.capture.SubscribeLevels()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p.emit(Event{Type: EventAudioLevelUpdate, Data: ev, At: time.Now()})
		}
	}
}

func (p *Pipeline) forwardStatus(ctx context.Context) {
	ch := p.capture.SubscribeStatus()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p.emit(Event{Type: EventAudioStatusChanged, Data: ev, At: time.Now()})
		}
	}
}

// StartSession attaches a new transcription session to the capture stream's
// ring buffer, registers it in C8 and C7, and begins polling for chunks.
func (p *Pipeline) StartSession(ctx context.Context, sessionID, meetingID string) error {
	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return ErrSessionActive
	}
	p.mu.Unlock()

	sess, err := p.sessions.StartSession(sessionID, meetingID)
	if err != nil {
		return fmt.Errorf("pipeline: start session: %w", err)
	}
	if err := p.store.CreateSession(ctx, store.Session{ID: sessionID, MeetingID: meetingID, StartedAt: time.Now()}); err != nil {
		p.sessions.RemoveSession(sessionID)
		return fmt.Errorf("pipeline: start session: %w", err)
	}

	c := chunker.New(p.capture.RingBuffer(), sessionID, p.chunkerCfg, uuid.NewString)
	workerCtx, cancel := context.WithCancel(ctx)
	as := &activeSession{
		sessionID: sessionID,
		meetingID: meetingID,
		sess:      sess,
		chunker:   c,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	p.mu.Lock()
	p.active = as
	p.mu.Unlock()

	go p.runSession(workerCtx, as)

	p.emit(Event{Type: EventSessionStarted, SessionID: sessionID, At: time.Now()})
	return nil
}

func (p *Pipeline) runSession(ctx context.Context, as *activeSession) {
	defer close(as.done)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, chunk := range as.chunker.Poll() {
				p.processChunk(ctx, as, chunk)
			}
		}
	}
}

func (p *Pipeline) processChunk(ctx context.Context, as *activeSession, chunk chunker.Chunk) {
	as.sess.IncrementChunkCount()

	callCtx, cancel := context.WithTimeout(ctx, p.hostDeadline())
	result := p.host.Process(callCtx, p.cfg.ModelID, as.sessionID, chunk.Data, p.chunkerCfg.TargetSampleRate, p.cfg.AutoDetectLanguage)
	cancel()

	if result.Outcome == asrlocal.OutcomeError {
		p.emit(Event{Type: EventTranscriptionError, SessionID: as.sessionID, Data: result.Err, At: time.Now()})
		return
	}

	text := result.Result.Text
	confidence := result.Result.Confidence
	processedLocally := true
	modelUsed := p.cfg.ModelID
	processingMs := result.Result.ProcessingTimeMs

	if result.Outcome == asrlocal.OutcomeLowConfidence && p.remoteDispatcher != nil {
		if remote, ok := p.tryRemoteFallback(ctx, chunk); ok {
			text = remote.text
			confidence = 1
			processedLocally = false
			modelUsed = remote.provider
			processingMs = remote.processingMs
		}
	}

	rec := store.TranscriptionRecord{
		ChunkID:          chunk.ChunkID,
		SessionID:        as.sessionID,
		MeetingID:        as.meetingID,
		Content:          text,
		Confidence:       confidence,
		Language:         result.Result.DetectedLanguage,
		StartTimeMs:      chunk.StartTime.Milliseconds(),
		EndTimeMs:        chunk.EndTime.Milliseconds(),
		WordCount:        wordCount(text),
		ProcessingTimeMs: processingMs,
		ProcessedLocally: processedLocally,
		ModelUsed:        modelUsed,
	}

	if err := p.store.SaveTranscription(ctx, rec); err != nil {
		p.emit(Event{Type: EventTranscriptionError, SessionID: as.sessionID, Data: err, At: time.Now()})
		return
	}

	p.emit(Event{Type: EventTranscriptionChunk, SessionID: as.sessionID, Data: rec, At: time.Now()})
	p.emit(Event{Type: EventTranscriptionProcessing, SessionID: as.sessionID, Data: processingStatus{
		QueueSize: 0,
		Mode:      modeFor(processedLocally),
		LatencyMs: processingMs,
	}, At: time.Now()})
}

type processingStatus struct {
	QueueSize int
	Mode      string
	LatencyMs int64
}

func modeFor(processedLocally bool) string {
	if processedLocally {
		return "local"
	}
	return "remote"
}

type remoteResult struct {
	text         string
	provider     string
	processingMs int64
}

func (p *Pipeline) tryRemoteFallback(ctx context.Context, chunk chunker.Chunk) (remoteResult, bool) {
	op := &asrremote.TranscribeOp{
		Samples:      chunk.Data,
		SampleRate:   p.chunkerCfg.TargetSampleRate,
		Duration:     chunk.EndTime - chunk.StartTime,
		CallDeadline: p.cfg.RemoteFallbackDeadline,
	}

	start := time.Now()
	res, err := p.remoteDispatcher.DispatchWithMeta(ctx, op)
	if err != nil {
		p.logger.Warn("remote ASR fallback failed", "chunk_id", chunk.ChunkID, "err", err)
		return remoteResult{}, false
	}
	text, _ := res.Value.(string)
	return remoteResult{text: text, provider: res.Provider, processingMs: time.Since(start).Milliseconds()}, true
}

func (p *Pipeline) hostDeadline() time.Duration {
	return 3 * time.Second
}

func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n'
		if !isSpace && !inWord {
			n++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return n
}

// StopSession flushes any residual audio, marks the session Completed, and
// detaches it from the capture stream.
func (p *Pipeline) StopSession(ctx context.Context) error {
	p.mu.Lock()
	as := p.active
	if as == nil {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: no active session")
	}
	p.active = nil
	p.mu.Unlock()

	as.cancel()
	<-as.done

	if final := as.chunker.Flush(); final != nil {
		p.processChunk(ctx, as, *final)
	}

	snap := as.sess.Snapshot()
	if err := as.sess.Transition(session.StatusCompleted, time.Now()); err != nil {
		p.logger.Warn("session transition failed", "session_id", as.sessionID, "err", err)
	}
	completed := store.StatusCompleted
	now := time.Now()
	if err := p.store.UpdateSession(ctx, as.sessionID, store.SessionPatch{Status: &completed, CompletedAt: &now, ChunkCount: &snap.ChunkCount}); err != nil {
		p.logger.Warn("persist session completion failed", "session_id", as.sessionID, "err", err)
	}

	p.emit(Event{Type: EventSessionStopped, SessionID: as.sessionID, Data: map[string]int{"total_chunks": snap.ChunkCount}, At: time.Now()})
	p.sessions.RemoveSession(as.sessionID)
	return nil
}

// emit is a non-blocking send: a full or closed channel drops the event
// rather than stalling the caller.
func (p *Pipeline) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
	}
}
