package summarize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scribeflow/meetcore/internal/logging"
	"github.com/scribeflow/meetcore/pkg/dispatch"
	"github.com/scribeflow/meetcore/pkg/llm"
)

// Priority orders queued async requests (spec.md §4.6). Higher values are
// served first; within a priority, requests are served FIFO.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// Stage is one point in a summarization task's lifecycle. Initializing is
// always first; Completed or Failed is always last. No other ordering
// between the intermediate stages is guaranteed.
type Stage string

const (
	StageInitializing     Stage = "initializing"
	StageTextPreprocessing Stage = "text_preprocessing"
	StageCostEstimation    Stage = "cost_estimation"
	StageSendingToProvider Stage = "sending_to_provider"
	StagePostProcessing    Stage = "post_processing"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

// Progress is a snapshot of one task's state, published through a
// ProgressTracker as the task advances.
type Progress struct {
	Stage    Stage
	Fraction float64
	ETRMs    *int64
	Message  string
}

// ProgressTracker receives progress updates. pkg/session's registry
// implements this; summarize never imports session, so the dependency
// stays one-directional.
type ProgressTracker interface {
	SetProgress(taskID string, p Progress)
}

// noopTracker is used when a caller doesn't care about progress.
type noopTracker struct{}

func (noopTracker) SetProgress(string, Progress) {}

// TranscriptStore loads the transcript text summarization reads from (C7).
type TranscriptStore interface {
	LoadTranscript(ctx context.Context, meetingID string) (string, error)
}

// TemplateStore resolves a Template by id, or a default for a meeting type
// or generic fallback, and additionally supplies non-template Context
// fields (participants, dates, etc.) for a meeting (C7).
type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*Template, error)
	DefaultTemplate(ctx context.Context, meetingType string) (*Template, error)
	MeetingContext(ctx context.Context, meetingID string) (Context, error)
}

// SummaryRecord is what gets persisted by SummaryStore.SaveSummary.
// TokenCount is the provider-reported input+output total; zero means the
// provider didn't report usage.
type SummaryRecord struct {
	ID               string
	MeetingID        string
	TemplateID       string
	Content          string
	Provider         string
	Model            string
	CostUSD          float64
	ProcessingTimeMs int64
	TokenCount       int
	CreatedAt        time.Time
}

// UsageRecord is one billable event, persisted alongside the summary.
type UsageRecord struct {
	MeetingID   string
	Operation   string
	Provider    string
	CostUSD     float64
	OccurredAt  time.Time
}

// SummaryStore persists the outcome of a summarization request (C7).
type SummaryStore interface {
	SaveSummary(ctx context.Context, rec SummaryRecord) error
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

// Request describes one summarization ask, synchronous or queued.
type Request struct {
	MeetingID  string
	TemplateID string // empty: resolve a default via TemplateStore
	Priority   Priority

	// MeetingType, when set, overrides the stored meeting's type for
	// default-template resolution and substitution.
	MeetingType string

	// LengthPreference feeds the summary_length_preference template
	// variable; empty substitutes as unresolved.
	LengthPreference string

	// MaxOutputTokens bounds the completion; zero uses the orchestrator's
	// configured default.
	MaxOutputTokens int
}

// Config tunes the orchestrator. Zero-value Config is usable.
type Config struct {
	CallDeadline       time.Duration
	DefaultMaxTokens   int
	QueueCapacity      int
	PromptTokensPerRune float64 // rough token estimate for EstimateCost
}

// DefaultConfig returns the orchestrator's defaults.
func DefaultConfig() Config {
	return Config{
		CallDeadline:        30 * time.Second,
		DefaultMaxTokens:    800,
		QueueCapacity:       256,
		PromptTokensPerRune: 0.25,
	}
}

// Orchestrator implements C6: it resolves a template, substitutes meeting
// context into it, dispatches a completion through pkg/dispatch, persists
// the result, and tracks progress for both synchronous and queued callers.
type Orchestrator struct {
	cfg        Config
	transcripts TranscriptStore
	templates  TemplateStore
	store      SummaryStore
	dispatcher *dispatch.Dispatcher
	tracker    ProgressTracker
	logger     logging.Logger

	mu        sync.Mutex
	queue     []queuedRequest
	cancelled map[string]bool
	notify    chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

type queuedRequest struct {
	taskID  string
	req     Request
	queued  time.Time
}

// New builds an Orchestrator and starts its single background worker. Call
// Close to stop the worker.
func New(transcripts TranscriptStore, templates TemplateStore, store SummaryStore, dispatcher *dispatch.Dispatcher, tracker ProgressTracker, cfg Config, logger logging.Logger) *Orchestrator {
	if tracker == nil {
		tracker = noopTracker{}
	}
	o := &Orchestrator{
		cfg:         cfg,
		transcripts: transcripts,
		templates:   templates,
		store:       store,
		dispatcher:  dispatcher,
		tracker:     tracker,
		logger:      logging.OrDefault(logger),
		cancelled:   make(map[string]bool),
		notify:      make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}
	go o.run()
	return o
}

// Close stops the background worker. Queued-but-unstarted requests are
// left marked Failed by a final drain pass.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closed)
		o.mu.Lock()
		pending := o.queue
		o.queue = nil
		o.mu.Unlock()
		for _, qr := range pending {
			o.tracker.SetProgress(qr.taskID, Progress{Stage: StageFailed, Fraction: 1, Message: "orchestrator closed"})
		}
	})
}

// SummarizeSync runs the seven-step synchronous path from spec.md §4.6 and
// blocks until it completes or ctx is done. taskID is used for progress
// reporting only; pass "" if the caller doesn't need progress tracking.
func (o *Orchestrator) SummarizeSync(ctx context.Context, taskID string, req Request) (SummaryRecord, error) {
	if taskID == "" {
		taskID = fmt.Sprintf("sync-%p", &req)
	}
	return o.execute(ctx, taskID, req)
}

// SummarizeAsync enqueues req under the caller-supplied taskID and returns
// immediately; progress can be read through the ProgressTracker. The request runs on
// the orchestrator's single background worker, in priority-then-FIFO
// order.
func (o *Orchestrator) SummarizeAsync(taskID string, req Request) {
	o.tracker.SetProgress(taskID, Progress{Stage: StageInitializing, Fraction: 0})

	o.mu.Lock()
	o.queue = append(o.queue, queuedRequest{taskID: taskID, req: req, queued: time.Now()})
	sortByPriority(o.queue)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Cancel marks taskID cancelled. A request still queued is removed and
// immediately marked Failed. A request already dispatched to a provider is
// allowed to finish; its result is discarded and the task is marked Failed
// with message "cancelled".
func (o *Orchestrator) Cancel(taskID string) {
	o.mu.Lock()
	o.cancelled[taskID] = true
	kept := o.queue[:0]
	removed := false
	for _, qr := range o.queue {
		if qr.taskID == taskID {
			removed = true
			continue
		}
		kept = append(kept, qr)
	}
	o.queue = kept
	o.mu.Unlock()

	if removed {
		o.tracker.SetProgress(taskID, Progress{Stage: StageFailed, Fraction: 1, Message: "cancelled"})
	}
}

func (o *Orchestrator) isCancelled(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[taskID]
}

func (o *Orchestrator) run() {
	for {
		select {
		case <-o.closed:
			return
		case <-o.notify:
		}

		for {
			qr, ok := o.dequeue()
			if !ok {
				break
			}
			if o.isCancelled(qr.taskID) {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CallDeadline+10*time.Second)
			_, err := o.execute(ctx, qr.taskID, qr.req)
			cancel()
			if err != nil {
				o.logger.Warn("async summarization failed", "task_id", qr.taskID, "err", err)
			}
		}
	}
}

func (o *Orchestrator) dequeue() (queuedRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return queuedRequest{}, false
	}
	qr := o.queue[0]
	o.queue = o.queue[1:]
	return qr, true
}

func sortByPriority(q []queuedRequest) {
	// Stable insertion sort: small slices, and stability preserves FIFO
	// within a priority band.
	for i := 1; i < len(q); i++ {
		j := i
		for j > 0 && q[j].req.Priority > q[j-1].req.Priority {
			q[j], q[j-1] = q[j-1], q[j]
			j--
		}
	}
}

// execute runs the seven-step path and reports progress under taskID at
// each stage.
func (o *Orchestrator) execute(ctx context.Context, taskID string, req Request) (SummaryRecord, error) {
	report := func(s Stage, frac float64, msg string) {
		if o.isCancelled(taskID) {
			return
		}
		o.tracker.SetProgress(taskID, Progress{Stage: s, Fraction: frac, Message: msg})
	}

	report(StageInitializing, 0, "")

	// 1. Load the transcript.
	transcript, err := o.transcripts.LoadTranscript(ctx, req.MeetingID)
	if err != nil {
		report(StageFailed, 1, err.Error())
		return SummaryRecord{}, fmt.Errorf("summarize: load transcript: %w", err)
	}

	report(StageTextPreprocessing, 0.2, "")

	// 2. Resolve a template.
	tmpl, tmplCtx, err := o.resolveTemplate(ctx, req)
	if err != nil {
		report(StageFailed, 1, err.Error())
		return SummaryRecord{}, fmt.Errorf("summarize: resolve template: %w", err)
	}
	tmplCtx.TranscriptionLength = fmt.Sprintf("%d", len([]rune(transcript)))

	// 3. Substitute variables.
	prompt := tmpl.Substitute(tmplCtx)

	report(StageCostEstimation, 0.4, "")

	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = o.cfg.DefaultMaxTokens
	}

	// 4. Build the dispatch operation.
	op := &llm.CompletionOp{
		Messages: []llm.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: transcript},
		},
		MaxOutputTokens: maxTokens,
		PromptTokensEst: int(float64(len([]rune(prompt))+len([]rune(transcript))) * o.cfg.PromptTokensPerRune),
		CallDeadline:    o.cfg.CallDeadline,
	}

	if o.isCancelled(taskID) {
		o.tracker.SetProgress(taskID, Progress{Stage: StageFailed, Fraction: 1, Message: "cancelled"})
		return SummaryRecord{}, fmt.Errorf("summarize: cancelled")
	}

	report(StageSendingToProvider, 0.6, "")

	start := time.Now()
	// 5. Dispatch through C5.
	res, err := o.dispatcher.DispatchWithMeta(ctx, op)
	elapsed := time.Since(start)
	if err != nil {
		report(StageFailed, 1, err.Error())
		return SummaryRecord{}, fmt.Errorf("summarize: dispatch: %w", err)
	}

	if o.isCancelled(taskID) {
		o.tracker.SetProgress(taskID, Progress{Stage: StageFailed, Fraction: 1, Message: "cancelled"})
		return SummaryRecord{}, fmt.Errorf("summarize: cancelled")
	}

	report(StagePostProcessing, 0.85, "")

	comp, _ := res.Value.(llm.Completion)
	rec := SummaryRecord{
		ID:               taskID,
		MeetingID:        req.MeetingID,
		TemplateID:       tmpl.ID,
		Content:          comp.Content,
		Provider:         res.Provider,
		Model:            comp.Model,
		CostUSD:          res.CostUSD,
		ProcessingTimeMs: elapsed.Milliseconds(),
		TokenCount:       comp.InputTokens + comp.OutputTokens,
		CreatedAt:        time.Now(),
	}

	// 6. Persist the summary.
	if err := o.store.SaveSummary(ctx, rec); err != nil {
		report(StageFailed, 1, err.Error())
		return SummaryRecord{}, fmt.Errorf("summarize: save summary: %w", err)
	}

	// 7. Record usage.
	if err := o.store.RecordUsage(ctx, UsageRecord{
		MeetingID:  req.MeetingID,
		Operation:  "summarize",
		Provider:   res.Provider,
		CostUSD:    res.CostUSD,
		OccurredAt: rec.CreatedAt,
	}); err != nil {
		o.logger.Warn("usage record failed", "meeting_id", req.MeetingID, "err", err)
	}

	report(StageCompleted, 1, "")
	return rec, nil
}

func (o *Orchestrator) resolveTemplate(ctx context.Context, req Request) (*Template, Context, error) {
	tctx, err := o.templates.MeetingContext(ctx, req.MeetingID)
	if err != nil {
		return nil, Context{}, err
	}
	if req.MeetingType != "" {
		tctx.MeetingType = req.MeetingType
	}
	if req.LengthPreference != "" {
		tctx.SummaryLengthPreference = req.LengthPreference
	}

	if req.TemplateID != "" {
		tmpl, err := o.templates.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			return nil, Context{}, err
		}
		return tmpl, tctx, nil
	}

	tmpl, err := o.templates.DefaultTemplate(ctx, tctx.MeetingType)
	if err != nil {
		return nil, Context{}, err
	}
	return tmpl, tctx, nil
}
