package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scribeflow/meetcore/internal/logging"
)

// ErrNoProvidersAvailable is returned when every configured provider was
// skipped for an open breaker or a cost-estimate error, or the provider
// list is empty. A provider skipped for budget yields ErrBudgetExceeded
// instead, unless a later provider's call fails.
var ErrNoProvidersAvailable = errors.New("dispatch: no providers available")

// ErrBudgetExceeded is returned when the configured caps block every
// provider before any call is attempted.
var ErrBudgetExceeded = errors.New("dispatch: budget exceeded")

// Operation is anything the dispatcher can route to a Provider: a remote-ASR
// fallback transcription or a summarization request.
type Operation interface {
	// Deadline bounds how long a single provider call may run.
	Deadline() time.Duration
}

// Provider is implemented by every remote backend the dispatcher can select
// among (pkg/asrremote and pkg/llm clients both satisfy this).
type Provider interface {
	Name() string
	EstimateCost(op Operation) (float64, error)
	Execute(ctx context.Context, op Operation) (interface{}, error)
}

// Dispatcher is the unique arbiter of provider calls (spec.md §4.5): it
// combines a circuit breaker, a budget ledger, and each provider's own cost
// estimate to pick the first healthy, affordable provider in preference
// order.
type Dispatcher struct {
	logger logging.Logger

	mu        sync.RWMutex
	providers []Provider
	breakers  map[string]*CircuitBreaker
	ledger    *BudgetLedger

	metrics *metrics
}

type metrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_provider_attempts_total",
			Help: "Total dispatch attempts per provider.",
		}, []string{"provider"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_provider_successes_total",
			Help: "Total successful dispatch calls per provider.",
		}, []string{"provider"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_provider_failures_total",
			Help: "Total failed dispatch calls per provider.",
		}, []string{"provider"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed,1=open,2=half-open).",
		}, []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.successes, m.failures, m.breakerState)
	}
	return m
}

// New builds a Dispatcher over providers in preference order. reg may be nil
// to skip prometheus registration (e.g. in tests).
func New(providers []Provider, breakerCfg BreakerConfig, ledgerCfg LedgerConfig, reg prometheus.Registerer, logger logging.Logger) *Dispatcher {
	logger = logging.OrDefault(logger)
	breakers := make(map[string]*CircuitBreaker, len(providers))
	for _, p := range providers {
		cfg := breakerCfg
		cfg.Name = p.Name()
		breakers[p.Name()] = NewCircuitBreaker(cfg, logger)
	}
	return &Dispatcher{
		logger:    logger,
		providers: providers,
		breakers:  breakers,
		ledger:    NewBudgetLedger(ledgerCfg),
		metrics:   newMetrics(reg),
	}
}

// Result carries the winning provider's output alongside the bookkeeping a
// caller needs to persist a usage record (spec.md §4.6 step 7).
type Result struct {
	Value    interface{}
	Provider string
	CostUSD  float64
}

// Dispatch runs the selection algorithm from spec.md §4.5 and returns the
// first successful provider's result, or the last error observed.
func (d *Dispatcher) Dispatch(ctx context.Context, op Operation) (interface{}, error) {
	res, err := d.DispatchWithMeta(ctx, op)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// DispatchWithMeta behaves like Dispatch but also reports which provider
// served the request and what it cost, for callers that need to record
// usage (pkg/summarize).
func (d *Dispatcher) DispatchWithMeta(ctx context.Context, op Operation) (Result, error) {
	d.mu.RLock()
	providers := append([]Provider(nil), d.providers...)
	d.mu.RUnlock()

	var lastErr error
	tried := false

	for _, p := range providers {
		breaker := d.breakers[p.Name()]
		d.publishBreakerState(p.Name(), breaker.State())

		if !breaker.CanAttempt() {
			continue
		}

		est, err := p.EstimateCost(op)
		if err != nil {
			d.logger.Warn("cost estimate failed, skipping provider", "provider", p.Name(), "err", err)
			continue
		}

		if !d.ledger.CanAfford(est) {
			lastErr = ErrBudgetExceeded
			continue
		}

		tried = true
		d.metrics.attempts.WithLabelValues(p.Name()).Inc()

		callCtx := ctx
		var cancel context.CancelFunc
		if d := op.Deadline(); d > 0 {
			callCtx, cancel = context.WithTimeout(ctx, d)
		}
		result, err := p.Execute(callCtx, op)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			breaker.RecordFailure()
			d.metrics.failures.WithLabelValues(p.Name()).Inc()
			lastErr = err
			continue
		}

		breaker.RecordSuccess()
		d.metrics.successes.WithLabelValues(p.Name()).Inc()
		d.ledger.AddCost(p.Name(), est)
		return Result{Value: result, Provider: p.Name(), CostUSD: est}, nil
	}

	if lastErr != nil {
		return Result{}, lastErr
	}
	if !tried {
		return Result{}, ErrNoProvidersAvailable
	}
	return Result{}, fmt.Errorf("%w", ErrNoProvidersAvailable)
}

func (d *Dispatcher) publishBreakerState(provider string, s State) {
	if d.metrics == nil || d.metrics.breakerState == nil {
		return
	}
	d.metrics.breakerState.WithLabelValues(provider).Set(float64(s))
}

// Ledger exposes the dispatcher's budget ledger for reporting.
func (d *Dispatcher) Ledger() *BudgetLedger { return d.ledger }

// Breaker returns the circuit breaker for a named provider, or nil.
func (d *Dispatcher) Breaker(provider string) *CircuitBreaker { return d.breakers[provider] }
