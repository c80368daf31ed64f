package dispatch

import (
	"sync"
	"time"
)

// LedgerConfig holds the global daily and monthly caps. Defaults are
// deliberately generous; operators are expected to tune them.
type LedgerConfig struct {
	DailyCapUSD   float64 `yaml:"daily_cap_usd"`
	MonthlyCapUSD float64 `yaml:"monthly_cap_usd"`
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		DailyCapUSD:   5.00,
		MonthlyCapUSD: 100.00,
	}
}

// nowFunc is overridden in tests so calendar-day rollover is deterministic.
var nowFunc = time.Now

// BudgetLedger tracks running cost totals against global daily/monthly caps,
// with idempotent lazy resets on calendar-day (and month) rollover
// (spec.md §4.5, §3 BudgetLedger).
type BudgetLedger struct {
	cfg LedgerConfig

	mu            sync.RWMutex
	dailyTotal    float64
	monthlyTotal  float64
	perProviderDay map[string]float64
	perProviderMon map[string]float64
	lastResetDay  time.Time // truncated to the day
}

// NewBudgetLedger builds an empty ledger for cfg.
func NewBudgetLedger(cfg LedgerConfig) *BudgetLedger {
	return &BudgetLedger{
		cfg:            cfg,
		perProviderDay: make(map[string]float64),
		perProviderMon: make(map[string]float64),
		lastResetDay:   dayOf(nowFunc()),
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// refreshLocked clears daily (and, on month change, monthly) counters when
// the calendar has advanced since the last reset. Must be called with mu
// held for writing.
func (b *BudgetLedger) refreshLocked() {
	today := dayOf(nowFunc())
	if !today.After(b.lastResetDay) {
		return
	}
	if today.Month() != b.lastResetDay.Month() || today.Year() != b.lastResetDay.Year() {
		b.monthlyTotal = 0
		for k := range b.perProviderMon {
			b.perProviderMon[k] = 0
		}
	}
	b.dailyTotal = 0
	for k := range b.perProviderDay {
		b.perProviderDay[k] = 0
	}
	b.lastResetDay = today
}

// CanAfford refreshes the ledger and reports whether adding est would stay
// within both caps. A zero cap is treated as unlimited.
func (b *BudgetLedger) CanAfford(est float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()

	if b.cfg.DailyCapUSD > 0 && b.dailyTotal+est > b.cfg.DailyCapUSD {
		return false
	}
	if b.cfg.MonthlyCapUSD > 0 && b.monthlyTotal+est > b.cfg.MonthlyCapUSD {
		return false
	}
	return true
}

// AddCost records actual spend against a provider after a successful call.
func (b *BudgetLedger) AddCost(provider string, amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()

	b.dailyTotal += amount
	b.monthlyTotal += amount
	b.perProviderDay[provider] += amount
	b.perProviderMon[provider] += amount
}

// Totals returns the current (refreshed) daily and monthly totals.
func (b *BudgetLedger) Totals() (daily, monthly float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.dailyTotal, b.monthlyTotal
}

// ProviderTotals returns a snapshot of per-provider daily spend, for
// reporting/observability.
func (b *BudgetLedger) ProviderTotals() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	out := make(map[string]float64, len(b.perProviderDay))
	for k, v := range b.perProviderDay {
		out[k] = v
	}
	return out
}
