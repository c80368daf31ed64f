package dispatch

import (
	"testing"
	"time"
)

func TestBudgetLedgerCanAffordWithinCaps(t *testing.T) {
	l := NewBudgetLedger(LedgerConfig{DailyCapUSD: 0.10, MonthlyCapUSD: 10.00})
	l.AddCost("groq", 0.095)

	if l.CanAfford(0.01) {
		t.Fatalf("expected 0.095+0.01 > 0.10 daily cap to be unaffordable")
	}
	if !l.CanAfford(0.004) {
		t.Fatalf("expected a small increment to remain affordable")
	}
}

func TestBudgetLedgerZeroCapIsUnlimited(t *testing.T) {
	l := NewBudgetLedger(LedgerConfig{})
	l.AddCost("groq", 1000)
	if !l.CanAfford(1000) {
		t.Fatalf("expected a zero cap to mean unlimited")
	}
}

func TestBudgetLedgerDailyResetOnCalendarRollover(t *testing.T) {
	orig := nowFunc
	defer func() { nowFunc = orig }()

	day1 := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return day1 }

	l := NewBudgetLedger(LedgerConfig{DailyCapUSD: 1.00, MonthlyCapUSD: 100.00})
	l.AddCost("groq", 0.90)
	if daily, _ := l.Totals(); daily != 0.90 {
		t.Fatalf("expected 0.90 recorded, got %v", daily)
	}

	day2 := time.Date(2026, 1, 2, 1, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return day2 }

	daily, monthly := l.Totals()
	if daily != 0 {
		t.Fatalf("expected daily total reset after day rollover, got %v", daily)
	}
	if monthly != 0.90 {
		t.Fatalf("expected monthly total to survive a same-month day rollover, got %v", monthly)
	}
}

func TestBudgetLedgerMonthlyResetOnMonthRollover(t *testing.T) {
	orig := nowFunc
	defer func() { nowFunc = orig }()

	jan := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return jan }

	l := NewBudgetLedger(LedgerConfig{DailyCapUSD: 1.00, MonthlyCapUSD: 100.00})
	l.AddCost("groq", 5.00)

	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return feb }

	daily, monthly := l.Totals()
	if daily != 0 || monthly != 0 {
		t.Fatalf("expected both totals reset across a month boundary, got daily=%v monthly=%v", daily, monthly)
	}
}

func TestBudgetLedgerResetIsIdempotent(t *testing.T) {
	orig := nowFunc
	defer func() { nowFunc = orig }()

	day := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return day }

	l := NewBudgetLedger(LedgerConfig{})
	l.Totals()
	l.Totals()
	l.AddCost("groq", 1.0)
	if daily, _ := l.Totals(); daily != 1.0 {
		t.Fatalf("repeated reset calls on the same day must not clear spend, got %v", daily)
	}
}
