package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/domain/usage"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBudgetTracker_RejectWhenDailyExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionReject, zap.NewNop())
	bt.Record(100)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrGenerationQuotaExceeded) {
		t.Fatalf("expected ErrGenerationQuotaExceeded, got %v", err)
	}
}

func TestBudgetTracker_RejectWhenMonthlyExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 500, BudgetActionReject, zap.NewNop())
	bt.Record(500)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrGenerationQuotaExceeded) {
		t.Fatalf("expected ErrGenerationQuotaExceeded, got %v", err)
	}
}

func TestBudgetTracker_WarnLetsCallThrough(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionWarn, zap.NewNop())
	bt.Record(200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil for warn action, got %v", err)
	}
}

func TestBudgetTracker_Unlimited(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionReject, zap.NewNop())
	bt.Record(1 << 40)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil for unlimited budget, got %v", err)
	}
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("remaining = %d/%d, want -1/-1", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("daily remaining = %d, want 700", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("monthly remaining = %d, want 9700", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("daily remaining = %d, want clamp to 0", got)
	}
}

func TestBudgetTracker_RollsOverAtMidnight(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 1000, BudgetActionReject, zap.NewNop())
	day := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	bt.now = fixedClock(day)
	bt.day.start, bt.month.start = startOfDay(day), startOfMonth(day)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected rejection before midnight")
	}

	bt.now = fixedClock(day.Add(2 * time.Hour))
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected daily reset after midnight, got %v", err)
	}
	used, _ := bt.Snapshot(usage.PeriodMonth)
	if used != 100 {
		t.Errorf("monthly used = %d, want 100 (same month)", used)
	}
}

func TestBudgetTracker_Snapshot(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionReject, zap.NewNop())
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	bt.now = fixedClock(day)
	bt.day.start, bt.month.start = startOfDay(day), startOfMonth(day)
	bt.Record(100)

	used, b := bt.Snapshot(usage.PeriodDay)
	if used != 100 || b.TokensLimit() != 100 || b.TokensRemaining() != 0 || !b.IsExhausted() {
		t.Errorf("day snapshot = %d %+v", used, b)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).UnixMilli(); b.ResetsAt() != want {
		t.Errorf("resets at = %d, want %d", b.ResetsAt(), want)
	}

	_, mb := bt.Snapshot(usage.PeriodMonth)
	if mb.IsExhausted() || mb.TokensRemaining() != -1 {
		t.Errorf("month snapshot = %+v, want unlimited", mb)
	}
	if want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).UnixMilli(); mb.ResetsAt() != want {
		t.Errorf("month resets at = %d, want %d", mb.ResetsAt(), want)
	}
}

func TestBudgetTracker_WithStore_LoadsCounters(t *testing.T) {
	store := newMockBudgetStore()
	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionReject, zap.NewNop())
	store.data[bt.key(&bt.day)] = 300
	store.data[bt.key(&bt.month)] = 5000

	bt.WithStore(context.Background(), store)

	if used, _ := bt.Snapshot(usage.PeriodDay); used != 300 {
		t.Errorf("daily used = %d, want 300", used)
	}
	if used, _ := bt.Snapshot(usage.PeriodMonth); used != 5000 {
		t.Errorf("monthly used = %d, want 5000", used)
	}
}

func TestBudgetTracker_WithStore_LoadErrorStartsAtZero(t *testing.T) {
	store := newMockBudgetStore()
	store.getErr = errors.New("connection refused")

	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionReject, zap.NewNop())
	bt.WithStore(context.Background(), store)

	if used, _ := bt.Snapshot(usage.PeriodDay); used != 0 {
		t.Errorf("daily used = %d, want 0", used)
	}
}

func TestBudgetTracker_RecordPersists(t *testing.T) {
	store := newMockBudgetStore()
	bt := NewBudgetTracker("prov", 10000, 100000, BudgetActionWarn, zap.NewNop())
	bt.WithStore(context.Background(), store)

	bt.Record(100)
	bt.Record(200)

	if got := store.value(bt.key(&bt.day)); got != 300 {
		t.Errorf("stored daily = %d, want 300", got)
	}
	if got := store.value(bt.key(&bt.month)); got != 300 {
		t.Errorf("stored monthly = %d, want 300", got)
	}
}

func TestBudgetTracker_StoreWriteErrorKeepsMemory(t *testing.T) {
	store := newMockBudgetStore()
	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.WithStore(context.Background(), store)
	store.setErr = errors.New("write timeout")

	bt.Record(50)

	if used, _ := bt.Snapshot(usage.PeriodDay); used != 50 {
		t.Errorf("daily used = %d, want 50", used)
	}
}

func TestBudgetTracker_KeyFormat(t *testing.T) {
	bt := NewBudgetTracker("openai", 0, 0, BudgetActionWarn, zap.NewNop())
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	bt.day.start, bt.month.start = startOfDay(day), startOfMonth(day)

	if got := bt.key(&bt.day); got != "casequery:budget:openai:daily:2026-03-14" {
		t.Errorf("daily key = %q", got)
	}
	if got := bt.key(&bt.month); !strings.HasSuffix(got, ":monthly:2026-03") {
		t.Errorf("monthly key = %q", got)
	}
}
