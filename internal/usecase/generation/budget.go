package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/domain/usage"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but lets the call through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the call.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists budget counters. IncrBy may be called repeatedly for the same key.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// window is one rolling budget period (a UTC day or a UTC month).
type window struct {
	period usage.Period
	limit  int64
	used   int64
	start  time.Time
}

func (w *window) exceeded() bool { return w.limit > 0 && w.used >= w.limit }

func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(w.limit-w.used, 0)
}

func (w *window) end() time.Time {
	if w.period == usage.PeriodMonth {
		return w.start.AddDate(0, 1, 0)
	}
	return w.start.AddDate(0, 0, 1)
}

// BudgetTracker keeps generation token counters in memory with write-behind persistence.
// Check never leaves the process; Record updates memory first, then the store.
type BudgetTracker struct {
	mu       sync.Mutex
	provider string
	action   BudgetAction
	day      window
	month    window
	now      func() time.Time
	store    BudgetStore
	logger   *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		provider: provider,
		action:   action,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	now := b.now()
	b.day = window{period: usage.PeriodDay, limit: dailyLimit, start: startOfDay(now)}
	b.month = window{period: usage.PeriodMonth, limit: monthlyLimit, start: startOfMonth(now)}
	return b
}

// WithStore attaches a persistence store and loads the current counters from it.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	for _, w := range []*window{&b.day, &b.month} {
		val, err := store.Get(ctx, b.key(w))
		if err != nil {
			b.logger.Warn("Failed to load generation budget",
				zap.String("period", string(w.period)), zap.Error(err))
			continue
		}
		w.used = val
	}

	b.logger.Info("Generation budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("monthly_used", b.month.used),
	)
	return b
}

func (b *BudgetTracker) key(w *window) string {
	if w.period == usage.PeriodMonth {
		return fmt.Sprintf("%sbudget:%s:monthly:%s", domain.KeyPrefix, b.provider, w.start.Format("2006-01"))
	}
	return fmt.Sprintf("%sbudget:%s:daily:%s", domain.KeyPrefix, b.provider, w.start.Format("2006-01-02"))
}

// Check reports whether a new generator call is allowed. In-memory only.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	if !b.day.exceeded() && !b.month.exceeded() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrGenerationQuotaExceeded
	}

	b.logger.Warn("Generation token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("daily_limit", b.day.limit),
		zap.Int64("monthly_used", b.month.used),
		zap.Int64("monthly_limit", b.month.limit),
	)
	return nil
}

// Record adds consumed tokens to both windows and persists them.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.roll()
	b.day.used += tokens
	b.month.used += tokens
	store := b.store
	keys := [2]string{b.key(&b.day), b.key(&b.month)}
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request so a cancelled search still persists its spend.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist generation budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// Snapshot returns the budget state of the given period. PeriodTotal reports the month.
func (b *BudgetTracker) Snapshot(period usage.Period) (used int64, budget usage.Budget) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	w := &b.day
	if period != usage.PeriodDay {
		w = &b.month
	}
	return w.used, usage.NewBudget(w.limit, w.remaining(), w.exceeded(), w.end().UnixMilli())
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.day.remaining()
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.month.remaining()
}

// roll zeroes a window whose period has passed. Caller holds mu.
func (b *BudgetTracker) roll() {
	now := b.now()
	if today := startOfDay(now); today.After(b.day.start) {
		b.day.start, b.day.used = today, 0
	}
	if month := startOfMonth(now); month.After(b.month.start) {
		b.month.start, b.month.used = month, 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
