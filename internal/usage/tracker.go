// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package usage tracks free-tier conversions per calendar day so the
// converter stops before Adobe's daily quota is exceeded.
package usage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/pdiddy/adobe-helper/internal/endpoints"
	"github.com/pdiddy/adobe-helper/internal/logging"
	"github.com/pdiddy/adobe-helper/pkg/types"
)

// DefaultDailyLimit is the number of free conversions allowed per day.
const DefaultDailyLimit = 2

const dateLayout = "2006-01-02"

// ErrDailyLimitReached is returned when today's free conversions are used up.
var ErrDailyLimitReached = errors.New("daily free conversion limit reached")

// Tracker counts conversions per local calendar day. Every read refreshes
// from the store, so several processes sharing a usage directory see each
// other's conversions.
type Tracker struct {
	mu    sync.Mutex
	store Store
	limit int
	now   func() time.Time
	state types.DailyUsage
}

// NewTracker returns a tracker over store. A negative limit is treated as 0.
func NewTracker(store Store, limit int) *Tracker {
	if limit < 0 {
		limit = 0
	}
	t := &Tracker{store: store, limit: limit, now: time.Now}
	t.state = t.load()
	return t
}

// Open creates the usage directory and returns a tracker using the
// configured backend. An empty Dir means ~/.adobe-helper.
func Open(cfg types.UsageConfig) (*Tracker, error) {
	dir := cfg.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		dir = filepath.Join(home, endpoints.SessionDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating usage directory %s: %w", dir, err)
	}

	limit := DefaultDailyLimit
	if cfg.DailyLimit != nil {
		if *cfg.DailyLimit < 0 {
			return nil, fmt.Errorf("daily limit must not be negative, got %d", *cfg.DailyLimit)
		}
		limit = *cfg.DailyLimit
	}

	var store Store
	switch cfg.Backend {
	case types.UsageSQLite:
		s, err := NewSQLiteStore(dir)
		if err != nil {
			return nil, err
		}
		store = s
	case types.UsageFile, "":
		store = NewFileStore(dir)
	default:
		return nil, fmt.Errorf("unknown usage backend %q", cfg.Backend)
	}
	return NewTracker(store, limit), nil
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}

// Limit returns the daily limit.
func (t *Tracker) Limit() int { return t.limit }

func (t *Tracker) today() string {
	return t.now().Format(dateLayout)
}

func (t *Tracker) empty() types.DailyUsage {
	return types.DailyUsage{Date: t.today(), Conversions: []types.ConversionRecord{}}
}

// load reads the stored state, starting a fresh day when the stored date is
// not today or the state cannot be read.
func (t *Tracker) load() types.DailyUsage {
	today := t.today()
	u, err := t.store.Load(today)
	if err != nil {
		logging.Error("failed to load usage data", "error", err)
		return t.empty()
	}
	if u.Date != today {
		if u.Date != "" {
			logging.Info("new day detected, resetting usage counter", "previous", u.Date)
		}
		return t.empty()
	}
	if u.Conversions == nil {
		u.Conversions = []types.ConversionRecord{}
	}
	return u
}

func (t *Tracker) refresh() types.DailyUsage {
	t.state = t.load()
	return t.state
}

// CanConvert reports whether another conversion fits under today's limit.
func (t *Tracker) CanConvert() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := t.refresh().Count
	if count >= t.limit {
		logging.Warn("daily conversion limit reached", "count", count, "limit", t.limit)
		return false
	}
	return true
}

// Increment records a successful conversion of filename (may be empty).
func (t *Tracker) Increment(filename string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.refresh()
	u.Count++
	u.Conversions = append(u.Conversions, types.ConversionRecord{
		ID:        xid.New().String(),
		Timestamp: t.now(),
		Filename:  filename,
	})
	t.state = u

	if err := t.store.Save(u); err != nil {
		logging.Error("failed to save usage data", "error", err)
		return fmt.Errorf("saving usage: %w", err)
	}
	logging.Debug("usage data saved", "count", u.Count)

	if remaining := max(0, t.limit-u.Count); remaining <= 1 {
		logging.Warn("approaching daily limit", "remaining", remaining)
	} else {
		logging.Info("conversion tracked", "count", u.Count, "limit", t.limit)
	}
	return nil
}

// Count returns today's conversion count.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh().Count
}

// Remaining returns the conversions left today, never negative.
func (t *Tracker) Remaining() int {
	return max(0, t.limit-t.Count())
}

// Reset clears today's usage.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = t.empty()
	if err := t.store.Save(t.state); err != nil {
		logging.Error("failed to save usage data", "error", err)
		return fmt.Errorf("saving usage: %w", err)
	}
	logging.Info("usage data reset")
	return nil
}

// History returns today's conversion records.
func (t *Tracker) History() []types.ConversionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs := t.refresh().Conversions
	out := make([]types.ConversionRecord, len(recs))
	copy(out, recs)
	return out
}

// Archive returns every day the store retains.
func (t *Tracker) Archive() ([]types.DailyUsage, error) {
	return t.store.Days()
}

// Summary reports today's usage against the limit.
func (t *Tracker) Summary() types.UsageSummary {
	t.mu.Lock()
	u := t.refresh()
	t.mu.Unlock()

	s := types.UsageSummary{
		Date:      u.Date,
		Count:     u.Count,
		Limit:     t.limit,
		Remaining: max(0, t.limit-u.Count),
	}
	if t.limit > 0 {
		s.PercentageUsed = float64(u.Count) / float64(t.limit) * 100
	}
	return s
}

func (t *Tracker) String() string {
	s := t.Summary()
	return fmt.Sprintf("Usage: %d/%d (%.0f%%) - %d remaining", s.Count, s.Limit, s.PercentageUsed, s.Remaining)
}
