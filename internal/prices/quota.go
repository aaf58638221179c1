package prices

import (
	"context"
	"sync"
	"time"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/logging"
)

const (
	DefaultDailyLimit = 100

	WarningThreshold = 0.90
	BlockThreshold   = 0.99
)

// QuotaState is the persisted budget counter.
type QuotaState struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Pending     int       `json:"pendingRequests"`
	ResetAt     time.Time `json:"resetAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// QuotaStatus is the budget as shown to admins.
type QuotaStatus struct {
	Used        int       `json:"used"`
	Pending     int       `json:"pending"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	PercentUsed int       `json:"percentUsed"`
	ResetAt     time.Time `json:"resetAt"`
	Warning     bool      `json:"warning"`
	Blocked     bool      `json:"blocked"`
}

// QuotaStore persists the counter so it survives restarts.
type QuotaStore interface {
	// LoadQuota returns nil, nil when nothing is stored.
	LoadQuota(ctx context.Context) (*QuotaState, error)
	SaveQuota(ctx context.Context, s QuotaState) error
}

// QuotaTracker enforces a daily request budget that resets at local
// midnight. Calls are reserved before being issued, then committed on
// success or released on failure, so concurrent callers cannot overshoot.
type QuotaTracker struct {
	mu     sync.Mutex
	store  QuotaStore
	logger logging.Logger
	limit  int
	loc    *time.Location
	now    func() time.Time

	state  QuotaState
	loaded bool
}

type QuotaOption func(*QuotaTracker)

func WithQuotaClock(now func() time.Time) QuotaOption {
	return func(q *QuotaTracker) { q.now = now }
}

// WithQuotaLocation sets the timezone whose midnight resets the budget.
func WithQuotaLocation(loc *time.Location) QuotaOption {
	return func(q *QuotaTracker) { q.loc = loc }
}

func WithQuotaLogger(l logging.Logger) QuotaOption {
	return func(q *QuotaTracker) { q.logger = l }
}

func NewQuotaTracker(store QuotaStore, dailyLimit int, opts ...QuotaOption) *QuotaTracker {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	q := &QuotaTracker{
		store:  store,
		logger: logging.Nop(),
		limit:  dailyLimit,
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetLimit changes the daily budget. Requests already counted stay counted.
func (q *QuotaTracker) SetLimit(dailyLimit int) {
	if dailyLimit <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limit = dailyLimit
	q.state.Limit = dailyLimit
}

// Status returns the current budget.
func (q *QuotaTracker) Status(ctx context.Context) QuotaStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ensure(ctx)
	return q.status()
}

// Reserve claims one request. It fails with QuotaExceeded once the budget
// is at the block threshold.
func (q *QuotaTracker) Reserve(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ensure(ctx)

	st := q.status()
	if st.Blocked {
		return apperr.Errorf(apperr.QuotaExceeded, "prices.QuotaTracker.Reserve",
			"daily quota blocked at %d%% (%d/%d), resets at %s",
			st.PercentUsed, st.Used+st.Pending, st.Limit, st.ResetAt.Format(time.RFC3339))
	}
	if st.Warning {
		q.logger.Warn(ctx, "price quota nearly spent", "used", st.Used+st.Pending, "limit", st.Limit)
	}
	q.state.Pending++
	q.persist(ctx)
	return nil
}

// Commit turns a reservation into a used request.
func (q *QuotaTracker) Commit(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ensure(ctx)
	if q.state.Pending > 0 {
		q.state.Pending--
	}
	q.state.Used++
	q.persist(ctx)
}

// Release returns a reservation whose request was not counted upstream.
func (q *QuotaTracker) Release(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ensure(ctx)
	if q.state.Pending > 0 {
		q.state.Pending--
		q.persist(ctx)
	}
}

// ensure loads the stored state once and rolls it over at midnight.
// Callers hold q.mu.
func (q *QuotaTracker) ensure(ctx context.Context) {
	if !q.loaded {
		q.loaded = true
		stored, err := q.store.LoadQuota(ctx)
		switch {
		case err != nil:
			q.logger.Warn(ctx, "failed to load price quota, starting fresh", "error", err)
		case stored != nil:
			q.state = *stored
			// pending reservations do not survive a restart
			q.state.Pending = 0
		}
	}
	now := q.now()
	if q.state.ResetAt.IsZero() || !now.Before(q.state.ResetAt) {
		q.state = QuotaState{Limit: q.limit, ResetAt: nextMidnight(now, q.loc), LastUpdated: now}
		q.persist(ctx)
	}
	q.state.Limit = q.limit
}

func (q *QuotaTracker) status() QuotaStatus {
	effective := q.state.Used + q.state.Pending
	ratio := float64(effective) / float64(q.limit)
	return QuotaStatus{
		Used:        q.state.Used,
		Pending:     q.state.Pending,
		Limit:       q.limit,
		Remaining:   max(q.limit-effective, 0),
		PercentUsed: int(ratio*100 + 0.5),
		ResetAt:     q.state.ResetAt,
		Warning:     ratio >= WarningThreshold,
		Blocked:     ratio >= BlockThreshold || effective >= q.limit,
	}
}

func (q *QuotaTracker) persist(ctx context.Context) {
	q.state.LastUpdated = q.now()
	if err := q.store.SaveQuota(ctx, q.state); err != nil {
		q.logger.Warn(ctx, "failed to persist price quota", "error", err)
	}
}

func nextMidnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// MemoryQuotaStore keeps the counter in memory only.
type MemoryQuotaStore struct {
	mu    sync.Mutex
	state *QuotaState
}

func (m *MemoryQuotaStore) LoadQuota(context.Context) (*QuotaState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	cp := *m.state
	return &cp, nil
}

func (m *MemoryQuotaStore) SaveQuota(_ context.Context, s QuotaState) error {
	m.mu.Lock()
	m.state = &s
	m.mu.Unlock()
	return nil
}
