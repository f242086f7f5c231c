package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aiox-platform/quill/internal/metrics"
)

const (
	dateLayout     = "2006-01-02"
	maxSwapRetries = 5
)

// Guard admits requests against a daily per-user ceiling.
//
// Counters roll over lazily: every read or write first compares the stored
// last_reset_date with today's date in the configured location and zeroes
// requests_today when today is later. The comparison is on calendar-date
// strings, so a clock moved back onto an earlier date does not reset again.
//
// Store failures never block a user. The guard keeps the last record it
// computed per user and keeps counting from it when the store is unreachable.
// A record the store refused to persist stays authoritative over what the
// store returns until a later write succeeds.
type Guard struct {
	store *UsageStore
	limit int
	loc   *time.Location
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cachedQuota
}

type cachedQuota struct {
	quota       UserQuota
	unpersisted bool
}

// NewGuard creates a Guard. A nil loc means time.Local.
func NewGuard(store *UsageStore, dailyLimit int, loc *time.Location) *Guard {
	if loc == nil {
		loc = time.Local
	}
	return &Guard{
		store: store,
		limit: dailyLimit,
		loc:   loc,
		now:   time.Now,
		cache: make(map[string]cachedQuota),
	}
}

// DailyLimit returns the configured ceiling.
func (g *Guard) DailyLimit() int {
	return g.limit
}

// CanProceed reports whether userID has requests left today.
func (g *Guard) CanProceed(ctx context.Context, userID string) bool {
	q := g.apply(ctx, userID, nil)
	if q.RequestsToday >= g.limit {
		metrics.QuotaDenialsTotal.Inc()
		return false
	}
	return true
}

// RecordUsage counts one successful request.
func (g *Guard) RecordUsage(ctx context.Context, userID string) {
	g.apply(ctx, userID, func(q *UserQuota) {
		q.RequestsToday++
		q.TotalRequests++
	})
}

// Remaining returns how many requests userID may still make today.
func (g *Guard) Remaining(ctx context.Context, userID string) int {
	return g.remaining(g.apply(ctx, userID, nil))
}

// NextResetInstant returns local midnight of the next day.
func (g *Guard) NextResetInstant() time.Time {
	now := g.now().In(g.loc)
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, g.loc)
}

// UsageSnapshot returns the user's counters after rollover.
func (g *Guard) UsageSnapshot(ctx context.Context, userID string) Snapshot {
	q := g.apply(ctx, userID, nil)
	return Snapshot{
		RequestsToday: q.RequestsToday,
		DailyLimit:    g.limit,
		Remaining:     g.remaining(q),
		TotalRequests: q.TotalRequests,
		NextReset:     g.NextResetInstant(),
	}
}

// GlobalStats aggregates all stored records. Records not yet rolled over
// today contribute to the totals but not to today's requests.
func (g *Guard) GlobalStats(ctx context.Context) (GlobalStats, error) {
	all, err := g.store.All(ctx)
	if err != nil {
		return GlobalStats{}, err
	}

	today := g.today()
	stats := GlobalStats{TotalUsers: len(all)}
	for _, q := range all {
		stats.TotalRequestsAllTime += q.TotalRequests
		if q.LastResetDate == today {
			stats.RequestsTodayAllUsers += q.RequestsToday
		}
	}
	return stats, nil
}

func (g *Guard) remaining(q UserQuota) int {
	return max(0, g.limit-q.RequestsToday)
}

func (g *Guard) today() string {
	return g.now().In(g.loc).Format(dateLayout)
}

// rollover zeroes today's counter when the stored date is older than today.
// It reports whether q changed.
func rollover(q *UserQuota, today string) bool {
	switch {
	case q.LastResetDate == "":
		q.LastResetDate = today
		return false
	case today > q.LastResetDate:
		q.RequestsToday = 0
		q.LastResetDate = today
		return true
	}
	return false
}

// apply runs rollover and the optional mutation as a compare-and-swap loop
// and returns the resulting record.
func (g *Guard) apply(ctx context.Context, userID string, mutate func(*UserQuota)) UserQuota {
	today := g.today()

	var q UserQuota
	for attempt := 0; attempt < maxSwapRetries; attempt++ {
		loaded, raw, err := g.store.Load(ctx, userID)
		if err != nil {
			slog.Warn("quota: reading usage failed, using last known counters", "user_id", userID, "error", err)
			return g.applyCached(userID, today, mutate)
		}

		var changed bool
		q, changed = g.reconcile(userID, loaded)
		if rollover(&q, today) {
			changed = true
		}
		if raw == nil && mutate == nil && !changed {
			// nothing stored yet and nothing to record
			g.remember(userID, q, false)
			return q
		}
		if mutate != nil {
			mutate(&q)
			changed = true
		}
		if !changed {
			g.remember(userID, q, false)
			return q
		}

		ok, err := g.store.Swap(ctx, userID, raw, q)
		if err != nil {
			slog.Warn("quota: persisting usage failed", "user_id", userID, "error", err)
			g.remember(userID, q, true)
			return q
		}
		if ok {
			g.remember(userID, q, false)
			return q
		}
		slog.Debug("quota: concurrent update, retrying", "user_id", userID, "attempt", attempt+1)
	}

	slog.Warn("quota: gave up after concurrent updates", "user_id", userID, "attempts", maxSwapRetries)
	g.remember(userID, q, true)
	return q
}

// reconcile merges an unpersisted cached record into the loaded one. It
// reports whether the result differs from what the store holds.
func (g *Guard) reconcile(userID string, loaded UserQuota) (UserQuota, bool) {
	g.mu.Lock()
	c, ok := g.cache[userID]
	g.mu.Unlock()
	if !ok || !c.unpersisted {
		return loaded, false
	}
	return mergeQuota(loaded, c.quota)
}

// mergeQuota keeps the newer day's record, or the higher counters when both
// records belong to the same day. It reports whether the result differs from
// stored.
func mergeQuota(stored, cached UserQuota) (UserQuota, bool) {
	merged := stored
	switch {
	case cached.LastResetDate > stored.LastResetDate:
		merged = cached
	case cached.LastResetDate == stored.LastResetDate:
		merged.RequestsToday = max(stored.RequestsToday, cached.RequestsToday)
	}
	merged.TotalRequests = max(stored.TotalRequests, cached.TotalRequests)
	return merged, merged != stored
}

func (g *Guard) applyCached(userID, today string, mutate func(*UserQuota)) UserQuota {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.cache[userID]
	rollover(&c.quota, today)
	if mutate != nil {
		mutate(&c.quota)
		c.unpersisted = true
	}
	g.cache[userID] = c
	return c.quota
}

func (g *Guard) remember(userID string, q UserQuota, unpersisted bool) {
	g.mu.Lock()
	g.cache[userID] = cachedQuota{quota: q, unpersisted: unpersisted}
	g.mu.Unlock()
}
