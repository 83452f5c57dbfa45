package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"bugtrack/cmd/internal/httpjson"
)

// maxTrackedKeys bounds the failure map; past it, record sweeps stale keys.
const maxTrackedKeys = 4096

// failureLog remembers recent login failures per key (client IP or email).
type failureLog struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	failures map[string][]time.Time
}

func newFailureLog(limit int, window time.Duration) *failureLog {
	return &failureLog{
		limit:    limit,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// check reports whether key is currently throttled and for how long.
func (l *failureLog) check(key string, now time.Time) (bool, time.Duration) {
	if l == nil || l.limit <= 0 || key == "" {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.pruneLocked(key, now)
	return evaluateWindowThrottle(now, kept, l.limit, l.window)
}

func (l *failureLog) record(key string, now time.Time) {
	if l == nil || l.limit <= 0 || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.failures) >= maxTrackedKeys {
		for k := range l.failures {
			l.pruneLocked(k, now)
		}
	}
	kept := l.pruneLocked(key, now)
	l.failures[key] = append(kept, now)
}

func (l *failureLog) reset(key string) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	delete(l.failures, key)
	l.mu.Unlock()
}

func (l *failureLog) pruneLocked(key string, now time.Time) []time.Time {
	cut := now.Add(-l.window)
	src := l.failures[key]
	kept := src[:0]
	for _, ts := range src {
		if ts.After(cut) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = kept
	return kept
}

// evaluateWindowThrottle blocks once max failures fall inside window. The
// retry delay runs until the oldest counted failure leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)

	var (
		count  int
		oldest time.Time
	)
	for _, ts := range failures {
		if !ts.After(cut) {
			continue
		}
		count++
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}
	if count < limit {
		return false, 0
	}
	retry := oldest.Add(window).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return true, retry
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	httpjson.Error(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
