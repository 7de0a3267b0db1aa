package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// windowLimiter counts requests per key in fixed windows. Expired windows are
// pruned at most once per window length.
type windowLimiter struct {
	limit int
	per   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastPrune time.Time
}

type window struct {
	count int
	ends  time.Time
}

func newWindowLimiter(limit int, per time.Duration) *windowLimiter {
	return &windowLimiter{limit: limit, per: per, now: time.Now, windows: make(map[string]*window)}
}

// allow records a hit for key. When the key is over its limit it returns false
// and the time left until the window resets.
func (l *windowLimiter) allow(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > l.per {
		for k, w := range l.windows {
			if !now.Before(w.ends) {
				delete(l.windows, k)
			}
		}
		l.lastPrune = now
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.ends) {
		w = &window{ends: now.Add(l.per)}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return false, w.ends.Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit allows limit requests per window for each caller. Signed-in
// callers get their own budget; anonymous ones share one per client IP.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return rateLimit(newWindowLimiter(limit, per))
}

func rateLimit(l *windowLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.allow(callerKey(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if sub := UserIDFromContext(r.Context()); sub != "" {
		return "user:" + sub
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the first valid X-Forwarded-For entry, then the host part
// of RemoteAddr.
func clientIP(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
