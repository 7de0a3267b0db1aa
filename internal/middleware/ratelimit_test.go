package middleware

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"personastudio/internal/domain"
	"personastudio/internal/identity"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		remoteAddr string
		want       string
	}{
		{
			name:       "single ip",
			header:     "203.0.113.1",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "multiple ips use first",
			header:     " 203.0.113.1 , 198.51.100.2 ",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "invalid forwarded falls back",
			header:     "invalid",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "empty forwarded uses remote host",
			header:     "",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "ipv6 forwarded",
			header:     "2001:db8::1",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::1",
		},
		{
			name:       "ipv6 remote fallback",
			header:     "invalid",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::2",
		},
		{
			name:       "remote without port",
			header:     "invalid",
			remoteAddr: "203.0.113.1",
			want:       "203.0.113.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.header != "" {
				req.Header.Set("X-Forwarded-For", tc.header)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("clientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimitKeysByUserAndIP(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(ctx context.Context) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		req.RemoteAddr = "198.51.100.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	anon := context.Background()
	alice := identity.WithBearer(anon, domain.User{Sub: "alice"}, "t1")

	if rec := do(anon); rec.Code != http.StatusNoContent {
		t.Fatalf("first anonymous status = %d", rec.Code)
	}
	rec := do(anon)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second anonymous status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rec := do(alice); rec.Code != http.StatusNoContent {
		t.Fatalf("alice from same IP status = %d, want own bucket", rec.Code)
	}
}

func TestWindowLimiterResets(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	l := newWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.allow("ip:a"); !ok {
			t.Fatalf("hit %d rejected", i+1)
		}
	}
	ok, wait := l.allow("ip:a")
	if ok || wait != time.Minute {
		t.Fatalf("third hit = %v, %v; want rejected with 1m wait", ok, wait)
	}

	now = now.Add(45 * time.Second)
	if _, wait := l.allow("ip:a"); wait != 15*time.Second {
		t.Fatalf("wait = %v, want 15s", wait)
	}

	now = now.Add(15 * time.Second)
	if ok, _ := l.allow("ip:a"); !ok {
		t.Fatal("window should have reset")
	}

	now = now.Add(2 * time.Minute)
	l.allow("ip:b")
	if _, ok := l.windows["ip:a"]; ok {
		t.Fatal("expired window was not pruned")
	}
}
