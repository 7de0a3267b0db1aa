package identity

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"personastudio/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if s, err := store.Load(ctx); err != nil || s != nil {
		t.Fatalf("Load on missing file = %v, %v; want nil, nil", s, err)
	}

	want := &Session{
		AccessToken:  "access",
		IDToken:      "id",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		User:         domain.User{Sub: "sub-1", Email: "ana@example.com", Name: "Ana", EmailVerified: true},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("session file mode = %o, want 600", perm)
		}
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s, _ := store.Load(ctx); s != nil {
		t.Fatalf("session present after Clear")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		session *Session
		want    bool
	}{
		{name: "nil", session: nil, want: true},
		{name: "no token", session: &Session{}, want: true},
		{name: "no expiry", session: &Session{AccessToken: "a"}, want: false},
		{name: "fresh", session: &Session{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, want: false},
		{name: "within skew", session: &Session{AccessToken: "a", ExpiresAt: now.Add(10 * time.Second)}, want: true},
		{name: "past", session: &Session{AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.session.Expired(now, 30*time.Second); got != tc.want {
				t.Fatalf("Expired() = %v, want %v", got, tc.want)
			}
		})
	}
}
