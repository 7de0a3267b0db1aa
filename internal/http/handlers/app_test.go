package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"personastudio/internal/domain"
	"personastudio/internal/identity"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.Invalid("prompt", "prompt is required"), http.StatusBadRequest, "bad_request"},
		{"auth", domain.ErrAuthenticationRequired, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found wrapped", fmt.Errorf("gallery: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{"in flight", domain.ErrRunInFlight, http.StatusConflict, "run_in_flight"},
		{"locked", domain.ErrSelectionLocked, http.StatusConflict, "selection_locked"},
		{"complete", domain.ErrRunComplete, http.StatusConflict, "run_complete"},
		{"quota", domain.ErrQuotaExceeded, http.StatusTooManyRequests, "quota_exceeded"},
		{"identity", &identity.ProviderError{Code: "UsernameExistsException", Message: "User already exists"}, http.StatusBadRequest, "identity_error"},
		{"remote", domain.NewRemoteError(503, "down"), http.StatusBadGateway, "remote_failed"},
		{"unsuccessful", &domain.UnsuccessfulError{Message: "FLUX generation failed"}, http.StatusBadGateway, "remote_failed"},
		{"other", errBoom, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := classify(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("classify(%v) = %d %q, want %d %q", tc.err, status, code, tc.status, tc.code)
			}
		})
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	app := newTestApp(&remoteStub{}, &galleryStub{})

	rr := httptest.NewRecorder()
	app.fail(rr, httptest.NewRequest(http.MethodGet, "/v1/x", nil), fmt.Errorf("db password=hunter2: %w", errBoom))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body errorPayload
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message != "internal error" {
		t.Fatalf("message = %q, want %q", body.Error.Message, "internal error")
	}

	rr = httptest.NewRecorder()
	app.fail(rr, httptest.NewRequest(http.MethodGet, "/v1/x", nil), &domain.UnsuccessfulError{Message: "FLUX generation failed"})
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusBadGateway || body.Error.Message != "FLUX generation failed" {
		t.Fatalf("remote failure = %d %q", rr.Code, body.Error.Message)
	}
}

func TestPrivilegesForFallsBackToStandard(t *testing.T) {
	app := newTestApp(&remoteStub{}, &galleryStub{})
	app.Privileges = resolverFunc(func(string) (domain.Privileges, error) {
		return domain.Privileges{MaxResolution: 4096}, errBoom
	})
	got := app.privilegesFor(t.Context(), &testUser)
	if got != domain.StandardPrivileges() {
		t.Fatalf("privileges = %+v, want standard", got)
	}

	app.Privileges = resolverFunc(func(string) (domain.Privileges, error) {
		return domain.ElevatedPrivileges(), errBoom
	})
	if got := app.privilegesFor(t.Context(), &testUser); !got.IsJudge {
		t.Fatalf("privileges = %+v, want elevated kept", got)
	}
}

func TestHealthDegradesWhenRemoteFails(t *testing.T) {
	app := newTestApp(&remoteStub{healthErr: errBoom}, &galleryStub{})
	rr := httptest.NewRecorder()
	app.Health(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "degraded" {
		t.Fatalf("status field = %v, want degraded", body["status"])
	}
}

func TestQueryInt(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=0", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		if got := queryInt(r, "limit", 20); got != tc.want {
			t.Fatalf("queryInt(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}
