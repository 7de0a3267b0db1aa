package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"personastudio/internal/apiclient"
	"personastudio/internal/domain"
	"personastudio/internal/identity"
	"personastudio/internal/infra"
	"personastudio/internal/journal"
	"personastudio/internal/privileges"
	"personastudio/internal/studio"
)

const maxJSONBody = 1 << 20

// RemoteAPI is the part of the remote image service the gateway exposes.
type RemoteAPI interface {
	studio.RemoteAPI
	Health(ctx context.Context) (*apiclient.HealthResponse, error)
	ListModels(ctx context.Context) (*apiclient.ModelsResponse, error)
	ListPublicGenerations(ctx context.Context, limit int, cursor string) (*domain.GenerationPage, error)
	GenerateImage(ctx context.Context, req apiclient.GenerateRequest) (*apiclient.GenerateResponse, error)
	EnhancePrompt(ctx context.Context, req apiclient.EnhanceRequest) (*apiclient.EnhanceResponse, error)
	OptimizeKontextPrompt(ctx context.Context, req apiclient.EnhanceRequest) (*apiclient.OptimizeResponse, error)
	GenerateCharacterPrompt(ctx context.Context, req apiclient.CharacterPromptRequest) (*apiclient.CharacterPromptResponse, error)
	SurprisePrompt(ctx context.Context) (string, error)
	FetchImage(ctx context.Context, ref string) ([]byte, string, error)
}

// Gallery is the persisted-generation client, authenticated per request.
type Gallery interface {
	studio.GenerationStore
	List(ctx context.Context, pageSize int, cursor string) (*domain.GenerationPage, error)
	Get(ctx context.Context, id string) (*domain.Generation, error)
	Delete(ctx context.Context, id string) error
	Publish(ctx context.Context, id string) error
	Unpublish(ctx context.Context, id string) error
	Stats(ctx context.Context) (*domain.GenerationStats, error)
}

// Accounts runs the account flows on behalf of callers.
type Accounts interface {
	SignUp(ctx context.Context, email, password, name string) (*identity.SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) (string, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ConfirmPassword(ctx context.Context, email, code, newPassword string) (string, error)
}

// RunJournal records studio runs and counts usage. Optional.
type RunJournal interface {
	Observer(sessionID string, user domain.User) studio.Observer
	CountRunsSince(ctx context.Context, userID string, since time.Time) (int, error)
	Recent(ctx context.Context, userID string, limit int) ([]journal.Run, error)
}

// App holds the gateway's collaborators. Handlers are methods on it.
type App struct {
	API        RemoteAPI
	Gallery    Gallery
	Accounts   Accounts
	Privileges privileges.Resolver
	Studios    *studio.Registry
	Journal    RunJournal
	Logger     *infra.Logger

	StudioOptions     studio.Options
	RunTimeout        time.Duration
	ExportLimit       int
	ExportConcurrency int

	now    func() time.Time
	starts keyedMutex
}

func (a *App) log() *infra.Logger {
	return infra.LoggerOrDiscard(a.Logger)
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorPayload struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorPayload{Error: errorDetail{Code: code, Message: message}})
}

// fail maps err onto the gateway's status codes and writes it.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := domain.Message(err)
	var pe *identity.ProviderError
	if errors.As(err, &pe) {
		msg = pe.Error()
	}
	if status >= http.StatusInternalServerError {
		evt := a.log().Error()
		if status == http.StatusBadGateway {
			evt = a.log().Warn()
		}
		evt.Err(err).Str("path", r.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	a.error(w, status, code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRunInFlight):
		return http.StatusConflict, "run_in_flight"
	case errors.Is(err, domain.ErrSelectionLocked):
		return http.StatusConflict, "selection_locked"
	case errors.Is(err, domain.ErrRunComplete):
		return http.StatusConflict, "run_complete"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded"
	case errors.As(err, new(*identity.ProviderError)):
		return http.StatusBadRequest, "identity_error"
	case errors.Is(err, domain.ErrRemoteRequestFailed), errors.Is(err, domain.ErrRemoteOperationUnsuccessful):
		return http.StatusBadGateway, "remote_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	return decodeLimit(r, v, maxJSONBody)
}

func decodeLimit(r *http.Request, v any, limit int64) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.Invalid("body", "invalid payload")
	}
	return nil
}

// currentUser returns the user attached by the auth middleware.
func currentUser(r *http.Request) (*domain.User, error) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		return nil, domain.ErrAuthenticationRequired
	}
	return user, nil
}

func (a *App) privilegesFor(ctx context.Context, user *domain.User) domain.Privileges {
	if user == nil || a.Privileges == nil {
		return domain.StandardPrivileges()
	}
	p, err := a.Privileges.Resolve(ctx, user.Email)
	if err != nil {
		a.log().Warn().Err(err).Str("user", user.Sub).Msg("privilege lookup failed; using standard allowance")
		if !p.IsJudge {
			return domain.StandardPrivileges()
		}
	}
	return p
}
