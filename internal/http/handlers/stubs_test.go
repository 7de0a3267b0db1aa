package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"personastudio/internal/apiclient"
	"personastudio/internal/domain"
	"personastudio/internal/generations"
	"personastudio/internal/identity"
	"personastudio/internal/journal"
	"personastudio/internal/studio"
)

type remoteStub struct {
	mu sync.Mutex

	health      *apiclient.HealthResponse
	healthErr   error
	public      *domain.GenerationPage
	publicErr   error
	enhanceErr  error
	enhanced    string
	surprise    string
	surpriseErr error
	character   *apiclient.CharacterPromptResponse
	charErr     error
	generate    *apiclient.GenerateResponse
	images      map[string][]byte
	editGate    chan struct{}

	generateReqs []apiclient.GenerateRequest
	merges       int
	edits        int
}

func (s *remoteStub) MergeImages(ctx context.Context, req apiclient.MergeRequest) (*apiclient.MergeResponse, error) {
	s.mu.Lock()
	s.merges++
	s.mu.Unlock()
	return &apiclient.MergeResponse{Success: true, MergedImage: "data:image/png;base64,bWVyZ2Vk", Width: 512, Height: 512}, nil
}

func (s *remoteStub) EditImage(ctx context.Context, req apiclient.EditRequest) (*apiclient.EditResponse, error) {
	if s.editGate != nil {
		select {
		case <-s.editGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.edits++
	s.mu.Unlock()
	return &apiclient.EditResponse{Success: true, Image: "https://cdn.example.com/final.jpg"}, nil
}

func (s *remoteStub) Health(context.Context) (*apiclient.HealthResponse, error) {
	if s.healthErr != nil {
		return nil, s.healthErr
	}
	if s.health == nil {
		return &apiclient.HealthResponse{Status: "healthy"}, nil
	}
	return s.health, nil
}

func (s *remoteStub) ListModels(context.Context) (*apiclient.ModelsResponse, error) {
	return &apiclient.ModelsResponse{}, nil
}

func (s *remoteStub) ListPublicGenerations(context.Context, int, string) (*domain.GenerationPage, error) {
	if s.publicErr != nil {
		return nil, s.publicErr
	}
	if s.public == nil {
		return &domain.GenerationPage{}, nil
	}
	return s.public, nil
}

func (s *remoteStub) GenerateImage(_ context.Context, req apiclient.GenerateRequest) (*apiclient.GenerateResponse, error) {
	s.mu.Lock()
	s.generateReqs = append(s.generateReqs, req)
	s.mu.Unlock()
	if s.generate == nil {
		return &apiclient.GenerateResponse{Success: true, Image: "https://cdn.example.com/g.png", Prompt: req.Prompt}, nil
	}
	return s.generate, nil
}

func (s *remoteStub) EnhancePrompt(_ context.Context, req apiclient.EnhanceRequest) (*apiclient.EnhanceResponse, error) {
	if s.enhanceErr != nil {
		return nil, s.enhanceErr
	}
	return &apiclient.EnhanceResponse{OriginalPrompt: req.Prompt, EnhancedPrompt: s.enhanced}, nil
}

func (s *remoteStub) OptimizeKontextPrompt(_ context.Context, req apiclient.EnhanceRequest) (*apiclient.OptimizeResponse, error) {
	if s.enhanceErr != nil {
		return nil, s.enhanceErr
	}
	return &apiclient.OptimizeResponse{OriginalPrompt: req.Prompt, OptimizedPrompt: s.enhanced}, nil
}

func (s *remoteStub) GenerateCharacterPrompt(_ context.Context, req apiclient.CharacterPromptRequest) (*apiclient.CharacterPromptResponse, error) {
	if s.charErr != nil {
		return nil, s.charErr
	}
	return s.character, nil
}

func (s *remoteStub) SurprisePrompt(context.Context) (string, error) {
	return s.surprise, s.surpriseErr
}

func (s *remoteStub) FetchImage(_ context.Context, ref string) ([]byte, string, error) {
	data, ok := s.images[ref]
	if !ok {
		return nil, "", domain.NewRemoteError(http.StatusNotFound, "missing")
	}
	return data, "image/png", nil
}

type galleryStub struct {
	mu sync.Mutex

	pages    []*domain.GenerationPage
	listErr  error
	items    map[string]domain.Generation
	stored   []generations.StoreRequest
	storeErr error
	deleted  []string
	cursors  []string
}

func (g *galleryStub) Store(_ context.Context, req generations.StoreRequest) (*domain.SavedGeneration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.storeErr != nil {
		return nil, g.storeErr
	}
	g.stored = append(g.stored, req)
	return &domain.SavedGeneration{ID: "gen-saved", ImageURL: "https://cdn.example.com/saved.jpg"}, nil
}

func (g *galleryStub) List(_ context.Context, _ int, cursor string) (*domain.GenerationPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	g.cursors = append(g.cursors, cursor)
	if len(g.pages) == 0 {
		return &domain.GenerationPage{}, nil
	}
	page := g.pages[0]
	g.pages = g.pages[1:]
	return page, nil
}

func (g *galleryStub) Get(_ context.Context, id string) (*domain.Generation, error) {
	item, ok := g.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (g *galleryStub) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.items[id]; !ok {
		return domain.ErrNotFound
	}
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *galleryStub) Publish(context.Context, string) error   { return nil }
func (g *galleryStub) Unpublish(context.Context, string) error { return nil }

func (g *galleryStub) Stats(context.Context) (*domain.GenerationStats, error) {
	return &domain.GenerationStats{TotalGenerations: 3, UserID: "user-1"}, nil
}

func (g *galleryStub) storedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.stored)
}

type accountsStub struct {
	err error
}

func (a accountsStub) SignUp(context.Context, string, string, string) (*identity.SignUpResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &identity.SignUpResult{UserSub: "sub-1", Message: identity.MessageVerificationSent}, nil
}

func (a accountsStub) ConfirmSignUp(context.Context, string, string) (string, error) {
	return identity.MessageAccountVerified, a.err
}

func (a accountsStub) SignIn(context.Context, string, string) (*identity.Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &identity.Session{AccessToken: "access", User: domain.User{Sub: "sub-1", Email: "a@example.com"}}, nil
}

func (a accountsStub) ForgotPassword(context.Context, string) (string, error) {
	return identity.MessageResetCodeSent, a.err
}

func (a accountsStub) ConfirmPassword(context.Context, string, string, string) (string, error) {
	return identity.MessagePasswordReset, a.err
}

// journalStub counts runs the way the journal does: a run counts from the
// moment it starts unless it fails.
type journalStub struct {
	mu       sync.Mutex
	count    int
	countErr error
	runs     []journal.Run
}

func (j *journalStub) Observer(string, domain.User) studio.Observer {
	return studio.ObserverFunc(func(_ context.Context, ev studio.Event) {
		if ev.Kind != studio.EventTransition {
			return
		}
		j.mu.Lock()
		defer j.mu.Unlock()
		switch ev.To {
		case domain.RunMergingImages:
			j.count++
		case domain.RunFailed:
			j.count--
		}
	})
}

func (j *journalStub) CountRunsSince(context.Context, string, time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count, j.countErr
}

func (j *journalStub) Recent(context.Context, string, int) ([]journal.Run, error) {
	return j.runs, nil
}

var testUser = domain.User{Sub: "user-1", Email: "user@example.com", EmailVerified: true}

func newTestApp(api *remoteStub, gallery *galleryStub) *App {
	return &App{
		API:        api,
		Gallery:    gallery,
		Accounts:   accountsStub{},
		Studios:    studio.NewRegistry(time.Hour, nil),
		RunTimeout: time.Minute,
		now:        func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) },
	}
}

// newRequest builds a request carrying user's bearer and any chi URL params
// given as name/value pairs.
func newRequest(method, target, body string, user *domain.User, params ...string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := req.Context()
	if user != nil {
		ctx = identity.WithBearer(ctx, *user, "token-"+user.Sub)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for i := 0; i+1 < len(params); i += 2 {
			rctx.URLParams.Add(params[i], params[i+1])
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

var errBoom = errors.New("boom")

type resolverFunc func(email string) (domain.Privileges, error)

func (f resolverFunc) Resolve(_ context.Context, email string) (domain.Privileges, error) {
	return f(email)
}
