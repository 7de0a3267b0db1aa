package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"personastudio/internal/domain"
	"personastudio/internal/journal"
	"personastudio/internal/studio"
)

const (
	personaListLimit = 50
	maxProductBytes  = 10 << 20
)

type personasResponse struct {
	Mine        []domain.Generation `json:"mine"`
	Marketplace []domain.Generation `json:"marketplace"`
}

type sessionResponse struct {
	ID       string          `json:"id"`
	Snapshot studio.Snapshot `json:"snapshot"`
	CanStart bool            `json:"can_start"`
	Step     string          `json:"step,omitempty"`
}

type personaRequest struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
}

type productRequest struct {
	DataURL string `json:"data_url"`
}

// StudioPersonas loads the caller's own personas and the public marketplace
// in parallel. Either list failing leaves it empty rather than failing the
// request. The caller's studio results are not personas and are left out.
func (a *App) StudioPersonas(w http.ResponseWriter, r *http.Request) {
	resp := personasResponse{Mine: []domain.Generation{}, Marketplace: []domain.Generation{}}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		page, err := a.Gallery.List(ctx, personaListLimit, "")
		if err != nil {
			a.log().Warn().Err(err).Msg("studio: load own personas failed")
			return nil
		}
		resp.Mine = domain.ExcludeImageModel(page.Items, domain.ImageModelKontext)
		return nil
	})
	g.Go(func() error {
		page, err := a.API.ListPublicGenerations(ctx, personaListLimit, "")
		if err != nil {
			a.log().Warn().Err(err).Msg("studio: load marketplace failed")
			return nil
		}
		if page.Items != nil {
			resp.Marketplace = page.Items
		}
		return nil
	})
	_ = g.Wait()
	a.json(w, http.StatusOK, resp)
}

func (a *App) StudioCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	opts := a.StudioOptions
	opts.Logger = a.Logger
	seq := studio.New(a.API, a.Gallery, opts)
	id := a.Studios.Create(user.Sub, seq)
	seq.Observe(a.transitionLogger(id))
	if a.Journal != nil {
		seq.Observe(a.Journal.Observer(id, *user))
	}
	a.json(w, http.StatusCreated, sessionView(id, seq.Snapshot()))
}

func (a *App) StudioGet(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(id string, seq *studio.Sequence) error {
		a.json(w, http.StatusOK, sessionView(id, seq.Snapshot()))
		return nil
	})
}

func (a *App) StudioSetPersona(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(id string, seq *studio.Sequence) error {
		var req personaRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		persona := domain.PersonaSelection{ID: req.ID, ImageURL: req.ImageURL, Prompt: req.Prompt, Model: req.Model}
		if persona.ImageURL == "" && persona.ID != "" {
			gen, err := a.Gallery.Get(r.Context(), persona.ID)
			if err != nil {
				return err
			}
			persona = domain.PersonaFromGeneration(*gen)
		}
		if err := seq.SelectPersona(persona); err != nil {
			return err
		}
		a.json(w, http.StatusOK, sessionView(id, seq.Snapshot()))
		return nil
	})
}

// StudioSetProduct accepts either a multipart upload in field "file" or a JSON
// body carrying a base64 data URL.
func (a *App) StudioSetProduct(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(id string, seq *studio.Sequence) error {
		asset, err := readProduct(r)
		if err != nil {
			return err
		}
		if err := seq.SetProduct(asset); err != nil {
			return err
		}
		a.json(w, http.StatusOK, sessionView(id, seq.Snapshot()))
		return nil
	})
}

func (a *App) StudioClearProduct(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(id string, seq *studio.Sequence) error {
		if err := seq.ClearProduct(); err != nil {
			return err
		}
		a.json(w, http.StatusOK, sessionView(id, seq.Snapshot()))
		return nil
	})
}

func (a *App) StudioSetPrompt(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(id string, seq *studio.Sequence) error {
		var req promptRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		seq.SetPrompt(req.Prompt)
		a.json(w, http.StatusOK, sessionView(id, seq.Snapshot()))
		return nil
	})
}

// StudioStart checks the monthly allowance and launches the run in the
// background. Clients poll the session for progress. Starts are serialized per
// user so the check and the journal insert made by Begin happen together.
func (a *App) StudioStart(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.withSession(w, r, func(id string, seq *studio.Sequence) error {
		unlock := a.starts.lock(user.Sub)
		defer unlock()
		if err := a.checkMonthlyLimit(r, user, a.privilegesFor(r.Context(), user)); err != nil {
			return err
		}
		if err := a.Studios.Launch(r.Context(), user.Sub, id, a.RunTimeout); err != nil {
			return err
		}
		a.json(w, http.StatusAccepted, sessionView(id, seq.Snapshot()))
		return nil
	})
}

func (a *App) StudioReset(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(id string, seq *studio.Sequence) error {
		seq.Reset()
		a.json(w, http.StatusOK, sessionView(id, seq.Snapshot()))
		return nil
	})
}

func (a *App) StudioDelete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Studios.Delete(user.Sub, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StudioRuns lists the caller's journaled runs.
func (a *App) StudioRuns(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if a.Journal == nil {
		a.json(w, http.StatusOK, map[string]any{"runs": []journal.Run{}})
		return
	}
	runs, err := a.Journal.Recent(r.Context(), user.Sub, queryInt(r, "limit", 20))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	a.json(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *App) withSession(w http.ResponseWriter, r *http.Request, fn func(id string, seq *studio.Sequence) error) {
	user, err := currentUser(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	seq, err := a.Studios.Get(user.Sub, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := fn(id, seq); err != nil {
		a.fail(w, r, err)
	}
}

func sessionView(id string, snap studio.Snapshot) sessionResponse {
	return sessionResponse{ID: id, Snapshot: snap, CanStart: snap.CanStart(), Step: snap.StepLabel()}
}

func (a *App) transitionLogger(sessionID string) studio.Observer {
	logger := a.log().With().Str("session_id", sessionID).Logger()
	return studio.ObserverFunc(func(_ context.Context, ev studio.Event) {
		evt := logger.Info()
		if ev.Kind == studio.EventSaveFailed {
			evt = logger.Warn().Err(ev.Err)
		}
		evt.Int("run", ev.Run).
			Str("event", string(ev.Kind)).
			Str("status", string(ev.To)).
			Msg("studio event")
	})
}

func readProduct(r *http.Request) (domain.ProductAsset, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxProductBytes); err != nil {
			return domain.ProductAsset{}, domain.Invalid("file", "invalid upload")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return domain.ProductAsset{}, domain.Invalid("file", "file is required")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxProductBytes+1))
		if err != nil {
			return domain.ProductAsset{}, domain.Invalid("file", "could not read upload")
		}
		if len(data) > maxProductBytes {
			return domain.ProductAsset{}, domain.Invalid("file", "product image is too large")
		}
		mime := header.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(data)
		}
		if !strings.HasPrefix(mime, "image/") {
			return domain.ProductAsset{}, domain.Invalid("file", "product must be an image")
		}
		return domain.ProductAsset{MIMEType: mime, Data: data}, nil
	}

	var req productRequest
	if err := decodeLimit(r, &req, maxProductBytes*2); err != nil {
		return domain.ProductAsset{}, err
	}
	asset, err := domain.ParseDataURL(req.DataURL)
	if err != nil {
		return domain.ProductAsset{}, domain.Invalid("data_url", "data_url must be a base64 image data URL")
	}
	if len(asset.Data) > maxProductBytes {
		return domain.ProductAsset{}, domain.Invalid("data_url", "product image is too large")
	}
	return asset, nil
}

// monthlyUsage counts the caller's studio runs this month that did not fail,
// including runs still in flight. ok is false when no journal is configured or
// the count failed.
func (a *App) monthlyUsage(r *http.Request, user *domain.User) (int, bool) {
	if a.Journal == nil {
		return 0, false
	}
	n, err := a.Journal.CountRunsSince(r.Context(), user.Sub, journal.MonthStart(a.clock()))
	if err != nil {
		a.log().Warn().Err(err).Str("user", user.Sub).Msg("usage lookup failed")
		return 0, false
	}
	return n, true
}

// checkMonthlyLimit refuses work once a limited account has used its monthly
// allowance. Unlimited accounts and deployments without a journal pass.
func (a *App) checkMonthlyLimit(r *http.Request, user *domain.User, priv domain.Privileges) error {
	if priv.UnlimitedGenerations || priv.MaxGenerationsPerMonth == domain.UnlimitedGenerations {
		return nil
	}
	used, ok := a.monthlyUsage(r, user)
	if !ok {
		return nil
	}
	if used >= priv.MaxGenerationsPerMonth {
		return domain.ErrQuotaExceeded
	}
	return nil
}
