package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"personastudio/internal/domain"
	"personastudio/internal/export"
	"personastudio/internal/generations"
)

type generationPageResponse struct {
	Success     bool                `json:"success"`
	Generations []domain.Generation `json:"generations"`
	Count       int                 `json:"count"`
	LastKey     string              `json:"last_key,omitempty"`
}

func pageResponse(page *domain.GenerationPage) generationPageResponse {
	items := page.Items
	if items == nil {
		items = []domain.Generation{}
	}
	return generationPageResponse{Success: true, Generations: items, Count: len(items), LastKey: page.NextCursor}
}

type storeGenerationRequest struct {
	Prompt         string         `json:"prompt"`
	EnhancedPrompt string         `json:"enhanced_prompt"`
	ImageModel     string         `json:"image_model"`
	LLMModel       string         `json:"llm_model"`
	ImageData      string         `json:"image_data"`
	CharacterData  map[string]any `json:"character_data"`
}

func (a *App) GenerationsList(w http.ResponseWriter, r *http.Request) {
	page, err := a.Gallery.List(r.Context(), queryInt(r, "limit", 20), r.URL.Query().Get("last_key"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, pageResponse(page))
}

func (a *App) GenerationsStore(w http.ResponseWriter, r *http.Request) {
	var req storeGenerationRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.ImageData) == "" {
		a.fail(w, r, domain.Invalid("image_data", "image_data is required"))
		return
	}
	if _, payload, ok := domain.SplitDataURL(req.ImageData); ok {
		req.ImageData = payload
	}
	saved, err := a.Gallery.Store(r.Context(), generations.StoreRequest{
		Prompt:         req.Prompt,
		EnhancedPrompt: req.EnhancedPrompt,
		ImageModel:     req.ImageModel,
		LLMModel:       req.LLMModel,
		ImageData:      req.ImageData,
		CharacterData:  req.CharacterData,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, saved)
}

func (a *App) GenerationsGet(w http.ResponseWriter, r *http.Request) {
	gen, err := a.Gallery.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, gen)
}

func (a *App) GenerationsDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.Gallery.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) GenerationsPublish(w http.ResponseWriter, r *http.Request) {
	if err := a.Gallery.Publish(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, messageResponse{Success: true, Message: "Generation published"})
}

func (a *App) GenerationsUnpublish(w http.ResponseWriter, r *http.Request) {
	if err := a.Gallery.Unpublish(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, messageResponse{Success: true, Message: "Generation unpublished"})
}

func (a *App) UserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Gallery.Stats(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

// GenerationsExport returns the caller's gallery as a zip archive.
func (a *App) GenerationsExport(w http.ResponseWriter, r *http.Request) {
	res, err := export.Gallery(r.Context(), a.Gallery, a.API, export.Options{
		Limit:       a.ExportLimit,
		Concurrency: a.ExportConcurrency,
		Logger:      a.Logger,
	})
	if errors.Is(err, export.ErrEmpty) {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(a.clock())))
	w.Header().Set("X-Export-Skipped", strconv.Itoa(res.Skipped))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Archive)
}
