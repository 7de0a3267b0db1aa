package handlers

import (
	"net/http"
	"strings"

	"personastudio/internal/apiclient"
	"personastudio/internal/domain"
	"personastudio/internal/prompts"
)

type promptRequest struct {
	Prompt   string `json:"prompt"`
	LLMModel string `json:"llm_model"`
}

type promptResponse struct {
	OriginalPrompt string `json:"original_prompt,omitempty"`
	Prompt         string `json:"prompt"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// PromptEnhance asks the remote LLM to enrich a prompt and falls back to
// local keywords when the remote call fails.
func (a *App) PromptEnhance(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.json(w, http.StatusOK, promptResponse{Prompt: prompts.DefaultPersonaPrompt, Fallback: true})
		return
	}
	resp, err := a.API.EnhancePrompt(r.Context(), apiclient.EnhanceRequest{Prompt: req.Prompt, LLMModel: req.LLMModel})
	if err != nil || strings.TrimSpace(resp.EnhancedPrompt) == "" {
		a.log().Warn().Err(err).Msg("enhance prompt failed; using local enhancement")
		a.json(w, http.StatusOK, promptResponse{
			OriginalPrompt: req.Prompt,
			Prompt:         prompts.LocalEnhance(req.Prompt, nil),
			Fallback:       true,
		})
		return
	}
	a.json(w, http.StatusOK, promptResponse{OriginalPrompt: resp.OriginalPrompt, Prompt: resp.EnhancedPrompt})
}

// PromptOptimize rewrites a prompt for the image editor. There is no local
// fallback.
func (a *App) PromptOptimize(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.fail(w, r, domain.Invalid("prompt", "prompt is required"))
		return
	}
	resp, err := a.API.OptimizeKontextPrompt(r.Context(), apiclient.EnhanceRequest{Prompt: req.Prompt, LLMModel: req.LLMModel})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, promptResponse{OriginalPrompt: resp.OriginalPrompt, Prompt: resp.OptimizedPrompt})
}

// PromptCharacter builds a prompt from character-builder selections.
func (a *App) PromptCharacter(w http.ResponseWriter, r *http.Request) {
	var req apiclient.CharacterPromptRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.API.GenerateCharacterPrompt(r.Context(), req)
	if err != nil || strings.TrimSpace(resp.GeneratedPrompt) == "" {
		a.log().Warn().Err(err).Msg("character prompt failed; using feature list")
		a.json(w, http.StatusOK, promptResponse{
			OriginalPrompt: req.BasePrompt,
			Prompt:         prompts.FeatureFallback(req.BasePrompt, req.CharacterFeatures),
			Fallback:       true,
		})
		return
	}
	a.json(w, http.StatusOK, promptResponse{OriginalPrompt: resp.BasePrompt, Prompt: resp.GeneratedPrompt})
}

// PromptSurprise returns a random inspiration prompt. kind=persona returns a
// short persona starter without calling the remote API.
func (a *App) PromptSurprise(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("kind") == "persona" {
		a.json(w, http.StatusOK, promptResponse{Prompt: prompts.PersonaIdea(nil)})
		return
	}
	text, err := a.API.SurprisePrompt(r.Context())
	if err != nil || strings.TrimSpace(text) == "" {
		a.log().Warn().Err(err).Msg("surprise prompt failed; using local list")
		a.json(w, http.StatusOK, promptResponse{Prompt: prompts.Surprise(nil), Fallback: true})
		return
	}
	a.json(w, http.StatusOK, promptResponse{Prompt: text})
}
