package handlers

import (
	"net/http"
	"strings"

	"personastudio/internal/apiclient"
	"personastudio/internal/domain"
	"personastudio/internal/prompts"
)

type imageGenerateRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	LLMModel string `json:"llm_model"`
}

// ImagesGenerate renders a persona image. Dimensions are clamped to the
// caller's maximum resolution and the prompt to the model's length limit.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req imageGenerateRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.fail(w, r, domain.Invalid("prompt", "prompt is required"))
		return
	}
	if req.Model == "" {
		req.Model = "titan-g1"
	}
	priv := a.privilegesFor(r.Context(), user)
	if err := a.checkMonthlyLimit(r, user, priv); err != nil {
		a.fail(w, r, err)
		return
	}

	resp, err := a.API.GenerateImage(r.Context(), apiclient.GenerateRequest{
		Prompt:   prompts.ForModel(strings.TrimSpace(req.Prompt), req.Model),
		Model:    req.Model,
		Width:    priv.ClampResolution(req.Width),
		Height:   priv.ClampResolution(req.Height),
		LLMModel: req.LLMModel,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !resp.Success || resp.Image == "" {
		msg := resp.Error
		if msg == "" {
			msg = "Failed to generate image"
		}
		a.fail(w, r, &domain.UnsuccessfulError{Message: msg})
		return
	}
	a.json(w, http.StatusOK, resp)
}
