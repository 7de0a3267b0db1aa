package apiclient

import (
	"context"
	"net/http"
	"strings"

	"personastudio/internal/domain"
)

func (c *Client) EnhancePrompt(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.Invalid("prompt", "prompt is required")
	}
	var out EnhanceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/enhance-prompt", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OptimizeKontextPrompt rewrites an edit instruction for the diffusion editor.
func (c *Client) OptimizeKontextPrompt(ctx context.Context, req EnhanceRequest) (*OptimizeResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.Invalid("prompt", "prompt is required")
	}
	var out OptimizeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/optimize-kontext-prompt", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateCharacterPrompt(ctx context.Context, req CharacterPromptRequest) (*CharacterPromptResponse, error) {
	var out CharacterPromptResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/character-prompt", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SurprisePrompt asks the API for a random inspiration prompt.
func (c *Client) SurprisePrompt(ctx context.Context) (string, error) {
	var out struct {
		Prompt string `json:"prompt"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/surprise-prompt", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Prompt, nil
}
