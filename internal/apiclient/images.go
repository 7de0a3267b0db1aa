package apiclient

import (
	"context"
	"net/http"
	"strings"

	"personastudio/internal/domain"
)

// MergeImages composites the left and right images onto one canvas. A
// response with success=false is reported as domain.ErrRemoteOperationUnsuccessful.
func (c *Client) MergeImages(ctx context.Context, req MergeRequest) (*MergeResponse, error) {
	if strings.TrimSpace(req.LeftURL) == "" {
		return nil, domain.Invalid("left_url", "left image is required for merge")
	}
	if strings.TrimSpace(req.RightURL) == "" {
		return nil, domain.Invalid("right_url", "right image is required for merge")
	}
	var out MergeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/image/merge", nil, req, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.MergedImage == "" {
		return nil, unsuccessful(out.Error, "Failed to merge images")
	}
	c.logger.Debug().Int("width", out.Width).Int("height", out.Height).Msg("apiclient: merged images")
	return &out, nil
}

// EditImage runs the diffusion edit. The response is returned as received,
// including success=false, so callers decide how to treat a soft failure.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*EditResponse, error) {
	if strings.TrimSpace(req.InputImage) == "" {
		return nil, domain.Invalid("input_image", "input image is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.Invalid("prompt", "prompt is required")
	}
	var out EditResponse
	if err := c.doJSON(ctx, http.MethodPost, c.editPath, nil, req, &out); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Bool("success", out.Success).
		Str("model", out.Model).
		Str("request_id", out.RequestID).
		Msg("apiclient: edited image")
	return &out, nil
}

// GenerateImage renders a single image from a text prompt.
func (c *Client) GenerateImage(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.Invalid("prompt", "prompt is required")
	}
	var out GenerateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate", nil, req, &out); err != nil {
		return nil, err
	}
	if !out.Success && out.Image == "" {
		return nil, unsuccessful(out.Error, "Image generation failed")
	}
	return &out, nil
}
