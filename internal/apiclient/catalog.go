package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"personastudio/internal/domain"
)

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListModels(ctx context.Context) (*ModelsResponse, error) {
	var out ModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/models", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPublicGenerations pages through the public marketplace. An empty cursor
// starts from the beginning; the returned NextCursor is empty on the last page.
func (c *Client) ListPublicGenerations(ctx context.Context, limit int, cursor string) (*domain.GenerationPage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("last_key", cursor)
	}
	var out generationListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/explore", query, nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, unsuccessful(out.Error, "Failed to load public generations")
	}
	items := out.Generations
	if items == nil {
		items = []domain.Generation{}
	}
	return &domain.GenerationPage{Items: items, NextCursor: out.LastKey, Count: len(items)}, nil
}
