// Package generations reads and writes the signed-in user's gallery on the
// storage backend.
package generations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"personastudio/internal/domain"
	"personastudio/internal/identity"
	"personastudio/internal/infra"
)

// Options configures the storage client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client calls the storage endpoints on behalf of the current user. Every call
// checks for a session first and never reaches the network without one.
type Client struct {
	baseURL    string
	auth       identity.Authenticator
	httpClient *http.Client
	logger     *infra.Logger
}

// StoreRequest is a finished image to add to the gallery. ImageData is the raw
// base64 payload without a data URL prefix.
type StoreRequest struct {
	Prompt         string         `json:"prompt"`
	EnhancedPrompt string         `json:"enhanced_prompt,omitempty"`
	ImageModel     string         `json:"image_model"`
	LLMModel       string         `json:"llm_model,omitempty"`
	ImageData      string         `json:"image_data"`
	CharacterData  map[string]any `json:"character_data,omitempty"`
}

type envelope struct {
	Success    *bool              `json:"success"`
	Error      string             `json:"error,omitempty"`
	Generation *domain.Generation `json:"generation,omitempty"`
}

func NewClient(opts Options, auth identity.Authenticator) (*Client, error) {
	if auth == nil {
		return nil, fmt.Errorf("generations: authenticator is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("generations: base url is required")
	}
	return &Client{
		baseURL:    baseURL,
		auth:       auth,
		httpClient: httpClient,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Store adds a generation and returns its identifier and public image URL.
func (c *Client) Store(ctx context.Context, req StoreRequest) (*domain.SavedGeneration, error) {
	if strings.TrimSpace(req.ImageData) == "" {
		return nil, domain.Invalid("image_data", "image data is required")
	}
	var out struct {
		envelope
		GenerationID string `json:"generation_id"`
		ImageURL     string `json:"image_url"`
		CreatedAt    string `json:"created_at"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/store-generation", nil, req, &out); err != nil {
		return nil, err
	}
	if err := out.check("Failed to store generation"); err != nil {
		return nil, err
	}
	c.logger.Info().Str("generation_id", out.GenerationID).Str("image_model", req.ImageModel).Msg("generations: stored")
	return &domain.SavedGeneration{ID: out.GenerationID, ImageURL: out.ImageURL, CreatedAt: out.CreatedAt}, nil
}

// List returns one page of the user's generations. An empty cursor starts at
// the most recent; NextCursor is empty on the last page.
func (c *Client) List(ctx context.Context, pageSize int, cursor string) (*domain.GenerationPage, error) {
	query := url.Values{}
	if pageSize > 0 {
		query.Set("limit", strconv.Itoa(pageSize))
	}
	if cursor != "" {
		query.Set("last_key", cursor)
	}
	var out struct {
		envelope
		Generations []domain.Generation `json:"generations"`
		LastKey     string              `json:"last_key"`
		Count       int                 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/generations", query, nil, &out); err != nil {
		return nil, err
	}
	if err := out.check("Failed to load generations"); err != nil {
		return nil, err
	}
	items := out.Generations
	if items == nil {
		items = []domain.Generation{}
	}
	count := out.Count
	if count == 0 {
		count = len(items)
	}
	return &domain.GenerationPage{Items: items, NextCursor: out.LastKey, Count: count}, nil
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Generation, error) {
	path, err := generationPath(id, "")
	if err != nil {
		return nil, err
	}
	var out envelope
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if err := out.check("Generation not found"); err != nil {
		return nil, err
	}
	if out.Generation == nil {
		return nil, domain.ErrNotFound
	}
	return out.Generation, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.mutate(ctx, http.MethodDelete, id, "", "Failed to delete generation")
}

// Publish lists the generation on the public marketplace.
func (c *Client) Publish(ctx context.Context, id string) error {
	return c.mutate(ctx, http.MethodPost, id, "publish", "Failed to publish generation")
}

func (c *Client) Unpublish(ctx context.Context, id string) error {
	return c.mutate(ctx, http.MethodPost, id, "unpublish", "Failed to unpublish generation")
}

func (c *Client) Stats(ctx context.Context) (*domain.GenerationStats, error) {
	var out struct {
		envelope
		Stats domain.GenerationStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	if err := out.check("Failed to load stats"); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

func (c *Client) mutate(ctx context.Context, method, id, action, fallback string) error {
	path, err := generationPath(id, action)
	if err != nil {
		return err
	}
	var out envelope
	if err := c.do(ctx, method, path, nil, nil, &out); err != nil {
		return err
	}
	return out.check(fallback)
}

func (e envelope) check(fallback string) error {
	if e.Success != nil && !*e.Success {
		msg := e.Error
		if msg == "" {
			msg = fallback
		}
		return &domain.UnsuccessfulError{Message: msg}
	}
	return nil
}

func generationPath(id, action string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.Invalid("generation_id", "generation id is required")
	}
	path := "/api/generations/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	user, err := c.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("generations: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("generations: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-User-ID", user.Sub)
	req.Header.Set("X-User-Email", user.Email)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.RemoteError{Err: fmt.Errorf("generations: %s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Status: resp.StatusCode, Err: fmt.Errorf("generations: read response: %w", err)}
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, remoteMessage(resp.StatusCode, raw))
	}
	if resp.StatusCode >= 300 {
		return domain.NewRemoteError(resp.StatusCode, remoteMessage(resp.StatusCode, raw))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.RemoteError{Status: resp.StatusCode, Err: fmt.Errorf("generations: decode response: %w", err)}
	}
	return nil
}

func remoteMessage(status int, raw []byte) string {
	var detail struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil {
		if detail.Error != "" {
			return detail.Error
		}
		if detail.Message != "" {
			return detail.Message
		}
	}
	return fmt.Sprintf("HTTP request failed with status %d", status)
}
