// Package apiclient talks to the remote inference and image-composition API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"personastudio/internal/domain"
	"personastudio/internal/infra"
)

const (
	defaultBaseURL  = "http://localhost:5000"
	defaultEditPath = "/api/image/flux"
)

// Options configures the remote API client.
type Options struct {
	BaseURL        string
	EditPath       string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the remote API. Every method is a single
// attempt; retry policy belongs to callers.
type Client struct {
	baseURL    string
	editPath   string
	httpClient *http.Client
	logger     *infra.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base url %q", opts.BaseURL)
	}
	editPath := strings.TrimSpace(opts.EditPath)
	if editPath == "" {
		editPath = defaultEditPath
	}
	if !strings.HasPrefix(editPath, "/") {
		editPath = "/" + editPath
	}
	return &Client{
		baseURL:    baseURL,
		editPath:   editPath,
		httpClient: httpClient,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.RemoteError{Err: fmt.Errorf("apiclient: %s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Status: resp.StatusCode, Err: fmt.Errorf("apiclient: read response: %w", err)}
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("apiclient: call")

	if resp.StatusCode >= 300 {
		return decodeRemoteError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.RemoteError{Status: resp.StatusCode, Err: fmt.Errorf("apiclient: decode response: %w", err)}
	}
	return nil
}

func decodeRemoteError(status int, raw []byte) error {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		if detail.Error != "" {
			return domain.NewRemoteError(status, detail.Error)
		}
		if detail.Message != "" {
			return domain.NewRemoteError(status, detail.Message)
		}
	}
	return domain.NewRemoteError(status, "")
}

func unsuccessful(message, fallback string) error {
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return &domain.UnsuccessfulError{Message: message}
}

// FetchImage downloads the bytes behind an image reference. Data URLs are
// decoded locally.
func (c *Client) FetchImage(ctx context.Context, ref string) ([]byte, string, error) {
	if asset, err := domain.ParseDataURL(ref); err == nil {
		return asset.Data, asset.MIMEType, nil
	}
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("apiclient: invalid image url: %s", ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("apiclient: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &domain.RemoteError{Err: fmt.Errorf("apiclient: download image: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", domain.NewRemoteError(resp.StatusCode, "")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("apiclient: read image: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = http.DetectContentType(data)
	}
	return data, format, nil
}

// IsRemote reports whether err came from the remote API rather than local validation.
func IsRemote(err error) bool {
	return errors.Is(err, domain.ErrRemoteRequestFailed) || errors.Is(err, domain.ErrRemoteOperationUnsuccessful)
}
