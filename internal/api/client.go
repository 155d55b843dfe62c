// Package api implements the HTTP client for the dashboard backend and the
// standalone forecast service. All outbound requests go through one Client
// so that bearer-token injection and error normalization happen in exactly
// one place.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hearthlabs/homeboard/internal/domain"
	"github.com/hearthlabs/homeboard/pkg/logger"
)

// TokenSource supplies the persisted bearer token and clears it when the
// backend reports the session invalid.
type TokenSource interface {
	Token() (string, bool)
	Clear() error
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the dashboard backend origin, e.g. http://localhost:8000.
	BaseURL string
	// ForecastURL is the origin of the history/predict service. Defaults
	// to BaseURL when empty.
	ForecastURL string
	// Tokens provides the session token. May be nil for unauthenticated use.
	Tokens TokenSource
	// HTTPClient overrides the default 10s-timeout client.
	HTTPClient *http.Client
	Log        *logger.Logger
}

// Client is the single outbound HTTP gateway.
type Client struct {
	baseURL     string
	forecastURL string
	tokens      TokenSource
	httpClient  *http.Client
	log         *logger.Logger
	clock       func() time.Time
}

// New creates a client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault("api")
	}
	forecastURL := cfg.ForecastURL
	if forecastURL == "" {
		forecastURL = cfg.BaseURL
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		forecastURL: strings.TrimSuffix(forecastURL, "/"),
		tokens:      cfg.Tokens,
		httpClient:  httpClient,
		log:         log,
		clock:       time.Now,
	}, nil
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Auth returns the authentication service facet.
func (c *Client) Auth() *AuthService { return &AuthService{client: c} }

// Metrics returns the metrics service facet.
func (c *Client) Metrics() *MetricsService { return &MetricsService{client: c} }

// Dashboard returns the dashboard service facet.
func (c *Client) Dashboard() *DashboardService { return &DashboardService{client: c} }

// Settings returns the user settings service facet.
func (c *Client) Settings() *SettingsService { return &SettingsService{client: c} }

// Forecast returns the history/forecast service facet.
func (c *Client) Forecast() *ForecastService { return &ForecastService{client: c} }

// Assistant returns the chat assistant facet.
func (c *Client) Assistant() *AssistantService { return &AssistantService{client: c} }

// getJSON issues a GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(op, req, out)
}

// sendJSON issues a request with a JSON body and decodes the response into
// out when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, op, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(op, req, out)
}

// sendFile uploads a single file as multipart form field "file".
func (c *Client) sendFile(ctx context.Context, op, url, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doJSON(op, req, out)
}

func (c *Client) doJSON(op string, req *http.Request, out any) error {
	body, err := c.do(op, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes the request, attaches the bearer token, records metrics and
// normalizes every failure mode. A 401 clears the session before the error
// is propagated.
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := c.clock()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		norm := normalizeTransport(err)
		observeRequest(op, "transport", c.clock().Sub(start))
		c.log.WithError(err).WithField("op", op).Warn("request failed")
		return nil, norm
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observeRequest(op, "transport", c.clock().Sub(start))
		return nil, normalizeTransport(err)
	}
	observeRequest(op, fmt.Sprintf("%d", resp.StatusCode), c.clock().Sub(start))

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			if err := c.tokens.Clear(); err != nil {
				c.log.WithError(err).Warn("clear session after 401 failed")
			}
		}
		c.log.WithField("op", op).Warn("request unauthorized, session cleared")
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(resp.StatusCode, body)
		c.log.WithError(err).
			WithField("op", op).
			WithField("status", resp.StatusCode).
			Warn("request rejected")
		return nil, err
	}
	return body, nil
}

// rewriteMediaURL makes backend-relative upload paths absolute so they can
// be fetched directly. Anything that is not an uploads path passes through.
func (c *Client) rewriteMediaURL(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "/uploads/") {
		return c.baseURL + path
	}
	if strings.HasPrefix(path, "uploads/") {
		return c.baseURL + "/" + path
	}
	return path
}

// cacheBust appends a timestamp query parameter so a changed image is not
// served from a stale cache.
func (c *Client) cacheBust(url string) string {
	if url == "" {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%d", url, sep, c.clock().UnixMilli())
}

// rewriteUserMedia applies the media rewrite plus cache busting to both
// image fields of a user record.
func (c *Client) rewriteUserMedia(u *domain.User) {
	if u.AvatarURL != "" {
		u.AvatarURL = c.cacheBust(c.rewriteMediaURL(u.AvatarURL))
	}
	if u.BackgroundImage != "" {
		u.BackgroundImage = c.cacheBust(c.rewriteMediaURL(u.BackgroundImage))
	}
}
