package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// Client talks to the findings backend over its REST API. It implements the
// Source, Lister, Mutator, Exporter and SnippetProvider ports.
type Client struct {
	base   *url.URL
	http   *http.Client
	apiKey string
	log    *slog.Logger

	mu       sync.RWMutex
	products map[int64]string
}

// New builds an upstream client. Timeouts are transport-level: a slow call
// fails with a TransportError and the caller decides whether to retry.
func New(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url must be http(s), got %q", baseURL)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base:     u,
		http:     &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		log:      log,
		products: make(map[int64]string),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failure or transport timeout: retryable with the same cursor.
		return &domain.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.TransportError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &domain.ValidationError{Field: "request", Reason: strings.TrimSpace(string(msg))}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &domain.TransportError{Op: method + " " + path, Err: fmt.Errorf("upstream status %d", resp.StatusCode)}
	default:
		return fmt.Errorf("upstream %s %s: status %d", method, path, resp.StatusCode)
	}
}

// Ping probes the upstream API; used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}
