// Package client is the HTTP boundary of the storefront and admin front
// ends. It injects the bearer token, turns error responses into typed
// errors and normalizes the backend's field names before decoding.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/config"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL    string
	http       HTTPClient
	tokens     TokenStore
	normalizer *Normalizer
	logger     *zap.Logger

	mu             sync.Mutex
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithNormalizer(n *Normalizer) Option {
	return func(c *Client) { c.normalizer = n }
}

func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       http.DefaultClient,
		tokens:     tokens,
		normalizer: DefaultNormalizer(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func NewFromConfig(cfg config.ClientConfig, tokens TokenStore, opts ...Option) *Client {
	opts = append([]Option{WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}, opts...)
	return New(cfg.BaseURL, tokens, opts...)
}

// OnUnauthorized registers fn to run when a request carrying a token is
// rejected with 401. Requests sent without a token never trigger it, so a
// burst of failing polls navigates to the login screen only once.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) Tokens() TokenStore {
	return c.tokens
}

func (c *Client) Authenticated() bool {
	return c.tokens.Token() != ""
}

type request struct {
	method string
	path   string
	body   any
	header http.Header
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	raw, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := c.normalizer.Decode(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.header {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	token := c.tokens.Token()
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.method, req.path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.unauthorized(token)
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, raw)
		c.logger.Debug("api error",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return nil, apiErr
	}

	return raw, nil
}

// unauthorized drops the token that was rejected. Concurrent 401s for the
// same token fire the hook once.
func (c *Client) unauthorized(sent string) {
	if sent == "" {
		return
	}

	c.mu.Lock()
	if c.tokens.Token() != sent {
		c.mu.Unlock()
		return
	}
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("clear token", zap.Error(err))
	}
	fn := c.onUnauthorized
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}

	var body struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		apiErr.Fields = body.Errors
	}
	return apiErr
}
