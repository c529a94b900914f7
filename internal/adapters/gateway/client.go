package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/bnema/sessionkit/internal/logging"
	"github.com/bnema/sessionkit/internal/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL  = "/api"
	DefaultTokenKey = "auth_token"

	tracerName = "github.com/bnema/sessionkit/gateway"
)

// TokenProvider yields the bearer token for the next request. An empty token
// means the Authorization header is left out.
type TokenProvider func(ctx context.Context) (string, error)

// ResponseErrorFunc is called with the status and body text of every non-2xx
// response before the request fails.
type ResponseErrorFunc func(status int, body string)

// Config is owned by one Client. Zero fields fall back to defaults.
type Config struct {
	BaseURL         string
	TokenProvider   TokenProvider
	OnResponseError ResponseErrorFunc
	HTTPClient      *http.Client
	Logger          logging.Logger
	Tracer          trace.Tracer
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Client performs one-shot JSON exchanges against BaseURL.
type Client struct {
	mu  sync.RWMutex
	cfg Config
}

var _ ports.Requester = (*Client)(nil)

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Configure shallow-merges the non-zero fields of patch into the current
// configuration. Last writer wins per field.
func (c *Client) Configure(patch Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if patch.BaseURL != "" {
		c.cfg.BaseURL = patch.BaseURL
	}
	if patch.TokenProvider != nil {
		c.cfg.TokenProvider = patch.TokenProvider
	}
	if patch.OnResponseError != nil {
		c.cfg.OnResponseError = patch.OnResponseError
	}
	if patch.HTTPClient != nil {
		c.cfg.HTTPClient = patch.HTTPClient
	}
	if patch.Logger != nil {
		c.cfg.Logger = patch.Logger
	}
	if patch.Tracer != nil {
		c.cfg.Tracer = patch.Tracer
	}
}

// Config returns a copy of the current configuration.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// BaseURL returns the configured base URL or DefaultBaseURL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cfg.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.cfg.BaseURL
}

func (c *Client) Get(ctx context.Context, path string) (any, error) {
	return c.decodeAny(ctx, http.MethodGet, path, nil, false)
}

// Post sends body as JSON. A nil body sends no request body at all.
func (c *Client) Post(ctx context.Context, path string, body any) (any, error) {
	return c.decodeAny(ctx, http.MethodPost, path, body, false)
}

// Put sends body as JSON. A nil body sends no request body at all.
func (c *Client) Put(ctx context.Context, path string, body any) (any, error) {
	return c.decodeAny(ctx, http.MethodPut, path, body, false)
}

// Patch always serializes body; nil is sent as JSON null.
func (c *Client) Patch(ctx context.Context, path string, body any) (any, error) {
	return c.decodeAny(ctx, http.MethodPatch, path, body, true)
}

func (c *Client) Delete(ctx context.Context, path string) (any, error) {
	return c.decodeAny(ctx, http.MethodDelete, path, nil, false)
}

// Do performs the exchange and decodes a non-empty response body into out.
// out may be nil to discard the body. It reports whether a body was present.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) (bool, error) {
	data, err := c.exchange(ctx, method, path, body, body != nil)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return true, nil
}

func (c *Client) decodeAny(ctx context.Context, method, path string, body any, alwaysSendBody bool) (any, error) {
	data, err := c.exchange(ctx, method, path, body, alwaysSendBody || body != nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) exchange(ctx context.Context, method, path string, body any, sendBody bool) ([]byte, error) {
	cfg := c.Config()
	logger := logging.OrNop(cfg.Logger)
	url := c.BaseURL() + path

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, "gateway "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", url),
		),
	)
	defer span.End()

	var reader io.Reader
	if sendBody {
		payload, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "encode request body")
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create request")
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.token(ctx, cfg, logger); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger.Debugf("gateway: %s %s", method, url)

	resp, err := httpClient(cfg).Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		text := responseText(resp)
		if cfg.OnResponseError != nil {
			cfg.OnResponseError(resp.StatusCode, text)
		}
		httpErr := &HTTPError{Status: resp.StatusCode, Body: text}
		span.SetStatus(codes.Error, httpErr.Error())
		logger.Debugf("gateway: %s %s failed with status %d", method, url, resp.StatusCode)
		return nil, httpErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read response body")
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	return data, nil
}

func (c *Client) token(ctx context.Context, cfg Config, logger logging.Logger) string {
	if cfg.TokenProvider == nil {
		return ""
	}

	token, err := cfg.TokenProvider(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			logger.Debugf("gateway: token provider failed: %v", err)
		}
		return ""
	}
	return token
}

func responseText(resp *http.Response) string {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return http.StatusText(resp.StatusCode)
	}
	return string(data)
}

func httpClient(cfg Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return http.DefaultClient
}

// StorageTokenProvider reads the bearer token from storage under key on every
// request. An empty key means DefaultTokenKey.
func StorageTokenProvider(storage ports.Storage, key string) TokenProvider {
	if key == "" {
		key = DefaultTokenKey
	}
	return func(ctx context.Context) (string, error) {
		if storage == nil {
			return "", nil
		}
		return storage.Get(ctx, key)
	}
}

// StaticTokenProvider always yields token.
func StaticTokenProvider(token string) TokenProvider {
	return func(context.Context) (string, error) {
		return token, nil
	}
}
