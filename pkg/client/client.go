// Package client provides the request pipeline every upstream call passes
// through: GET deduplication, a failed-endpoint circuit breaker, global rate
// limiting with a shared 429 gate, and retries for 429 and transport errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/vrc-api-client/pkg/logging"
	"github.com/Sternrassler/vrc-api-client/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the upstream API root.
const DefaultBaseURL = "https://api.vrchat.cloud/api/1"

// Client is the request pipeline. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Tracker
	pending    *pendingTable
	breaker    *breaker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is prepended to every endpoint
	BaseURL string

	// User-Agent header (REQUIRED by the upstream API)
	// Format: "AppName/Version (contact)"
	UserAgent string

	// Timeout is the per-attempt transport timeout
	Timeout time.Duration

	// Retry
	MaxAttempts int           // Attempts per logical call, including the first
	BaseBackoff time.Duration // Sleep before retry n is BaseBackoff * 2^n

	// Rate Limiting
	RateLimit         int           // Dispatches per RateWindow
	RateWindow        time.Duration // Rolling window length
	MinSpacing        time.Duration // Minimum gap between dispatches
	DefaultRetryAfter time.Duration // 429 cooldown when Retry-After is missing
	RetryAfterPadding time.Duration // Added to every 429 cooldown

	// Deduplication and circuit breaker
	PendingTTL time.Duration // Age after which an in-flight GET is not joined
	FailedTTL  time.Duration // How long a 403/404 suppresses GETs to an endpoint

	// Cookies
	SessionCookies []string   // Names handed to CookieSink; empty hands off all
	CookieSink     CookieSink // Optional receiver for session cookies

	// HTTPClient overrides the transport (optional)
	HTTPClient *http.Client
}

// DefaultConfig returns the upstream API's published limits.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         userAgent,
		Timeout:           30 * time.Second,
		MaxAttempts:       5,
		BaseBackoff:       1 * time.Second,
		RateLimit:         ratelimit.DefaultLimit,
		RateWindow:        ratelimit.DefaultInterval,
		MinSpacing:        ratelimit.DefaultMinSpacing,
		DefaultRetryAfter: ratelimit.DefaultRetryAfter,
		RetryAfterPadding: ratelimit.DefaultRetryAfterPadding,
		PendingTTL:        10 * time.Second,
		FailedTTL:         900 * time.Second,
		SessionCookies:    append([]string(nil), DefaultSessionCookies...),
	}
}

// New creates a new client. Zero-valued fields take their DefaultConfig value.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	cfg = cfg.withDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.MaxAttempts)
	}
	if cfg.RateLimit < 1 {
		return nil, fmt.Errorf("rate_limit must be >= 1 (got %d)", cfg.RateLimit)
	}
	for name, d := range map[string]time.Duration{
		"timeout":             cfg.Timeout,
		"base_backoff":        cfg.BaseBackoff,
		"rate_window":         cfg.RateWindow,
		"min_spacing":         cfg.MinSpacing,
		"default_retry_after": cfg.DefaultRetryAfter,
		"retry_after_padding": cfg.RetryAfterPadding,
		"pending_ttl":         cfg.PendingTTL,
		"failed_ttl":          cfg.FailedTTL,
	} {
		if d < 0 {
			return nil, fmt.Errorf("%s must not be negative (got %v)", name, d)
		}
	}

	logger := logging.NewLogger("api-client")

	limiter := ratelimit.NewTracker(ratelimit.Config{
		Limit:             cfg.RateLimit,
		Interval:          cfg.RateWindow,
		MinSpacing:        cfg.MinSpacing,
		DefaultRetryAfter: cfg.DefaultRetryAfter,
		RetryAfterPadding: cfg.RetryAfterPadding,
	}, logging.NewLogger("ratelimit"))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Int("rate_limit", cfg.RateLimit).
		Dur("rate_window", cfg.RateWindow).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("API client initialized")

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    limiter,
		pending:    newPendingTable(cfg.PendingTTL),
		breaker:    newBreaker(cfg.FailedTTL),
		config:     cfg,
		logger:     logger,
	}, nil
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig(cfg.UserAgent)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.MinSpacing == 0 {
		cfg.MinSpacing = def.MinSpacing
	}
	if cfg.DefaultRetryAfter == 0 {
		cfg.DefaultRetryAfter = def.DefaultRetryAfter
	}
	if cfg.RetryAfterPadding == 0 {
		cfg.RetryAfterPadding = def.RetryAfterPadding
	}
	if cfg.PendingTTL == 0 {
		cfg.PendingTTL = def.PendingTTL
	}
	if cfg.FailedTTL == 0 {
		cfg.FailedTTL = def.FailedTTL
	}
	if cfg.SessionCookies == nil {
		cfg.SessionCookies = def.SessionCookies
	}
	return cfg
}

// Options carries the per-call parts of a request.
type Options struct {
	// Query parameters
	Query url.Values

	// Headers added to the request (User-Agent and Accept are set by the client)
	Headers http.Header

	// Body is nil, []byte, string, or any JSON-encodable value. It is encoded
	// once and re-sent verbatim on every attempt.
	Body any

	// Cookies sent with the request
	Cookies []*http.Cookie
}

// request is a prepared logical call.
type request struct {
	method   string
	endpoint string
	url      string
	key      string
	header   http.Header
	body     []byte
	cookies  []*http.Cookie
}

func (c *Client) prepare(method, endpoint string, opts *Options) (*request, error) {
	if opts == nil {
		opts = &Options{}
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	req := &request{
		method:   method,
		endpoint: endpoint,
		key:      RequestKey{Method: method, Endpoint: endpoint, Query: opts.Query}.String(),
		header:   make(http.Header),
		cookies:  opts.Cookies,
	}

	req.url = c.baseURL + endpoint
	if len(opts.Query) > 0 {
		req.url += "?" + opts.Query.Encode()
	}

	for name, values := range opts.Headers {
		for _, v := range values {
			req.header.Add(name, v)
		}
	}
	req.header.Set("User-Agent", c.config.UserAgent)
	req.header.Set("Accept", "application/json")

	switch body := opts.Body.(type) {
	case nil:
	case []byte:
		req.body = body
	case string:
		req.body = []byte(body)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %w", ErrInvalidRequest, err)
		}
		req.body = data
	}
	if req.body != nil && req.header.Get("Content-Type") == "" {
		req.header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// roundTrip performs one HTTP call and buffers the response.
func (c *Client) roundTrip(ctx context.Context, req *request) (*Response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = req.header.Clone()
	for _, ck := range req.cookies {
		httpReq.AddCookie(ck)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	requestDuration.WithLabelValues(req.method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		Cookies:    httpResp.Cookies(),
		Method:     req.method,
		Endpoint:   req.endpoint,
	}, nil
}

func (c *Client) handOffCookies(cookies []*http.Cookie) {
	if c.config.CookieSink == nil || len(cookies) == 0 {
		return
	}
	session := sessionCookies(cookies, c.config.SessionCookies)
	if len(session) == 0 {
		return
	}
	c.config.CookieSink.HandleCookies(session)
}

// Dispatch sends one logical request through the pipeline.
//
// GET calls are deduplicated by method, endpoint and canonical query, and
// rejected without I/O while the endpoint has a recent 403/404 on record.
// The shared upstream call is detached from any single caller's context;
// each caller stops waiting when its own ctx ends. Other methods run once
// per call under the caller's ctx.
//
// Statuses other than 429 are returned untouched; use CheckStatus to turn
// non-2xx responses into errors.
func (c *Client) Dispatch(ctx context.Context, method, endpoint string, opts *Options) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	req, err := c.prepare(method, endpoint, opts)
	if err != nil {
		return nil, c.fail(&APIError{Class: ErrorClassRequest, Method: method, Endpoint: endpoint, Err: err})
	}

	if method != http.MethodGet {
		return c.execute(ctx, req)
	}
	return c.dispatchGet(ctx, req)
}

func (c *Client) dispatchGet(ctx context.Context, req *request) (*Response, error) {
	if c.breaker.suppressed(req.endpoint) {
		breakerSuppressedTotal.Inc()
		c.logger.Debug().Str("endpoint", req.endpoint).Msg("Skipping recently failed endpoint")
		return nil, c.fail(&APIError{
			Class:    ErrorClassCircuitBreaker,
			Method:   req.method,
			Endpoint: req.endpoint,
			Err:      ErrCircuitBreakerSuppressed,
		})
	}

	shared := context.WithoutCancel(ctx)
	ch, joined := c.pending.do(req.key, func() (*Response, error) {
		resp, err := c.execute(shared, req)
		if err == nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound) {
			c.breaker.record(req.endpoint)
			breakerRecordsTotal.Inc()
			c.logger.Debug().
				Str("endpoint", req.endpoint).
				Int("status", resp.StatusCode).
				Msg("Recorded failed endpoint")
		}
		return resp, err
	})
	if joined {
		dedupJoinsTotal.Inc()
		c.logger.Debug().Str("key", req.key).Msg("Merging duplicate request")
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Response).clone(), nil
	case <-ctx.Done():
		return nil, c.cancelled(req, 0, ctx.Err())
	}
}

// Get dispatches a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return c.Dispatch(ctx, http.MethodGet, endpoint, &Options{Query: query})
}

// Post dispatches a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Dispatch(ctx, http.MethodPost, endpoint, &Options{Body: body})
}

// Put dispatches a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Dispatch(ctx, http.MethodPut, endpoint, &Options{Body: body})
}

// Delete dispatches a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Dispatch(ctx, http.MethodDelete, endpoint, nil)
}

// RateLimitState returns a snapshot of the shared throttling state.
func (c *Client) RateLimitState() ratelimit.State {
	return c.limiter.State()
}

// PendingRequests returns the number of GETs currently registered as in flight.
func (c *Client) PendingRequests() int {
	return c.pending.len()
}

// FailedEndpoints returns the number of endpoints with a 403/404 on record,
// including records that have expired but not yet been read.
func (c *Client) FailedEndpoints() int {
	return c.breaker.len()
}

// ForgetFailure clears the failed-endpoint record for endpoint.
func (c *Client) ForgetFailure(endpoint string) {
	c.breaker.forget(endpoint)
}

// ResetFailures clears every failed-endpoint record, e.g. after login.
func (c *Client) ResetFailures() {
	c.breaker.reset()
	c.logger.Info().Msg("Failed endpoint records cleared")
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
