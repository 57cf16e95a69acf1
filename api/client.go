// Package api is the transport for the email-marketing list API: it posts
// form-encoded parameters to an endpoint and decodes the JSON envelope that
// every endpoint answers with.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foxzi/listctl/internal/metrics"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "listctl-go"
	maxResponseBytes = 10 << 20
)

// Sender sends one request to an endpoint and returns the decoded envelope.
// Resource clients depend on Sender so they can be tested with a stub.
type Sender interface {
	Send(ctx context.Context, endpoint string, params Params) (*Envelope, error)
}

// Client is the HTTP API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	recorder   Recorder
	metrics    *metrics.ClientMetrics
	registerer prometheus.Registerer
}

// Option configures the API client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for per-call logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRecorder sets a Recorder notified after each call.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithMetrics registers request counters and latency histograms on reg.
// Clients sharing a registerer share the collectors.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new API client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	if c.registerer != nil {
		m, err := metrics.NewClientMetrics(c.registerer)
		if err != nil {
			return nil, fmt.Errorf("register client metrics: %w", err)
		}
		c.metrics = m
	}

	return c, nil
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send posts params to endpoint and returns the decoded envelope. The API
// key is added to a copy of params. A failure envelope is returned as is;
// callers turn it into a *RemoteError with Envelope.Err.
func (c *Client) Send(ctx context.Context, endpoint string, params Params) (*Envelope, error) {
	start := time.Now()
	requestID := uuid.NewString()

	env, status, err := c.request(ctx, endpoint, requestID, params)
	duration := time.Since(start)

	outcome := errorKind(err)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	} else if envErr := env.Err(); envErr != nil {
		outcome = OutcomeRemoteError
		errMsg = env.FailureMessage()
	}

	if c.metrics != nil {
		c.metrics.Observe(endpoint, outcome, duration)
	}

	logger := c.logger.With(
		"endpoint", endpoint,
		"request_id", requestID,
		"status", status,
		"duration", duration,
	)
	if outcome == OutcomeOK {
		logger.Debug("api call")
	} else {
		logger.Warn("api call failed", "outcome", outcome, "error", errMsg)
	}

	if c.recorder != nil {
		rec := &CallRecord{
			ID:         uuid.NewString(),
			RequestID:  requestID,
			Endpoint:   endpoint,
			Params:     params.Redacted(),
			Outcome:    outcome,
			Error:      errMsg,
			StatusCode: status,
			Duration:   duration,
			StartedAt:  start,
		}
		if rerr := c.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
			c.logger.Warn("failed to record api call", "endpoint", endpoint, "error", rerr)
		}
	}

	return env, err
}

// request performs the HTTP round trip
func (c *Client) request(ctx context.Context, endpoint, requestID string, params Params) (*Envelope, int, error) {
	form := params.Clone()
	form[ParamAPIKey] = c.apiKey

	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Values().Encode()))
	if err != nil {
		return nil, 0, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		env, derr := DecodeEnvelope(endpoint, body)
		if derr == nil && !env.OK() {
			env.statusCode = resp.StatusCode
			return env, resp.StatusCode, nil
		}
		return nil, resp.StatusCode, &TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	env, err := DecodeEnvelope(endpoint, body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return env, resp.StatusCode, nil
}
