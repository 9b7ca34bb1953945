// Package orchestrator provides a client for the intent settlement backend.
package orchestrator

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

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/speedrun-hq/speedrun-executor/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
	"github.com/speedrun-hq/speedrun-executor/pkg/metrics"
)

// circuitOpenMessage is the message of the server error returned without
// contacting the backend while the circuit breaker is open
const circuitOpenMessage = "backend circuit breaker is open"

// Client represents a settlement backend client
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests per second
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithCircuitBreaker stops requests after repeated server or transport failures
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// New creates a new settlement backend client
func New(endpoint, apiKey string, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: createHTTPClient(),
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRoute asks the backend for a bundle satisfying the request
func (c *Client) GetRoute(ctx context.Context, req *RouteRequest) (*Route, error) {
	var resp routeResponseJSON
	if err := c.do(ctx, "route", http.MethodPost, "/intents/route", req.toJSON(), &resp); err != nil {
		return nil, err
	}
	route, err := resp.model()
	if err != nil {
		return nil, fmt.Errorf("failed to decode route: %v", err)
	}
	if route.IntentOp == nil {
		return nil, fmt.Errorf("failed to decode route: missing intent op")
	}
	return route, nil
}

// SubmitIntent submits a signed bundle and returns its id
func (c *Client) SubmitIntent(ctx context.Context, signed *SignedIntentOp) (*SubmitResult, error) {
	var resp submitResponseJSON
	if err := c.do(ctx, "submit", http.MethodPost, "/intent-operations", signed.toJSON(), &resp); err != nil {
		return nil, err
	}
	if resp.Result.ID == "" {
		return nil, fmt.Errorf("failed to decode submission: missing id")
	}
	return &SubmitResult{ID: string(resp.Result.ID)}, nil
}

// GetIntentStatus returns the status of a submitted bundle
func (c *Client) GetIntentStatus(ctx context.Context, id string) (*IntentStatus, error) {
	var resp statusResponseJSON
	if err := c.do(ctx, "status", http.MethodGet, "/intent-operation/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	status, err := resp.model()
	if err != nil {
		return nil, fmt.Errorf("failed to decode status: %v", err)
	}
	return status, nil
}

// GetPendingBundleEvents returns a page of lifecycle events of pending bundles
func (c *Client) GetPendingBundleEvents(ctx context.Context, count, offset int) ([]BundleEvent, error) {
	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("offset", strconv.Itoa(offset))
	var resp eventsResponseJSON
	if err := c.do(ctx, "events", http.MethodGet, "/bundles/events?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.model()
}

// GetPortfolio returns the token balances of an account across chains
func (c *Client) GetPortfolio(ctx context.Context, account common.Address) ([]PortfolioToken, error) {
	var resp portfolioResponseJSON
	if err := c.do(ctx, "portfolio", http.MethodGet, "/accounts/"+addressOf(account)+"/portfolio", nil, &resp); err != nil {
		return nil, err
	}
	return resp.model()
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out interface{}) error {
	if c.breaker != nil && c.breaker.IsOpen() {
		metrics.BackendErrors.WithLabelValues(endpoint, "circuit_open").Inc()
		return &Error{Kind: KindServerError, Message: circuitOpenMessage}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BackendErrors.WithLabelValues(endpoint, "transport").Inc()
		if ctx.Err() == nil {
			c.recordFailure()
		}
		return fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BackendErrors.WithLabelValues(endpoint, "transport").Inc()
		c.recordFailure()
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("%s %s -> %d in %v (request %s)", method, path, resp.StatusCode, time.Since(start), requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		backendErr := ParseError(resp.StatusCode, bodyBytes, resp.Header)
		metrics.BackendErrors.WithLabelValues(endpoint, backendErr.Kind.String()).Inc()
		if backendErr.Kind == KindServerError || backendErr.Kind == KindRateLimited {
			c.recordFailure()
		}
		return backendErr
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		metrics.BackendErrors.WithLabelValues(endpoint, "decode").Inc()
		return fmt.Errorf("failed to decode %s response: %v, body: %s", endpoint, err, string(bodyBytes))
	}
	return nil
}

func (c *Client) recordFailure() {
	if c.breaker != nil && c.breaker.RecordFailure() {
		c.logger.Error("Backend circuit breaker open, pausing requests")
	}
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
