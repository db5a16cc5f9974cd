// Package api is a typed client for the Collective Memory REST backend. It
// owns request shaping and response decoding only; authentication decisions,
// persistence and tenancy enforcement all live on the other side of the wire.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sentinel errors callers can match with errors.Is. The activity subsystem
// deliberately ignores the distinction and degrades to empty state; the auth
// flow and doctor command do care.
var (
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: forbidden")
	ErrNotFound     = errors.New("api: not found")
	ErrUnavailable  = errors.New("api: backend unavailable")
)

// StatusError carries the HTTP status and backend-provided message of a
// non-2xx response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: backend returned %d", e.Status)
	}
	return fmt.Sprintf("api: backend returned %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	}
	return nil
}

type tokenKey struct{}

// WithToken returns a context that carries a backend access token. The
// transport attaches it as a bearer Authorization header.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext extracts the access token placed by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// Config holds the knobs for a Client.
type Config struct {
	BaseURL string

	// Timeout bounds a single backend call. Zero means DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the sustained requests-per-second budget toward the
	// backend, RateBurst the burst allowance. Zero values disable limiting.
	RateLimit float64
	RateBurst int

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit; BreakerCooldown how long it stays open. Zero values use
	// the defaults.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

const (
	// DefaultTimeout bounds one backend round trip.
	DefaultTimeout = 10 * time.Second

	// DefaultBreakerThreshold is the consecutive-failure count that opens
	// the circuit toward the backend.
	DefaultBreakerThreshold = 5

	// DefaultBreakerCooldown is how long the open circuit rejects calls
	// before probing again.
	DefaultBreakerCooldown = 30 * time.Second
)

// Client is the resource-oriented backend client. All calls go through one
// instrumented transport: rate limiter, then circuit breaker, then HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
	log     *zap.Logger

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *Metrics

	failures *failureRing

	Auth         *AuthService
	Activities   *ActivitiesService
	Users        *UsersService
	Teams        *TeamsService
	Clients      *ClientsService
	Personas     *PersonasService
	Sessions     *SessionsService
	WorkSessions *WorkSessionsService
	Messages     *MessagesService
}

// NewClient builds a Client for the given backend. metrics may be nil when
// the caller does not export Prometheus metrics.
func NewClient(cfg Config, logger *zap.Logger, metrics *Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = DefaultBreakerThreshold
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c := &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		httpc:    &http.Client{},
		timeout:  timeout,
		log:      logger.Named("api"),
		limiter:  limiter,
		metrics:  metrics,
		failures: newFailureRing(failureRingCapacity),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cm-backend",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
			c.metrics.setBreakerState(to)
		},
	})

	c.Auth = &AuthService{c: c}
	c.Activities = &ActivitiesService{c: c}
	c.WorkSessions = &WorkSessionsService{c: c}
	c.Messages = &MessagesService{c: c}
	newAdminServices(c)

	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// RecentFailures returns the most recent failed calls, newest last.
func (c *Client) RecentFailures(n int) []FailureRecord {
	return c.failures.recent(n)
}

// roundTripResult separates transport-level outcomes (which feed the circuit
// breaker) from application-level 4xx responses (which must not trip it).
type roundTripResult struct {
	status int
	body   []byte
}

// do performs one backend call. op names the logical operation
// ("activities.timeline") for logging and metrics; out, when non-nil, is
// filled from the response body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("api: rate limiter: %w", err)
		}
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, path, query, body)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		status := 0
		var serr *StatusError
		if errors.As(err, &serr) {
			status = serr.Status
		}
		c.observe(op, status, elapsed, err)
		return err
	}

	rt := res.(*roundTripResult)
	if rt.status < 200 || rt.status > 299 {
		serr := &StatusError{Status: rt.status, Message: decodeErrorMessage(rt.body)}
		c.observe(op, rt.status, elapsed, serr)
		return serr
	}

	if out != nil && len(rt.body) > 0 {
		if err := sonic.Unmarshal(rt.body, out); err != nil {
			derr := fmt.Errorf("api: decode %s response: %w", op, err)
			c.observe(op, rt.status, elapsed, derr)
			return derr
		}
	}

	c.observe(op, rt.status, elapsed, nil)
	return nil
}

// roundTrip builds and performs the HTTP request. It returns an error only
// for transport failures and 5xx responses, so the breaker does not count
// ordinary 4xx outcomes as backend trouble.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any) (*roundTripResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cm-console")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("api: read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, &StatusError{Status: resp.StatusCode, Message: decodeErrorMessage(data)}
	}

	return &roundTripResult{status: resp.StatusCode, body: data}, nil
}

// maxResponseBytes caps a single response read. Drill-down lists are bounded
// at 100 records; anything past this is a misbehaving backend.
const maxResponseBytes = 8 * 1024 * 1024

// observe records metrics, the failure ring, and a debug log line for one call.
func (c *Client) observe(op string, status int, elapsed time.Duration, err error) {
	c.metrics.observe(op, status, elapsed, err)
	if err != nil {
		c.failures.add(FailureRecord{Op: op, Status: status, Err: err.Error(), At: time.Now()})
		c.log.Warn("backend call failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	c.log.Debug("backend call",
		zap.String("op", op),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed))
}

// errorBody is the backend's error envelope. Absent or malformed bodies are
// tolerated; the status code alone is enough.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := sonic.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	return eb.Error
}
