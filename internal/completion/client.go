package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/valpere/vidscribe/internal/model"
	"github.com/valpere/vidscribe/internal/postprocess"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// Call is what a backend sends over the wire.
type Call struct {
	Model      string
	System     string
	User       string
	Params     model.Params
	Annotation *Annotation
}

// Backend performs a single request/response exchange. Implementations
// report HTTP failures as *StatusError so the client can classify them.
type Backend interface {
	Name() model.Backend
	Send(ctx context.Context, call Call) (string, error)
}

// Request is one completion invocation.
type Request struct {
	Stage  string
	System string
	User   string
	Model  model.Alias
	Cache  CacheOptions
}

// Client dispatches requests to the backend named by the resolved alias and
// owns the retry policy. It keeps no state between calls.
type Client struct {
	backends map[model.Backend]Backend
	logger   *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	jitter           bool
	requestTimeout   time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts overrides the attempt ceiling (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the base and maximum retry delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithJitter randomizes each backoff delay within [delay/2, delay].
func WithJitter(enabled bool) Option {
	return func(c *Client) {
		c.jitter = enabled
	}
}

// WithRequestTimeout bounds each individual attempt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client over the given backends.
func NewClient(backends []Backend, opts ...Option) *Client {
	c := &Client{
		backends:         make(map[model.Backend]Backend, len(backends)),
		logger:           slog.New(slog.DiscardHandler),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		requestTimeout:   defaultRequestTimeout,
	}
	for _, b := range backends {
		if b != nil {
			c.backends[b.Name()] = b
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the request and returns the cleaned output text. All
// failures are *CompletionError.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	fail := func(transient bool, attempts int, err error) (string, error) {
		return "", &CompletionError{
			Stage:     req.Stage,
			Model:     req.Model.Model,
			Transient: transient,
			Attempts:  attempts,
			Err:       err,
		}
	}

	if strings.TrimSpace(req.System) == "" {
		return fail(false, 0, errors.New("system instructions required"))
	}
	if strings.TrimSpace(req.User) == "" {
		return fail(false, 0, errors.New("user content required"))
	}
	backend, ok := c.backends[req.Model.Backend]
	if !ok {
		return fail(false, 0, fmt.Errorf("no backend configured for %q", req.Model.Backend))
	}

	cache := req.Cache
	cache.Model = req.Model.Model
	call := Call{
		Model:      req.Model.Model,
		System:     req.System,
		User:       req.User,
		Params:     req.Model.Params,
		Annotation: annotationFor(cache, req.User),
	}

	attempts := c.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.sendOnce(ctx, backend, call)
		if err == nil {
			if cleaned := postprocess.Clean(content); cleaned != "" {
				return cleaned, nil
			}
			err = &EmptyContentError{Reason: "output was only model artifacts"}
		}
		lastErr = err

		if ctx.Err() != nil {
			return fail(false, attempt, err)
		}
		if !IsTransient(err) {
			return fail(false, attempt, err)
		}
		if attempt == attempts {
			break
		}

		delay := c.retryDelay(err, attempt)
		c.logger.Warn("completion attempt failed, retrying",
			slog.String("stage", req.Stage),
			slog.String("model", req.Model.Model),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return fail(false, attempt, err)
		}
	}

	return fail(true, attempts, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr))
}

func (c *Client) sendOnce(ctx context.Context, backend Backend, call Call) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return backend.Send(attemptCtx, call)
}

func (c *Client) attempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(err error, attempt int) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return c.capDelay(statusErr.RetryAfter)
	}
	return c.backoffDelay(attempt)
}

// backoffDelay returns base * 2^(attempt-1), capped, optionally jittered.
func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	delay = c.capDelay(delay)
	if c.jitter && delay > 1 {
		half := delay / 2
		delay = half + time.Duration(rand.Int63n(int64(half)+1))
	}
	return delay
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
