package llm

import (
	"context"
	"errors"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/kadvik/mrev/internal/config"
	"github.com/kadvik/mrev/internal/logger"
	"github.com/kadvik/mrev/internal/metrics"
	"github.com/kadvik/mrev/internal/prompt"
)

// Backoff parameters for transient failures. The attempt count comes
// from config; these shape the delays between attempts.
const (
	retryInitialDelay = 500 * time.Millisecond
	retryMaxDelay     = 30 * time.Second
	retryMaxJitter    = 250 * time.Millisecond
)

// Client wraps a Provider with rate limiting, a concurrency bound,
// bounded retries, and response parsing. One Client is shared by all
// pipeline runs; each run issues at most one call at a time.
type Client struct {
	provider   Provider
	limiter    *RateLimiter
	sem        chan struct{}
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger
}

// NewClient creates a review client over the given provider.
func NewClient(provider Provider, cfg *config.Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}

	var sem chan struct{}
	if cfg.Provider.MaxConcurrent > 0 {
		sem = make(chan struct{}, cfg.Provider.MaxConcurrent)
	}

	return &Client{
		provider:   provider,
		limiter:    NewRateLimiter(cfg.Provider.RateLimitRPS),
		sem:        sem,
		maxRetries: cfg.Provider.MaxRetries,
		retryDelay: retryInitialDelay,
		log:        log.WithPrefix("llm"),
	}
}

// Provider returns the wrapped backend.
func (c *Client) Provider() Provider {
	return c.provider
}

// Review sends the prompt and parses the response into a ReviewResult.
// Transient backend failures are retried with backoff; when retries
// exhaust, the last transient error is returned. Fatal errors return
// immediately.
func (c *Client) Review(ctx context.Context, p *prompt.Prompt) (*ReviewResult, error) {
	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return nil, &LLMError{Kind: Fatal, Err: ctx.Err()}
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &LLMError{Kind: Fatal, Err: err}
	}

	metrics.IncCounter("llm.requests")
	timer := metrics.StartTimer("llm.request_duration")
	defer timer.Stop()

	var raw string
	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			if attempt > 1 {
				metrics.IncCounter("llm.retries")
				c.log.Debug("retrying backend call (attempt %d/%d)", attempt, c.maxRetries+1)
			}
			var err error
			raw, err = c.provider.Complete(ctx, p.System, p.User)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(retryMaxJitter),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var llmErr *LLMError
			return errors.As(err, &llmErr) && llmErr.Transient()
		}),
	)
	if err != nil {
		metrics.IncCounter("llm.failures")

		var llmErr *LLMError
		if errors.As(err, &llmErr) {
			return nil, llmErr
		}
		// Context expiry surfaces from retry.Do undecorated.
		return nil, &LLMError{Kind: Transient, Err: err}
	}

	parsed := Parse(raw)
	if parsed.IsStructured() {
		c.log.Debug("backend honored response schema")
		return parsed.Structured, nil
	}

	c.log.Warn("backend response did not match schema, using fallback parser")
	metrics.IncCounter("llm.fallback_parses")
	return ParseFreeform(parsed.Freeform), nil
}
