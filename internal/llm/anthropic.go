package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"golang.org/x/time/rate"
)

// AnthropicOptions configures the Anthropic-backed Completer.
type AnthropicOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration // per-call deadline (default 60s)
	Retries int           // transient retry count on top of the first call (default 2)
	RPS     float64       // sustained calls per second across the process (default 2)
	Logger  *slog.Logger
}

// AnthropicClient is a Completer backed by the Anthropic messages API.
// A process-wide rate limiter smooths bursts from concurrent requests.
type AnthropicClient struct {
	llm     *anthropic.LLM
	model   string
	timeout time.Duration
	retries int
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewAnthropic builds the client. The per-call timeout also bounds the
// underlying HTTP client so a stalled connection cannot outlive the deadline.
func NewAnthropic(opts AnthropicOptions) (*AnthropicClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("anthropic: model name is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retries == 0 {
		opts.Retries = 2
	}
	if opts.RPS == 0 {
		opts.RPS = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client, err := anthropic.New(
		anthropic.WithToken(opts.APIKey),
		anthropic.WithModel(opts.Model),
		anthropic.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("anthropic: init client: %w", err)
	}

	return &AnthropicClient{
		llm:     client,
		model:   opts.Model,
		timeout: opts.Timeout,
		retries: opts.Retries,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), int(opts.RPS)+1),
		logger:  opts.Logger.With("component", "anthropic"),
	}, nil
}

// Complete implements Completer. Transient failures (timeout, throttling,
// network) are retried up to the configured count with a short backoff;
// auth failures are returned immediately.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying completion", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", classify(ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", classify(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := llms.GenerateFromSinglePrompt(callCtx, c.llm, prompt,
			llms.WithMaxTokens(maxTokens),
			llms.WithTemperature(0.7),
		)
		cancel()
		if err == nil {
			return text, nil
		}

		lastErr = classify(err)
		if errors.Is(lastErr, ErrAuth) {
			return "", lastErr
		}
	}
	return "", lastErr
}

// classify maps transport and API failures onto the package sentinels so
// callers can branch without string matching.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "api key"):
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return err
	}
}

var _ Completer = (*AnthropicClient)(nil)
