// Package retry wraps a chain provider with bounded retries for transient
// failures.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tylerautera/LEAPSfrog/internal/provider"
)

// Config controls retry behavior for provider calls.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig is the retry policy used when none is supplied.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Client decorates a ChainProvider with retries on transient errors.
// Permanent failures (4xx responses, empty data) pass through untouched.
type Client struct {
	provider provider.ChainProvider
	logger   *logrus.Logger
	config   Config
}

// Ensure Client implements ChainProvider at compile time.
var _ provider.ChainProvider = (*Client)(nil)

// NewClient creates a retrying provider client.
func NewClient(p provider.ChainProvider, logger *logrus.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Client{
		provider: p,
		logger:   logger,
		config:   cfg,
	}
}

// GetStrikesHistory retries the underlying fetch on transient errors.
func (c *Client) GetStrikesHistory(ctx context.Context, tickers []string,
	tradeDate time.Time, dte provider.DTERange, delta provider.DeltaRange) ([]provider.OptionRow, error) {
	return execWithRetry(ctx, c, "strikes history", func(ctx context.Context) ([]provider.OptionRow, error) {
		return c.provider.GetStrikesHistory(ctx, tickers, tradeDate, dte, delta)
	})
}

// GetTickerWindows retries the underlying fetch on transient errors.
func (c *Client) GetTickerWindows(ctx context.Context, tickers []string) ([]provider.TickerWindow, error) {
	return execWithRetry(ctx, c, "ticker windows", func(ctx context.Context) ([]provider.TickerWindow, error) {
		return c.provider.GetTickerWindows(ctx, tickers)
	})
}

func execWithRetry[T any](
	ctx context.Context,
	c *Client,
	op string,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	attempts := 0
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := opCtx.Err(); err != nil {
			return zero, fmt.Errorf("%s fetch timed out after %v: %w", op, c.config.Timeout, err)
		}

		result, err := fn(opCtx)
		attempts++
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == c.config.MaxRetries {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).Warnf("transient provider error, retrying: %v", err)

		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-opCtx.Done():
			return zero, fmt.Errorf("%s fetch timed out during backoff: %w", op, opCtx.Err())
		}
	}

	return zero, fmt.Errorf("%s fetch failed after %d attempt(s): %w", op, attempts, lastErr)
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > c.config.MaxBackoff {
		next = c.config.MaxBackoff
	}

	maxJitter := int64(next / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			c.logger.Warnf("failed to generate backoff jitter: %v", err)
		} else {
			next += time.Duration(jitterVal.Int64())
		}
	}
	return next
}

// isTransientError reports whether the provider error is worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	// An empty chain will stay empty no matter how often we ask.
	if errors.Is(err, provider.ErrNoData) {
		return false
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		// Retry server errors and rate limiting; other 4xx are permanent.
		return apiErr.Status >= 500 || apiErr.Status == 429
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"network",
		"dns",
		"tcp",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
