package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ChainProvider defines the interface for fetching historical option-chain
// data. The simulation core depends only on this contract.
type ChainProvider interface {
	GetStrikesHistory(ctx context.Context, tickers []string, tradeDate time.Time,
		dte DTERange, delta DeltaRange) ([]OptionRow, error)
	GetTickerWindows(ctx context.Context, tickers []string) ([]TickerWindow, error)
}

// Ensure OratsAPI implements ChainProvider at compile time.
var _ ChainProvider = (*OratsAPI)(nil)

// CircuitBreakerProvider wraps a ChainProvider with circuit breaker
// functionality so a misbehaving data API fails fast instead of hammering
// the endpoint.
type CircuitBreakerProvider struct {
	provider ChainProvider
	breaker  *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerProvider implements ChainProvider at compile time.
var _ ChainProvider = (*CircuitBreakerProvider)(nil)

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerProvider creates a CircuitBreakerProvider with sensible
// defaults.
func NewCircuitBreakerProvider(p ChainProvider, logger *logrus.Logger) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(p, logger, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerProviderWithSettings creates a CircuitBreakerProvider with
// custom settings.
func NewCircuitBreakerProviderWithSettings(
	p ChainProvider,
	logger *logrus.Logger,
	settings CircuitBreakerSettings,
) *CircuitBreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "ChainProviderCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// An empty chain is a data gap, not a provider outage.
			return err == nil || errors.Is(err, ErrNoData)
		},
	}

	return &CircuitBreakerProvider{
		provider: p,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods.
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	p ChainProvider,
	fn func(ChainProvider) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(p) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// GetStrikesHistory wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) GetStrikesHistory(ctx context.Context, tickers []string,
	tradeDate time.Time, dte DTERange, delta DeltaRange) ([]OptionRow, error) {
	return execCircuitBreaker(c.breaker, c.provider, func(p ChainProvider) ([]OptionRow, error) {
		return p.GetStrikesHistory(ctx, tickers, tradeDate, dte, delta)
	})
}

// GetTickerWindows wraps the underlying provider call with circuit breaker.
func (c *CircuitBreakerProvider) GetTickerWindows(ctx context.Context, tickers []string) ([]TickerWindow, error) {
	return execCircuitBreaker(c.breaker, c.provider, func(p ChainProvider) ([]TickerWindow, error) {
		return p.GetTickerWindows(ctx, tickers)
	})
}
