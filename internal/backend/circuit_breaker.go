package backend

import (
	"errors"
	"fmt"

	"skillwizard/internal/config"
	apperrors "skillwizard/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// Breaker guards one backend endpoint with the circuit breaker pattern.
// A nil Breaker simply runs the call.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[*rawResponse]
}

// NewBreaker creates a circuit breaker for a single operation, or nil when disabled.
// Rejections (4xx) do not count as failures; only transport errors and 5xx do.
func NewBreaker(op Operation, cfg config.CircuitBreakerConfig, logger *apperrors.Logger) *Breaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("backend-%s", op),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var rej *rejectedError
			return err == nil || errors.As(err, &rej)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation", string(op),
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[*rawResponse](settings)}
}

// Execute runs fn with circuit breaker protection
func (b *Breaker) Execute(fn func() (*rawResponse, error)) (*rawResponse, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats returns circuit breaker statistics
func (b *Breaker) Stats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true unless the breaker is open
func (b *Breaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() != gobreaker.StateOpen
}

// isBreakerRejection reports whether err came from an open or saturated breaker
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
