package apiclient

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"resumewizard/internal/config"
	"resumewizard/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// Breaker wraps upstream calls with the circuit breaker pattern.
// A nil *Breaker executes calls directly.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[*Response]
}

// StateChangeFunc is notified after every breaker transition
type StateChangeFunc func(name, from, to string)

// NewBreaker creates a breaker for the backend, or nil when disabled
func NewBreaker(name string, cfg config.CircuitBreakerConfig, logger *errors.Logger, onChange StateChangeFunc) *Breaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("backend-%s", name),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warn("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String(),
					"max_requests", cfg.MaxRequests,
					"failure_threshold", cfg.FailureThreshold)
			}
			if onChange != nil {
				onChange(name, from.String(), to.String())
			}
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[*Response](settings)}
}

// countsAsSuccess keeps client errors from tripping the breaker; only
// transport failures and 5xx responses say anything about upstream health.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *upstreamStatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.resp.StatusCode < http.StatusInternalServerError
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.StatusCode > 0 && apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

// Execute runs fn with breaker protection. Open or saturated breakers
// surface as a 503 APIError.
func (b *Breaker) Execute(fn func() (*Response, error)) (*Response, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	resp, err := b.cb.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &APIError{StatusCode: http.StatusServiceUnavailable, Message: MessageUnavailable, Cause: err}
	}
	return resp, err
}

// GetStats returns circuit breaker statistics
func (b *Breaker) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	counts := b.cb.Counts()
	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"enabled": true,
		"counts": map[string]uint32{
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		},
	}
}

// IsHealthy returns true if the circuit breaker is not open
func (b *Breaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() != gobreaker.StateOpen
}

// State returns the breaker state name, "disabled" when there is none
func (b *Breaker) State() string {
	if b == nil || b.cb == nil {
		return "disabled"
	}
	return b.cb.State().String()
}
