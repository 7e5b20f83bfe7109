package aladin

import (
	"context"
	"errors"
	"time"

	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Searcher is anything that can look a keyword up in an external catalog.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]catalog.Book, error)
}

const breakerName = "aladin-api"

// Breaker wraps a Searcher with a circuit breaker so a failing Aladin API is
// not hammered on every fallback request.
//
// Settings: up to 3 trial requests half-open, counts reset every minute while
// closed, 2 minutes open before retrying, trips at >=60% failures over at
// least 10 requests.
type Breaker struct {
	next Searcher
	cb   *gobreaker.CircuitBreaker[[]catalog.Book]
}

func NewBreaker(next Searcher) *Breaker {
	return newBreaker(next, gobreaker.Settings{
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				zap.L().Warn("opening aladin circuit",
					zap.Uint32("failures", counts.TotalFailures),
					zap.Float64("failure_rate", ratio))
				return true
			}
			return false
		},
	})
}

func newBreaker(next Searcher, st gobreaker.Settings) *Breaker {
	st.Name = breakerName
	st.IsSuccessful = func(err error) bool {
		var ce *canceledError
		return err == nil || errors.As(err, &ce)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		zap.L().Info("aladin circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		if to == gobreaker.StateClosed {
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
		}
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[[]catalog.Book](st)}
}

// Search delegates to the wrapped Searcher unless the circuit is open.
// Context cancellation by the caller is not counted as an API failure.
func (b *Breaker) Search(ctx context.Context, keyword string) ([]catalog.Book, error) {
	books, err := b.cb.Execute(func() ([]catalog.Book, error) {
		books, err := b.next.Search(ctx, keyword)
		if err != nil && ctx.Err() != nil {
			return nil, &canceledError{err: err}
		}
		return books, err
	})

	if err != nil {
		var ce *canceledError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		case errors.As(err, &ce):
			return nil, ce.err
		default:
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(float64(b.cb.Counts().ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)
	return books, nil
}

// State reports the breaker state as "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }

// canceledError marks failures caused by the caller giving up.
type canceledError struct{ err error }

func (e *canceledError) Error() string { return e.err.Error() }
func (e *canceledError) Unwrap() error { return e.err }

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
