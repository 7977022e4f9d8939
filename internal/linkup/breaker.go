package linkup

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/models"
)

// ConnectionsFetcher is the polling side of the client. The breaker and
// the sync service both consume this shape.
type ConnectionsFetcher interface {
	Connections(ctx context.Context, ticket *models.AuthTicket, userID string) (*models.ConnectionsResult, error)
}

// BreakerClient guards connections polling with a circuit breaker so a
// broken upstream is backed off instead of hammered every interval.
// Login stays unguarded: an interactive login must report its real error.
type BreakerClient struct {
	inner ConnectionsFetcher
	cb    *gobreaker.CircuitBreaker[*models.ConnectionsResult]
	log   *zap.Logger
}

// NewBreakerClient wraps a fetcher. The breaker opens after three
// consecutive failures and probes again after a minute. onState, when
// non-nil, observes transitions (used for the state gauge). Auth
// rejections do not count as failures: they are definitive answers that
// re-login resolves, not upstream flakiness.
func NewBreakerClient(inner ConnectionsFetcher, log *zap.Logger, onState func(to gobreaker.State)) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "linkup-connections",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var authErr *AuthError
			return errors.As(err, &authErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", stateName(from)),
				zap.String("to", stateName(to)),
			)
			if onState != nil {
				onState(to)
			}
		},
	}

	return &BreakerClient{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[*models.ConnectionsResult](settings),
		log:   log,
	}
}

// Connections polls through the breaker. Rejected calls surface as
// *TransportError so callers treat an open breaker like any other
// unreachable upstream.
func (b *BreakerClient) Connections(ctx context.Context, ticket *models.AuthTicket, userID string) (*models.ConnectionsResult, error) {
	result, err := b.cb.Execute(func() (*models.ConnectionsResult, error) {
		return b.inner.Connections(ctx, ticket, userID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Op: "connections", Err: err}
		}
		return nil, err
	}
	return result, nil
}

// stateName is the breaker state label used in logs and metrics.
func stateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	}
	return "unknown"
}

// StateValue maps a breaker state to the gauge value exported on
// /metrics: 0 closed, 1 half-open, 2 open.
func StateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
