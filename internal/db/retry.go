package db

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backoff returns the wait before retry number attempt.
// attempt=0 => 500ms, attempt=1 => 1s, attempt=2 => 2s, capped at 10s.
func Backoff(attempt int) time.Duration {
	base := 500 * time.Millisecond
	capDelay := 10 * time.Second

	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay {
		delay = capDelay
	}

	// small jitter (0–250ms) so replicas don't reconnect in lockstep
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}

// ConnectWithRetry calls NewPool up to attempts times. Postgres often comes up
// after the API in compose and k8s.
func ConnectWithRetry(ctx context.Context, dbURL string, maxConns, attempts int, log *slog.Logger) (*pgxpool.Pool, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for i := 0; i < attempts; i++ {
		pool, err := NewPool(dbURL, maxConns)
		if err == nil {
			return pool, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}

		wait := Backoff(i)
		log.Warn("db connect failed, retrying", "err", err, "attempt", i+1, "wait", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}
