package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// ObserveDB times a logical postgres operation.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	return p.observeStore("postgres", op, fn)
}

// ObserveSession times a session store operation.
func (p *Prom) ObserveSession(op string, fn func() error) error {
	return p.observeStore("sessions", op, fn)
}

func (p *Prom) observeStore(store, op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"

	switch {
	case err == nil:
	case errors.Is(err, redis.Nil):
		// a missing key is an answer, not a failure
		status = "miss"
	default:
		status = "error"
		p.StoreErrorsTotal.WithLabelValues(store, op, classifyStoreErr(err)).Inc()
	}

	p.StoreOpDuration.WithLabelValues(store, op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyStoreErr(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "23514":
			return "check_violation"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
