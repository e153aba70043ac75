package managers

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/db"
	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/pkg/logs"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isRaceLost returns true if error means that concurrent transaction
// won race for the same rows.
func isRaceLost(err error) bool {
	if IsKind(err, RaceLostError) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// wrapTx runs function in transaction and retries it when race is lost.
//
// Function joins outer transaction if context already has one, in that
// case retries are left to outer call.
func wrapTx(c *core.Core, ctx context.Context, fn func(ctx context.Context) error) error {
	if db.GetTx(ctx) != nil {
		return fn(ctx)
	}
	budget := c.Config.Session.GetRetryBudget()
	var err error
	for attempt := 0; attempt <= budget; attempt++ {
		err = c.WrapTx(ctx, fn)
		if err == nil || !isRaceLost(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.Logger().Debug("Transaction lost race", logs.Any("attempt", attempt+1), err)
	}
	return externalServiceError(RetryExhausted, "Retry budget exhausted.", err)
}

type pendingEvent struct {
	id      string
	kind    events.EventType
	payload any
}

// eventQueue collects events of transaction until it is committed.
type eventQueue struct {
	events []pendingEvent
}

func (q *eventQueue) add(id string, kind events.EventType, payload any) {
	q.events = append(q.events, pendingEvent{id: id, kind: kind, payload: payload})
}

// publish publishes collected events and releases streams that
// received final event.
func (q *eventQueue) publish(bus *events.Bus) {
	var finished []string
	for _, event := range q.events {
		bus.Publish(event.id, event.kind, event.payload)
		if event.kind.IsFinal() {
			finished = append(finished, event.id)
		}
	}
	for _, id := range finished {
		bus.Forget(id)
	}
	q.events = nil
}

type eventQueueKey struct{}

// runTx runs function in transaction with retries and publishes
// collected events after commit.
//
// Nested calls join outer transaction and its event queue.
func runTx(c *core.Core, ctx context.Context, fn func(ctx context.Context, queue *eventQueue) error) error {
	if queue, ok := ctx.Value(eventQueueKey{}).(*eventQueue); ok && db.GetTx(ctx) != nil {
		return fn(ctx, queue)
	}
	var queue eventQueue
	if err := wrapTx(c, ctx, func(ctx context.Context) error {
		queue.events = nil
		return fn(context.WithValue(ctx, eventQueueKey{}, &queue), &queue)
	}); err != nil {
		return err
	}
	queue.publish(c.Events)
	return nil
}
