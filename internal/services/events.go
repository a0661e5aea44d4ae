// Package services orchestrates the finance ledger, the directory of students
// and teachers, dashboards and reports on top of the storage port.
package services

import (
	"context"
	"log/slog"
	"sync"

	"pesantren/internal/amqp"
	"pesantren/internal/core"
)

// EventPublisher announces ledger changes to the report worker.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// ReportInvalidator drops cached monthly reports.
type ReportInvalidator interface {
	Invalidate(year, month int)
}

// notifier runs the side effects shared by every successful ledger write.
type notifier struct {
	activities  *Activities
	publisher   EventPublisher
	invalidator ReportInvalidator
	logger      *slog.Logger
}

type change struct {
	actor       string
	activity    string
	description string
	kind        string
	collection  string
	recordID    string
	date        core.Date
	amount      int64
}

func (n *notifier) written(ctx context.Context, c change) {
	if n.activities != nil {
		n.activities.Record(ctx, c.actor, c.activity, c.description, map[string]any{
			"collection": c.collection,
			"record_id":  c.recordID,
			"amount":     c.amount,
		})
	}

	if c.date.IsZero() {
		return
	}
	year, month := c.date.Year(), c.date.Month()
	if n.invalidator != nil {
		n.invalidator.Invalidate(year, month)
	}

	if n.publisher == nil {
		n.logger.DebugContext(ctx, "AMQP publisher not available, skipping ledger event",
			"collection", c.collection, "record_id", c.recordID)
		return
	}
	event := amqp.NewLedgerEvent(c.kind, c.collection, c.recordID, year, month)
	if err := n.publisher.PublishLedgerEvent(ctx, event); err != nil {
		// The write already succeeded; the worker's ticker catches up.
		n.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"collection", c.collection,
			"record_id", c.recordID,
			"error", err)
	}
}

// keyedMutex serializes work per key, such as writes to one savings account.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func orToday(d core.Date) core.Date {
	if d.IsZero() {
		return core.Today()
	}
	return d
}
