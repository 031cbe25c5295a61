// Package engine implements the arena settlement engine: entry admission,
// price sampling, finalization and the caller-driven settlement protocol.
// Every public operation runs inside a single ledger transaction and either
// commits completely or leaves no trace.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
)

// Engine executes arena operations against a ledger. It holds no mutable
// state of its own; concurrency control comes entirely from the ledger's
// transaction isolation.
type Engine struct {
	ledger domain.Ledger
	auth   Authorizer
	sink   domain.EventSink // optional
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine. sink may be nil when no event broadcasting is wired.
func New(ledger domain.Ledger, auth Authorizer, sink domain.EventSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger: ledger,
		auth:   auth,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the engine's time source. Used by tests to drive the
// duration gate deterministically.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// emit publishes an event after a successful commit. Events are advisory and
// never affect operation outcomes.
func (e *Engine) emit(ev domain.Event) {
	if e.sink == nil {
		return
	}
	ev.At = e.now().UTC()
	e.sink.Publish(ev)
}

// inTx runs fn inside a fresh ledger transaction, committing on success and
// rolling back on any error.
func (e *Engine) inTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := e.ledger.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
