// Package uow coordinates multi-step writes as a single unit of work.
//
// A workflow stages its write steps, collects the domain events it wants
// published, then asks the coordinator to save and commit. Save replays the
// staged steps inside a store transaction guarded by a circuit breaker, an
// attempt timeout, and bounded retries for transient concurrency conflicts.
// Events are dispatched only after the transaction has committed.
package uow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/internal/identity/events"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/pkg/resilience"
)

var (
	// ErrNotBegun is returned by Save and Commit when Begin was never called.
	ErrNotBegun = errors.New("uow: transaction not begun")

	// ErrTimeout reports a save or commit that exceeded its wall-clock
	// budget. The caller may retry the whole workflow; the coordinator does
	// not retry past the budget.
	ErrTimeout = errors.New("uow: operation timed out")
)

const (
	// operationTimeout bounds a save (all retry attempts included) or a
	// commit. A slow database should fail the operation, not hang the
	// request.
	operationTimeout = 5 * time.Second

	// breakerFailureThreshold consecutive failures open the breaker.
	breakerFailureThreshold = 10

	// breakerBreakDuration is how long the breaker rejects work before
	// admitting a single probe.
	breakerBreakDuration = 10 * time.Second
)

// step is one staged write. The closure receives the transactional store so
// replays on a fresh transaction see none of the prior attempt's state.
type step struct {
	name string
	fn   func(ctx context.Context, tx store.Store) error
}

// Coordinator is a single-use unit of work. It is not safe for concurrent
// use; each request builds its own via the Factory.
type Coordinator struct {
	store      store.Store
	breaker    *resilience.Breaker
	dispatcher events.Dispatcher
	log        *slog.Logger

	begun      bool
	committed  bool
	rolledBack bool
	tx         store.Tx
	steps      []step
	saved      int
	events     []domain.Event
}

// Factory builds coordinators that share one circuit breaker, so failure
// pressure from any request counts against the same threshold.
type Factory struct {
	store      store.Store
	breaker    *resilience.Breaker
	dispatcher events.Dispatcher
	log        *slog.Logger
}

func NewFactory(st store.Store, dispatcher events.Dispatcher, log *slog.Logger) *Factory {
	return &Factory{
		store:      st,
		breaker:    resilience.NewBreaker(breakerFailureThreshold, breakerBreakDuration),
		dispatcher: dispatcher,
		log:        log,
	}
}

// New returns a fresh coordinator for one workflow invocation.
func (f *Factory) New() *Coordinator {
	return &Coordinator{
		store:      f.store,
		breaker:    f.breaker,
		dispatcher: f.dispatcher,
		log:        f.log,
	}
}

// Breaker exposes the shared breaker for health reporting.
func (f *Factory) Breaker() *resilience.Breaker {
	return f.breaker
}

// Begin opens the unit of work. Calling it again while open is a no-op, so
// nested workflow helpers never stack transactions.
func (c *Coordinator) Begin(ctx context.Context) error {
	if c.begun && !c.committed && !c.rolledBack {
		return nil
	}
	if c.committed || c.rolledBack {
		return fmt.Errorf("uow: coordinator already finished")
	}

	tx, err := c.store.Tx(ctx)
	if err != nil {
		return fmt.Errorf("uow: begin: %w", err)
	}
	c.tx = tx
	c.begun = true
	return nil
}

// Stage queues a named write step. Steps run in staging order when Save is
// called; nothing touches the database until then.
func (c *Coordinator) Stage(name string, fn func(ctx context.Context, tx store.Store) error) {
	c.steps = append(c.steps, step{name: name, fn: fn})
}

// Raise collects domain events for post-commit dispatch.
func (c *Coordinator) Raise(evts ...domain.Event) {
	c.events = append(c.events, evts...)
}

// Save runs every staged step not yet persisted against the open transaction
// and reports how many steps it executed. On a transient concurrency
// conflict the whole pending batch is replayed on a fresh transaction, since
// a failed transaction cannot be reused. Non-transient errors fail
// immediately.
func (c *Coordinator) Save(ctx context.Context) (int, error) {
	if !c.begun || c.tx == nil {
		return 0, ErrNotBegun
	}

	if len(c.steps) == c.saved {
		return 0, nil
	}

	if err := c.breaker.Allow(); err != nil {
		return 0, err
	}

	// The budget covers every retry attempt, not each one separately.
	saveCtx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	var executed int
	err := resilience.Retry(saveCtx, resilience.DefaultRetryConfig(isTransient), c.log, "unit-of-work save", func(ctx context.Context) error {
		// Recomputed per attempt: a transaction restart resets the saved
		// watermark, so a replay picks up earlier batches too.
		batch := c.steps[c.saved:]

		if err := c.runBatch(ctx, batch); err != nil {
			if isTransient(err) {
				if restartErr := c.restartTx(ctx); restartErr != nil {
					return restartErr
				}
			}
			return err
		}
		executed = len(batch)
		return nil
	})
	if err != nil {
		c.breaker.RecordFailure()
		if errors.Is(saveCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: save exceeded %s", ErrTimeout, operationTimeout)
		}
		return 0, err
	}

	c.breaker.RecordSuccess()
	c.saved = len(c.steps)
	return executed, nil
}

func (c *Coordinator) runBatch(ctx context.Context, batch []step) error {
	for _, s := range batch {
		if err := s.fn(ctx, c.tx); err != nil {
			return fmt.Errorf("step %q: %w", s.name, err)
		}
	}
	return nil
}

// restartTx rolls back the poisoned transaction and opens a new one. When a
// replay happens, earlier saved batches were part of the same transaction and
// are gone with it, so the replay re-executes every step from the start.
func (c *Coordinator) restartTx(ctx context.Context) error {
	_ = c.tx.Rollback()
	tx, err := c.store.Tx(ctx)
	if err != nil {
		return fmt.Errorf("uow: restart transaction: %w", err)
	}
	c.tx = tx
	c.saved = 0
	return nil
}

// Commit finalizes the transaction under the breaker and the operation
// timeout. Commit is never retried: a commit that failed mid-flight may have
// landed, and replaying it risks double-applying the batch. On failure the
// transaction is rolled back. Collected events dispatch after a successful
// commit, never before.
func (c *Coordinator) Commit(ctx context.Context) error {
	if !c.begun || c.tx == nil {
		return ErrNotBegun
	}
	if c.committed {
		return fmt.Errorf("uow: already committed")
	}

	if len(c.steps) > c.saved {
		if _, err := c.Save(ctx); err != nil {
			c.Rollback()
			return err
		}
	}

	if err := c.breaker.Allow(); err != nil {
		c.Rollback()
		return err
	}

	if err := c.commitWithTimeout(); err != nil {
		c.breaker.RecordFailure()
		c.Rollback()
		return fmt.Errorf("uow: commit: %w", err)
	}
	c.breaker.RecordSuccess()
	c.committed = true

	if c.dispatcher != nil && len(c.events) > 0 {
		if err := c.dispatcher.Dispatch(ctx, c.events); err != nil {
			// Dispatch failures are logged by the dispatcher; the write
			// already committed and must not be reported as failed.
			c.log.Warn("post-commit dispatch reported error", slog.Any("error", err))
		}
	}
	return nil
}

// commitWithTimeout bounds the commit wall-clock. On timeout the commit may
// still land in the background; the caller is told the outcome is unknown via
// ErrTimeout rather than being left hanging.
func (c *Coordinator) commitWithTimeout() error {
	done := make(chan error, 1)
	go func() { done <- c.tx.Commit() }()

	select {
	case err := <-done:
		return err
	case <-time.After(operationTimeout):
		return fmt.Errorf("%w: commit exceeded %s", ErrTimeout, operationTimeout)
	}
}

// Rollback abandons the unit of work. It is safe to call at any point,
// including after Commit or a previous Rollback, so callers can defer it
// unconditionally.
func (c *Coordinator) Rollback() {
	if !c.begun || c.committed || c.rolledBack {
		return
	}
	c.rolledBack = true
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("rollback failed", slog.Any("error", err))
		}
	}
}

// isTransient reports whether an error is a concurrency conflict worth
// retrying. Validation and constraint failures are deterministic and retry
// would only repeat them.
func isTransient(err error) bool {
	return errors.Is(err, store.ErrConflict)
}
