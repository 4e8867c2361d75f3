package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/arkestra/identity/internal/identity/domain"
	"github.com/arkestra/identity/pkg/slogx"
)

// Handler reacts to a single domain event. Handlers must be idempotent:
// dispatch is at-least-once and happens after the originating transaction
// has committed, so a handler failure never reverts the write.
type Handler func(ctx context.Context, event domain.Event) error

// Dispatcher delivers collected domain events to registered handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []domain.Event) error
}

// Registry is the in-process Dispatcher: handlers register by event name and
// run sequentially in aggregate order. Handler failures are logged and do not
// stop delivery of the remaining events.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Register attaches a handler to an event name. Safe for concurrent use,
// though registration normally happens once at wiring time.
func (r *Registry) Register(eventName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventName] = append(r.handlers[eventName], h)
}

// Dispatch delivers events in order. The returned error is nil even when
// handlers fail, since side effects fail independently of the committed
// write, but every failure is logged with the event name.
func (r *Registry) Dispatch(ctx context.Context, evts []domain.Event) error {
	l := slogx.FromContext(ctx)

	for _, evt := range evts {
		r.mu.RLock()
		handlers := r.handlers[evt.Name()]
		r.mu.RUnlock()

		for _, h := range handlers {
			if err := h(ctx, evt); err != nil {
				l.Error("domain event handler failed",
					slog.String("event", evt.Name()),
					slog.Any("error", err),
				)
			}
		}
	}
	return nil
}
