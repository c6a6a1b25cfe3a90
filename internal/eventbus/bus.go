// Package eventbus implements the in-process publish/subscribe bus (C4):
// synchronous, priority-ordered handler dispatch with per-handler
// panic/error isolation and an optional external sink invoked last.
package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler receives a published event's payload. The event type is passed
// alongside so one handler can subscribe to several types if registered
// more than once.
type Handler func(ctx context.Context, eventType string, payload any)

// Sink is the optional external fan-out target (e.g. a WebSocket bridge).
// It runs after every domain handler for a Publish call has returned, and
// its own failures never propagate back into the hot path.
type Sink interface {
	Send(ctx context.Context, eventType string, payload any) error
}

type subscription struct {
	priority int
	seq      int // registration order, for stable sort at equal priority
	handler  Handler
}

// Bus is the synchronous, priority-ordered dispatcher described in §4.4.
// A single Publish call runs every subscribed handler for that event type
// in priority order (higher first, registration order as a tiebreaker),
// then invokes the sink if one is configured. Handler panics and errors
// are caught and logged; they never abort dispatch to the remaining
// handlers or the sink.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string][]subscription
	nextSeq  int
	sink     Sink
	log      *zap.Logger
}

// New builds a Bus. sink may be nil, in which case Publish only runs
// domain handlers.
func New(sink Sink, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs: make(map[string][]subscription),
		sink: sink,
		log:  log,
	}
}

// Subscribe registers handler for eventType at the given priority. Higher
// priority handlers run first; handlers registered at the same priority
// run in registration order.
func (b *Bus) Subscribe(eventType string, priority int, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	subs := append(b.subs[eventType], subscription{priority: priority, seq: b.nextSeq, handler: handler})
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	b.subs[eventType] = subs
}

// Unsubscribe removes every subscription for eventType. Go cannot compare
// funcs for equality, so there is no removal of a single handler; this
// form removes all handlers for the type, matching the common
// "unsubscribe everything for this type" use in tests.
func (b *Bus) Unsubscribe(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, eventType)
}

// Clear removes every subscription. Test hook (§4.4).
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
}

// Publish dispatches payload to every handler subscribed to eventType, in
// priority order, then to the sink if one is configured. A handler panic
// is recovered and logged; it does not stop the remaining handlers or the
// sink from running (§4.4, §5 ordering guarantee).
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[eventType]))
	copy(subs, b.subs[eventType])
	sink := b.sink
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatchOne(ctx, eventType, payload, sub.handler)
	}

	if sink != nil {
		if err := sink.Send(ctx, eventType, payload); err != nil {
			b.log.Error("event sink failed", zap.String("event_type", eventType), zap.Error(err))
		}
	}
}

func (b *Bus) dispatchOne(ctx context.Context, eventType string, payload any, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event_type", eventType),
				zap.Any("recovered", r))
		}
	}()
	handler(ctx, eventType, payload)
}

// HandlerFromError adapts a handler that can fail into the Handler
// signature, logging the error the same way a recovered panic is logged.
// Useful for handlers ported from code that returns an error instead of
// panicking.
func HandlerFromError(log *zap.Logger, fn func(ctx context.Context, eventType string, payload any) error) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, eventType string, payload any) {
		if err := fn(ctx, eventType, payload); err != nil {
			log.Error("event handler failed", zap.String("event_type", eventType), zap.Error(fmt.Errorf("%w", err)))
		}
	}
}
