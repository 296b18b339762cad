// Package eventbus is a synchronous in-process fanout for scheduler
// lifecycle events.
package eventbus

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

// Event kinds published by the scheduler.
const (
	TypeApprovalRequest = "schedule_approval_request"
	TypeExecutionUpdate = "schedule_execution_update"
)

// Event is a lightweight in-memory signal.
//
// Contract:
//   - Delivery is synchronous, in registration order, on the publisher's
//     call stack. No batching or queuing.
//   - A panicking handler is recovered and logged; remaining handlers still
//     receive the event.
//   - Handlers may publish and may unsubscribe (themselves included) from
//     within delivery without deadlocking.
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	id      uint64
	fn      Handler
	removed atomic.Bool
}

// Bus fans events out to registered handlers. The zero value is not usable;
// call New.
type Bus struct {
	mu   sync.Mutex
	log  logx.Logger
	subs []*subscriber
	seq  uint64
}

func New(log logx.Logger) *Bus {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bus{log: log}
}

// OnEvent registers a handler and returns its unsubscribe function. After
// unsubscribe returns, the handler receives no further events.
func (b *Bus) OnEvent(fn Handler) (unsubscribe func()) {
	sub := &subscriber{fn: fn}
	b.mu.Lock()
	b.seq++
	sub.id = b.seq
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.removed.Store(true)
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == sub.id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber in registration order.
// The subscriber list is snapshotted and delivery runs outside the bus
// lock, so a handler may unsubscribe or publish from within delivery. The
// removed flag is re-checked immediately before each invocation, so an
// unsubscribe that returned before Publish reached that handler is never
// delivered to.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s *subscriber, e Event) {
	if s.removed.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in event handler",
				logx.String("event", e.Type),
				logx.Uint64("handler", s.id),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()
	s.fn(e)
}
