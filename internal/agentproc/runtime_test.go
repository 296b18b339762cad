package agentproc

import (
	"context"
	"testing"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/scheduler"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

func TestStartSessionRequiresCommand(t *testing.T) {
	t.Parallel()
	r := New(Config{}, logx.Nop())
	if _, err := r.StartSession(context.Background(), "a1", nil, "hello"); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestStopSessionUnknownIsNoop(t *testing.T) {
	t.Parallel()
	r := New(Config{Command: "/bin/true"}, logx.Nop())
	if err := r.StopSession(context.Background(), "ghost"); err != nil {
		t.Fatal(err)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()
	r := New(Config{Command: "/bin/true"}, logx.Nop())

	var got int
	unsub := r.Subscribe(func(scheduler.SessionEvent) { got++ })

	// Deliver directly through the subscriber list.
	r.mu.Lock()
	for _, fn := range r.subs {
		fn(scheduler.SessionEvent{SessionID: "s1"})
	}
	r.mu.Unlock()

	unsub()
	unsub() // idempotent

	r.mu.Lock()
	n := len(r.subs)
	r.mu.Unlock()
	if got != 1 || n != 0 {
		t.Fatalf("got=%d remaining subs=%d", got, n)
	}
}
