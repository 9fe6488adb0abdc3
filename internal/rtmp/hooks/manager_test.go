package hooks

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingHook struct {
	id string
	mu *sync.Mutex
	n  *int
}

func (h *recordingHook) Execute(ctx context.Context, event Event) error {
	h.mu.Lock()
	*h.n++
	h.mu.Unlock()
	return nil
}
func (h *recordingHook) Type() string { return "recording" }
func (h *recordingHook) ID() string   { return h.id }

func TestHookManagerTriggersRegisteredHooks(t *testing.T) {
	mgr := NewHookManager(DefaultHookConfig(), nil)
	defer mgr.Close()

	var mu sync.Mutex
	n := 0
	if err := mgr.RegisterHook(EventClientEnter, &recordingHook{id: "r1", mu: &mu, n: &n}); err != nil {
		t.Fatalf("RegisterHook: %v", err)
	}

	mgr.TriggerEvent(context.Background(), *NewEvent(EventClientEnter).WithApp("chat").WithRoom("kitchen"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := n
		mu.Unlock()
		if got == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("hook was not executed")
}

func TestHookManagerUnregisteredEventTypeIsNoop(t *testing.T) {
	mgr := NewHookManager(DefaultHookConfig(), nil)
	defer mgr.Close()
	mgr.TriggerEvent(context.Background(), *NewEvent(EventRoomDestroy))
}

func TestHookManagerUnregisterHook(t *testing.T) {
	mgr := NewHookManager(DefaultHookConfig(), nil)
	defer mgr.Close()

	var mu sync.Mutex
	n := 0
	hook := &recordingHook{id: "r1", mu: &mu, n: &n}
	_ = mgr.RegisterHook(EventRoomCreate, hook)
	if !mgr.UnregisterHook(EventRoomCreate, "r1") {
		t.Fatalf("expected UnregisterHook to report removal")
	}
	if mgr.UnregisterHook(EventRoomCreate, "r1") {
		t.Fatalf("expected second UnregisterHook to report no-op")
	}
}
