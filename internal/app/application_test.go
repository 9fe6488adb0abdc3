package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

type fakeClient struct {
	id      string
	scratch interface{}
}

func (c *fakeClient) ID() string           { return c.id }
func (c *fakeClient) RemoteAddr() string   { return "127.0.0.1:0" }
func (c *fakeClient) Logger() *slog.Logger { return slog.Default() }
func (c *fakeClient) SetScratch(v interface{}) { c.scratch = v }
func (c *fakeClient) Scratch() interface{}     { return c.scratch }
func (c *fakeClient) Invoke(name string, args ...interface{}) (*rpc.Future, error) {
	return rpc.Resolved(args), nil
}

func TestConnectUsesHallWhenPathEmpty(t *testing.T) {
	a := NewApplication("echo")
	c := &fakeClient{id: "c1"}

	room, err := a.Connect(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !room.IsHall() {
		t.Fatalf("expected hall room, got %q", room.Name)
	}
}

func TestConnectCreatesNamedRoomOnce(t *testing.T) {
	a := NewApplication("chat")
	var creates int32
	a.OnCreateRoom = func(c Client, name string, tail []string) (*rpc.Future, error) {
		atomic.AddInt32(&creates, 1)
		return nil, nil
	}

	c1 := &fakeClient{id: "c1"}
	c2 := &fakeClient{id: "c2"}

	r1, err := a.Connect(context.Background(), c1, []string{"kitchen"})
	if err != nil {
		t.Fatalf("connect c1: %v", err)
	}
	r2, err := a.Connect(context.Background(), c2, []string{"kitchen"})
	if err != nil {
		t.Fatalf("connect c2: %v", err)
	}
	if r1 != r2 {
		t.Fatalf("expected both clients in the same room")
	}
	if atomic.LoadInt32(&creates) != 1 {
		t.Fatalf("expected on_create_room exactly once, got %d", creates)
	}
	if len(r1.Members()) != 2 {
		t.Fatalf("expected 2 members, got %d", len(r1.Members()))
	}
}

func TestConnectFailureAbortsWithNoSideEffects(t *testing.T) {
	a := NewApplication("guarded")
	a.OnConnect = func(c Client, path []string) (*rpc.Future, error) {
		return nil, errors.New("rejected")
	}

	c := &fakeClient{id: "c1"}
	_, err := a.Connect(context.Background(), c, nil)
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	if len(a.Hall().Members()) != 0 {
		t.Fatalf("expected no members added after a failed connect, got %d", len(a.Hall().Members()))
	}
}

func TestEnterRoomFailureAfterFreshCreateDestroysRoom(t *testing.T) {
	a := NewApplication("chat")
	var destroyed bool
	a.OnDestroyRoom = func(room *Room) { destroyed = true }
	a.OnEnterRoom = func(c Client, room *Room, tail []string) (*rpc.Future, error) {
		return nil, errors.New("denied")
	}

	c := &fakeClient{id: "c1"}
	_, err := a.Connect(context.Background(), c, []string{"kitchen"})
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	if !destroyed {
		t.Fatal("expected the freshly created room to be destroyed on enter failure")
	}
	if _, ok := a.rooms["kitchen"]; ok {
		t.Fatal("room should have been removed from the registry")
	}
}

func TestLeaveDestroysEmptyNonHallRoom(t *testing.T) {
	a := NewApplication("chat")
	c := &fakeClient{id: "c1"}
	room, err := a.Connect(context.Background(), c, []string{"kitchen"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	a.Leave(c, room)

	if _, ok := a.rooms["kitchen"]; ok {
		t.Fatal("expected empty room to be destroyed on leave")
	}
}

func TestLeaveNeverDestroysHall(t *testing.T) {
	a := NewApplication("echo")
	c := &fakeClient{id: "c1"}
	room, _ := a.Connect(context.Background(), c, nil)

	a.Leave(c, room)

	if a.Hall() != room {
		t.Fatal("hall identity must be stable across leave")
	}
}

func TestRegistryResolveConnectPath(t *testing.T) {
	r := NewRegistry()
	a := NewApplication("chat")
	r.Register(a)

	app, tail, err := r.ResolveConnectPath("chat/kitchen")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if app != a || len(tail) != 1 || tail[0] != "kitchen" {
		t.Fatalf("unexpected resolution: app=%v tail=%v", app, tail)
	}
}

func TestRegistryResolveUnknownAppFails(t *testing.T) {
	r := NewRegistry()
	if _, _, err := r.ResolveConnectPath("missing"); err == nil {
		t.Fatal("expected an error for an unknown app")
	}
}

func TestRegistryResolveDisabledAppFails(t *testing.T) {
	r := NewRegistry()
	a := NewApplication("chat")
	a.SetEnabled(false)
	r.Register(a)

	if _, _, err := r.ResolveConnectPath("chat"); err == nil {
		t.Fatal("expected an error for a disabled app")
	}
}

func TestConnectDisconnectHookOrder(t *testing.T) {
	a := NewApplication("chat")
	var calls []string
	a.OnConnect = func(c Client, path []string) (*rpc.Future, error) {
		calls = append(calls, "on_connect")
		if len(path) != 1 || path[0] != "kitchen" {
			t.Fatalf("on_connect path = %v, want [kitchen]", path)
		}
		return nil, nil
	}
	a.OnCreateRoom = func(c Client, name string, tail []string) (*rpc.Future, error) {
		calls = append(calls, "on_create_room")
		if name != "kitchen" || len(tail) != 0 {
			t.Fatalf("on_create_room name=%q tail=%v", name, tail)
		}
		return nil, nil
	}
	a.OnEnterRoom = func(c Client, room *Room, tail []string) (*rpc.Future, error) {
		calls = append(calls, "on_enter_room")
		return nil, nil
	}
	a.OnLeaveRoom = func(c Client, room *Room) { calls = append(calls, "on_leave_room") }
	a.OnDestroyRoom = func(room *Room) { calls = append(calls, "on_destroy_room") }

	c := &fakeClient{id: "c1"}
	room, err := a.Connect(context.Background(), c, []string{"kitchen"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	a.Leave(c, room)

	want := []string{"on_connect", "on_create_room", "on_enter_room", "on_leave_room", "on_destroy_room"}
	if len(calls) != len(want) {
		t.Fatalf("hook call log = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("hook call log = %v, want %v", calls, want)
		}
	}
	if len(a.rooms) != 0 {
		t.Fatalf("expected no rooms left, got %d", len(a.rooms))
	}
	if len(a.Hall().Members()) != 0 {
		t.Fatalf("expected empty hall")
	}
}

func TestCreateRoomRefusedLeavesRegistryUntouched(t *testing.T) {
	a := NewApplication("chat")
	a.OnCreateRoom = func(c Client, name string, tail []string) (*rpc.Future, error) {
		return nil, errors.New("refused")
	}

	c := &fakeClient{id: "c1"}
	if _, err := a.Connect(context.Background(), c, []string{"kitchen"}); err == nil {
		t.Fatal("expected connect to fail when on_create_room refuses")
	}
	if len(a.rooms) != 0 {
		t.Fatalf("refused room must never be registered, got %v", a.rooms)
	}
}
