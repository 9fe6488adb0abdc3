package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rtmpd/fmsgo/internal/logger"
	"github.com/rtmpd/fmsgo/internal/rtmp/hooks"
	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

// ConnectHook is called once per connect, before any room is resolved. A
// failure aborts the whole connect chain with no side effects.
type ConnectHook func(c Client, path []string) (*rpc.Future, error)

// CreateRoomHook is called the first time a named room is entered (never for
// the hall). A failure leaves the room unregistered.
type CreateRoomHook func(c Client, name string, pathTail []string) (*rpc.Future, error)

// EnterRoomHook is called after the room exists (freshly created or not). A
// failure after a fresh create triggers room destruction.
type EnterRoomHook func(c Client, room *Room, pathTail []string) (*rpc.Future, error)

// LeaveRoomHook runs on disconnect/leave. It must not fail; there is
// deliberately no error return.
type LeaveRoomHook func(c Client, room *Room)

// DestroyRoomHook runs when a non-hall room becomes empty or a fresh create
// is rolled back. It must not fail.
type DestroyRoomHook func(room *Room)

// InvokeHandler answers a named RPC for this application, replacing a
// dynamic `invoke_<name>` dispatch with an explicit handler map.
type InvokeHandler func(c Client, argv []interface{}) (*rpc.Future, error)

// Application is a registered RTMP application: a name, an eager hall room,
// a map of lazily created named rooms, lifecycle hooks, and named invoke
// handlers.
type Application struct {
	Name string

	OnConnect     ConnectHook
	OnCreateRoom  CreateRoomHook
	OnEnterRoom   EnterRoomHook
	OnLeaveRoom   LeaveRoomHook
	OnDestroyRoom DestroyRoomHook

	mu    sync.Mutex
	hall  *Room
	rooms map[string]*Room

	handlersMu sync.RWMutex
	handlers   map[string]InvokeHandler

	enabled atomic.Bool
	hookMgr *hooks.HookManager
	log     *slog.Logger
}

// NewApplication creates an Application, enabled by default, with its hall
// room already present (hall lifetime == application lifetime).
func NewApplication(name string) *Application {
	a := &Application{
		Name:     name,
		rooms:    make(map[string]*Room),
		handlers: make(map[string]InvokeHandler),
		log:      logger.Logger().With("component", "app", "app", name),
	}
	a.hall = newRoom(HallName, a)
	a.enabled.Store(true)
	return a
}

// WithHookManager attaches the lifecycle hook manager used to publish
// room_create/room_destroy/client_enter/client_leave events, independent of
// and in addition to the direct hook calls above.
func (a *Application) WithHookManager(hm *hooks.HookManager) *Application {
	a.hookMgr = hm
	return a
}

// RegisterInvoke registers a named RPC handler, matched case-insensitively
// to the incoming Invoke name by the caller.
func (a *Application) RegisterInvoke(name string, h InvokeHandler) {
	a.handlersMu.Lock()
	defer a.handlersMu.Unlock()
	a.handlers[name] = h
}

// Handler resolves an invoke name to its registered handler.
func (a *Application) Handler(name string) (InvokeHandler, bool) {
	a.handlersMu.RLock()
	defer a.handlersMu.RUnlock()
	h, ok := a.handlers[name]
	return h, ok
}

// Enabled reports whether this application currently accepts new connects.
// Mutated only by Registry.SetEnabled, including via the -apps-dir hot reload.
func (a *Application) Enabled() bool { return a.enabled.Load() }

// SetEnabled flips the enabled bit. Already-connected clients are unaffected;
// only future connects are rejected while disabled.
func (a *Application) SetEnabled(enabled bool) { a.enabled.Store(enabled) }

// Hall returns the application's default room.
func (a *Application) Hall() *Room { return a.hall }

// Connect runs the full connect chain: on_connect, then resolve-or-create
// the room named by the head of pathTail (hall if pathTail is empty), then
// on_enter_room. On success the client is added to the room and the room is
// returned.
func (a *Application) Connect(ctx context.Context, c Client, pathTail []string) (*Room, error) {
	if a.OnConnect != nil {
		future, err := a.OnConnect(c, pathTail)
		if err != nil {
			return nil, err
		}
		if future != nil {
			if _, err := future.Await(ctx); err != nil {
				return nil, err
			}
		}
	}

	roomName, tail := HallName, []string(nil)
	if len(pathTail) > 0 {
		roomName, tail = pathTail[0], pathTail[1:]
	}

	room, created, err := a.resolveOrCreateRoom(ctx, c, roomName, tail)
	if err != nil {
		return nil, err
	}

	if a.OnEnterRoom != nil {
		future, err := a.OnEnterRoom(c, room, tail)
		if err != nil {
			if created {
				a.destroyRoom(room)
			}
			return nil, err
		}
		if future != nil {
			if _, err := future.Await(ctx); err != nil {
				if created {
					a.destroyRoom(room)
				}
				return nil, err
			}
		}
	}

	room.add(c)
	a.emitEvent(hooks.EventClientEnter, c, room)
	return room, nil
}

// resolveOrCreateRoom looks up an existing room by name or creates one,
// running on_create_room exactly once for a fresh room (skipped for the
// hall). The application mutex is held across the hook call so that two
// concurrent connects to the same new room never both observe "not found"
// and both run on_create_room. That makes this the one place a lock spans
// a possible Await: a deferred on_create_room stalls other connects to
// this application until it completes, so create hooks must resolve
// promptly and must not call back into Application.
func (a *Application) resolveOrCreateRoom(ctx context.Context, c Client, name string, tail []string) (*Room, bool, error) {
	if name == "" || name == HallName {
		return a.hall, false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if r, ok := a.rooms[name]; ok {
		return r, false, nil
	}

	if a.OnCreateRoom != nil {
		future, err := a.OnCreateRoom(c, name, tail)
		if err != nil {
			return nil, false, err
		}
		if future != nil {
			if _, err := future.Await(ctx); err != nil {
				return nil, false, err
			}
		}
	}

	r := newRoom(name, a)
	a.rooms[name] = r
	a.emitEvent(hooks.EventRoomCreate, c, r)
	return r, true, nil
}

// destroyRoom fires on_destroy_room and removes the room from the registry.
// This hook must not fail; it is best-effort and swallows panics rather than
// letting them propagate to the caller.
func (a *Application) destroyRoom(room *Room) {
	if room.IsHall() {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("on_destroy_room panicked", "room", room.Name, "recover", r)
			}
		}()
		if a.OnDestroyRoom != nil {
			a.OnDestroyRoom(room)
		}
	}()
	a.mu.Lock()
	delete(a.rooms, room.Name)
	a.mu.Unlock()
	a.emitEvent(hooks.EventRoomDestroy, nil, room)
}

// Leave runs on_leave_room, removes c from room, and destroys the room if it
// is now empty and not the hall.
func (a *Application) Leave(c Client, room *Room) {
	if room == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("on_leave_room panicked", "room", room.Name, "recover", r)
			}
		}()
		if a.OnLeaveRoom != nil {
			a.OnLeaveRoom(c, room)
		}
	}()
	empty := room.remove(c)
	a.emitEvent(hooks.EventClientLeave, c, room)
	if empty && !room.IsHall() {
		a.destroyRoom(room)
	}
}

func (a *Application) emitEvent(t hooks.EventType, c Client, room *Room) {
	if a.hookMgr == nil {
		return
	}
	ev := hooks.NewEvent(t).WithApp(a.Name)
	if room != nil {
		ev = ev.WithRoom(room.Name)
	}
	if c != nil {
		ev = ev.WithConnID(c.ID())
	}
	a.hookMgr.TriggerEvent(context.Background(), *ev)
}
