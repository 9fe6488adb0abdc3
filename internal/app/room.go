package app

import "sync"

// HallName is the reserved name of an application's default room ("the
// hall"), created eagerly and never destroyed until the application itself
// is torn down.
const HallName = "_"

// Room groups clients of one Application under a shared name for group
// messaging and state sharing.
type Room struct {
	Name string
	app  *Application

	mu      sync.RWMutex
	clients map[string]Client
}

func newRoom(name string, app *Application) *Room {
	return &Room{Name: name, app: app, clients: make(map[string]Client)}
}

// IsHall reports whether this is the application's default room.
func (r *Room) IsHall() bool { return r.Name == HallName }

// Application returns the owning application.
func (r *Room) Application() *Application { return r.app }

func (r *Room) add(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID()] = c
}

// remove deletes c from the room and reports whether the room is now empty.
func (r *Room) remove(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c.ID())
	return len(r.clients) == 0
}

// Members returns a snapshot of the room's current client set. Broadcast
// iteration snapshots the set before mutating it, so callers may safely
// range over the result while the room's membership changes concurrently.
func (r *Room) Members() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast invokes name/args on every member of the room except (optionally)
// the sender, in the stable-within-call order of the snapshot taken at the
// start of this call. Send failures are ignored here; callers that care
// should inspect Client.Invoke directly.
func (r *Room) Broadcast(exclude Client, name string, args ...interface{}) {
	for _, member := range r.Members() {
		if exclude != nil && member.ID() == exclude.ID() {
			continue
		}
		_, _ = member.Invoke(name, args...)
	}
}
