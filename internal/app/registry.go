package app

import (
	"fmt"
	"strings"
	"sync"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

// Registry holds every application known to the server, keyed by name, and
// resolves an inbound connect path ("app/room/...") to an Application and the
// remaining path segments, guarded by a mutex.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]*Application
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]*Application)}
}

// Register adds or replaces an application by name.
func (r *Registry) Register(a *Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[a.Name] = a
}

// Lookup returns the application registered under name, if any.
func (r *Registry) Lookup(name string) (*Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[name]
	return a, ok
}

// SetEnabled toggles an already-registered application's enabled bit, used by
// the -apps-dir hot reload watcher. It reports false if name is not
// registered.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.RLock()
	a, ok := r.apps[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	a.SetEnabled(enabled)
	return true
}

// Names returns the currently registered application names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.apps))
	for name := range r.apps {
		out = append(out, name)
	}
	return out
}

// ResolveConnectPath splits an RTMP connect app path on "/", looks up the
// application named by the first segment, and returns it along with the
// remaining segments naming the target room. It fails with a DispatchError
// carrying rpc.StatusConnectInvalidApp when the app is unknown or disabled.
func (r *Registry) ResolveConnectPath(appPath string) (*Application, []string, error) {
	appPath = strings.Trim(appPath, "/")
	if appPath == "" {
		return nil, nil, rtmperrors.NewDispatchErrorWithCode(
			"registry.resolve", rpc.StatusConnectInvalidApp,
			fmt.Errorf("empty app path"))
	}

	segments := strings.Split(appPath, "/")
	name, tail := segments[0], segments[1:]

	a, ok := r.Lookup(name)
	if !ok || !a.Enabled() {
		return nil, nil, rtmperrors.NewDispatchErrorWithCode(
			"registry.resolve", rpc.StatusConnectInvalidApp,
			fmt.Errorf("application %q not found or disabled", name))
	}
	return a, tail, nil
}
