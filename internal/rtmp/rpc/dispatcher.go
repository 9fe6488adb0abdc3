package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/rtmp/packet"
)

// Sender pushes an outbound Invoke packet over the connection's transport.
// Implemented by internal/rtmp/conn.Connection; kept as a narrow interface
// here so this package has no dependency on the connection/application
// layers (C5/C7), matching the teacher's layering of amf/chunk beneath conn.
type Sender interface {
	SendInvoke(inv *packet.Invoke) error
}

// Handler is the typed registry signature invoke handlers and the special
// "connect" handler are resolved to, replacing the source's dynamic
// `invoke_<name>` string dispatch per SPEC_FULL.md §9.
type Handler func(argv []interface{}) (*Future, error)

// HandlerResolver looks up the handler for a lowercased invoke name. It is
// consulted for every inbound Invoke that isn't "_result"/"_error"/"connect".
type HandlerResolver interface {
	ResolveInvoke(name string) (Handler, bool)
}

// FailureObserver is notified after an inbound Invoke has been answered with
// an _error reply, whatever the failure path (unhandled name, handler error,
// rejected future). The connection layer uses it to publish invoke_failed
// lifecycle events without this package depending on the hook manager.
type FailureObserver func(name string, err error)

// Dispatcher correlates outbound invoke/reply pairs and routes inbound
// Invokes to handlers, per SPEC_FULL.md §4.6 (C6). One Dispatcher belongs to
// exactly one connection; it is not safe for use by more than one.
type Dispatcher struct {
	mu      sync.Mutex
	nextID  float64
	pending map[float64]*Future

	sender    Sender
	resolver  HandlerResolver
	onConnect Handler
	onFailure FailureObserver

	log *slog.Logger
}

// NewDispatcher creates a Dispatcher bound to sender and resolver. Per
// §4.6, outbound invoke ids start at 2.0 and increase by 1.0 per call.
func NewDispatcher(sender Sender, resolver HandlerResolver, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		nextID:   2.0,
		pending:  make(map[float64]*Future),
		sender:   sender,
		resolver: resolver,
		log:      log,
	}
}

// SetConnectHandler installs the handler invoked for inbound "connect"
// Invokes, ahead of the generic resolver lookup. The application/room
// dispatcher (C7) wires this in.
func (d *Dispatcher) SetConnectHandler(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onConnect = h
}

// SetFailureObserver installs the observer called after every _error reply.
func (d *Dispatcher) SetFailureObserver(f FailureObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFailure = f
}

// Invoke sends an outbound RPC call and returns a Future that resolves or
// rejects when the matching _result/_error reply arrives. The sentinel nil
// first argument is required by the wire format (§4.6).
func (d *Dispatcher) Invoke(name string, args ...interface{}) (*Future, error) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	future := NewFuture()
	d.pending[id] = future
	d.mu.Unlock()

	argv := append([]interface{}{nil}, args...)
	inv := packet.NewInvoke(name, id, argv...)
	if err := d.sender.SendInvoke(inv); err != nil {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		return nil, err
	}
	return future, nil
}

// FailPending rejects every outstanding outbound invoke, e.g. on connection
// close (§5 "Cancellation": "rejects all pending outbound-invoke replies
// with a connection-closed failure").
func (d *Dispatcher) FailPending(err error) {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[float64]*Future)
	d.mu.Unlock()
	for _, f := range pending {
		f.Reject(err)
	}
}

// HandleInbound processes one decoded Invoke per §4.6's inbound handling
// rules. Handler execution (including awaiting a deferred Future) happens on
// its own goroutine so a slow/async handler never blocks the read loop that
// called HandleInbound; replies are written in handler-completion order,
// matching §5's ordering rule (3).
func (d *Dispatcher) HandleInbound(ctx context.Context, inv *packet.Invoke) {
	lower := strings.ToLower(inv.Name)

	if lower == "_result" || lower == "_error" {
		d.handleReply(lower, inv)
		return
	}

	handler, ok := d.lookupHandler(lower)
	if !ok {
		d.replyError(inv, rtmperrors.NewDispatchErrorWithCode(
			"rpc.unhandled_invoke", StatusCallFailed,
			fmt.Errorf("no handler registered for invoke %q", inv.Name)))
		return
	}

	future, err := handler(inv.Argv)
	if err != nil {
		d.replyError(inv, err)
		return
	}
	if future == nil {
		// A nil error with a nil future means "no reply expected"; used by
		// fire-and-forget handlers (e.g. room broadcasts the caller doesn't
		// itself await a _result for).
		return
	}
	go func() {
		v, err := future.Await(ctx)
		if err != nil {
			d.replyError(inv, err)
			return
		}
		d.replySuccess(inv, v)
	}()
}

func (d *Dispatcher) lookupHandler(lower string) (Handler, bool) {
	d.mu.Lock()
	connectHandler := d.onConnect
	d.mu.Unlock()
	if lower == "connect" && connectHandler != nil {
		return connectHandler, true
	}
	if d.resolver == nil {
		return nil, false
	}
	return d.resolver.ResolveInvoke(lower)
}

func (d *Dispatcher) handleReply(lower string, inv *packet.Invoke) {
	d.mu.Lock()
	future, ok := d.pending[inv.ID]
	if ok {
		delete(d.pending, inv.ID)
	}
	d.mu.Unlock()

	if !ok {
		d.log.Warn("dropping reply for unknown invoke id", "id", inv.ID, "name", inv.Name)
		return
	}
	if lower == "_error" {
		var status Status
		if len(inv.Argv) > 1 {
			status = statusFromArg(inv.Argv[1])
		} else {
			status = Status{Code: StatusError, Level: "error", Description: "unknown _error reply"}
		}
		future.Reject(&rtmperrors.DispatchError{Op: "rpc.reply.error", Code: status.Code, Err: fmt.Errorf("%s", status.Description)})
		return
	}
	future.Resolve(inv.Argv)
}

func statusFromArg(v interface{}) Status {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return Status{Code: StatusError, Level: "error", Description: fmt.Sprintf("%v", v)}
	}
	s := Status{}
	if c, ok := obj["code"].(string); ok {
		s.Code = c
	}
	if l, ok := obj["level"].(string); ok {
		s.Level = l
	}
	if desc, ok := obj["description"].(string); ok {
		s.Description = desc
	}
	return s
}

// replySuccess wraps v as [nil, v] per §4.6/§4.7's uniform reply shape and
// sends a _result Invoke with a header copied from the request.
func (d *Dispatcher) replySuccess(inv *packet.Invoke, v interface{}) {
	reply := inv.Reply("_result", nil, v)
	if err := d.sender.SendInvoke(reply); err != nil {
		d.log.Error("failed to send _result reply", "name", inv.Name, "id", inv.ID, "error", err)
	}
}

// replyError sends a _error Invoke carrying Status.from_error(e), header
// copied from the request, per §4.6, then notifies the failure observer.
func (d *Dispatcher) replyError(inv *packet.Invoke, err error) {
	status := StatusFromError(err)
	reply := inv.Reply("_error", nil, status.ToAMF())
	if sendErr := d.sender.SendInvoke(reply); sendErr != nil {
		d.log.Error("failed to send _error reply", "name", inv.Name, "id", inv.ID, "error", sendErr)
	}

	d.mu.Lock()
	observer := d.onFailure
	d.mu.Unlock()
	if observer != nil {
		observer(inv.Name, err)
	}
}
