// Package conn implements the Connection State Machine (C5): the
// per-connection goroutine pair that takes a net.Conn through handshake,
// keep-alive, RPC dispatch, and close, per SPEC_FULL.md §4.5 and the
// goroutine-per-connection redesign of §11.1.
//
// Grounded on the donor's internal/rtmp/conn package (Connection, Accept,
// read/write loop shape), adapted from media-message plumbing to generic
// packet dispatch.
package conn

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtmpd/fmsgo/internal/app"
	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/idgen"
	"github.com/rtmpd/fmsgo/internal/logger"
	"github.com/rtmpd/fmsgo/internal/rtmp/chunk"
	"github.com/rtmpd/fmsgo/internal/rtmp/handshake"
	"github.com/rtmpd/fmsgo/internal/rtmp/hooks"
	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

// Config bundles the settings and shared collaborators a Connection needs;
// one Config is shared read-only by every connection a server accepts.
type Config struct {
	ChunkSize        int
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	KeepAliveTimeout time.Duration

	Registry    *app.Registry
	HookManager *hooks.HookManager
}

// Connection is one accepted RTMP client: a handshake state machine, an
// inbound Disassembler and outbound Assembler, an RPC Dispatcher, and the
// Application/Room binding established by "connect". It implements
// app.Client (so application hooks can address it) and rpc.Sender /
// rpc.HandlerResolver (so the rpc package can dispatch through it without
// importing this package).
type Connection struct {
	id         string
	netConn    net.Conn
	remoteAddr string
	log        *slog.Logger
	cfg        Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	disasm *chunk.Disassembler

	asmMu sync.Mutex
	asm   *chunk.Assembler

	outbound chan []byte

	dispatcher *rpc.Dispatcher

	scratchMu sync.Mutex
	scratch   interface{}

	bindingMu   sync.Mutex
	application *app.Application
	room        *app.Room

	lastReceivedAt atomic.Int64
	bytesReceived  atomic.Uint32

	closeOnce sync.Once
}

// New wraps an already-accepted net.Conn. Call Serve to run the connection
// to completion; Serve performs the handshake itself.
func New(netConn net.Conn, cfg Config) *Connection {
	id := idgen.NewConnID()
	log := logger.WithConn(logger.Logger(), id, netConn.RemoteAddr().String())
	ctx, cancel := context.WithCancel(context.Background())

	c := &Connection{
		id:         id,
		netConn:    netConn,
		remoteAddr: netConn.RemoteAddr().String(),
		log:        log,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		disasm:     chunk.NewDisassembler(cfg.ChunkSize),
		asm:        chunk.NewAssembler(cfg.ChunkSize),
		outbound:   make(chan []byte, 64),
	}
	c.dispatcher = rpc.NewDispatcher(c, c, log)
	c.dispatcher.SetConnectHandler(c.handleConnect)
	c.dispatcher.SetFailureObserver(func(name string, err error) {
		c.emitEvent(hooks.EventInvokeFailed, map[string]interface{}{
			"invoke": name,
			"error":  err.Error(),
		})
	})
	return c
}

// ID returns the connection's process-unique identifier.
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the peer's address string.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// Logger returns this connection's decorated logger.
func (c *Connection) Logger() *slog.Logger { return c.log }

// SetScratch stores the application-opaque per-connection value (§3
// "application-opaque per-client scratch storage").
func (c *Connection) SetScratch(v interface{}) {
	c.scratchMu.Lock()
	defer c.scratchMu.Unlock()
	c.scratch = v
}

// Scratch returns the last value SetScratch stored, or nil.
func (c *Connection) Scratch() interface{} {
	c.scratchMu.Lock()
	defer c.scratchMu.Unlock()
	return c.scratch
}

// Invoke sends an outbound RPC call over this connection (app.Client).
func (c *Connection) Invoke(name string, args ...interface{}) (*rpc.Future, error) {
	return c.dispatcher.Invoke(name, args...)
}

// Serve runs the handshake, then the read/write/keep-alive loops, blocking
// until the connection closes. Callers typically invoke this on its own
// goroutine per accepted connection.
func (c *Connection) Serve() {
	defer c.Close()

	if err := handshake.Accept(c.netConn, c.cfg.HandshakeTimeout); err != nil {
		c.log.Warn("handshake failed", "error", err)
		return
	}
	c.touch()
	c.emitEvent(hooks.EventHandshakeComplete, nil)
	c.log.Info("handshake complete")

	c.wg.Add(1)
	go c.writeLoop()

	c.wg.Add(1)
	go c.keepAliveLoop()

	c.readLoop()
}

// Close tears the connection down: cancels the context, closes the socket,
// fails every pending outbound invoke, and detaches from the bound
// application/room, per SPEC_FULL.md §5 "Cancellation".
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.netConn.Close()

		c.dispatcher.FailPending(rtmperrors.NewProtocolError("conn.closed", fmt.Errorf("connection closed")))

		c.bindingMu.Lock()
		a, r := c.application, c.room
		c.application, c.room = nil, nil
		c.bindingMu.Unlock()
		if a != nil && r != nil {
			a.Leave(c, r)
		}

		c.wg.Wait()
		c.log.Info("connection closed")
	})
	return nil
}

func (c *Connection) touch() {
	c.lastReceivedAt.Store(time.Now().UnixNano())
}

func (c *Connection) emitEvent(t hooks.EventType, data map[string]interface{}) {
	if c.cfg.HookManager == nil {
		return
	}
	ev := hooks.NewEvent(t).WithConnID(c.id)
	for k, v := range data {
		ev = ev.WithData(k, v)
	}
	c.cfg.HookManager.TriggerEvent(c.ctx, *ev)
}
