package conn

import (
	"context"
	"fmt"
	"strings"
	"time"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/rtmp/packet"
	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

// handleConnect is wired to the dispatcher as the "connect" handler (C7
// step 1-5). It fires the first ping unconditionally before anything else,
// then resolves params.app against the application registry, runs the full
// connect chain, binds this connection to the resulting room, and returns a
// connect-success Status for the dispatcher to wrap as the _result reply.
func (c *Connection) handleConnect(argv []interface{}) (*rpc.Future, error) {
	c.emitFirstPing()

	appPath, err := connectAppPath(argv)
	if err != nil {
		return nil, err
	}

	if c.cfg.Registry == nil {
		return nil, rtmperrors.NewDispatchErrorWithCode(
			"conn.connect", rpc.StatusConnectInvalidApp, fmt.Errorf("no application registry configured"))
	}

	application, tail, err := c.cfg.Registry.ResolveConnectPath(appPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.connectTimeout())
	defer cancel()

	room, err := application.Connect(ctx, c, tail)
	if err != nil {
		return nil, err
	}

	c.bindingMu.Lock()
	c.application, c.room = application, room
	c.bindingMu.Unlock()

	status := rpc.NewStatus(rpc.StatusConnectSuccess, "Connect OK")
	return rpc.Resolved(status.ToAMF()), nil
}

// connectTimeout bounds how long the connect chain's application hooks may
// take; there is no dedicated config knob for this, so it reuses the
// handshake timeout as a generous, already-configured upper bound.
func (c *Connection) connectTimeout() time.Duration {
	if c.cfg.HandshakeTimeout > 0 {
		return c.cfg.HandshakeTimeout
	}
	return 10 * time.Second
}

// emitFirstPing sends Ping(event=8, [0, 1, now_ms]) ahead of the connect
// reply, per SPEC_FULL.md §4.5 "First ping".
func (c *Connection) emitFirstPing() {
	nowMs := uint32(time.Now().UnixMilli() & 0x7FFFFFFF)
	if err := c.writePacket(packet.NewPing(packet.PingFirst, 0, 1, nowMs)); err != nil {
		c.log.Debug("first ping send failed", "error", err)
	}
}

func connectAppPath(argv []interface{}) (string, error) {
	if len(argv) == 0 {
		return "", rtmperrors.NewDispatchErrorWithCode(
			"conn.connect", rpc.StatusConnectInvalidApp, fmt.Errorf("connect called with no params"))
	}
	params, ok := argv[0].(map[string]interface{})
	if !ok {
		return "", rtmperrors.NewDispatchErrorWithCode(
			"conn.connect", rpc.StatusConnectInvalidApp, fmt.Errorf("connect params must be an object, got %T", argv[0]))
	}
	app, ok := params["app"].(string)
	if !ok || strings.TrimSpace(app) == "" {
		return "", rtmperrors.NewDispatchErrorWithCode(
			"conn.connect", rpc.StatusConnectInvalidApp, fmt.Errorf("connect params missing app"))
	}
	return app, nil
}
