package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/logger"
	"github.com/rtmpd/fmsgo/internal/rtmp/chunk"
	"github.com/rtmpd/fmsgo/internal/rtmp/packet"
	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

const readBufferSize = 4096

// readLoop owns the Disassembler exclusively and runs on the goroutine that
// called Serve. Every arriving byte updates the idle/keep-alive counters
// before being handed to the Disassembler (§4.5 "Inbound pipeline").
func (c *Connection) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.netConn.Read(buf)
		if n > 0 {
			c.touch()
			c.bytesReceived.Add(uint32(n))
			c.disasm.PushData(buf[:n])
			if derr := c.drainFrames(); derr != nil {
				c.log.Warn("disassemble error, closing connection", "error", derr)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || c.ctx.Err() != nil {
				return
			}
			c.log.Warn("read error, closing connection", "error", err)
			return
		}
	}
}

func (c *Connection) drainFrames() error {
	for {
		frame, err := c.disasm.Disassemble()
		if err != nil {
			return err
		}
		if frame == nil {
			return nil
		}
		p, err := packet.Decode(frame.Header, frame.Payload)
		if err != nil {
			return err
		}
		if _, raw := p.(*packet.RawData); !raw {
			// Invoke/Ping/BytesRead copy everything they need out of the
			// payload bytes during decode; RawData keeps the slice itself
			// (it re-emits it verbatim), so only it keeps the buffer.
			chunk.ReleasePayload(frame.Payload)
		}
		c.dispatchPacket(p)
	}
}

func (c *Connection) dispatchPacket(p packet.Packet) {
	switch v := p.(type) {
	case *packet.Invoke:
		c.dispatcher.HandleInbound(c.ctx, v)
	case *packet.Ping:
		c.handlePing(v)
	case *packet.BytesRead:
		// Informational only; the sender's own byte counter already drives
		// its keep-alive logic. Nothing to do here.
	case *packet.RawData:
		if v.Header.Type == packet.TypeChunkSize && len(v.Payload) >= 4 {
			// Takes effect on the next chunk boundary; safe here because the
			// read goroutine owns the disassembler and is between frames.
			size := int(v.Payload[0])<<24 | int(v.Payload[1])<<16 | int(v.Payload[2])<<8 | int(v.Payload[3])
			if size > 0 {
				c.disasm.SetChunkSize(size)
				c.log.Debug("inbound chunk size changed", "chunk_size", size)
				return
			}
		}
		h := v.GetHeader()
		logger.WithMessageMeta(c.log, fmt.Sprintf("0x%02x", h.Type), int(h.ChannelID), h.StreamID, h.Timestamp).
			Debug("dropping unhandled packet")
	default:
		h := v.GetHeader()
		logger.WithMessageMeta(c.log, fmt.Sprintf("0x%02x", h.Type), int(h.ChannelID), h.StreamID, h.Timestamp).
			Debug("dropping unhandled packet")
	}
}

// writeLoop drains already-chunked bytes from outbound onto the network
// connection. It never touches the Assembler; writePacket chunks each packet
// on the sending goroutine under asmMu.
func (c *Connection) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case chunked, ok := <-c.outbound:
			if !ok {
				return
			}
			if _, err := c.netConn.Write(chunked); err != nil {
				c.log.Warn("write failed, closing connection", "error", err)
				go c.Close()
				return
			}
		}
	}
}

// keepAliveLoop implements §4.5's keep-alive tick: close on inactivity past
// KeepAliveTimeout, ping on inactivity past PingInterval, and always report
// the running byte count.
func (c *Connection) keepAliveLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			last := time.Unix(0, c.lastReceivedAt.Load())
			idle := now.Sub(last)

			if idle > c.cfg.KeepAliveTimeout {
				c.log.Warn("keep-alive timeout, closing connection", "idle", idle)
				go c.Close()
				return
			}
			if idle > c.cfg.PingInterval {
				nowMs := uint32(now.UnixMilli() & 0x7FFFFFFF)
				if err := c.writePacket(packet.NewPing(packet.PingClient, nowMs)); err != nil {
					c.log.Debug("ping send failed", "error", err)
				}
			}
			if err := c.writePacket(packet.NewBytesRead(c.bytesReceived.Load())); err != nil {
				c.log.Debug("bytes-read send failed", "error", err)
			}
		}
	}
}

// handlePing answers inbound Ping control messages per §4.5's dispatch
// table. PONG_SERVER and the first-ping marker are pure liveness signals
// already counted by touch(); they need no reply.
func (c *Connection) handlePing(p *packet.Ping) {
	switch p.Event {
	case packet.PingClientBuffer:
		var echo uint32
		if len(p.Data) > 0 {
			echo = p.Data[0]
		}
		_ = c.writePacket(packet.NewPing(packet.PingStreamClear, echo))
	case packet.PingClient:
		_ = c.writePacket(packet.NewPing(packet.PongServer, p.Data...))
	case packet.PongServer, packet.PingFirst:
		// Liveness only; no-op.
	default:
		c.log.Debug("dropping unhandled ping event", "event", p.Event)
	}
}

// SendInvoke implements rpc.Sender.
func (c *Connection) SendInvoke(inv *packet.Invoke) error {
	return c.writePacket(inv)
}

// writePacket encodes p, chunks it against this connection's Assembler
// state, and enqueues the bytes for the write loop. Encode-and-assemble is
// done under asmMu so the assembler's per-channel "last sent header" is
// never corrupted by concurrent senders (outbound invokes and keep-alive
// pings both call this from different goroutines).
func (c *Connection) writePacket(p packet.Packet) error {
	payload, err := p.Encode()
	if err != nil {
		return err
	}

	c.asmMu.Lock()
	chunked := c.asm.Assemble(p.GetHeader(), payload)
	c.asmMu.Unlock()

	select {
	case c.outbound <- chunked:
		return nil
	case <-c.ctx.Done():
		return rtmperrors.NewProtocolError("conn.write", context.Canceled)
	}
}

// ResolveInvoke implements rpc.HandlerResolver, routing to the bound
// application's named handler (§4.6 "look up handler ... on the bound
// application").
func (c *Connection) ResolveInvoke(name string) (rpc.Handler, bool) {
	c.bindingMu.Lock()
	a := c.application
	c.bindingMu.Unlock()
	if a == nil {
		return nil, false
	}
	h, ok := a.Handler(name)
	if !ok {
		return nil, false
	}
	return func(argv []interface{}) (*rpc.Future, error) {
		// The wire convention puts a null sentinel ahead of the real
		// arguments; application handlers never see it.
		if len(argv) > 0 && argv[0] == nil {
			argv = argv[1:]
		}
		return h(c, argv)
	}, true
}
