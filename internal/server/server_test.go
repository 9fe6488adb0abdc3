package server

import (
	"net"
	"testing"
	"time"

	"github.com/rtmpd/fmsgo/internal/app"
	"github.com/rtmpd/fmsgo/internal/app/examples"
	"github.com/rtmpd/fmsgo/internal/rtmp/chunk"
	"github.com/rtmpd/fmsgo/internal/rtmp/handshake"
	"github.com/rtmpd/fmsgo/internal/rtmp/packet"
)

func newTestRegistry() *app.Registry {
	r := app.NewRegistry()
	echo := examples.NewEcho()
	echo.SetEnabled(true)
	r.Register(echo)
	return r
}

func TestServerStartStop(t *testing.T) {
	s := New(Config{ListenAddr: ":0"}, newTestRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if s.Addr() == nil {
		t.Fatalf("expected non-nil addr")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestServerAcceptConnection(t *testing.T) {
	s := New(Config{ListenAddr: ":0"}, newTestRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	c, err := net.DialTimeout("tcp", s.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.ConnectionCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", s.ConnectionCount())
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	s := New(Config{ListenAddr: ":0"}, newTestRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	c, err := net.DialTimeout("tcp", s.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.ConnectionCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", s.ConnectionCount())
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	c.SetWriteDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	for i := 0; i < 5; i++ {
		if _, err := c.Write(buf); err != nil {
			return
		}
	}
	t.Fatalf("expected write error after stop")
}

// TestServerEndToEndConnectAndInvoke dials a real TCP connection, runs the
// handshake, connects into the echo application, and invokes echo, proving
// the accept loop wires conn.Connection to the application registry.
func TestServerEndToEndConnectAndInvoke(t *testing.T) {
	s := New(Config{ListenAddr: ":0", PingInterval: time.Hour, KeepAliveTimeout: time.Hour}, newTestRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	raw, err := net.DialTimeout("tcp", s.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer raw.Close()

	c1 := make([]byte, handshake.PacketSize)
	if _, err := raw.Write(append([]byte{handshake.Version}, c1...)); err != nil {
		t.Fatalf("write c0c1: %v", err)
	}
	resp := make([]byte, 1+2*handshake.PacketSize)
	if _, err := readFull(raw, resp); err != nil {
		t.Fatalf("read s0s1s2: %v", err)
	}
	if _, err := raw.Write(make([]byte, handshake.PacketSize)); err != nil {
		t.Fatalf("write c2: %v", err)
	}

	asm := chunk.NewAssembler(128)
	sendInvoke := func(name string, id float64, argv ...interface{}) {
		inv := packet.NewInvoke(name, id, argv...)
		payload, err := inv.Encode()
		if err != nil {
			t.Fatalf("encode invoke: %v", err)
		}
		if _, err := raw.Write(asm.Assemble(inv.GetHeader(), payload)); err != nil {
			t.Fatalf("write invoke: %v", err)
		}
	}
	sendInvoke("connect", 1.0, map[string]interface{}{"app": "echo"})

	disasm := chunk.NewDisassembler(128)
	readPacket := func() packet.Packet {
		buf := make([]byte, 4096)
		deadline := time.Now().Add(2 * time.Second)
		for {
			frame, err := disasm.Disassemble()
			if err != nil {
				t.Fatalf("disassemble: %v", err)
			}
			if frame != nil {
				p, err := packet.Decode(frame.Header, frame.Payload)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				return p
			}
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for a packet")
			}
			raw.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
			n, err := raw.Read(buf)
			if n > 0 {
				disasm.PushData(buf[:n])
			}
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
			}
		}
	}

	first := readPacket()
	if _, ok := first.(*packet.Ping); !ok {
		t.Fatalf("expected first ping, got %#v", first)
	}
	reply := readPacket()
	inv, ok := reply.(*packet.Invoke)
	if !ok || inv.Name != "_result" || inv.ID != 1.0 {
		t.Fatalf("expected connect _result, got %#v", reply)
	}

	sendInvoke("echo", 2.0, "hi")
	echoReply := readPacket()
	echoInv, ok := echoReply.(*packet.Invoke)
	if !ok || echoInv.Name != "_result" || echoInv.ID != 2.0 {
		t.Fatalf("expected echo _result, got %#v", echoReply)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
