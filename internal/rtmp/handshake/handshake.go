// Package handshake implements the server-side RTMP simple handshake:
// version byte + 1536-byte block, echoed twice, followed by a tolerant
// C2 read. Client-side handshake is out of scope for this server (the
// donor tree's symmetric client-side FSM has no caller here).
//
// Grounded on the donor's internal/rtmp/handshake/server.go, simplified to
// the byte-echo scheme SPEC_FULL.md §4.5 specifies: S1/S2 are the received
// C1 block repeated, not a freshly generated timestamp+random block, and C2
// is consumed without content verification.
package handshake

import (
	"fmt"
	"io"
	"net"
	"time"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
)

// Version is the only handshake version byte this server accepts.
const Version byte = 0x03

// PacketSize is the fixed size of the C1/S1/S2/C2 handshake blocks.
const PacketSize = 1536

// Accept performs the server-side handshake on conn, bounded by timeout.
// On success conn is positioned immediately after C2, ready for chunked
// RTMP traffic. Deadlines set during the handshake are cleared before
// returning so later reads/writes are not spuriously bounded by them.
func Accept(conn net.Conn, timeout time.Duration) error {
	if conn == nil {
		return rtmperrors.NewHandshakeError("handshake.accept", fmt.Errorf("nil conn"))
	}
	deadline := time.Now().Add(timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return rtmperrors.NewHandshakeError("handshake.set_deadline", err)
	}
	defer conn.SetDeadline(time.Time{})

	c0c1 := make([]byte, 1+PacketSize)
	if _, err := io.ReadFull(conn, c0c1); err != nil {
		return wrapReadErr("handshake.read_c0c1", timeout, err)
	}
	if c0c1[0] != Version {
		return rtmperrors.NewHandshakeError("handshake.validate_version",
			fmt.Errorf("unsupported version 0x%02x", c0c1[0]))
	}
	c1 := c0c1[1:]

	out := make([]byte, 1+2*PacketSize)
	out[0] = Version
	copy(out[1:1+PacketSize], c1)
	copy(out[1+PacketSize:], c1)
	if _, err := conn.Write(out); err != nil {
		return wrapWriteErr("handshake.write_s0s1s2", timeout, err)
	}

	c2 := make([]byte, PacketSize)
	if _, err := io.ReadFull(conn, c2); err != nil {
		return wrapReadErr("handshake.read_c2", timeout, err)
	}
	return nil
}

func wrapReadErr(op string, timeout time.Duration, err error) error {
	if isTimeout(err) {
		return rtmperrors.NewTimeoutError(op, timeout, err)
	}
	return rtmperrors.NewHandshakeError(op, err)
}

func wrapWriteErr(op string, timeout time.Duration, err error) error {
	if isTimeout(err) {
		return rtmperrors.NewTimeoutError(op, timeout, err)
	}
	return rtmperrors.NewHandshakeError(op, err)
}

func isTimeout(err error) bool {
	type to interface{ Timeout() bool }
	ne, ok := err.(to)
	return ok && ne.Timeout()
}
