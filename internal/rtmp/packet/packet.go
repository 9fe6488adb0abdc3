// Package packet implements the RTMP packet taxonomy (C4): the mapping from
// a chunk header's message type to a concrete, self-encoding/decoding kind.
//
// Grounded on fmspy/rtmp/packets.py's packetFactory and class hierarchy
// (Invoke/Ping/BytesRead/DataPacket), styled after the teacher's
// internal/rtmp/amf codec files: one type per file where it stands alone,
// dispatch table and shared constants here.
package packet

import (
	"github.com/rtmpd/fmsgo/internal/rtmp/chunk"
)

// Message type codes from SPEC_FULL.md §6. Only Invoke/Ping/BytesRead get a
// dedicated codec; everything else decodes as RawData.
const (
	TypeChunkSize = 0x01
	TypeBytesRead = 0x03
	TypePing      = 0x04
	TypeInvoke    = 0x14
)

// ChannelControl is the fixed channel used for BytesRead and Ping, per
// SPEC_FULL.md §11.4 open question 3 and DESIGN.md.
const ChannelControl = 2

// ChannelInvoke is the default channel for Invoke packets (§3).
const ChannelInvoke = 3

// Packet is the tagged-union contract every packet kind satisfies.
type Packet interface {
	// GetHeader returns the chunk header carried alongside this packet's
	// payload. Callers may mutate Length before re-encoding; Encode always
	// overwrites it with the true encoded length.
	GetHeader() *chunk.Header
	// Encode serializes the payload (not the header) to bytes, and sets
	// GetHeader().Length to the resulting length.
	Encode() ([]byte, error)
}

// Decode dispatches on header.Type to build the concrete Packet for a fully
// reassembled chunk::chunk.Frame payload. Unknown types decode as RawData.
func Decode(h *chunk.Header, payload []byte) (Packet, error) {
	switch h.Type {
	case TypeInvoke:
		return decodeInvoke(h, payload)
	case TypeBytesRead:
		return decodeBytesRead(h, payload)
	case TypePing:
		return decodePing(h, payload)
	default:
		return &RawData{Header: h, Payload: payload}, nil
	}
}

// RawData is the fallback packet kind for message types this server does
// not otherwise interpret (audio/video/shared-object/etc, per §6).
type RawData struct {
	Header  *chunk.Header
	Payload []byte
}

func (p *RawData) GetHeader() *chunk.Header { return p.Header }

func (p *RawData) Encode() ([]byte, error) {
	p.Header.Length = uint32(len(p.Payload))
	return p.Payload, nil
}

func cloneHeader(h *chunk.Header) *chunk.Header {
	cp := *h
	return &cp
}
