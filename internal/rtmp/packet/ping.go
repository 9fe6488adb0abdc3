package packet

import (
	"encoding/binary"
	"fmt"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/rtmp/chunk"
)

// Ping event codes, normative per SPEC_FULL.md §4.4.
const (
	PingStreamClear           = 0
	PingStreamPlaybufferClear = 1
	PingClientBuffer          = 3
	PingStreamReset           = 4
	PingClient                = 6
	PongServer                = 7
	PingFirst                 = 8 // "you are online", observed only as the server's first ping
)

// Ping carries a control event code and 1-3 32-bit data words (type 0x04).
// Grounded on fmspy/rtmp/packets.py's Ping.
type Ping struct {
	Header *chunk.Header
	Event  uint16
	Data   []uint32
}

// NewPing builds a Ping with the default header (type 0x04, the fixed
// control channel).
func NewPing(event uint16, data ...uint32) *Ping {
	return &Ping{
		Header: &chunk.Header{ChannelID: ChannelControl, Type: TypePing},
		Event:  event,
		Data:   data,
	}
}

func (p *Ping) GetHeader() *chunk.Header { return p.Header }

func (p *Ping) Encode() ([]byte, error) {
	buf := make([]byte, 2+4*len(p.Data))
	binary.BigEndian.PutUint16(buf, p.Event)
	for i, w := range p.Data {
		binary.BigEndian.PutUint32(buf[2+4*i:], w)
	}
	p.Header.Type = TypePing
	p.Header.Length = uint32(len(buf))
	return buf, nil
}

func decodePing(h *chunk.Header, payload []byte) (*Ping, error) {
	if len(payload) < 6 {
		return nil, rtmperrors.NewChunkError("ping.decode", fmt.Errorf("need at least 6 bytes (event + one data word), got %d", len(payload)))
	}
	p := &Ping{Header: h, Event: binary.BigEndian.Uint16(payload)}
	rest := payload[2:]
	p.Data = append(p.Data, binary.BigEndian.Uint32(rest))
	rest = rest[4:]
	for len(rest) >= 4 && len(p.Data) < 3 {
		p.Data = append(p.Data, binary.BigEndian.Uint32(rest))
		rest = rest[4:]
	}
	return p, nil
}
