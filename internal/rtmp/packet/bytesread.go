package packet

import (
	"encoding/binary"
	"fmt"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/rtmp/chunk"
)

// BytesRead carries the cumulative count of bytes the sender has received,
// used by the keep-alive acknowledgement in SPEC_FULL.md §4.5 (type 0x03).
type BytesRead struct {
	Header *chunk.Header
	Count  uint32
}

// NewBytesRead builds a BytesRead with the default header (type 0x03, the
// fixed control channel).
func NewBytesRead(count uint32) *BytesRead {
	return &BytesRead{
		Header: &chunk.Header{ChannelID: ChannelControl, Type: TypeBytesRead},
		Count:  count,
	}
}

func (p *BytesRead) GetHeader() *chunk.Header { return p.Header }

func (p *BytesRead) Encode() ([]byte, error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, p.Count)
	p.Header.Type = TypeBytesRead
	p.Header.Length = 4
	return buf, nil
}

func decodeBytesRead(h *chunk.Header, payload []byte) (*BytesRead, error) {
	if len(payload) < 4 {
		return nil, rtmperrors.NewChunkError("bytesread.decode", fmt.Errorf("need 4 bytes, got %d", len(payload)))
	}
	return &BytesRead{Header: h, Count: binary.BigEndian.Uint32(payload)}, nil
}
