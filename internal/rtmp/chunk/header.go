// Package chunk implements the RTMP chunk header codec and the
// disassembler/assembler that turn a byte stream into RTMP messages and back.
//
// The wire format modeled here is the simplified 6-bit-channel scheme used by
// this server (see DESIGN.md): no extended chunk-stream-id forms, no extended
// timestamp marker. Grounded directly on the original implementation's
// RTMPHeader (fmspy/rtmp/header.py).
package chunk

import (
	"fmt"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
)

// MaxChannelID is the largest representable channel id (6 bits).
const MaxChannelID = 63

// Header is an RTMP chunk header. Not every field is necessarily populated;
// the hasX flags record which suffix of {StreamID, Type+Length, Timestamp}
// was present on the wire for this particular chunk, so that Fill can apply
// per-channel inheritance before the header is considered complete.
type Header struct {
	ChannelID uint8
	Timestamp uint32 // 24-bit
	Length    uint32 // 24-bit
	Type      uint8
	StreamID  uint32

	hasTimestamp bool
	hasBody      bool // Length and Type travel together
	hasStreamID  bool
}

// NeedBytesError signals that the buffer passed to Read did not contain
// enough bytes to decode a complete header; N is how many more bytes are
// required for the read to be retried against a recorded start offset.
type NeedBytesError struct{ N int }

func (e *NeedBytesError) Error() string { return fmt.Sprintf("need %d more bytes", e.N) }

// Diff mirrors the source's RTMPHeader.diff: 0 identical (1-byte form), 1
// only timestamp differs (4-byte), 2 stream id same (8-byte), 3 stream id
// differs or no previous header (12-byte).
func Diff(h, previous *Header) int {
	if previous == nil {
		return 3
	}
	if h.StreamID != previous.StreamID {
		return 3
	}
	if h.Length != previous.Length || h.Type != previous.Type {
		return 2
	}
	if h.Timestamp != previous.Timestamp {
		return 1
	}
	return 0
}

// formByteLen maps a wire form (top 2 bits of the lead byte) to its total
// encoded size in bytes, including the lead byte.
func formByteLen(form byte) int {
	switch form {
	case 0:
		return 12
	case 1:
		return 8
	case 2:
		return 4
	default:
		return 1
	}
}

// ReadHeader decodes one chunk header from the front of buf. On success it
// returns the header and the number of bytes consumed. If buf does not yet
// contain a complete header, it returns a *NeedBytesError and the caller
// must retry once more data has arrived; buf is left untouched in that case.
func ReadHeader(buf []byte) (*Header, int, error) {
	if len(buf) < 1 {
		return nil, 0, &NeedBytesError{N: 1}
	}
	lead := buf[0]
	form := lead >> 6
	size := formByteLen(form)
	if len(buf) < size {
		return nil, 0, &NeedBytesError{N: size - len(buf)}
	}

	h := &Header{ChannelID: lead & 0x3F}
	off := 1

	if form <= 2 { // 4, 8, or 12 byte form: timestamp present
		h.Timestamp = be24(buf[off:])
		h.hasTimestamp = true
		off += 3
	}
	if form <= 1 { // 8 or 12 byte form: length+type present
		h.Length = be24(buf[off:])
		off += 3
		h.Type = buf[off]
		off++
		h.hasBody = true
	}
	if form == 0 { // 12 byte form: stream id present
		h.StreamID = le32(buf[off:])
		off += 4
		h.hasStreamID = true
	}
	return h, off, nil
}

// Fill applies per-channel header inheritance: any field this header's wire
// form omitted is copied from previous, right to left (StreamID, then
// Type+Length, then Timestamp). After Fill every field must be populated;
// a header that arrives on a channel with no prior full header, and that is
// itself not full-form, is malformed (the channel's first header must be a
// complete 12-byte header). A header that carries Type+Length but no
// Timestamp is rejected even when previous is set.
func Fill(h, previous *Header) error {
	if h.hasBody && !h.hasTimestamp {
		return rtmperrors.NewChunkError("chunk.fill.missing_timestamp", fmt.Errorf("channel %d: length/type present without timestamp", h.ChannelID))
	}
	if !h.hasStreamID {
		if previous == nil {
			return rtmperrors.NewChunkError("chunk.fill.missing_stream_id", fmt.Errorf("channel %d: no prior header", h.ChannelID))
		}
		h.StreamID = previous.StreamID
	}
	if !h.hasBody {
		if previous == nil {
			return rtmperrors.NewChunkError("chunk.fill.missing_body", fmt.Errorf("channel %d: no prior header", h.ChannelID))
		}
		h.Length = previous.Length
		h.Type = previous.Type
	}
	if !h.hasTimestamp {
		if previous == nil {
			return rtmperrors.NewChunkError("chunk.fill.missing_timestamp", fmt.Errorf("channel %d: no prior header", h.ChannelID))
		}
		h.Timestamp = previous.Timestamp
	}
	h.hasStreamID, h.hasBody, h.hasTimestamp = true, true, true
	return nil
}

// WriteHeader encodes h against previous (the last header sent on this
// channel, or nil) choosing the smallest compatible wire form, and appends
// the encoding to dst.
func WriteHeader(dst []byte, h, previous *Header) []byte {
	form := byte(3 - Diff(h, previous))
	dst = append(dst, (form<<6)|(h.ChannelID&0x3F))
	if form <= 2 {
		dst = appendBE24(dst, h.Timestamp)
	}
	if form <= 1 {
		dst = appendBE24(dst, h.Length)
		dst = append(dst, h.Type)
	}
	if form == 0 {
		dst = appendLE32(dst, h.StreamID)
	}
	return dst
}

func be24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func appendBE24(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>16), byte(v>>8), byte(v))
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func appendLE32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
