package chunk

// Assembler turns an RTMP message (header + payload) into a chunked byte
// stream, splitting the payload into chunkSize-sized pieces and writing a
// continuation header ahead of every piece after the first.
//
// Grounded on fmspy/rtmp/assembly.py's push_packet: the first chunk's header
// is diffed against the channel's last sent header (enabling the compact
// forms); every continuation chunk's header is diffed against the message's
// own header, which is always identical and so always encodes as the 1-byte
// channel-only form.
type Assembler struct {
	chunkSize   int
	lastHeaders map[uint8]*Header
}

// NewAssembler creates an Assembler with the given initial chunk size.
func NewAssembler(chunkSize int) *Assembler {
	return &Assembler{
		chunkSize:   chunkSize,
		lastHeaders: make(map[uint8]*Header),
	}
}

// SetChunkSize updates the chunk size used to slice subsequent messages.
func (a *Assembler) SetChunkSize(n int) { a.chunkSize = n }

// Assemble encodes one message as a chunked byte sequence. h.Length is set
// to len(payload) before encoding, overwriting whatever the caller supplied.
func (a *Assembler) Assemble(h *Header, payload []byte) []byte {
	h.Length = uint32(len(payload))

	previous := a.lastHeaders[h.ChannelID]
	out := WriteHeader(nil, h, previous)

	first := a.chunkSize
	if first > len(payload) {
		first = len(payload)
	}
	out = append(out, payload[:first]...)

	for pos := first; pos < len(payload); pos += a.chunkSize {
		end := pos + a.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		out = WriteHeader(out, h, h)
		out = append(out, payload[pos:end]...)
	}

	sent := *h
	a.lastHeaders[h.ChannelID] = &sent
	return out
}
