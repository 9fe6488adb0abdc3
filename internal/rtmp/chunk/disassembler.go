package chunk

import "github.com/rtmpd/fmsgo/internal/bufpool"

// Disassembler reconstructs RTMP messages from a chunked byte stream.
//
// Grounded on fmspy/rtmp/assembly.py's RTMPDisassembler: communication goes
// independently per channel id. lastHeaders records the last fully-populated
// header seen on each channel (for Fill); pool holds the in-progress payload
// for a channel whose message has not yet been completely received, backed
// by internal/bufpool so repeated same-size messages (the common case: a
// connection's Invokes cluster around a handful of payload sizes) reuse a
// buffer instead of allocating fresh on every chunked message.

// Frame is one fully reassembled RTMP message: a complete header and its
// payload, ready for decoding by the packet codec registry. Payload was
// taken from internal/bufpool; once the caller is done with it (after
// decoding into a packet that does not retain the raw bytes), it should be
// returned via ReleasePayload.
type Frame struct {
	Header  *Header
	Payload []byte
}

// pending tracks one channel's in-progress payload accumulation: a
// pool-backed buffer sized to the final message length, filled
// incrementally as chunks arrive.
type pending struct {
	buf     []byte
	written int
}

// Disassembler is not safe for concurrent use; a connection's read goroutine
// owns it exclusively (see SPEC_FULL.md §11.1).
type Disassembler struct {
	chunkSize   int
	buf         []byte
	lastHeaders map[uint8]*Header
	pool        map[uint8]*pending
}

// NewDisassembler creates a Disassembler with the given initial chunk size.
func NewDisassembler(chunkSize int) *Disassembler {
	return &Disassembler{
		chunkSize:   chunkSize,
		lastHeaders: make(map[uint8]*Header),
		pool:        make(map[uint8]*pending),
	}
}

// ReleasePayload returns a Frame's Payload to the shared buffer pool. Callers
// must not touch buf again afterward, and must not call this for a payload a
// packet kind (RawData) still holds a reference to.
func ReleasePayload(buf []byte) { bufpool.Put(buf) }

// SetChunkSize updates the chunk size used to slice subsequent chunks. Per
// SPEC_FULL.md §4.2, changing chunk size mid-batch is only safe at a chunk
// boundary; callers that process a chunk-size-change control message must
// call this between calls to Disassemble, never from within one.
func (d *Disassembler) SetChunkSize(n int) { d.chunkSize = n }

// PushData appends newly received bytes to the input buffer.
func (d *Disassembler) PushData(b []byte) {
	d.buf = append(d.buf, b...)
}

// Disassemble attempts to produce one complete Frame from the buffered
// input. It returns (nil, nil) if not enough data has arrived yet to
// complete a message. A non-nil error indicates the stream is malformed and
// the connection must be closed.
func (d *Disassembler) Disassemble() (*Frame, error) {
	for len(d.buf) > 0 {
		hdr, n, err := ReadHeader(d.buf)
		if err != nil {
			var nb *NeedBytesError
			if ok := asNeedBytes(err, &nb); ok {
				return nil, nil
			}
			return nil, err
		}

		prev := d.lastHeaders[hdr.ChannelID]
		if err := Fill(hdr, prev); err != nil {
			return nil, err
		}

		p, ok := d.pool[hdr.ChannelID]
		written := 0
		if ok {
			written = p.written
		}
		need := int(hdr.Length) - written
		chunkToRead := need
		if chunkToRead > d.chunkSize {
			chunkToRead = d.chunkSize
		}
		if chunkToRead < 0 {
			chunkToRead = 0
		}

		if len(d.buf)-n < chunkToRead {
			// Not enough bytes for this chunk yet; leave buf untouched.
			return nil, nil
		}

		// Take the pool buffer only once this chunk is guaranteed to land in
		// it, so a partial read never strands an unreturned buffer.
		if !ok {
			p = &pending{buf: bufpool.Get(int(hdr.Length))}
		}

		copy(p.buf[p.written:], d.buf[n:n+chunkToRead])
		p.written += chunkToRead
		d.lastHeaders[hdr.ChannelID] = hdr
		d.buf = d.buf[n+chunkToRead:]

		if p.written < int(hdr.Length) {
			d.pool[hdr.ChannelID] = p
			continue
		}

		delete(d.pool, hdr.ChannelID)
		return &Frame{Header: hdr, Payload: p.buf}, nil
	}
	return nil, nil
}

// DisassembleAll repeatedly calls Disassemble until no more frames are
// available. Per SPEC_FULL.md §4.2 this is unsafe across a chunk-size change
// and is intended for constant-chunk-size batches and tests.
func (d *Disassembler) DisassembleAll() ([]*Frame, error) {
	var out []*Frame
	for {
		f, err := d.Disassemble()
		if err != nil {
			return out, err
		}
		if f == nil {
			return out, nil
		}
		out = append(out, f)
	}
}

func asNeedBytes(err error, target **NeedBytesError) bool {
	if nb, ok := err.(*NeedBytesError); ok {
		*target = nb
		return true
	}
	return false
}
