package packet

import (
	"fmt"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
	"github.com/rtmpd/fmsgo/internal/rtmp/amf"
	"github.com/rtmpd/fmsgo/internal/rtmp/chunk"
)

// Invoke carries an RPC call or reply: a procedure name, a correlation id,
// and a heterogeneous argument vector. Grounded on fmspy/rtmp/packets.py's
// Invoke (wire type 0x14).
type Invoke struct {
	Header *chunk.Header
	Name   string
	ID     float64
	Argv   []interface{}
}

// NewInvoke builds an Invoke with the default header (type 0x14, channel 3,
// timestamp/stream id zero — callers on a live connection overwrite these
// as needed before sending).
func NewInvoke(name string, id float64, argv ...interface{}) *Invoke {
	return &Invoke{
		Header: &chunk.Header{ChannelID: ChannelInvoke, Type: TypeInvoke},
		Name:   name,
		ID:     id,
		Argv:   argv,
	}
}

func (p *Invoke) GetHeader() *chunk.Header { return p.Header }

// Encode AMF0-encodes (name, id, *argv) in order and stamps Header.Length.
func (p *Invoke) Encode() ([]byte, error) {
	values := make([]interface{}, 0, 2+len(p.Argv))
	values = append(values, p.Name, p.ID)
	values = append(values, p.Argv...)
	buf, err := amf.EncodeAll(values...)
	if err != nil {
		return nil, rtmperrors.NewAMFError("invoke.encode", err)
	}
	p.Header.Type = TypeInvoke
	p.Header.Length = uint32(len(buf))
	return buf, nil
}

func decodeInvoke(h *chunk.Header, payload []byte) (*Invoke, error) {
	values, err := amf.DecodeAll(payload)
	if err != nil {
		return nil, rtmperrors.NewAMFError("invoke.decode", err)
	}
	if len(values) < 2 {
		return nil, rtmperrors.NewAMFError("invoke.decode", fmt.Errorf("expected at least name+id, got %d values", len(values)))
	}
	name, ok := values[0].(string)
	if !ok {
		return nil, rtmperrors.NewAMFError("invoke.decode.name", fmt.Errorf("first value must be a string, got %T", values[0]))
	}
	id, ok := values[1].(float64)
	if !ok {
		return nil, rtmperrors.NewAMFError("invoke.decode.id", fmt.Errorf("second value must be a number, got %T", values[1]))
	}
	return &Invoke{Header: h, Name: name, ID: id, Argv: values[2:]}, nil
}

// Reply builds the _result/_error companion Invoke for this request, with a
// header copied from the request per SPEC_FULL.md §4.6.
func (p *Invoke) Reply(name string, argv ...interface{}) *Invoke {
	return &Invoke{Header: cloneHeader(p.Header), Name: name, ID: p.ID, Argv: argv}
}
