package amf

import (
	"fmt"
	"io"

	amferrors "github.com/rtmpd/fmsgo/internal/errors"
)

// markerUndefined is the AMF0 type marker for Undefined (0x06).
const markerUndefined = 0x06

// Undefined is the Go representation of an AMF0 Undefined value. It is
// distinct from Null (decoded as a plain nil): ActionScript distinguishes
// `undefined` from `null`, and some clients send `undefined` for omitted
// connect-object fields.
type Undefined struct{}

// EncodeUndefined writes an AMF0 Undefined value (single marker byte 0x06) to w.
func EncodeUndefined(w io.Writer) error {
	var b [1]byte
	b[0] = markerUndefined
	if _, err := w.Write(b[:]); err != nil {
		return amferrors.NewAMFError("encode.undefined.write", err)
	}
	return nil
}

// DecodeUndefined reads an AMF0 Undefined value from r.
// Expected wire format: single marker byte 0x06 (no payload).
func DecodeUndefined(r io.Reader) (interface{}, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.undefined.marker.read", err)
	}
	if b[0] != markerUndefined {
		return nil, amferrors.NewAMFError("decode.undefined.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerUndefined, b[0]))
	}
	return Undefined{}, nil
}
