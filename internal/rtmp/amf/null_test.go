package amf

import (
	"bytes"
	"testing"
)

// goldenNull is the AMF0 Null wire form: a single marker byte 0x05.
var goldenNull = []byte{0x05}

func TestEncodeNull_Golden(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeNull(&buf); err != nil {
		t.Fatalf("EncodeNull error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), goldenNull) {
		t.Fatalf("encoded null mismatch\n got: %x\nwant: %x", buf.Bytes(), goldenNull)
	}
}

func TestDecodeNull_Golden(t *testing.T) {
	v, err := DecodeNull(bytes.NewReader(goldenNull))
	if err != nil {
		t.Fatalf("DecodeNull error: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil got %#v", v)
	}
}

func TestDecodeNull_InvalidMarker(t *testing.T) {
	// Use string marker 0x02 to trigger mismatch.
	data := []byte{0x02}
	if v, err := DecodeNull(bytes.NewReader(data)); err == nil || v != nil {
		t.Fatalf("expected error for invalid marker")
	}
}

func TestDecodeNull_ShortRead(t *testing.T) {
	data := []byte{} // empty -> short read
	if v, err := DecodeNull(bytes.NewReader(data)); err == nil || v != nil {
		t.Fatalf("expected error for short read")
	}
}

func BenchmarkEncodeNull(b *testing.B) {
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		_ = EncodeNull(&buf)
	}
}

func BenchmarkDecodeNull(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = DecodeNull(bytes.NewReader(goldenNull))
	}
}
