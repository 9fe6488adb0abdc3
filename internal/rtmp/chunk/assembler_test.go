package chunk

import (
	"bytes"
	"testing"
)

func TestAssembleDisassembleRoundTrip(t *testing.T) {
	a := NewAssembler(128)
	h := &Header{ChannelID: 2, Timestamp: 0, Type: 0x04, StreamID: 0}
	payload := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}

	wire := a.Assemble(h, payload)

	d := NewDisassembler(128)
	d.PushData(wire)
	f, err := d.Disassemble()
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if f == nil {
		t.Fatalf("expected a frame")
	}
	if f.Header.ChannelID != 2 || f.Header.Type != 0x04 || f.Header.Length != uint32(len(payload)) {
		t.Fatalf("unexpected header: %+v", f.Header)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("unexpected payload: %x", f.Payload)
	}
}

func TestAssembleSplitsLargePayloadAndRoundTrips(t *testing.T) {
	a := NewAssembler(4)
	h := &Header{ChannelID: 6, Timestamp: 10, Type: 0x14, StreamID: 1}
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}

	wire := a.Assemble(h, payload)

	d := NewDisassembler(4)
	d.PushData(wire)
	f, err := d.Disassemble()
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if f == nil {
		t.Fatalf("expected a frame")
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("unexpected reassembled payload: %x", f.Payload)
	}
}

func TestAssembleUsesCompactFormsAcrossMessagesOnSameChannel(t *testing.T) {
	a := NewAssembler(128)
	h1 := &Header{ChannelID: 3, Timestamp: 0, Type: 0x14, StreamID: 1}
	wire1 := a.Assemble(h1, []byte{1, 2, 3})
	if wire1[0]>>6 != 0 {
		t.Fatalf("expected first message on a channel to use the full 12-byte form")
	}

	h2 := &Header{ChannelID: 3, Timestamp: 0, Type: 0x14, StreamID: 1}
	wire2 := a.Assemble(h2, []byte{4, 5, 6})
	if wire2[0]>>6 != 3 {
		t.Fatalf("expected identical follow-up header to use the 1-byte form, got form %d", wire2[0]>>6)
	}
}

func TestAssembleZeroLengthPayload(t *testing.T) {
	a := NewAssembler(128)
	h := &Header{ChannelID: 2, Timestamp: 0, Type: 0x04, StreamID: 0}
	wire := a.Assemble(h, nil)

	d := NewDisassembler(128)
	d.PushData(wire)
	f, err := d.Disassemble()
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if f == nil || len(f.Payload) != 0 {
		t.Fatalf("expected an empty-payload frame, got %+v", f)
	}
}
