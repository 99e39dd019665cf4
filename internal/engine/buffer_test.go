package engine

import (
	"bytes"
	"testing"
)

func TestTransferBufferAccumulation(t *testing.T) {
	strips := [][]byte{
		bytes.Repeat([]byte{0xAA}, 3),
		bytes.Repeat([]byte{0xBB}, 70000),
		{},
		bytes.Repeat([]byte{0xCC}, 513),
	}

	buf := NewTransferBuffer(222)
	want := []byte{}
	total := 0
	for _, s := range strips {
		buf.Append(s)
		want = append(want, s...)
		total += len(s)
	}

	if buf.Received() != total {
		t.Errorf("Received() = %d, want %d", buf.Received(), total)
	}
	if buf.Allocated() < buf.Received() {
		t.Errorf("Allocated() = %d, less than Received() = %d", buf.Allocated(), buf.Received())
	}
	if !bytes.Equal(buf.Payload(), want) {
		t.Error("payload bytes out of order or corrupted")
	}
}

func TestTransferBufferHeaderPlacement(t *testing.T) {
	buf := NewTransferBuffer(32)
	buf.Append([]byte("pixeldata"))

	hdr := []byte("HDR!")
	out := buf.WithHeader(hdr)

	if len(out) != len(hdr)+buf.Received() {
		t.Fatalf("combined length = %d, want %d", len(out), len(hdr)+buf.Received())
	}
	if !bytes.Equal(out[:4], hdr) {
		t.Error("header not at the start of the combined slice")
	}
	if !bytes.Equal(out[4:], []byte("pixeldata")) {
		t.Error("payload does not immediately follow the header")
	}
}
