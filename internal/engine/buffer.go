package engine

// TransferBuffer accumulates the strips of one memory transfer. It owns a
// reserved prefix sized for the largest container header that may be
// written in place once the payload is complete, so header synthesis never
// moves the accumulated bytes.
type TransferBuffer struct {
	prefix   int
	data     []byte
	received int
}

// NewTransferBuffer creates a buffer whose payload begins after a reserved
// prefix of the given size.
func NewTransferBuffer(prefix int) *TransferBuffer {
	return &TransferBuffer{
		prefix: prefix,
		data:   make([]byte, prefix, prefix+64*1024),
	}
}

// Append copies one strip onto the end of the payload. Strips may vary in
// size; the buffer grows as needed.
func (b *TransferBuffer) Append(strip []byte) {
	if need := len(b.data) + len(strip); need > cap(b.data) {
		newCap := 2 * cap(b.data)
		if newCap < need {
			newCap = need
		}
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = append(b.data, strip...)
	b.received += len(strip)
}

// Received is the total number of payload bytes appended so far.
func (b *TransferBuffer) Received() int { return b.received }

// Allocated is the payload capacity currently reserved. Received never
// exceeds it.
func (b *TransferBuffer) Allocated() int { return cap(b.data) - b.prefix }

// Payload returns the accumulated bytes, without any header.
func (b *TransferBuffer) Payload() []byte { return b.data[b.prefix:] }

// WithHeader writes hdr into the reserved prefix so it ends exactly where
// the payload begins, and returns the combined header+payload bytes.
// len(hdr) must not exceed the reserved prefix.
func (b *TransferBuffer) WithHeader(hdr []byte) []byte {
	start := b.prefix - len(hdr)
	copy(b.data[start:b.prefix], hdr)
	return b.data[start:]
}
