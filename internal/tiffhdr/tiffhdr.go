// Package tiffhdr synthesizes minimal little-endian TIFF headers for raw
// scanner payloads. Each header shape has a fixed byte size, so every
// embedded offset (strip offset, resolution value offsets) is a structural
// constant of the shape rather than a device-reported value. The payload
// bytes are never read; callers place the header immediately before the
// pixel data they already accumulated.
package tiffhdr

import "encoding/binary"

// Header sizes per shape. MaxSize is the reserved-prefix size a transfer
// buffer must keep ahead of its payload.
const (
	BitonalSize   = 222 // 16 directory entries + 2 rationals
	GrayscaleSize = 198 // 14 directory entries + 2 rationals
	ColorSize     = 204 // 14 entries + 2 rationals + 3 uint16 bits-per-sample
	MaxSize       = BitonalSize
)

// TIFF tag identifiers used by the four shapes.
const (
	tagNewSubfileType   = 254
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagFillOrder        = 266
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagXResolution      = 282
	tagYResolution      = 283
	tagT4Options        = 292
	tagT6Options        = 293
	tagResolutionUnit   = 296
)

// TIFF field types.
const (
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// TIFF compression codes (these differ from the protocol's own values).
const (
	compNone   = 1
	compCCITT4 = 4
)

type writer struct {
	buf []byte
	off int
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) tag(id, typ uint16, count, value uint32) {
	w.u16(id)
	w.u16(typ)
	w.u32(count)
	w.u32(value)
}

func (w *writer) preamble(tagCount uint16) {
	w.buf[0] = 'I'
	w.buf[1] = 'I'
	w.off = 2
	w.u16(42)
	w.u32(8) // first IFD immediately follows the preamble
	w.u16(tagCount)
}

func (w *writer) rational(num uint32) {
	w.u32(num)
	w.u32(1)
}

// bitonal emits the shared 16-entry bitonal shape.
func bitonal(width, height, resolution int, size uint32, compression, photometric uint32) []byte {
	w := &writer{buf: make([]byte, BitonalSize)}
	w.preamble(16)

	// Footer offsets for a 16-entry directory: 8+2+16*12+4 = 206.
	const xResOff = 206
	const yResOff = xResOff + 8

	w.tag(tagNewSubfileType, typeLong, 1, 0)
	w.tag(tagImageWidth, typeLong, 1, uint32(width))
	w.tag(tagImageLength, typeLong, 1, uint32(height))
	w.tag(tagBitsPerSample, typeShort, 1, 1)
	w.tag(tagCompression, typeShort, 1, compression)
	w.tag(tagPhotometric, typeShort, 1, photometric)
	w.tag(tagFillOrder, typeShort, 1, 1)
	w.tag(tagStripOffsets, typeLong, 1, BitonalSize)
	w.tag(tagSamplesPerPixel, typeShort, 1, 1)
	w.tag(tagRowsPerStrip, typeLong, 1, uint32(height))
	w.tag(tagStripByteCounts, typeLong, 1, size)
	w.tag(tagXResolution, typeRational, 1, xResOff)
	w.tag(tagYResolution, typeRational, 1, yResOff)
	w.tag(tagT4Options, typeLong, 1, 0)
	w.tag(tagT6Options, typeLong, 1, 0)
	w.tag(tagResolutionUnit, typeShort, 1, 2)
	w.u32(0) // no next IFD
	w.rational(uint32(resolution))
	w.rational(uint32(resolution))
	return w.buf
}

// BitonalUncompressed builds the header for raw 1-bit payload bytes.
func BitonalUncompressed(width, height, resolution int, size uint32) []byte {
	return bitonal(width, height, resolution, size, compNone, 1)
}

// BitonalGroup4 builds the header for CCITT Group 4 encoded payload bytes.
func BitonalGroup4(width, height, resolution int, size uint32) []byte {
	return bitonal(width, height, resolution, size, compCCITT4, 0)
}

// Grayscale builds the header for raw 8- or 16-bit grayscale payload bytes.
func Grayscale(width, height, resolution, bitsPerSample int, size uint32) []byte {
	w := &writer{buf: make([]byte, GrayscaleSize)}
	w.preamble(14)

	// Footer offsets for a 14-entry directory: 8+2+14*12+4 = 182.
	const xResOff = 182
	const yResOff = xResOff + 8

	w.tag(tagNewSubfileType, typeLong, 1, 0)
	w.tag(tagImageWidth, typeLong, 1, uint32(width))
	w.tag(tagImageLength, typeLong, 1, uint32(height))
	w.tag(tagBitsPerSample, typeShort, 1, uint32(bitsPerSample))
	w.tag(tagCompression, typeShort, 1, compNone)
	w.tag(tagPhotometric, typeShort, 1, 1)
	w.tag(tagFillOrder, typeShort, 1, 1)
	w.tag(tagStripOffsets, typeLong, 1, GrayscaleSize)
	w.tag(tagSamplesPerPixel, typeShort, 1, 1)
	w.tag(tagRowsPerStrip, typeLong, 1, uint32(height))
	w.tag(tagStripByteCounts, typeLong, 1, size)
	w.tag(tagXResolution, typeRational, 1, xResOff)
	w.tag(tagYResolution, typeRational, 1, yResOff)
	w.tag(tagResolutionUnit, typeShort, 1, 2)
	w.u32(0)
	w.rational(uint32(resolution))
	w.rational(uint32(resolution))
	return w.buf
}

// Color builds the header for raw 24-bit RGB payload bytes. The three
// 16-bit bits-per-sample values live in the footer behind the rationals.
func Color(width, height, resolution int, size uint32) []byte {
	w := &writer{buf: make([]byte, ColorSize)}
	w.preamble(14)

	// Footer offsets: rationals at 182/190, bits-per-sample array at 198.
	const xResOff = 182
	const yResOff = xResOff + 8
	const bpsOff = yResOff + 8

	w.tag(tagNewSubfileType, typeLong, 1, 0)
	w.tag(tagImageWidth, typeLong, 1, uint32(width))
	w.tag(tagImageLength, typeLong, 1, uint32(height))
	w.tag(tagBitsPerSample, typeShort, 3, bpsOff)
	w.tag(tagCompression, typeShort, 1, compNone)
	w.tag(tagPhotometric, typeShort, 1, 2)
	w.tag(tagFillOrder, typeShort, 1, 1)
	w.tag(tagStripOffsets, typeLong, 1, ColorSize)
	w.tag(tagSamplesPerPixel, typeShort, 1, 3)
	w.tag(tagRowsPerStrip, typeLong, 1, uint32(height))
	w.tag(tagStripByteCounts, typeLong, 1, size)
	w.tag(tagXResolution, typeRational, 1, xResOff)
	w.tag(tagYResolution, typeRational, 1, yResOff)
	w.tag(tagResolutionUnit, typeShort, 1, 2)
	w.u32(0)
	w.rational(uint32(resolution))
	w.rational(uint32(resolution))
	w.u16(8)
	w.u16(8)
	w.u16(8)
	return w.buf
}
