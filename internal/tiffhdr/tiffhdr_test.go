package tiffhdr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findTag returns the 4-byte value field of a directory entry, or false if
// the tag is absent.
func findTag(hdr []byte, id uint16) (uint32, bool) {
	count := int(binary.LittleEndian.Uint16(hdr[8:10]))
	for i := 0; i < count; i++ {
		off := 10 + i*12
		if binary.LittleEndian.Uint16(hdr[off:off+2]) == id {
			return binary.LittleEndian.Uint32(hdr[off+8 : off+12]), true
		}
	}
	return 0, false
}

func rationalAt(hdr []byte, off uint32) (uint32, uint32) {
	return binary.LittleEndian.Uint32(hdr[off : off+4]),
		binary.LittleEndian.Uint32(hdr[off+4 : off+8])
}

func TestHeaderSizes(t *testing.T) {
	tests := []struct {
		name string
		hdr  []byte
		want int
	}{
		{"bitonal uncompressed", BitonalUncompressed(1700, 2200, 200, 467500), BitonalSize},
		{"bitonal g4", BitonalGroup4(1700, 2200, 200, 12345), BitonalSize},
		{"grayscale 8", Grayscale(100, 50, 300, 8, 5000), GrayscaleSize},
		{"grayscale 16", Grayscale(100, 50, 300, 16, 10000), GrayscaleSize},
		{"color", Color(640, 480, 150, 921600), ColorSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.hdr, tt.want)
		})
	}
}

func TestHeaderPreamble(t *testing.T) {
	hdr := BitonalUncompressed(10, 10, 100, 20)
	assert.Equal(t, byte('I'), hdr[0])
	assert.Equal(t, byte('I'), hdr[1])
	assert.Equal(t, uint16(42), binary.LittleEndian.Uint16(hdr[2:4]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(hdr[4:8]))
}

func TestStripByteCountsMatchPayloadLength(t *testing.T) {
	tests := []struct {
		name string
		hdr  []byte
		size uint32
	}{
		{"bitonal 1bpp", BitonalUncompressed(1700, 2200, 200, 467500), 467500},
		{"g4", BitonalGroup4(1700, 2200, 200, 3141), 3141},
		{"gray 8bpp", Grayscale(1700, 2200, 200, 8, 3740000), 3740000},
		{"gray 16bpp", Grayscale(33, 7, 72, 16, 462), 462},
		{"color 24bpp", Color(1700, 2200, 200, 11220000), 11220000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := findTag(tt.hdr, 279)
			require.True(t, ok, "StripByteCounts tag missing")
			assert.Equal(t, tt.size, got)
		})
	}
}

func TestBitonalUncompressedShape(t *testing.T) {
	hdr := BitonalUncompressed(1700, 2200, 200, 467500)

	require.Equal(t, uint16(16), binary.LittleEndian.Uint16(hdr[8:10]), "directory entry count")

	width, ok := findTag(hdr, 256)
	require.True(t, ok)
	assert.Equal(t, uint32(1700), width)

	length, ok := findTag(hdr, 257)
	require.True(t, ok)
	assert.Equal(t, uint32(2200), length)

	bits, ok := findTag(hdr, 258)
	require.True(t, ok)
	assert.Equal(t, uint32(1), bits)

	comp, ok := findTag(hdr, 259)
	require.True(t, ok)
	assert.Equal(t, uint32(1), comp, "uncompressed TIFF code")

	stripOff, ok := findTag(hdr, 273)
	require.True(t, ok)
	assert.Equal(t, uint32(BitonalSize), stripOff, "payload starts right after the header")

	rows, ok := findTag(hdr, 278)
	require.True(t, ok)
	assert.Equal(t, uint32(2200), rows, "single strip covers the whole image")

	for _, id := range []uint16{266, 292, 293} {
		_, ok := findTag(hdr, id)
		assert.True(t, ok, "tag %d must be present in the bitonal shape", id)
	}

	xOff, ok := findTag(hdr, 282)
	require.True(t, ok)
	num, den := rationalAt(hdr, xOff)
	assert.Equal(t, uint32(200), num)
	assert.Equal(t, uint32(1), den)

	yOff, ok := findTag(hdr, 283)
	require.True(t, ok)
	num, den = rationalAt(hdr, yOff)
	assert.Equal(t, uint32(200), num)
	assert.Equal(t, uint32(1), den)
}

func TestBitonalGroup4Compression(t *testing.T) {
	hdr := BitonalGroup4(1700, 2200, 200, 999)

	comp, ok := findTag(hdr, 259)
	require.True(t, ok)
	assert.Equal(t, uint32(4), comp, "TIFF CCITT G4 code")

	_, ok = findTag(hdr, 293)
	assert.True(t, ok, "T6 options tag required for G4")
}

func TestGrayscaleShape(t *testing.T) {
	hdr := Grayscale(850, 1100, 300, 8, 935000)

	require.Equal(t, uint16(14), binary.LittleEndian.Uint16(hdr[8:10]))

	stripOff, ok := findTag(hdr, 273)
	require.True(t, ok)
	assert.Equal(t, uint32(GrayscaleSize), stripOff)

	spp, ok := findTag(hdr, 277)
	require.True(t, ok)
	assert.Equal(t, uint32(1), spp)

	bits, ok := findTag(hdr, 258)
	require.True(t, ok)
	assert.Equal(t, uint32(8), bits)

	_, ok = findTag(hdr, 292)
	assert.False(t, ok, "grayscale shape carries no coding options tags")
}

func TestColorShape(t *testing.T) {
	hdr := Color(640, 480, 150, 921600)

	require.Equal(t, uint16(14), binary.LittleEndian.Uint16(hdr[8:10]))

	spp, ok := findTag(hdr, 277)
	require.True(t, ok)
	assert.Equal(t, uint32(3), spp)

	stripOff, ok := findTag(hdr, 273)
	require.True(t, ok)
	assert.Equal(t, uint32(ColorSize), stripOff)

	// BitsPerSample is a 3-element array stored in the footer.
	bpsOff, ok := findTag(hdr, 258)
	require.True(t, ok)
	require.Less(t, int(bpsOff)+6, ColorSize+1)
	for i := 0; i < 3; i++ {
		v := binary.LittleEndian.Uint16(hdr[int(bpsOff)+2*i:])
		assert.Equal(t, uint16(8), v, "channel %d bits", i)
	}

	photo, ok := findTag(hdr, 262)
	require.True(t, ok)
	assert.Equal(t, uint32(2), photo, "RGB photometric")
}

func TestTagsAscending(t *testing.T) {
	for _, hdr := range [][]byte{
		BitonalUncompressed(1, 1, 1, 1),
		BitonalGroup4(1, 1, 1, 1),
		Grayscale(1, 1, 1, 8, 1),
		Color(1, 1, 1, 1),
	} {
		count := int(binary.LittleEndian.Uint16(hdr[8:10]))
		prev := uint16(0)
		for i := 0; i < count; i++ {
			id := binary.LittleEndian.Uint16(hdr[10+i*12:])
			require.Greater(t, id, prev, "directory entries must ascend")
			prev = id
		}
	}
}
