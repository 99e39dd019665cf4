package output

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twainkit/twainkit/internal/tiffhdr"
)

func grayImage(w, h int, bilevel bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		switch {
		case bilevel && i%2 == 0:
			img.Pix[i] = 0xFF
		case !bilevel:
			img.Pix[i] = uint8(i)
		}
	}
	return img
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestGeneratePDF(t *testing.T) {
	j := NewJob(nil)
	j.Add(Page{Image: grayImage(100, 100, false), DPI: 150})
	j.Add(Page{Raw: jpegBytes(t), DPI: 150})

	data, err := j.GeneratePDF()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	require.Equal(t, 2, j.Pages())
}

func TestGeneratePDFEmptyJob(t *testing.T) {
	_, err := NewJob(nil).GeneratePDF()
	require.Error(t, err)
}

func TestRawDensityFromContainerHeader(t *testing.T) {
	hdr := tiffhdr.Grayscale(10, 10, 300, 8, 100)
	raw := append(hdr, make([]byte, 100)...)
	require.Equal(t, 300, rawDensity(raw))
}

func TestRawDensityFromJFIF(t *testing.T) {
	raw := []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xE0, 0x00, 0x10, // APP0, length 16
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x02, // version
		0x01,       // units: dots per inch
		0x00, 0xC8, // x density 200
		0x00, 0xC8, // y density 200
		0x00, 0x00, // no thumbnail
	}
	require.Equal(t, 200, rawDensity(raw))
}

func TestDensityFallbacks(t *testing.T) {
	// Go's jpeg encoder writes no density; the page value must win.
	p := Page{Raw: jpegBytes(t), DPI: 240}
	require.Equal(t, 240, p.density())
	require.Equal(t, 300, Page{}.density())
}

func TestSniffExt(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte{0xFF, 0xD8, 0xFF}, "jpg"},
		{[]byte("II*\x00"), "tif"},
		{[]byte("MM\x00*"), "tif"},
		{[]byte("\x89PNG\r\n"), "png"},
		{[]byte("%PDF-1.4"), "pdf"},
		{[]byte("????"), "bin"},
	}
	for _, tt := range tests {
		if got := sniffExt(tt.data); got != tt.want {
			t.Errorf("sniffExt(%q) = %q, want %q", tt.data[:2], got, tt.want)
		}
	}
}

func TestSavePages(t *testing.T) {
	dir := t.TempDir()
	j := NewJob(nil)
	j.Add(Page{Raw: jpegBytes(t)})
	j.Add(Page{Image: grayImage(20, 20, true)})

	paths, err := j.SavePages(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, filepath.Join(dir, j.ID.String()+"_001.jpg"), paths[0])
	require.True(t, strings.HasSuffix(paths[1], "_002.png"))
}

func TestEmbeddablePacksBilevel(t *testing.T) {
	_, ok := embeddable(grayImage(16, 16, true)).(*image.Paletted)
	require.True(t, ok)

	img := embeddable(grayImage(16, 16, false))
	_, ok = img.(*image.Paletted)
	require.False(t, ok)
}

func TestEmbeddableLeavesColorAlone(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.SetRGBA(0, 0, color.RGBA{R: 1, A: 255})
	require.Equal(t, image.Image(rgba), embeddable(rgba))
}
