package driver

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/tiff"

	"github.com/twainkit/twainkit/internal/twain"
)

// simNative is the simulator's opaque native handle.
type simNative struct {
	img      image.Image
	released bool
}

func (n *simNative) Image() (image.Image, error) {
	if n.released {
		return nil, fmt.Errorf("native handle already released")
	}
	return n.img, nil
}

func (n *simNative) Release() { n.released = true }

// genImage renders a deterministic test pattern for a page.
func genImage(p *Page) image.Image {
	r := image.Rect(0, 0, p.Width, p.Height)
	switch p.PixelType {
	case twain.PixelRGB:
		img := image.NewRGBA(r)
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				img.SetRGBA(x, y, color.RGBA{
					R: uint8(x * 255 / max(p.Width, 1)),
					G: uint8(y * 255 / max(p.Height, 1)),
					B: uint8((x + y) & 0xFF),
					A: 0xFF,
				})
			}
		}
		return img
	default:
		img := image.NewGray(r)
		for y := 0; y < p.Height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+p.Width]
			for x := range row {
				if (x/8+y/8)%2 == 0 {
					row[x] = 0xFF
				}
			}
		}
		return img
	}
}

// stripPayload produces the raw sample bytes a memory transfer streams,
// matching the page's bit depth and compression.
func (s *Simulator) stripPayload(p *Page) ([]byte, error) {
	switch p.Compression {
	case twain.CompressionNone:
		return rawSamples(p)
	case twain.CompressionJPEG:
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, genImage(p), nil); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case twain.CompressionGroup4:
		// Not a real G4 stream; only the byte accounting is simulated.
		out := make([]byte, p.Width*p.Height/64+32)
		for i := range out {
			out[i] = byte(i * 7)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("simulator: unsupported compression %d", p.Compression)
	}
}

// rawSamples packs the rendered pattern into uncompressed rows.
func rawSamples(p *Page) ([]byte, error) {
	switch p.BitsPerPixel {
	case 1:
		rowBytes := (p.Width + 7) / 8
		out := make([]byte, rowBytes*p.Height)
		img := genImage(p).(*image.Gray)
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				if img.Pix[y*img.Stride+x] < 0x80 {
					out[y*rowBytes+x/8] |= 0x80 >> (x % 8)
				}
			}
		}
		return out, nil
	case 8:
		img := genImage(p).(*image.Gray)
		out := make([]byte, p.Width*p.Height)
		for y := 0; y < p.Height; y++ {
			copy(out[y*p.Width:], img.Pix[y*img.Stride:y*img.Stride+p.Width])
		}
		return out, nil
	case 16:
		out := make([]byte, 2*p.Width*p.Height)
		for i := 0; i < len(out); i += 2 {
			out[i] = byte(i)
			out[i+1] = byte(i >> 8)
		}
		return out, nil
	case 24:
		img := genImage(p).(*image.RGBA)
		out := make([]byte, 3*p.Width*p.Height)
		i := 0
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				o := y*img.Stride + x*4
				out[i] = img.Pix[o]
				out[i+1] = img.Pix[o+1]
				out[i+2] = img.Pix[o+2]
				i += 3
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("simulator: unsupported bit depth %d", p.BitsPerPixel)
	}
}

// containerPayload produces complete container-file bytes for the
// memory-to-file mechanism.
func (s *Simulator) containerPayload(p *Page) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch p.Compression {
	case twain.CompressionJPEG:
		err = jpeg.Encode(&buf, genImage(p), nil)
	default:
		err = tiff.Encode(&buf, genImage(p), nil)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
