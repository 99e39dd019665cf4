// Package output turns delivered scan pages into files: per-page images
// or a single assembled PDF document.
package output

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // DecodeConfig on raw JPEG page bytes
	"image/png"
	"os"

	"github.com/go-pdf/fpdf"
)

// WritePDF assembles the job's pages into a single PDF file.
func (j *Job) WritePDF(path string) error {
	data, err := j.GeneratePDF()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GeneratePDF assembles the job's pages into a PDF in memory. JPEG page
// bytes are embedded directly; everything else is re-encoded as PNG, with
// bilevel pages packed into a 1-bit palette first.
func (j *Job) GeneratePDF() ([]byte, error) {
	if len(j.pages) == 0 {
		return nil, fmt.Errorf("no pages to write")
	}

	pdf := fpdf.New("P", "mm", "", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, p := range j.pages {
		w, h, err := p.dimensions()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		dpi := p.density()

		widthMM := float64(w) / float64(dpi) * 25.4
		heightMM := float64(h) / float64(dpi) * 25.4
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: widthMM, Ht: heightMM})

		name := fmt.Sprintf("page%d", i)
		if isJPEG(p.Raw) {
			pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "JPEG"}, bytes.NewReader(p.Raw))
		} else {
			if p.Image == nil {
				return nil, fmt.Errorf("page %d: no decodable raster", i+1)
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, embeddable(p.Image)); err != nil {
				return nil, fmt.Errorf("encode page %d: %w", i+1, err)
			}
			pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, &buf)
		}
		pdf.ImageOptions(name, 0, 0, widthMM, heightMM, false, fpdf.ImageOptions{}, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return out.Bytes(), nil
}

// dimensions resolves the pixel size of the page, preferring the decoded
// raster over re-parsing the raw bytes.
func (p Page) dimensions() (int, int, error) {
	if p.Image != nil {
		b := p.Image.Bounds()
		return b.Dx(), b.Dy(), nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(p.Raw))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// density resolves the page's dots-per-inch: the value embedded in the
// raw bytes wins, then the caller-supplied value, then 300.
func (p Page) density() int {
	if d := rawDensity(p.Raw); d > 0 {
		return d
	}
	if p.DPI > 0 {
		return p.DPI
	}
	return 300
}

func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

// rawDensity extracts the horizontal density from container bytes.
// Supports TIFF (IFD XResolution tag) and JPEG (JFIF APP0 density); zero
// means undetermined.
func rawDensity(data []byte) int {
	if len(data) < 8 {
		return 0
	}
	if (data[0] == 'I' && data[1] == 'I') || (data[0] == 'M' && data[1] == 'M') {
		return tiffDensity(data)
	}
	if isJPEG(data) {
		return jfifDensity(data)
	}
	return 0
}

func tiffDensity(data []byte) int {
	var bo binary.ByteOrder
	if data[0] == 'I' {
		bo = binary.LittleEndian
	} else {
		bo = binary.BigEndian
	}
	if bo.Uint16(data[2:4]) != 42 {
		return 0
	}
	ifdOff := int(bo.Uint32(data[4:8]))
	if ifdOff+2 > len(data) {
		return 0
	}
	n := int(bo.Uint16(data[ifdOff : ifdOff+2]))
	for i := 0; i < n; i++ {
		off := ifdOff + 2 + i*12
		if off+12 > len(data) {
			break
		}
		tag := bo.Uint16(data[off : off+2])
		if tag == 282 { // XResolution (RATIONAL = num/den)
			valOff := int(bo.Uint32(data[off+8 : off+12]))
			if valOff+8 > len(data) {
				return 0
			}
			num := bo.Uint32(data[valOff : valOff+4])
			den := bo.Uint32(data[valOff+4 : valOff+8])
			if den == 0 {
				return 0
			}
			return int(num / den)
		}
	}
	return 0
}

func jfifDensity(data []byte) int {
	i := 2
	for i+4 < len(data) {
		if data[i] != 0xFF {
			break
		}
		marker := data[i+1]
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if marker == 0xE0 && segLen >= 14 { // APP0 (JFIF)
			seg := data[i+4:]
			if len(seg) >= 10 && string(seg[0:5]) == "JFIF\x00" {
				units := seg[7]
				xd := int(binary.BigEndian.Uint16(seg[8:10]))
				if units == 1 { // dots per inch
					return xd
				}
				if units == 2 { // dots per cm
					return int(float64(xd) * 2.54)
				}
			}
		}
		i += 2 + segLen
	}
	return 0
}

// embeddable prepares a raster for PNG embedding. Bilevel grays are packed
// into a 1-bit palette so G4-style pages stay small.
func embeddable(img image.Image) image.Image {
	gray, ok := img.(*image.Gray)
	if !ok || !isBilevel(gray) {
		return img
	}
	bounds := gray.Bounds()
	dst := image.NewPaletted(bounds, color.Palette{color.White, color.Black})
	w := bounds.Dx()
	for y := 0; y < bounds.Dy(); y++ {
		srcRow := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x, v := range srcRow {
			if v < 128 {
				dstRow[x] = 1 // black
			}
		}
	}
	return dst
}

func isBilevel(gray *image.Gray) bool {
	for _, v := range gray.Pix {
		if v != 0x00 && v != 0xFF {
			return false
		}
	}
	return true
}
