package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"github.com/twainkit/twainkit/internal/driver"
	"github.com/twainkit/twainkit/internal/tiffhdr"
	"github.com/twainkit/twainkit/internal/twain"
)

// pdfRasterMarker opens page-description payloads a memory-to-file
// transfer may deliver; those bytes are handed up raw, never decoded.
var pdfRasterMarker = []byte("%PDF")

// xferNative requests a single opaque platform handle. One call, no strip
// loop; the handle is resolved into a raster and released before return.
func (s *Session) xferNative(res *ImageResult) error {
	res.Triplet = twain.Triplet(twain.DGImage, twain.DATImageNativeXfer, twain.MsgGet)
	var h driver.NativeImage
	rc := s.call(twain.DGImage, twain.DATImageNativeXfer, twain.MsgGet, &h)
	res.RC = rc
	if rc != twain.RCXferDone {
		return s.condErr("native transfer", rc)
	}
	defer h.Release()
	img, err := h.Image()
	if err != nil {
		return fmt.Errorf("resolve native handle: %w", err)
	}
	res.Image = img
	return nil
}

// xferFile asks the driver to write the image to a computed path, then
// loads the produced file for delivery.
func (s *Session) xferFile(res *ImageResult) error {
	format := s.cfg.FileFormat
	if s.cfg.AutoFormatOverride {
		// Opt-in heuristic: re-choose the container from the compression
		// reported in metadata. Some drivers do not report final values
		// before the format is fixed, hence off by default.
		if err := s.fetchImageInfoOnce(); err == nil {
			switch s.info.Compression {
			case twain.CompressionJPEG:
				format = twain.FormatJFIF
			case twain.CompressionNone:
				format = twain.FormatTIFF
			}
		}
	}

	dir := s.cfg.ImageDir
	if dir == "" {
		dir = os.TempDir()
	}
	s.fileSeq++
	path := filepath.Join(dir, fmt.Sprintf("%06d.%s", s.fileSeq, format.Ext()))

	sf := twain.SetupFileXfer{FileName: path, Format: format}
	if rc := s.call(twain.DGControl, twain.DATSetupFileXfer, twain.MsgSet, &sf); rc != twain.RCSuccess {
		res.RC = rc
		return s.condErr("setup file transfer", rc)
	}

	res.Triplet = twain.Triplet(twain.DGImage, twain.DATImageFileXfer, twain.MsgGet)
	rc := s.call(twain.DGImage, twain.DATImageFileXfer, twain.MsgGet, nil)
	res.RC = rc
	if rc != twain.RCXferDone {
		os.Remove(path) // never leave a partial file behind
		return s.condErr("file transfer", rc)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load transferred file: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("decode transferred file: %w", err)
	}
	res.Path = path
	res.Image = img
	if err := s.fetchImageInfoOnce(); err == nil {
		if c := s.info.Compression; c == twain.CompressionJPEG || c == twain.CompressionNone {
			res.Raw = raw
		}
	}
	return nil
}

// accumulateStrips runs the shared strip loop against the given argument
// type, appending every reported strip to a fresh buffer. Any status other
// than success or transfer-complete aborts the image; partial buffers are
// discarded by the caller.
func (s *Session) accumulateStrips(dat twain.DataArgType, res *ImageResult) (*TransferBuffer, error) {
	var setup twain.SetupMemXfer
	if rc := s.call(twain.DGControl, twain.DATSetupMemXfer, twain.MsgGet, &setup); rc != twain.RCSuccess {
		res.RC = rc
		return nil, s.condErr("setup memory transfer", rc)
	}
	stripSize := setup.Preferred
	if stripSize == 0 {
		stripSize = 32 * 1024
	}
	strip := make([]byte, stripSize)
	buf := NewTransferBuffer(tiffhdr.MaxSize)

	res.Triplet = twain.Triplet(twain.DGImage, dat, twain.MsgGet)
	for {
		mx := twain.ImageMemXfer{Memory: strip}
		rc := s.call(twain.DGImage, dat, twain.MsgGet, &mx)
		res.RC = rc
		switch rc {
		case twain.RCSuccess, twain.RCXferDone:
			if mx.BytesWritten > uint32(len(strip)) {
				return nil, &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue,
					Msg: "driver reported more bytes than the strip holds"}
			}
			buf.Append(strip[:mx.BytesWritten])
			if rc == twain.RCXferDone {
				s.log.Debug("strip accumulation complete", "received", buf.Received(), "allocated", buf.Allocated())
				return buf, nil
			}
		default:
			return nil, s.condErr("strip transfer", rc)
		}
	}
}

// xferMemory runs the single-buffer strip loop, then materializes the
// accumulated bytes by compression kind.
func (s *Session) xferMemory(res *ImageResult) error {
	// Metadata drives the container header; it must be known up front.
	if err := s.fetchImageInfoOnce(); err != nil {
		return err
	}
	buf, err := s.accumulateStrips(twain.DATImageMemXfer, res)
	if err != nil {
		return err
	}

	info := s.info
	width := int(info.ImageWidth)
	height := int(info.ImageLength)
	xres := info.XResolution.Whole32()

	switch info.Compression {
	case twain.CompressionJPEG:
		img, err := jpeg.Decode(bytes.NewReader(buf.Payload()))
		if err != nil {
			return fmt.Errorf("decode jpeg payload: %w", err)
		}
		res.Image = img
		res.Raw = buf.Payload()
		return nil

	case twain.CompressionGroup4:
		hdr := tiffhdr.BitonalGroup4(width, height, xres, uint32(buf.Received()))
		return s.materializeContainer(res, buf, hdr)

	case twain.CompressionNone:
		var hdr []byte
		switch info.BitsPerPixel {
		case 1:
			hdr = tiffhdr.BitonalUncompressed(width, height, xres, uint32(buf.Received()))
		case 8, 16:
			hdr = tiffhdr.Grayscale(width, height, xres, int(info.BitsPerPixel), uint32(buf.Received()))
		case 24:
			hdr = tiffhdr.Color(width, height, xres, uint32(buf.Received()))
		default:
			return &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue,
				Msg: fmt.Sprintf("unsupported bit depth %d", info.BitsPerPixel)}
		}
		return s.materializeContainer(res, buf, hdr)

	default:
		return &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue,
			Msg: fmt.Sprintf("unsupported compression %d", info.Compression)}
	}
}

// materializeContainer writes the synthesized header into the buffer's
// reserved prefix, persists the container to a file, decodes the raster
// from that file, and cleans up temp files on every exit path.
func (s *Session) materializeContainer(res *ImageResult, buf *TransferBuffer, hdr []byte) error {
	raw := buf.WithHeader(hdr)

	dir := s.cfg.ImageDir
	temp := dir == ""
	if temp {
		dir = os.TempDir()
	}
	s.fileSeq++
	path := filepath.Join(dir, fmt.Sprintf("%06d.tif", s.fileSeq))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write container file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("reopen container file: %w", err)
	}
	img, derr := tiff.Decode(f)
	f.Close()
	if derr != nil {
		os.Remove(path)
		return fmt.Errorf("decode container file: %w", derr)
	}
	if temp {
		os.Remove(path)
	} else {
		res.Path = path
	}

	res.Image = img
	res.Raw = raw
	res.PixelOffset = len(hdr)
	return nil
}

// xferMemFile runs the strip loop against the memory-to-file call, which
// yields container-file-ready bytes. Page-description payloads are passed
// through raw; anything else is decoded as a complete container image.
func (s *Session) xferMemFile(res *ImageResult) error {
	buf, err := s.accumulateStrips(twain.DATImageMemFileXfer, res)
	if err != nil {
		return err
	}
	raw := buf.Payload()
	if bytes.HasPrefix(raw, pdfRasterMarker) {
		res.Raw = raw
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode assembled container: %w", err)
	}
	res.Image = img
	res.Raw = raw
	return nil
}
