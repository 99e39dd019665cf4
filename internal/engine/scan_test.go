package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twainkit/twainkit/internal/driver"
	"github.com/twainkit/twainkit/internal/tiffhdr"
	"github.com/twainkit/twainkit/internal/twain"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bitonalPages(n int) []driver.Page {
	pages := make([]driver.Page, n)
	for i := range pages {
		pages[i] = driver.Page{
			PixelType:    twain.PixelBW,
			BitsPerPixel: 1,
			Width:        1700,
			Height:       2200,
			ResX:         200,
			ResY:         200,
			Compression:  twain.CompressionNone,
		}
	}
	return pages
}

func grayPage(w, h int) driver.Page {
	return driver.Page{
		PixelType:    twain.PixelGray,
		BitsPerPixel: 8,
		Width:        w,
		Height:       h,
		ResX:         300,
		ResY:         300,
		Compression:  twain.CompressionNone,
	}
}

// startBatch opens the source, negotiates the mechanism, and enables a
// UI-less batch collecting every delivery.
func startBatch(t *testing.T, entry driver.Entry, mech twain.XferMech, dir string, results *[]ImageResult, cmd func(ImageResult) XferCommand) *Session {
	t.Helper()
	if cmd == nil {
		cmd = func(ImageResult) XferCommand { return CmdContinue }
	}
	s, err := NewSession(entry, Config{
		ImageDir: dir,
		Log:      quietLog(),
		Deliver: func(r ImageResult) XferCommand {
			*results = append(*results, r)
			return cmd(r)
		},
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.OpenDefaultSource())
	require.NoError(t, s.SetXferMech(mech))
	require.NoError(t, s.Enable(false))
	return s
}

func TestMemoryBatchThreeBitonalImages(t *testing.T) {
	sim := driver.NewSimulator(bitonalPages(3)...)
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemory, dir, &results, nil)

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 3)

	seen, xferred := s.Counters()
	require.Equal(t, 3, seen)
	require.Equal(t, 3, xferred)
	require.Equal(t, twain.StateSourceOpen, s.State())
	require.True(t, s.BatchDone())

	payloadLen := (1700 + 7) / 8 * 2200
	for i, res := range results {
		require.NoError(t, res.Err)
		require.Equal(t, tiffhdr.BitonalSize, res.PixelOffset)
		require.Len(t, res.Raw, tiffhdr.BitonalSize+payloadLen)

		// Container preamble and the fixed strip offset.
		require.Equal(t, []byte("II"), res.Raw[:2])
		require.Equal(t, uint16(42), binary.LittleEndian.Uint16(res.Raw[2:4]))
		require.Equal(t, uint32(8), binary.LittleEndian.Uint32(res.Raw[4:8]))

		require.NotNil(t, res.Image)
		b := res.Image.Bounds()
		require.Equal(t, 1700, b.Dx())
		require.Equal(t, 2200, b.Dy())

		require.Equal(t, filepath.Join(dir, fmt.Sprintf("%06d.tif", i+1)), res.Path)
		onDisk, err := os.ReadFile(res.Path)
		require.NoError(t, err)
		require.Equal(t, res.Raw, onDisk)
	}
}

func TestMemoryBatchVaryingStripSizes(t *testing.T) {
	sim := driver.NewSimulator(grayPage(64, 64))
	sim.StripSizes = []uint32{100, 1000, 3000, 50}
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemory, dir, &results, nil)

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 1)
	res := results[0]
	require.NoError(t, res.Err)
	require.Equal(t, tiffhdr.GrayscaleSize, res.PixelOffset)
	require.Len(t, res.Raw, tiffhdr.GrayscaleSize+64*64)
	require.Equal(t, 64, res.Image.Bounds().Dx())
}

func TestMemoryBatchStripFailureAbortsBatch(t *testing.T) {
	sim := driver.NewSimulator(bitonalPages(3)...)
	sim.FailImage = 2
	sim.FailStrip = 1
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemory, dir, &results, nil)

	err := s.RunBatch(context.Background())
	require.Error(t, err)

	var ce *twain.CondError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, twain.CCBummer, ce.Code)

	// One success, then exactly one failure delivery. The third image is
	// never attempted.
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)

	seen, xferred := s.Counters()
	require.Equal(t, 2, seen)
	require.Equal(t, 1, xferred)
	require.Equal(t, twain.StateSourceOpen, s.State())

	// No partial file for the failed image.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "000001.tif", entries[0].Name())
}

type tripletCall struct {
	dat twain.DataArgType
	msg twain.Message
}

// recordingEntry wraps a driver and keeps the triplet order it saw.
type recordingEntry struct {
	driver.Entry
	calls []tripletCall
}

func (r *recordingEntry) Call(dest *twain.Identity, dg twain.DataGroup, dat twain.DataArgType, msg twain.Message, data any) twain.ReturnCode {
	r.calls = append(r.calls, tripletCall{dat, msg})
	return r.Entry.Call(dest, dg, dat, msg, data)
}

func (r *recordingEntry) count(dat twain.DataArgType, msg twain.Message) int {
	n := 0
	for _, c := range r.calls {
		if c.dat == dat && c.msg == msg {
			n++
		}
	}
	return n
}

func TestFeederStopAfterFirstImage(t *testing.T) {
	rec := &recordingEntry{Entry: driver.NewSimulator(bitonalPages(3)...)}
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, rec, twain.XferMemory, dir, &results, func(ImageResult) XferCommand {
		return CmdStopFeeder
	})

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	seen, xferred := s.Counters()
	require.Equal(t, 1, seen)
	require.Equal(t, 1, xferred)
	require.Equal(t, twain.StateSourceOpen, s.State())

	// The acknowledgement used the feeder-stop form, never the plain one.
	require.Equal(t, 1, rec.count(twain.DATPendingXfers, twain.MsgStopFeeder))
	require.Equal(t, 0, rec.count(twain.DATPendingXfers, twain.MsgEndXfer))
}

func TestResetAbandonsRemainingImages(t *testing.T) {
	rec := &recordingEntry{Entry: driver.NewSimulator(bitonalPages(3)...)}
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, rec, twain.XferMemory, dir, &results, func(ImageResult) XferCommand {
		return CmdReset
	})

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 1)
	require.Equal(t, twain.StateSourceOpen, s.State())
	require.NotZero(t, rec.count(twain.DATPendingXfers, twain.MsgReset))
}

func TestPaperJamOnAcknowledge(t *testing.T) {
	sim := driver.NewSimulator(bitonalPages(3)...)
	sim.JamImage = 2
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemory, dir, &results, nil)

	err := s.RunBatch(context.Background())
	require.Error(t, err)

	var ce *twain.CondError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, twain.CCPaperJam, ce.Code)

	// Both images transferred fine; the second acknowledgement jammed and
	// is reported as its own delivery.
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.Error(t, results[2].Err)
	require.Equal(t, "EndXfer", results[2].Tag)

	seen, xferred := s.Counters()
	require.Equal(t, 2, seen)
	require.Equal(t, 1, xferred)
}

func TestImageInfoFetchedOncePerImage(t *testing.T) {
	rec := &recordingEntry{Entry: driver.NewSimulator(grayPage(64, 64), grayPage(64, 64))}
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, rec, twain.XferMemory, dir, &results, nil)

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 2)
	require.Equal(t, 2, rec.count(twain.DATImageInfo, twain.MsgGet))
	require.Equal(t, int16(8), results[0].Info.BitsPerPixel)
}

func TestNativeTransfer(t *testing.T) {
	page := driver.Page{
		PixelType:    twain.PixelRGB,
		BitsPerPixel: 24,
		Width:        120,
		Height:       80,
		ResX:         150,
		ResY:         150,
		Compression:  twain.CompressionNone,
	}
	sim := driver.NewSimulator(page)
	var results []ImageResult
	s := startBatch(t, sim, twain.XferNative, t.TempDir(), &results, nil)

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 1)
	res := results[0]
	require.NoError(t, res.Err)
	require.NotNil(t, res.Image)
	require.Equal(t, 120, res.Image.Bounds().Dx())
	require.Empty(t, res.Path)
	require.Nil(t, res.Raw)
}

func TestFileTransfer(t *testing.T) {
	sim := driver.NewSimulator(grayPage(100, 150))
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferFile, dir, &results, nil)

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 1)
	res := results[0]
	require.NoError(t, res.Err)
	require.Equal(t, filepath.Join(dir, "000001.tif"), res.Path)
	require.NotNil(t, res.Image)
	require.Equal(t, 150, res.Image.Bounds().Dy())
	require.NotEmpty(t, res.Raw)
	_, err := os.Stat(res.Path)
	require.NoError(t, err)
}

func TestMemFileTransferJPEG(t *testing.T) {
	page := driver.Page{
		PixelType:    twain.PixelRGB,
		BitsPerPixel: 24,
		Width:        90,
		Height:       60,
		ResX:         150,
		ResY:         150,
		Compression:  twain.CompressionJPEG,
	}
	sim := driver.NewSimulator(page)
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemFile, t.TempDir(), &results, nil)

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 1)
	res := results[0]
	require.NoError(t, res.Err)
	require.NotNil(t, res.Image)
	require.Equal(t, []byte{0xFF, 0xD8}, res.Raw[:2])
}

// pdfEntry serves a page-description payload through the memory-to-file
// call and succeeds at everything else.
type pdfEntry struct{}

func (pdfEntry) Call(_ *twain.Identity, _ twain.DataGroup, dat twain.DataArgType, _ twain.Message, data any) twain.ReturnCode {
	switch dat {
	case twain.DATSetupMemXfer:
		data.(*twain.SetupMemXfer).Preferred = 512
		return twain.RCSuccess
	case twain.DATImageMemFileXfer:
		mx := data.(*twain.ImageMemXfer)
		mx.BytesWritten = uint32(copy(mx.Memory, "%PDF-1.4 one-page document"))
		return twain.RCXferDone
	}
	return twain.RCSuccess
}

func TestMemFilePDFPassthrough(t *testing.T) {
	s, err := NewSession(pdfEntry{}, Config{Log: quietLog()})
	require.NoError(t, err)

	var res ImageResult
	require.NoError(t, s.xferMemFile(&res))
	require.Nil(t, res.Image)
	require.Equal(t, "%PDF-1.4 one-page document", string(res.Raw))
}

func TestUnknownPendingCount(t *testing.T) {
	sim := driver.NewSimulator(bitonalPages(2)...)
	sim.ReportUnknownCount = true
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemory, dir, &results, nil)

	require.NoError(t, s.RunBatch(context.Background()))
	require.Len(t, results, 2)
	_, xferred := s.Counters()
	require.Equal(t, 2, xferred)
}

func TestCloseTearsDownSession(t *testing.T) {
	sim := driver.NewSimulator(bitonalPages(1)...)
	s, err := NewSession(sim, Config{Log: quietLog()})
	require.NoError(t, err)
	require.NoError(t, s.OpenDefaultSource())
	require.NoError(t, s.Enable(false))

	s.Close()
	require.Equal(t, twain.StateLoaded, s.State())
}

func TestCancelledContextRollsBack(t *testing.T) {
	sim := driver.NewSimulator(bitonalPages(2)...)
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemory, dir, &results, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.RunBatch(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, twain.StateSourceOpen, s.State())
	require.Empty(t, results)
}

func TestDSM2RequiresEntryPointFetch(t *testing.T) {
	sim := driver.NewSimulator(bitonalPages(1)...)
	sim.DSM2 = true
	rec := &recordingEntry{Entry: sim}

	s, err := NewSession(rec, Config{Log: quietLog()})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.OpenDefaultSource())
	require.Equal(t, 1, rec.count(twain.DATEntryPoint, twain.MsgGet))

	// Fetch must come before the open, or the open would have failed.
	var epIdx, openIdx int
	for i, c := range rec.calls {
		if c.dat == twain.DATEntryPoint {
			epIdx = i
		}
		if c.dat == twain.DATIdentity && c.msg == twain.MsgOpenDS {
			openIdx = i
		}
	}
	require.Less(t, epIdx, openIdx)
}

func TestRunBatchStallsWithoutReadySignal(t *testing.T) {
	// A driver that enables fine but never raises an image-ready event.
	sim := driver.NewSimulator()
	dir := t.TempDir()
	var results []ImageResult
	s := startBatch(t, sim, twain.XferMemory, dir, &results, nil)

	err := s.RunBatch(context.Background())
	require.ErrorIs(t, err, errNoProgress)
	require.Empty(t, results)
}
