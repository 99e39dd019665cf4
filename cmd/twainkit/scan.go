package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twainkit/twainkit/internal/config"
	"github.com/twainkit/twainkit/internal/driver"
	"github.com/twainkit/twainkit/internal/engine"
	"github.com/twainkit/twainkit/internal/output"
	"github.com/twainkit/twainkit/internal/twain"
)

var scanFlags struct {
	mechanism  string
	dir        string
	format     string
	pdf        string
	showUI     bool
	autoFormat bool
	stopAfter  int

	pages       int
	color       string
	width       int
	height      int
	resolution  int
	compression string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scan batch against the simulated feeder",
	RunE:  runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&scanFlags.mechanism, "mechanism", "", "transfer mechanism: native, file, memory, memfile")
	f.StringVar(&scanFlags.dir, "dir", "", "directory receiving image files")
	f.StringVar(&scanFlags.format, "format", "", "file transfer format: tiff, jfif, png")
	f.StringVar(&scanFlags.pdf, "pdf", "", "assemble all pages into this PDF file")
	f.BoolVar(&scanFlags.showUI, "show-ui", false, "leave the source enabled after the batch")
	f.BoolVar(&scanFlags.autoFormat, "auto-format", false, "re-choose the file format from reported compression")
	f.IntVar(&scanFlags.stopAfter, "stop-after", 0, "stop the feeder after this many images (0 = all)")

	f.IntVar(&scanFlags.pages, "pages", 3, "simulated feeder page count")
	f.StringVar(&scanFlags.color, "color", "gray", "simulated pixel type: bw, gray, color")
	f.IntVar(&scanFlags.width, "width", 850, "simulated page width in pixels")
	f.IntVar(&scanFlags.height, "height", 1100, "simulated page height in pixels")
	f.IntVar(&scanFlags.resolution, "resolution", 100, "simulated resolution in dpi")
	f.StringVar(&scanFlags.compression, "compression", "none", "simulated stream compression: none, jpeg, group4")

	rootCmd.AddCommand(scanCmd)
}

func simPage() (driver.Page, error) {
	p := driver.Page{
		Width:  scanFlags.width,
		Height: scanFlags.height,
		ResX:   scanFlags.resolution,
		ResY:   scanFlags.resolution,
	}
	switch scanFlags.color {
	case "bw":
		p.PixelType, p.BitsPerPixel = twain.PixelBW, 1
	case "gray":
		p.PixelType, p.BitsPerPixel = twain.PixelGray, 8
	case "color":
		p.PixelType, p.BitsPerPixel = twain.PixelRGB, 24
	default:
		return p, fmt.Errorf("unknown color mode %q", scanFlags.color)
	}
	switch scanFlags.compression {
	case "none":
		p.Compression = twain.CompressionNone
	case "jpeg":
		p.Compression = twain.CompressionJPEG
	case "group4":
		if p.BitsPerPixel != 1 {
			return p, fmt.Errorf("group4 requires --color bw")
		}
		p.Compression = twain.CompressionGroup4
	default:
		return p, fmt.Errorf("unknown compression %q", scanFlags.compression)
	}
	return p, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	settings := store.Get()
	applyScanOverrides(&settings)

	page, err := simPage()
	if err != nil {
		return err
	}
	pages := make([]driver.Page, scanFlags.pages)
	for i := range pages {
		pages[i] = page
	}
	sim := driver.NewSimulator(pages...)

	log := slog.Default()
	job := output.NewJob(log)
	onDisk := 0

	session, err := engine.NewSession(sim, engine.Config{
		ImageDir:           settings.ImageDir,
		FileFormat:         settings.Format(),
		AutoFormatOverride: settings.AutoFormatOverride,
		Log:                log,
		Deliver: func(res engine.ImageResult) engine.XferCommand {
			if res.Err != nil {
				log.Error("page failed", "triplet", res.Triplet, "err", res.Err)
				return engine.CmdContinue
			}
			if res.Path != "" {
				onDisk++
			}
			job.Add(output.Page{Image: res.Image, Raw: res.Raw, DPI: scanFlags.resolution})
			fmt.Fprintf(cmd.OutOrStdout(), "page %d: %s %s\n", job.Pages(), res.Triplet, res.InfoSummary)
			if scanFlags.stopAfter > 0 && job.Pages() >= scanFlags.stopAfter {
				return engine.CmdStopFeeder
			}
			return engine.CmdContinue
		},
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.OpenDefaultSource(); err != nil {
		return err
	}
	if err := session.SetXferMech(settings.XferMech()); err != nil {
		return err
	}
	if err := session.Enable(settings.ShowUI); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := session.RunBatch(ctx); err != nil {
		return err
	}

	seen, xferred := session.Counters()
	log.Info("batch complete", "job", job.ID, "seen", seen, "transferred", xferred)

	pdfPath := scanFlags.pdf
	if pdfPath == "" && settings.AssemblePDF {
		dir := settings.ImageDir
		if dir == "" {
			dir, _ = os.Getwd()
		}
		pdfPath = filepath.Join(dir, job.ID.String()+".pdf")
	}
	if pdfPath != "" {
		if err := job.WritePDF(pdfPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d pages)\n", pdfPath, job.Pages())
	} else if onDisk == 0 && job.Pages() > 0 {
		// Nothing hit the disk during the transfers (native mechanism, or
		// temp-dir containers already cleaned up): persist the pages now.
		dir := settings.ImageDir
		if dir == "" {
			dir, _ = os.Getwd()
		}
		paths, err := job.SavePages(dir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
	}
	return nil
}

func applyScanOverrides(settings *config.Settings) {
	if scanFlags.mechanism != "" {
		settings.Mechanism = scanFlags.mechanism
	}
	if scanFlags.dir != "" {
		settings.ImageDir = scanFlags.dir
	}
	if scanFlags.format != "" {
		settings.FileFormat = scanFlags.format
	}
	if scanFlags.showUI {
		settings.ShowUI = true
	}
	if scanFlags.autoFormat {
		settings.AutoFormatOverride = true
	}
}
