package output

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Page is one scanned page queued for saving or assembly.
type Page struct {
	// Image is the decoded raster, when the transfer produced one.
	Image image.Image
	// Raw is the original container or stream bytes, when available.
	Raw []byte
	// DPI is the density fallback used when Raw carries none.
	DPI int
}

// Job collects the pages of one scan batch under a unique identifier.
type Job struct {
	ID      uuid.UUID
	Started time.Time

	mu    sync.Mutex
	pages []Page
	log   *slog.Logger
}

// NewJob starts an empty job.
func NewJob(log *slog.Logger) *Job {
	if log == nil {
		log = slog.Default()
	}
	return &Job{
		ID:      uuid.New(),
		Started: time.Now(),
		log:     log,
	}
}

// Add appends one page to the job.
func (j *Job) Add(p Page) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pages = append(j.pages, p)
	j.log.Debug("page queued", "job", j.ID, "pages", len(j.pages))
}

// Pages reports how many pages the job holds.
func (j *Job) Pages() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pages)
}

// SavePages writes each page to dir as its own file, named after the job.
// Raw bytes are written as-is with a sniffed extension; pages without raw
// bytes are PNG-encoded from the raster. Returns the written paths.
func (j *Job) SavePages(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create save directory: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	var paths []string
	for i, p := range j.pages {
		var data []byte
		ext := "png"
		if len(p.Raw) > 0 {
			data = p.Raw
			ext = sniffExt(p.Raw)
		} else {
			if p.Image == nil {
				return paths, fmt.Errorf("page %d: nothing to save", i+1)
			}
			var err error
			if data, err = encodePNG(p.Image); err != nil {
				return paths, fmt.Errorf("page %d: %w", i+1, err)
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.%s", j.ID, i+1, ext))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("write page %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	j.log.Info("pages saved", "job", j.ID, "dir", dir, "pages", len(paths))
	return paths, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, embeddable(img)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sniffExt(data []byte) string {
	switch {
	case isJPEG(data):
		return "jpg"
	case len(data) >= 2 && (string(data[:2]) == "II" || string(data[:2]) == "MM"):
		return "tif"
	case len(data) >= 4 && string(data[:4]) == "\x89PNG":
		return "png"
	case len(data) >= 4 && string(data[:4]) == "%PDF":
		return "pdf"
	default:
		return "bin"
	}
}
