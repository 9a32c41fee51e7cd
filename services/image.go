package services

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"countrypulse/storage"
	"countrypulse/system"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	summaryFileName = "summary.png"
	summaryWidth    = 600
	summaryHeight   = 400
	summaryTopN     = 5
)

// SummaryService renders the snapshot summary image: total count, last
// refresh time, and the top countries by estimated GDP. The artifact is a
// single shared file; writes go through a temp file and an atomic rename,
// and a mutex keeps invalidation and lazy regeneration from interleaving.
type SummaryService struct {
	store    *storage.Store
	cacheDir string
	mu       sync.Mutex
}

func NewSummaryService(store *storage.Store, cacheDir string) (*SummaryService, error) {
	if cacheDir == "" {
		cacheDir = "cache"
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &SummaryService{store: store, cacheDir: cacheDir}, nil
}

func (s *SummaryService) imagePath() string {
	return filepath.Join(s.cacheDir, summaryFileName)
}

// Invalidate re-renders the artifact from current store state. The refresh
// cycle calls this once, synchronously, after a successful merge.
func (s *SummaryService) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generate()
}

// Path returns the artifact location, rendering it first when the file is
// missing or empty.
func (s *SummaryService) Path() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.imagePath())
	if err != nil || info.Size() == 0 {
		if err := s.generate(); err != nil {
			return "", err
		}
	}
	return s.imagePath(), nil
}

func (s *SummaryService) generate() error {
	total, err := s.store.Count()
	if err != nil {
		return err
	}
	top, err := s.store.TopByGdp(summaryTopN)
	if err != nil {
		return err
	}
	last, err := s.store.LastRefreshTime()
	if err != nil {
		return err
	}

	lastText := "Never"
	if !last.IsZero() {
		lastText = last.UTC().Format("2006-01-02 15:04:05")
	}

	img := image.NewRGBA(image.Rect(0, 0, summaryWidth, summaryHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	drawText(img, 50, 50, "Country GDP Summary")
	drawText(img, 50, 90, fmt.Sprintf("Total Countries: %d", total))
	drawText(img, 50, 115, "Last Refreshed: "+lastText)
	drawText(img, 50, 150, "Top 5 Countries by GDP:")

	y := 180
	for i, country := range top {
		drawText(img, 70, y, fmt.Sprintf("%d. %s - $%.2f", i+1, country.Name, country.EstimatedGdp))
		y += 25
	}

	tmp, err := os.CreateTemp(s.cacheDir, summaryFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp image file: %w", err)
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode summary image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.imagePath()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace summary image: %w", err)
	}

	system.Info("Summary image regenerated (%d countries)", total)
	return nil
}

func drawText(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
