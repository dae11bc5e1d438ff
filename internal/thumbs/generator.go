// Package thumbs produces one small raster preview per archive and keeps
// it persisted through the catalog store, plus a bounded in-memory cache
// of decoded display images.
package thumbs

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"strings"
	"time"

	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp" // bmp decoder registration
)

const (
	// CanvasWidth and CanvasHeight fix the thumbnail dimensions; every
	// generated thumbnail decodes to exactly this size.
	CanvasWidth  = 480
	CanvasHeight = 320

	// jpegQuality is the fixed encode quality.
	jpegQuality = 85

	// minCandidateBytes excludes tiny in-archive images (credits pages,
	// icons) from cover selection.
	minCandidateBytes = 10 * 1024
)

// imageExts is the allow-list for in-archive image detection.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// Generator renders thumbnails from archive files.
type Generator struct{}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the thumbnail for one archive. The first non-directory
// entry above the size threshold with an allowed image extension, in
// archive order, is the candidate. Any failure (unreadable archive, no
// candidate, decode error) degrades to the placeholder; Generate never
// fails a file.
func (g *Generator) Generate(archivePath string) (data []byte, placeholder bool) {
	start := time.Now()
	defer func() {
		metrics.ThumbsGenerateDuration.Observe(time.Since(start).Seconds())
		source := "archive"
		if placeholder {
			source = "placeholder"
		}
		metrics.ThumbsGenerated.WithLabelValues(source).Inc()
	}()

	img, err := decodeCover(archivePath)
	if err != nil {
		logging.Debug("Thumbnail fallback for %s: %v", archivePath, err)
		return g.Placeholder(), true
	}

	encoded, err := render(img)
	if err != nil {
		logging.Debug("Thumbnail encode failed for %s: %v", archivePath, err)
		return g.Placeholder(), true
	}
	return encoded, false
}

// decodeCover opens the archive and decodes the cover candidate.
func decodeCover(archivePath string) (image.Image, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(f.Name))] {
			continue
		}
		if f.UncompressedSize64 < minCandidateBytes {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		img, err := imaging.Decode(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			logging.Debug("close %s in %s: %v", f.Name, archivePath, closeErr)
		}
		return img, nil
	}

	return nil, errNoCandidate
}

var errNoCandidate = errors.New("no usable image in archive")

// render scales img to fit the canvas preserving aspect ratio, centers it
// on a white canvas of exactly CanvasWidth x CanvasHeight, and encodes it
// as JPEG.
func render(img image.Image) ([]byte, error) {
	fitted := imaging.Fit(img, CanvasWidth, CanvasHeight, imaging.Lanczos)
	canvas := imaging.New(CanvasWidth, CanvasHeight, color.White)
	canvas = imaging.PasteCenter(canvas, fitted)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Placeholder synthesizes the fixed substitute image used when no usable
// in-archive image exists.
func (g *Generator) Placeholder() []byte {
	canvas := imaging.New(CanvasWidth, CanvasHeight, color.NRGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF})
	inner := imaging.New(CanvasWidth*3/5, CanvasHeight*3/5, color.NRGBA{R: 0xD0, G: 0xD0, B: 0xD4, A: 0xFF})
	canvas = imaging.PasteCenter(canvas, inner)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		// Encoding a synthetic in-memory image cannot fail in practice.
		logging.Error("placeholder encode: %v", err)
		return nil
	}
	return buf.Bytes()
}
