package pdfdoc

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const (
	thumbnailDPI      = 72
	thumbnailMaxWidth = 480
	jpegQuality       = 85
)

// FirstPageJPEG rasterizes page 1 with pdftoppm, bounds the width and
// encodes a JPEG thumbnail.
func FirstPageJPEG(path string) ([]byte, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not found: %w", err)
	}

	dir, err := os.MkdirTemp("", "thumb-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "page")
	cmd := exec.Command("pdftoppm",
		"-jpeg",
		"-f", "1", "-l", "1",
		"-r", fmt.Sprintf("%d", thumbnailDPI),
		"-singlefile",
		path, out,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w", err)
	}

	img, err := imaging.Open(out + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	if img.Bounds().Dx() > thumbnailMaxWidth {
		img = imaging.Resize(img, thumbnailMaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
