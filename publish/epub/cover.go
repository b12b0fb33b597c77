package epub

import (
	_ "embed"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"vbook/utils/images"
)

//go:embed default-cover.svg
var defaultCover []byte

var coverCandidates = []string{"cover.png", "cover.jpg", "cover.jpeg", "cover.webp", "cover.gif", "cover.bmp", "cover.svg"}

// coverSource returns cover image data: a cover file of the book, configured
// default image or built-in one.
func (e *export) coverSource() ([]byte, string, error) {
	for _, name := range coverCandidates {
		p := filepath.Join(e.book.Path(), name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", fmt.Errorf("unable to read cover: %w", err)
		}
		return data, p, nil
	}
	if p := e.cfg.Cover.DefaultImagePath; len(p) > 0 {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", fmt.Errorf("unable to read default cover: %w", err)
		}
		return data, p, nil
	}
	return defaultCover, "built-in", nil
}

func (e *export) writeCover() error {
	data, source, err := e.coverSource()
	if err != nil {
		return err
	}
	format, err := images.Format(data)
	if err != nil {
		return fmt.Errorf("cover '%s': %w", source, err)
	}

	w, h := e.cfg.Cover.Width, e.cfg.Cover.Height
	var img image.Image
	if format == "svg" {
		img, err = images.RasterizeSVG(data, w, h)
	} else {
		img, err = images.Decode(data)
		if err == nil {
			img = images.Fit(img, w, h)
		}
	}
	if err != nil {
		return fmt.Errorf("cover '%s': %w", source, err)
	}

	out, err := images.EncodePNG(img)
	if err != nil {
		return err
	}
	e.log.Debug("Cover prepared", zap.String("source", source), zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))
	return os.WriteFile(filepath.Join(e.oebps, coverName), out, 0644)
}
