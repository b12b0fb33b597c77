package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for data which is not a known raster image
// or SVG.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Format detects image format by content: "svg" or the filetype extension of
// a raster image.
func Format(data []byte) (string, error) {
	if kind, err := filetype.Image(data); err == nil && kind != filetype.Unknown {
		return kind.Extension, nil
	}
	head := data[:min(len(data), 512)]
	if bytes.Contains(head, []byte("<svg")) {
		return "svg", nil
	}
	return "", ErrUnsupportedImage
}

// Decode reads raster image or rasterizes SVG at its own size.
func Decode(data []byte) (image.Image, error) {
	format, err := Format(data)
	if err != nil {
		return nil, err
	}
	if format == "svg" {
		return RasterizeSVG(data, 0, 0)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s image: %w", format, err)
	}
	return img, nil
}

// Fit scales image down to fit into width x height keeping aspect ratio.
// Smaller images are returned as is.
func Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() <= width && b.Dy() <= height) {
		return img
	}
	return imaging.Fit(img, width, height, imaging.Lanczos)
}

// EncodePNG encodes image with best compression.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, fmt.Errorf("unable to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
