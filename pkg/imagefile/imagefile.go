// Package imagefile loads, decodes and saves the images handled by the
// generator: downloaded cards, background photos and synthesized samples.
package imagefile

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Format is an output image format.
type Format string

const (
	JPEG Format = "jpg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// ParseFormat normalizes a format name such as "JPEG" or ".webp".
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// SaveOptions controls encoding of saved images.
type SaveOptions struct {
	Format   Format
	Quality  int
	Lossless bool
}

// Info contains basic image metadata.
type Info struct {
	Width       int
	Height      int
	AspectRatio float64
	HasAlpha    bool
}

// Load loads an image from a file path with WebP support.
func Load(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// Decode decodes an image from byte data with WebP support.
func Decode(data []byte) (image.Image, error) {
	// Try standard image.Decode first
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Save writes img to path using the given encoding options.
func Save(img image.Image, path string, opts SaveOptions) error {
	switch opts.Format {
	case WebP:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)})
	case PNG:
		return imaging.Save(img, path)
	default: // jpg/jpeg
		quality := opts.Quality
		if quality <= 0 {
			quality = 90
		}
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// Encode encodes img into memory using the given options.
func Encode(img image.Image, opts SaveOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch opts.Format {
	case WebP:
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)}); err != nil {
			return nil, err
		}
	case PNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	default:
		quality := opts.Quality
		if quality <= 0 {
			quality = 90
		}
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ToNRGBA returns an independent NRGBA copy of img. Images without an alpha
// channel come back fully opaque.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Opaque returns an NRGBA copy of img with every alpha value forced to 255.
func Opaque(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// GetInfo returns basic information about an image.
func GetInfo(img image.Image) Info {
	b := img.Bounds()
	info := Info{Width: b.Dx(), Height: b.Dy()}
	if info.Height > 0 {
		info.AspectRatio = float64(info.Width) / float64(info.Height)
	}
	switch img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64, *image.Paletted:
		info.HasAlpha = true
	}
	return info
}

// ValidateSize checks that img is at least minWidth x minHeight.
func ValidateSize(img image.Image, minWidth, minHeight int) error {
	b := img.Bounds()
	if b.Dx() < minWidth || b.Dy() < minHeight {
		return fmt.Errorf("image too small: %dx%d (minimum: %dx%d)", b.Dx(), b.Dy(), minWidth, minHeight)
	}
	return nil
}
