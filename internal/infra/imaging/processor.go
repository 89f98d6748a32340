// File: internal/infra/imaging/processor.go
package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.ImageProcessor = (*Processor)(nil)

// Processor implements the geometric transforms on local image files.
// Every operation writes a new temp file so step retries always see the
// untouched input.
type Processor struct {
	log *zerolog.Logger
}

func NewProcessor(log *zerolog.Logger) *Processor {
	return &Processor{log: log}
}

// Crop extracts the region from the image at path. The region is clamped
// to the image bounds; a region fully outside them is an invalid argument.
func (p *Processor) Crop(ctx context.Context, path string, region model.Region) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, format, err := decode(path)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	rect := image.Rect(region.X, region.Y, region.MaxX(), region.MaxY()).Intersect(b)
	if rect.Empty() {
		return "", fmt.Errorf("crop region outside image %dx%d: %w", b.Dx(), b.Dy(), domain.ErrInvalidArgument)
	}
	p.log.Debug().Str("path", path).
		Int("x", rect.Min.X).Int("y", rect.Min.Y).
		Int("w", rect.Dx()).Int("h", rect.Dy()).Msg("cropping working image")

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		// Decoded formats we accept all support SubImage; copy as a fallback.
		dst := image.NewRGBA(rect)
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				dst.Set(x, y, img.At(x, y))
			}
		}
		return encode(dst, format)
	}
	return encode(si.SubImage(rect), format)
}

// Enhance applies a contrast stretch over the luminance range so faint
// pencil strokes survive the downscaling the vision providers apply.
func (p *Processor) Enhance(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, format, err := decode(path)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	gray := image.NewGray(b)
	minL, maxL := uint8(255), uint8(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			gray.SetGray(x, y, color.Gray{Y: l})
			if l < minL {
				minL = l
			}
			if l > maxL {
				maxL = l
			}
		}
	}
	if maxL > minL {
		span := float64(maxL - minL)
		for i, l := range gray.Pix {
			gray.Pix[i] = uint8(float64(l-minL) / span * 255)
		}
	}
	return encode(gray, format)
}

func decode(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, format, nil
}

func encode(img image.Image, format string) (string, error) {
	ext := ".jpg"
	if format == "png" {
		ext = ".png"
	}
	tmp, err := os.CreateTemp("", "matheval-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if format == "png" {
		err = png.Encode(tmp, img)
	} else {
		err = jpeg.Encode(tmp, img, &jpeg.Options{Quality: 92})
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), nil
}
