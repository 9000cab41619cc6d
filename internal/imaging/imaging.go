// Package imaging holds the image plumbing shared by savers: decoding,
// quality-preset resizing, WebP encoding and the page stacking used by the
// video saver.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"

	// Register decoders for the formats pages arrive in.
	_ "image/gif"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/models"
)

// ResizeFactor maps a quality preset to the page scale factor used by the
// folder-based savers.
func ResizeFactor(q models.Quality) float64 {
	switch q {
	case models.QualityGood:
		return 0.75
	case models.QualitySize:
		return 0.5
	case models.QualitySmallest:
		return 0.25
	}
	return 1.0
}

// WebPQuality maps a quality preset to the encoder quality. The 50/30/10/0
// ladder is what existing libraries were written with, so it stays.
func WebPQuality(q models.Quality) float32 {
	switch q {
	case models.QualityGood:
		return 30
	case models.QualitySize:
		return 10
	case models.QualitySmallest:
		return 0
	}
	return 50
}

// Decode reads and decodes one image file.
func Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, err, "cannot read image %s", path)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, err, "cannot decode image %s", path)
	}
	return img, nil
}

// Scale resizes img by factor using Lanczos resampling. Factor 1.0 returns
// the image untouched.
func Scale(img image.Image, factor float64) image.Image {
	if factor >= 1.0 {
		return img
	}
	w := uint(float64(img.Bounds().Dx()) * factor)
	if w == 0 {
		w = 1
	}
	return resize.Resize(w, 0, img, resize.Lanczos3)
}

// EncodeTo writes img into path, choosing the encoder from the extension.
func EncodeTo(path string, img image.Image) error {
	var buf bytes.Buffer
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(&buf, img)
	case ".webp":
		err = webp.Encode(&buf, img, &webp.Options{Lossless: true})
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// EncodeWebP writes img as lossy WebP with the given quality.
func EncodeWebP(path string, img image.Image, quality float32) error {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode webp: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ToRGBA normalizes any decoded image into *image.RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// UniformSize reports whether every image shares the same dimensions.
func UniformSize(imgs []image.Image) bool {
	if len(imgs) < 2 {
		return true
	}
	first := imgs[0].Bounds().Size()
	for _, img := range imgs[1:] {
		if img.Bounds().Size() != first {
			return false
		}
	}
	return true
}

// StackVertical scales every page to a common width and draws them into one
// tall strip, the shape webtoon pages are published in.
func StackVertical(imgs []image.Image) *image.RGBA {
	width := 0
	for _, img := range imgs {
		if w := img.Bounds().Dx(); w > width {
			width = w
		}
	}

	scaled := make([]image.Image, len(imgs))
	total := 0
	for i, img := range imgs {
		s := img
		if img.Bounds().Dx() != width {
			s = resize.Resize(uint(width), 0, img, resize.Lanczos3)
		}
		scaled[i] = s
		total += s.Bounds().Dy()
	}

	strip := image.NewRGBA(image.Rect(0, 0, width, total))
	y := 0
	for _, img := range scaled {
		h := img.Bounds().Dy()
		draw.Draw(strip, image.Rect(0, y, width, y+h), img, img.Bounds().Min, draw.Src)
		y += h
	}
	return strip
}

// SliceChunks cuts a tall strip into n equal-height chunks whose aspect
// ratio approximates 9:16. The chunk height comes from a small search around
// the ideal value; when nothing divides cleanly the plain total/n split wins.
func SliceChunks(strip *image.RGBA, n int) []image.Image {
	if n < 1 {
		n = 1
	}
	width := strip.Bounds().Dx()
	total := strip.Bounds().Dy()

	ideal := width * 16 / 9
	chunk := total / n
	best := chunk
	bestGap := abs(chunk - ideal)
	for delta := -n; delta <= n; delta++ {
		candidate := chunk + delta
		if candidate <= 0 || candidate*n < total {
			continue
		}
		if gap := abs(candidate - ideal); gap < bestGap {
			best, bestGap = candidate, gap
		}
	}
	chunk = best
	if chunk <= 0 {
		chunk = total
	}

	var out []image.Image
	for y := 0; y < total; y += chunk {
		end := y + chunk
		if end > total {
			end = total
		}
		part := image.NewRGBA(image.Rect(0, 0, width, end-y))
		draw.Draw(part, part.Bounds(), strip, image.Pt(0, y), draw.Src)
		out = append(out, part)
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
