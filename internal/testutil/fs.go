package testutil

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// MakeImage renders a small solid-color test image.
func MakeImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// WritePageImage writes a test page image into dir, encoded by extension
// (.png or .jpg), and returns the full path.
func WritePageImage(t *testing.T, dir, name string, w, h int, c color.Color) string {
	t.Helper()
	img := MakeImage(w, h, c)
	path := filepath.Join(dir, name)

	var buf bytes.Buffer
	var err error
	switch filepath.Ext(name) {
	case ".png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
	return path
}

// MakeChapterDir creates a directory of ordered page images and returns it.
func MakeChapterDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for i, name := range names {
		// Vary the size a little so resizing is observable.
		WritePageImage(t, dir, name, 100+i*10, 150, color.RGBA{R: uint8(40 * i), G: 80, B: 120, A: 255})
	}
	return dir
}

// CreateTestCBZ creates a temporary CBZ file containing the given entries
// with arbitrary bytes. Useful for testing archive parsing.
func CreateTestCBZ(t *testing.T, dir, name string, pages []string) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("Failed to create temp cbz file: %v", err)
	}
	t.Cleanup(func() { file.Close() })

	zipWriter := zip.NewWriter(file)
	defer zipWriter.Close()

	for _, page := range pages {
		w, err := zipWriter.Create(page)
		if err != nil {
			t.Fatalf("Failed to create entry '%s' in zip: %v", page, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, MakeImage(10, 15, color.White)); err != nil {
			t.Fatalf("Failed to encode page: %v", err)
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			t.Fatalf("Failed to write page: %v", err)
		}
	}
	return filePath
}
