package tiffx

import (
	"encoding/binary"
	"image"
	"image/color"
	"testing"
)

func page(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func colorsClose(a, b color.Color, tolerance int) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	diff := func(x, y uint32) int {
		d := int(x>>8) - int(y>>8)
		if d < 0 {
			d = -d
		}
		return d
	}
	return diff(ar, br) <= tolerance && diff(ag, bg) <= tolerance && diff(ab, bb) <= tolerance
}

func testRoundTrip(t *testing.T, comp Compression, tolerance int) {
	t.Helper()
	pages := []image.Image{
		page(40, 60, color.RGBA{200, 30, 30, 255}),
		page(40, 60, color.RGBA{30, 200, 30, 255}),
		page(40, 60, color.RGBA{30, 30, 200, 255}),
	}

	data, err := Encode(pages, comp)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("decoded %d pages, want 3", len(decoded))
	}
	for i, img := range decoded {
		if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 60 {
			t.Errorf("page %d bounds = %v", i, img.Bounds())
		}
		want := pages[i].At(10, 10)
		if !colorsClose(img.At(10, 10), want, tolerance) {
			t.Errorf("page %d color drifted: got %v want %v", i, img.At(10, 10), want)
		}
	}
}

func TestRoundTripNone(t *testing.T)    { testRoundTrip(t, CompressionNone, 0) }
func TestRoundTripLZW(t *testing.T)     { testRoundTrip(t, CompressionLZW, 0) }
func TestRoundTripDeflate(t *testing.T) { testRoundTrip(t, CompressionDeflate, 0) }
func TestRoundTripJPEG(t *testing.T)    { testRoundTrip(t, CompressionJPEG, 12) }

func TestEncodeAlignsOffsets(t *testing.T) {
	// 3x3 RGB strips are 27 bytes, so without padding every offset after
	// the first strip would land on an odd byte.
	pages := []image.Image{
		page(3, 3, color.RGBA{10, 20, 30, 255}),
		page(3, 3, color.RGBA{40, 50, 60, 255}),
	}
	data, err := Encode(pages, CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	ifdCount := 0
	off := binary.LittleEndian.Uint32(data[4:8])
	for off != 0 {
		ifdCount++
		if off%2 != 0 {
			t.Errorf("IFD %d at odd offset %d", ifdCount, off)
		}
		count := binary.LittleEndian.Uint16(data[off:])
		for i := uint32(0); i < uint32(count); i++ {
			entry := off + 2 + i*12
			tag := binary.LittleEndian.Uint16(data[entry:])
			if tag == tagStripOffsets || tag == tagBitsPerSample {
				if v := binary.LittleEndian.Uint32(data[entry+8:]); v%2 != 0 {
					t.Errorf("IFD %d tag %d value offset %d is odd", ifdCount, tag, v)
				}
			}
		}
		off = binary.LittleEndian.Uint32(data[off+2+uint32(count)*12:])
	}
	if ifdCount != 2 {
		t.Fatalf("walked %d IFDs, want 2", ifdCount)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d pages, want 2", len(decoded))
	}
}

func TestEncodeEmpty(t *testing.T) {
	if _, err := Encode(nil, CompressionNone); err == nil {
		t.Error("encoding zero pages should fail")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("not a tiff at all")); err == nil {
		t.Error("garbage should not decode")
	}
}

func TestLZWSmallInput(t *testing.T) {
	// The compressor must survive tiny and repetitive inputs.
	for _, in := range [][]byte{{}, {1}, {5, 5, 5, 5, 5, 5, 5, 5}} {
		out := lzwCompress(in)
		if len(in) > 0 && len(out) == 0 {
			t.Errorf("lzwCompress(%v) produced no output", in)
		}
	}
}
