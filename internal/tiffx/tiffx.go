// Package tiffx reads and writes multi-page TIFF files. The Go ecosystem
// only offers single-page TIFF codecs, so the IFD chaining is done here:
// each page is one IFD with a single strip, compressed as none, LZW, Deflate
// or new-style JPEG. Per-page pixel decoding is delegated to x/image/tiff
// (and image/jpeg for JPEG strips).
package tiffx

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/tiff"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/imaging"
)

// Compression selects the per-strip codec.
type Compression uint16

const (
	CompressionNone    Compression = 1
	CompressionLZW     Compression = 5
	CompressionJPEG    Compression = 7 // new-style JPEG, strip is a JFIF stream
	CompressionDeflate Compression = 8 // zlib streams (Adobe deflate)
)

const jpegQuality = 80

// TIFF tags used by this codec.
const (
	tagImageWidth    = 256
	tagImageLength   = 257
	tagBitsPerSample = 258
	tagCompression   = 259
	tagPhotometric   = 262
	tagStripOffsets  = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip  = 278
	tagStripByteCounts = 279
)

const (
	typeShort = 3
	typeLong  = 4
)

type ifdEntry struct {
	tag    uint16
	typ    uint16
	count  uint32
	value  uint32 // inline value or offset, patched at layout time
	extern []byte // external data when the value does not fit in 4 bytes
}

// Encode writes every page into w as one multi-page TIFF.
func Encode(pages []image.Image, comp Compression) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to encode")
	}

	out := make([]byte, 8)
	out[0], out[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(out[2:], 42)
	// Offset of the first IFD is patched once the first page is laid out.

	prevNextPtr := 4 // position of the pointer to the next IFD
	for _, page := range pages {
		strip, photometric, err := encodeStrip(page, comp)
		if err != nil {
			return nil, err
		}
		width := uint32(page.Bounds().Dx())
		height := uint32(page.Bounds().Dy())

		entries := []ifdEntry{
			{tag: tagImageWidth, typ: typeLong, count: 1, value: width},
			{tag: tagImageLength, typ: typeLong, count: 1, value: height},
			{tag: tagBitsPerSample, typ: typeShort, count: 3, extern: shorts(8, 8, 8)},
			{tag: tagCompression, typ: typeShort, count: 1, value: uint32(comp)},
			{tag: tagPhotometric, typ: typeShort, count: 1, value: photometric},
			{tag: tagStripOffsets, typ: typeLong, count: 1}, // patched below
			{tag: tagSamplesPerPixel, typ: typeShort, count: 1, value: 3},
			{tag: tagRowsPerStrip, typ: typeLong, count: 1, value: height},
			{tag: tagStripByteCounts, typ: typeLong, count: 1, value: uint32(len(strip))},
		}

		// Page layout: external entry data, then the strip, then the IFD.
		// Every recorded offset sits on a word boundary.
		for i := range entries {
			if entries[i].extern != nil {
				out = alignWord(out)
				entries[i].value = uint32(len(out))
				out = append(out, entries[i].extern...)
			}
		}
		out = alignWord(out)
		stripOffset := uint32(len(out))
		out = append(out, strip...)
		for i := range entries {
			if entries[i].tag == tagStripOffsets {
				entries[i].value = stripOffset
			}
		}

		out = alignWord(out)
		ifdOffset := uint32(len(out))
		binary.LittleEndian.PutUint32(out[prevNextPtr:], ifdOffset)

		var ifd bytes.Buffer
		binary.Write(&ifd, binary.LittleEndian, uint16(len(entries)))
		for _, e := range entries {
			binary.Write(&ifd, binary.LittleEndian, e.tag)
			binary.Write(&ifd, binary.LittleEndian, e.typ)
			binary.Write(&ifd, binary.LittleEndian, e.count)
			binary.Write(&ifd, binary.LittleEndian, inlineValue(e))
		}
		binary.Write(&ifd, binary.LittleEndian, uint32(0)) // next IFD, patched on the next page
		prevNextPtr = len(out) + ifd.Len() - 4
		out = append(out, ifd.Bytes()...)
	}

	return out, nil
}

// alignWord pads to the next 16-bit boundary; value offsets must be even.
func alignWord(out []byte) []byte {
	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// inlineValue renders the 4-byte value field. Inline SHORT values sit in the
// low-order bytes, which for little endian is a plain 32-bit write.
func inlineValue(e ifdEntry) uint32 {
	return e.value
}

func shorts(vals ...uint16) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func encodeStrip(page image.Image, comp Compression) (data []byte, photometric uint32, err error) {
	if comp == CompressionJPEG {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, page, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, 0, fmt.Errorf("jpeg strip encode failed: %w", err)
		}
		return buf.Bytes(), 6, nil // YCbCr
	}

	raw := rawRGB(page)
	switch comp {
	case CompressionNone:
		return raw, 2, nil
	case CompressionLZW:
		return lzwCompress(raw), 2, nil
	case CompressionDeflate:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, 0, err
		}
		if err := zw.Close(); err != nil {
			return nil, 0, err
		}
		return buf.Bytes(), 2, nil
	}
	return nil, 0, fmt.Errorf("unsupported tiff compression %d", comp)
}

func rawRGB(img image.Image) []byte {
	rgba := imaging.ToRGBA(img)
	b := rgba.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := rgba.Pix[(y-b.Min.Y)*rgba.Stride : (y-b.Min.Y)*rgba.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			out = append(out, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// Decode parses every page of a multi-page TIFF.
func Decode(data []byte) ([]image.Image, error) {
	if len(data) < 8 || data[0] != 'I' || data[1] != 'I' {
		return nil, errs.New(errs.KindCorrupt, "not a little-endian tiff")
	}
	if binary.LittleEndian.Uint16(data[2:]) != 42 {
		return nil, errs.New(errs.KindCorrupt, "bad tiff magic")
	}

	var pages []image.Image
	offset := binary.LittleEndian.Uint32(data[4:])
	for offset != 0 {
		if int(offset)+2 > len(data) {
			return nil, errs.New(errs.KindCorrupt, "ifd offset out of range")
		}
		page, next, err := decodePage(data, offset)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		offset = next
	}
	if len(pages) == 0 {
		return nil, errs.New(errs.KindCorrupt, "tiff contains no pages")
	}
	return pages, nil
}

type rawEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	raw   [4]byte
}

func (e *rawEntry) long() uint32 {
	if e.typ == typeShort {
		return uint32(binary.LittleEndian.Uint16(e.raw[:2]))
	}
	return binary.LittleEndian.Uint32(e.raw[:])
}

func typeSize(typ uint16) uint32 {
	switch typ {
	case 1, 2, 6, 7: // byte-sized
		return 1
	case typeShort:
		return 2
	case typeLong, 11: // long, float
		return 4
	case 5, 10, 12: // rational, srational, double
		return 8
	}
	return 1
}

// decodePage rebuilds one IFD as a standalone single-page TIFF and hands it
// to the x/image decoder, except for JPEG strips which decode directly.
func decodePage(data []byte, offset uint32) (image.Image, uint32, error) {
	n := binary.LittleEndian.Uint16(data[offset:])
	entryBase := offset + 2
	end := entryBase + uint32(n)*12
	if int(end)+4 > len(data) {
		return nil, 0, errs.New(errs.KindCorrupt, "truncated ifd")
	}
	next := binary.LittleEndian.Uint32(data[end:])

	entries := make([]rawEntry, n)
	var comp uint32 = 1
	for i := range entries {
		pos := entryBase + uint32(i)*12
		entries[i].tag = binary.LittleEndian.Uint16(data[pos:])
		entries[i].typ = binary.LittleEndian.Uint16(data[pos+2:])
		entries[i].count = binary.LittleEndian.Uint32(data[pos+4:])
		copy(entries[i].raw[:], data[pos+8:pos+12])
		if entries[i].tag == tagCompression {
			comp = entries[i].long()
		}
	}

	strip, counts, err := stripBounds(data, entries)
	if err != nil {
		return nil, 0, err
	}

	if Compression(comp) == CompressionJPEG {
		img, err := jpeg.Decode(bytes.NewReader(strip))
		if err != nil {
			return nil, 0, errs.Wrap(errs.KindCorrupt, err, "jpeg strip decode failed")
		}
		return img, next, nil
	}

	single, err := rebuildSinglePage(data, entries, strip, counts)
	if err != nil {
		return nil, 0, err
	}
	img, err := tiff.Decode(bytes.NewReader(single))
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindCorrupt, err, "tiff page decode failed")
	}
	return img, next, nil
}

// stripBounds extracts the concatenated strip bytes and per-strip counts.
func stripBounds(data []byte, entries []rawEntry) ([]byte, []uint32, error) {
	var offsets, counts []uint32
	for _, e := range entries {
		switch e.tag {
		case tagStripOffsets:
			offsets = entryValues(data, e)
		case tagStripByteCounts:
			counts = entryValues(data, e)
		case 324: // tiles
			return nil, nil, errs.New(errs.KindCorrupt, "tiled tiff is not supported")
		}
	}
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, nil, errs.New(errs.KindCorrupt, "missing strip layout")
	}
	var strip []byte
	for i := range offsets {
		lo, hi := offsets[i], offsets[i]+counts[i]
		if int(hi) > len(data) || lo > hi {
			return nil, nil, errs.New(errs.KindCorrupt, "strip out of range")
		}
		strip = append(strip, data[lo:hi]...)
	}
	return strip, counts, nil
}

// entryValues reads the value array of an entry, inline or external.
func entryValues(data []byte, e rawEntry) []uint32 {
	size := typeSize(e.typ) * e.count
	var src []byte
	if size <= 4 {
		src = e.raw[:]
	} else {
		off := binary.LittleEndian.Uint32(e.raw[:])
		if int(off+size) > len(data) {
			return nil
		}
		src = data[off : off+size]
	}
	out := make([]uint32, e.count)
	for i := uint32(0); i < e.count; i++ {
		if e.typ == typeShort {
			out[i] = uint32(binary.LittleEndian.Uint16(src[i*2:]))
		} else {
			out[i] = binary.LittleEndian.Uint32(src[i*4:])
		}
	}
	return out
}

// rebuildSinglePage re-lays one IFD plus its referenced data into a fresh
// single-page TIFF buffer.
func rebuildSinglePage(data []byte, entries []rawEntry, strip []byte, counts []uint32) ([]byte, error) {
	out := make([]byte, 8)
	out[0], out[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(out[2:], 42)

	type patched struct {
		rawEntry
		value uint32
	}
	rebuilt := make([]patched, 0, len(entries))

	// Copy external data of every entry except the strip layout, which is
	// rewritten as a single strip below.
	for _, e := range entries {
		if e.tag == tagStripOffsets || e.tag == tagStripByteCounts {
			continue
		}
		p := patched{rawEntry: e}
		size := typeSize(e.typ) * e.count
		if size > 4 {
			off := binary.LittleEndian.Uint32(e.raw[:])
			if int(off+size) > len(data) {
				return nil, errs.New(errs.KindCorrupt, "entry data out of range")
			}
			p.value = uint32(len(out))
			out = append(out, data[off:off+size]...)
		} else {
			p.value = binary.LittleEndian.Uint32(e.raw[:])
		}
		rebuilt = append(rebuilt, p)
	}

	stripOffset := uint32(len(out))
	out = append(out, strip...)

	rebuilt = append(rebuilt,
		patched{rawEntry: rawEntry{tag: tagStripOffsets, typ: typeLong, count: 1}, value: stripOffset},
		patched{rawEntry: rawEntry{tag: tagStripByteCounts, typ: typeLong, count: 1}, value: uint32(len(strip))},
	)

	// Entries must stay sorted by tag.
	for i := 1; i < len(rebuilt); i++ {
		for j := i; j > 0 && rebuilt[j].tag < rebuilt[j-1].tag; j-- {
			rebuilt[j], rebuilt[j-1] = rebuilt[j-1], rebuilt[j]
		}
	}

	ifdOffset := uint32(len(out))
	binary.LittleEndian.PutUint32(out[4:], ifdOffset)

	var ifd bytes.Buffer
	binary.Write(&ifd, binary.LittleEndian, uint16(len(rebuilt)))
	for _, e := range rebuilt {
		binary.Write(&ifd, binary.LittleEndian, e.tag)
		binary.Write(&ifd, binary.LittleEndian, e.typ)
		binary.Write(&ifd, binary.LittleEndian, e.count)
		binary.Write(&ifd, binary.LittleEndian, e.value)
	}
	binary.Write(&ifd, binary.LittleEndian, uint32(0))
	return append(out, ifd.Bytes()...), nil
}
