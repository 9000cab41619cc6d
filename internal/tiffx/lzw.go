package tiffx

import "bytes"

// TIFF-variant LZW compressor: MSB-first bit order with the "early change"
// quirk, where the code width grows one code earlier than in GIF/Unix LZW.
// compress/lzw cannot produce this variant, which is why it lives here.

const (
	lzwClearCode = 256
	lzwEOICode   = 257
	lzwFirstCode = 258
	lzwMaxCode   = 4093 // reset the table before codes outgrow 12 bits
)

type lzwWriter struct {
	buf      bytes.Buffer
	bitBuf   uint32
	bitCount uint
	width    uint
	next     int
	table    map[string]int
}

func newLZWWriter() *lzwWriter {
	w := &lzwWriter{}
	w.reset()
	return w
}

func (w *lzwWriter) reset() {
	w.width = 9
	w.next = lzwFirstCode
	w.table = make(map[string]int, 4096)
}

func (w *lzwWriter) emit(code int) {
	w.bitBuf = w.bitBuf<<w.width | uint32(code)
	w.bitCount += w.width
	for w.bitCount >= 8 {
		w.bitCount -= 8
		w.buf.WriteByte(byte(w.bitBuf >> w.bitCount))
	}
}

// bump grows the code width. Early change: the width increases when the next
// assignable code reaches 2^width-1, not 2^width.
func (w *lzwWriter) bump() {
	if w.next == (1<<w.width)-1 && w.width < 12 {
		w.width++
	}
}

func lzwCompress(data []byte) []byte {
	w := newLZWWriter()
	w.emit(lzwClearCode)

	var prefix []byte
	for _, b := range data {
		candidate := append(prefix, b)
		if _, ok := w.lookup(candidate); ok {
			prefix = candidate
			continue
		}
		w.emit(w.code(prefix))
		w.table[string(candidate)] = w.next
		w.next++
		w.bump()
		if w.next > lzwMaxCode {
			w.emit(lzwClearCode)
			w.reset()
		}
		prefix = []byte{b}
	}
	if len(prefix) > 0 {
		w.emit(w.code(prefix))
		w.bump()
	}
	w.emit(lzwEOICode)

	// Flush the partial byte.
	if w.bitCount > 0 {
		w.buf.WriteByte(byte(w.bitBuf << (8 - w.bitCount)))
		w.bitCount = 0
	}
	return w.buf.Bytes()
}

func (w *lzwWriter) lookup(seq []byte) (int, bool) {
	if len(seq) == 1 {
		return int(seq[0]), true
	}
	c, ok := w.table[string(seq)]
	return c, ok
}

func (w *lzwWriter) code(seq []byte) int {
	c, _ := w.lookup(seq)
	return c
}
