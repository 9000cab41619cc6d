// Chapter numbers are decimals like 1, 1.5 or 10.25. Identity is always
// decided on the canonical decimal string, never by comparing floats.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ChapterNum is a decimal chapter number.
type ChapterNum float64

// ParseChapterNum parses a decimal chapter number from user or metadata input.
func ParseChapterNum(s string) (ChapterNum, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chapter number %q: %w", s, err)
	}
	return ChapterNum(f), nil
}

// Canonical returns the canonical decimal string: integers render without a
// fractional part ("12"), everything else with the shortest exact decimal
// ("1.5"). Cache slot folders are named with this form.
func (c ChapterNum) Canonical() string {
	f := float64(c)
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// LibrarySlug returns the chapter slot name used inside a library's chapters
// directory. The catalog layout always carries at least one decimal place
// ("1.0", "1.5"), matching what existing libraries contain.
func (c ChapterNum) LibrarySlug() string {
	f := float64(c)
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// URLFragment renders the chapter for synthesized chapter URLs: the canonical
// form with "." replaced by "-" (1.5 -> "1-5").
func (c ChapterNum) URLFragment() string {
	return strings.ReplaceAll(c.Canonical(), ".", "-")
}

// Equal compares on canonical strings so that 1 and 1.0 are the same slot.
func (c ChapterNum) Equal(other ChapterNum) bool {
	return c.Canonical() == other.Canonical()
}

// Sequence yields the chapter numbers from 'from' to 'to' inclusive stepping
// by rate. A non-positive rate defaults to 1. The direction follows the sign
// of to-from.
func Sequence(from, to ChapterNum, rate float64) []ChapterNum {
	if rate <= 0 {
		rate = 1
	}
	var out []ChapterNum
	if from <= to {
		for f := float64(from); f <= float64(to)+1e-9; f += rate {
			out = append(out, ChapterNum(f))
		}
	} else {
		for f := float64(from); f >= float64(to)-1e-9; f -= rate {
			out = append(out, ChapterNum(f))
		}
	}
	return out
}
