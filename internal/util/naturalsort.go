package util

import (
	"regexp"
	"strconv"
	"strings"
)

var chunker = regexp.MustCompile(`(\d+|\D+)`)

// NaturalLess compares two file names so that "page_2" sorts before
// "page_10". Archive readers rely on this to recover page order from names.
func NaturalLess(a, b string) bool {
	ca := chunker.FindAllString(a, -1)
	cb := chunker.FindAllString(b, -1)
	n := len(ca)
	if len(cb) < n {
		n = len(cb)
	}
	for i := 0; i < n; i++ {
		na, aNum := atoi(ca[i])
		nb, bNum := atoi(cb[i])
		switch {
		case aNum && bNum:
			if na != nb {
				return na < nb
			}
		case aNum:
			return true
		case bNum:
			return false
		default:
			sa, sb := strings.ToLower(ca[i]), strings.ToLower(cb[i])
			if sa != sb {
				return sa < sb
			}
		}
	}
	return len(ca) < len(cb)
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
