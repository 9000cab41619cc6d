package util

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	invalidNameChars = regexp.MustCompile(`[\x00\\/:*?"<>|]`)
	slugStrip        = regexp.MustCompile(`[^\w\s-]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// SanitizeFilename replaces characters that are invalid in file names on the
// common filesystems.
func SanitizeFilename(name string) string {
	safe := invalidNameChars.ReplaceAllString(name, "-")
	for strings.HasPrefix(safe, ".") || strings.HasPrefix(safe, "-") {
		safe = safe[1:]
	}
	if safe == "" {
		safe = "untitled"
	}
	return safe
}

// Slugify converts a display title into the URL slug used by WordPress-family
// sites: lowercase, collapse whitespace, strip everything outside
// [word, space, dash], then join with dashes.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = slugStrip.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return strings.Join(strings.Fields(s), "-")
}

// PageFilename renders the zero-padded ordinal file name for a page,
// preserving the source extension ("003.jpg").
func PageFilename(index int, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%03d%s", index, ext)
}
