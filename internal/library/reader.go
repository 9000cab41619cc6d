// Chapter readers: every storage format a saver can produce has a matching
// extractor that unpacks the chapter back into a flat folder of sequentially
// numbered page images.

package library

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/mholt/archives"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/ffmpegx"
	"github.com/pkathuria/comicden/internal/tiffx"
	"github.com/pkathuria/comicden/internal/util"
)

// isImageFile checks if a filename has a common image file extension.
func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".webp"
}

// ExtractChapter unpacks a stored chapter (folder, archive, multi-page TIFF,
// PDF or video) into dest as pages named 001.<ext>, 002.<ext>, ... in reading
// order. It returns the number of pages written.
func ExtractChapter(ctx context.Context, src, dest string) (int, error) {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, err
	}

	info, err := os.Stat(src)
	if err != nil {
		return 0, errs.Wrap(errs.KindPermanent, err, "chapter location missing")
	}
	if info.IsDir() {
		return extractFolder(src, dest)
	}

	switch strings.ToLower(filepath.Ext(src)) {
	case ".cbz", ".zip", ".cbr", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz":
		return extractArchive(ctx, src, dest)
	case ".tiff", ".tif":
		return extractTIFF(src, dest)
	case ".pdf":
		return extractPDF(src, dest)
	case ".mkv", ".mp4", ".webm":
		return extractVideo(ctx, src, dest)
	}
	return 0, fmt.Errorf("unsupported chapter format: %s", filepath.Ext(src))
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractFolder copies the image files of a loose chapter directory,
// renumbering them in natural sort order.
func extractFolder(src, dest string) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return util.NaturalLess(names[i], names[j])
	})

	for i, name := range names {
		out := util.PageFilename(i+1, filepath.Ext(name))
		if err := copyFile(filepath.Join(src, name), filepath.Join(dest, out)); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}

// extractArchive handles every archive container through one code path;
// format identification is by file header, not extension. ComicInfo.xml and
// other non-image members are skipped.
func extractArchive(ctx context.Context, src, dest string) (int, error) {
	fsys, err := archives.FileSystem(ctx, src, nil)
	if err != nil {
		return 0, errs.Wrap(errs.KindCorrupt, err, "unreadable archive %s", filepath.Base(src))
	}

	var names []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImageFile(path) {
			return nil
		}
		names = append(names, path)
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindCorrupt, err, "unreadable archive %s", filepath.Base(src))
	}
	sort.Slice(names, func(i, j int) bool {
		return util.NaturalLess(names[i], names[j])
	})

	for i, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return 0, errs.Wrap(errs.KindCorrupt, err, "failed to read %s", name)
		}
		out := util.PageFilename(i+1, filepath.Ext(name))
		if err := os.WriteFile(filepath.Join(dest, out), data, 0644); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}

// extractTIFF decodes a multi-page TIFF chapter, one PNG per page.
func extractTIFF(src, dest string) (int, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	pages, err := tiffx.Decode(data)
	if err != nil {
		return 0, errs.Wrap(errs.KindCorrupt, err, "unreadable TIFF chapter")
	}
	for i, img := range pages {
		f, err := os.Create(filepath.Join(dest, util.PageFilename(i+1, ".png")))
		if err != nil {
			return 0, err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return 0, err
		}
		if err := f.Close(); err != nil {
			return 0, err
		}
	}
	return len(pages), nil
}

// extractPDF renders each PDF page to a PNG.
func extractPDF(src, dest string) (int, error) {
	doc, err := fitz.New(src)
	if err != nil {
		return 0, errs.Wrap(errs.KindCorrupt, err, "unreadable PDF chapter")
	}
	defer doc.Close()

	n := doc.NumPage()
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return 0, errs.Wrap(errs.KindCorrupt, err, "failed to render PDF page %d", i+1)
		}
		f, err := os.Create(filepath.Join(dest, util.PageFilename(i+1, ".png")))
		if err != nil {
			return 0, err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return 0, err
		}
		if err := f.Close(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// extractVideo pulls the frames of a slideshow chapter back out. The page
// strips were sliced before encoding, so frames come out as readable pages.
func extractVideo(ctx context.Context, src, dest string) (int, error) {
	if err := ffmpegx.ExtractFrames(ctx, src, filepath.Join(dest, "%03d.png")); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			n++
		}
	}
	if n == 0 {
		return 0, errs.New(errs.KindCorrupt, "no frames extracted from %s", filepath.Base(src))
	}
	return n, nil
}
