package saver

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkathuria/comicden/internal/imaging"
	"github.com/pkathuria/comicden/internal/library"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

// CBZ stores a chapter as a comic book archive: a zip holding
// pages/NNN.<ext> plus a ComicInfo.xml document, written to
// chapters/<num>.cbz.
type CBZ struct {
	base
}

func NewCBZ() *CBZ {
	return &CBZ{base{models.SaverInfo{ID: "cbz_saver", Name: "Comic Book"}}}
}

func (s *CBZ) SaveChapter(ctx context.Context, req SaveRequest, progress ProgressFn) error {
	w, err := beginWrite(s.Info().ID, req)
	if err != nil {
		return err
	}

	// Convert pages into a temp dir first; the archive write is a separate
	// phase so a failed conversion never leaves a half-built cbz behind.
	staging, err := os.MkdirTemp("", "comicden-cbz-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	factor := imaging.ResizeFactor(req.Quality)
	var staged []string
	for i, src := range w.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := util.PageFilename(i+1, filepath.Ext(src))
		dest := filepath.Join(staging, name)
		if factor == 1.0 {
			if err := copyBytes(src, dest); err != nil {
				return err
			}
		} else {
			img, err := imaging.Decode(src)
			if err != nil {
				return err
			}
			if err := imaging.EncodeTo(dest, imaging.Scale(img, factor)); err != nil {
				return err
			}
		}
		staged = append(staged, dest)
		progress.Report((i+1)*90/len(w.pages), fmt.Sprintf("converting pages (%d/%d)", i+1, len(w.pages)))
	}

	chaptersDir, err := w.chaptersDir()
	if err != nil {
		return err
	}
	slug := req.Chapter.LibrarySlug()
	final := filepath.Join(chaptersDir, slug+".cbz")

	tmp := final + ".tmp"
	if err := s.writeArchive(tmp, staged, w.comicInfo(req, len(staged))); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	progress.Report(99, "archive written")

	return w.commit(req, filepath.ToSlash(filepath.Join("chapters", slug+".cbz")), len(staged), progress)
}

func (s *CBZ) writeArchive(path string, pages []string, info *library.ComicInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	fail := func(err error) error {
		zw.Close()
		f.Close()
		return err
	}

	for _, page := range pages {
		entry, err := zw.Create("pages/" + filepath.Base(page))
		if err != nil {
			return fail(err)
		}
		data, err := os.ReadFile(page)
		if err != nil {
			return fail(err)
		}
		if _, err := entry.Write(data); err != nil {
			return fail(err)
		}
	}

	entry, err := zw.Create("ComicInfo.xml")
	if err != nil {
		return fail(err)
	}
	data, err := info.Marshal()
	if err != nil {
		return fail(err)
	}
	if _, err := entry.Write(data); err != nil {
		return fail(err)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
