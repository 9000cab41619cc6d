package saver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkathuria/comicden/internal/imaging"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

// WebP stores a chapter as a folder of WebP files under chapters/<num>/.
// The quality mapping (50/30/10/0) is carried over from the original
// format table even though it reads inverted next to typical WebP encoder
// semantics.
type WebP struct {
	base
}

func NewWebP() *WebP {
	return &WebP{base{models.SaverInfo{ID: "webp_saver", Name: "WebP"}}}
}

func (s *WebP) SaveChapter(ctx context.Context, req SaveRequest, progress ProgressFn) error {
	w, err := beginWrite(s.Info().ID, req)
	if err != nil {
		return err
	}

	chaptersDir, err := w.chaptersDir()
	if err != nil {
		return err
	}
	slug := req.Chapter.LibrarySlug()

	staging, err := os.MkdirTemp(chaptersDir, "."+slug+"-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	quality := imaging.WebPQuality(req.Quality)
	for i, src := range w.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := imaging.Decode(src)
		if err != nil {
			return err
		}
		dest := filepath.Join(staging, util.PageFilename(i+1, ".webp"))
		if err := imaging.EncodeWebP(dest, img, quality); err != nil {
			return err
		}
		progress.Report((i+1)*90/len(w.pages), fmt.Sprintf("encoding pages (%d/%d)", i+1, len(w.pages)))
	}

	final := filepath.Join(chaptersDir, slug)
	if err := os.RemoveAll(final); err != nil {
		return err
	}
	if err := os.Rename(staging, final); err != nil {
		return err
	}
	progress.Report(99, "chapter folder written")

	return w.commit(req, filepath.ToSlash(filepath.Join("chapters", slug)), len(w.pages), progress)
}
