package saver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkathuria/comicden/internal/imaging"
	"github.com/pkathuria/comicden/internal/models"
)

// Std stores a chapter as a plain folder of images under
// chapters/<num>/, keeping the original filenames. At best quality the
// files are copied byte for byte, so a round trip through the library is
// lossless.
type Std struct {
	base
}

func NewStd() *Std {
	return &Std{base{models.SaverInfo{ID: "std_saver", Name: "Std"}}}
}

func (s *Std) SaveChapter(ctx context.Context, req SaveRequest, progress ProgressFn) error {
	w, err := beginWrite(s.Info().ID, req)
	if err != nil {
		return err
	}

	chaptersDir, err := w.chaptersDir()
	if err != nil {
		return err
	}
	slug := req.Chapter.LibrarySlug()

	// Stage next to the final slot so the swap is a rename.
	staging, err := os.MkdirTemp(chaptersDir, "."+slug+"-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	factor := imaging.ResizeFactor(req.Quality)
	for i, src := range w.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(staging, filepath.Base(src))
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
		progress.Report((i+1)*90/len(w.pages), fmt.Sprintf("converting pages (%d/%d)", i+1, len(w.pages)))
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

func copyBytes(src, dest string) error {
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
