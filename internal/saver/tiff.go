package saver

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkathuria/comicden/internal/imaging"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/tiffx"
)

// TIFF stores a chapter as one multi-page TIFF at chapters/<num>.tiff.
// Quality maps to the page compression instead of a resize.
type TIFF struct {
	base
}

func NewTIFF() *TIFF {
	return &TIFF{base{models.SaverInfo{ID: "tiff_saver", Name: "TIFF"}}}
}

func tiffCompression(q models.Quality) tiffx.Compression {
	switch q {
	case models.QualityGood:
		return tiffx.CompressionLZW
	case models.QualitySize:
		return tiffx.CompressionDeflate
	case models.QualitySmallest:
		return tiffx.CompressionJPEG
	}
	return tiffx.CompressionNone
}

func (s *TIFF) SaveChapter(ctx context.Context, req SaveRequest, progress ProgressFn) error {
	w, err := beginWrite(s.Info().ID, req)
	if err != nil {
		return err
	}

	pages := make([]image.Image, 0, len(w.pages))
	for i, src := range w.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := imaging.Decode(src)
		if err != nil {
			return err
		}
		pages = append(pages, img)
		progress.Report((i+1)*60/len(w.pages), fmt.Sprintf("decoding pages (%d/%d)", i+1, len(w.pages)))
	}

	data, err := tiffx.Encode(pages, tiffCompression(req.Quality))
	if err != nil {
		return err
	}
	progress.Report(90, "pages encoded")

	chaptersDir, err := w.chaptersDir()
	if err != nil {
		return err
	}
	slug := req.Chapter.LibrarySlug()
	final := filepath.Join(chaptersDir, slug+".tiff")

	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	progress.Report(99, "file written")

	return w.commit(req, filepath.ToSlash(filepath.Join("chapters", slug+".tiff")), len(pages), progress)
}
