package saver

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/ffmpegx"
	"github.com/pkathuria/comicden/internal/imaging"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

// DeepC stores a chapter as an H.265 slideshow at chapters/<num>.mkv. Pages
// with non-uniform sizes are stacked into one tall strip and re-sliced into
// chunks near a 9:16 aspect before encoding, since the codec needs one
// frame size.
type DeepC struct {
	base
}

func NewDeepC() *DeepC {
	return &DeepC{base{models.SaverInfo{ID: "deepc_saver", Name: "DeepC"}}}
}

// CanWork requires ffmpeg on the PATH.
func (s *DeepC) CanWork() bool { return ffmpegx.Available() }

// deepcParams maps the quality preset to the libx265 tuple. A higher frame
// rate shrinks the file: frames amortize better even though each page is a
// single frame.
func deepcParams(q models.Quality) ffmpegx.EncodeParams {
	switch q {
	case models.QualityGood:
		return ffmpegx.EncodeParams{FPS: 2, CRF: 23, Preset: "medium", Tune: "psnr"}
	case models.QualitySize:
		return ffmpegx.EncodeParams{FPS: 4, CRF: 28, Preset: "medium", Tune: "psnr"}
	case models.QualitySmallest:
		return ffmpegx.EncodeParams{FPS: 8, CRF: 33, Preset: "fast", Tune: "psnr"}
	}
	return ffmpegx.EncodeParams{FPS: 1, CRF: 17, Preset: "slow", Tune: "psnr"}
}

func (s *DeepC) SaveChapter(ctx context.Context, req SaveRequest, progress ProgressFn) error {
	if !ffmpegx.Available() {
		return errs.New(errs.KindDriverMissing, "the DeepC format needs ffmpeg, which is not installed; "+
			"Linux: 'apt install ffmpeg' (or your package manager), macOS: 'brew install ffmpeg', "+
			"Windows: download from https://ffmpeg.org/download.html and add it to PATH")
	}

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
		progress.Report((i+1)*40/len(w.pages), fmt.Sprintf("decoding pages (%d/%d)", i+1, len(w.pages)))
	}

	frames := pages
	if !imaging.UniformSize(pages) {
		strip := imaging.StackVertical(pages)
		frames = imaging.SliceChunks(strip, len(pages))
		progress.Report(50, "pages re-sliced to a common frame size")
	}

	staging, err := os.MkdirTemp("", "comicden-deepc-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	for i, img := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := util.PageFilename(i+1, ".png")
		if err := imaging.EncodeTo(filepath.Join(staging, name), img); err != nil {
			return err
		}
		progress.Report(50+(i+1)*40/len(frames), fmt.Sprintf("writing frames (%d/%d)", i+1, len(frames)))
	}

	chaptersDir, err := w.chaptersDir()
	if err != nil {
		return err
	}
	slug := req.Chapter.LibrarySlug()
	final := filepath.Join(chaptersDir, slug+".mkv")

	tmp := filepath.Join(staging, "out.mkv")
	if err := ffmpegx.EncodeSlideshow(ctx, filepath.Join(staging, "%03d.png"), tmp, deepcParams(req.Quality)); err != nil {
		return err
	}
	if err := os.RemoveAll(final); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		// Staging may live on another filesystem; fall back to a copy.
		if err := copyBytes(tmp, final); err != nil {
			return err
		}
	}
	progress.Report(99, "video written")

	return w.commit(req, filepath.ToSlash(filepath.Join("chapters", slug+".mkv")), len(frames), progress)
}
