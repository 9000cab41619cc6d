// Package transfer drives chapter ranges from a provider into a library:
// for every chapter in the range, load it into a cache slot, then hand the
// slot to the active saver. It is the settings-bound glue between the
// fetch side and the archive side.
package transfer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/cache"
	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/provider"
	"github.com/pkathuria/comicden/internal/saver"
	"github.com/pkathuria/comicden/internal/store"
	"github.com/pkathuria/comicden/internal/util"
)

// Options describes one transfer run.
type Options struct {
	Provider provider.Provider
	Saver    saver.Saver
	Cache    *cache.Manager
	Snapshot *store.Snapshot

	From    util.ChapterNum
	To      util.ChapterNum
	Quality models.Quality

	// RestoreChapter puts the reading position back where it was once the
	// transfer ends.
	RestoreChapter bool
	// OnChapterDone is called after each chapter commits; the settings
	// layer uses it to persist the position.
	OnChapterDone func(n util.ChapterNum)
}

// Run transfers every chapter of the range, stepping by the title's chapter
// rate. The first failing chapter aborts the rest of the range.
func Run(ctx context.Context, opts Options, progress models.ProgressFn) error {
	if opts.Provider == nil || opts.Saver == nil {
		return errs.New(errs.KindPermanent, "transfer needs both a provider and a saver")
	}
	seq := util.Sequence(opts.From, opts.To, opts.Snapshot.ChapterRate)
	if len(seq) == 0 {
		return errs.New(errs.KindPermanent, "empty chapter range %s..%s",
			opts.From.Canonical(), opts.To.Canonical())
	}

	original := opts.Cache.Current()
	defer func() {
		if opts.RestoreChapter {
			opts.Cache.SetCurrent(original)
		}
	}()

	libraryPath := opts.Snapshot.CurrentLibraryPath()
	if libraryPath == "" {
		return errs.New(errs.KindPermanent, "no library configured")
	}

	for i, chapter := range seq {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.KindCancelled, err, "transfer cancelled")
		}

		// Each chapter owns an equal share of the total progress; loading
		// and saving split that share evenly.
		base := i * 100 / len(seq)
		share := 100 / len(seq)
		if share == 0 {
			share = 1
		}
		scaled := func(offset, pct int) int {
			v := base + offset + pct*share/200
			if v > 100 {
				v = 100
			}
			return v
		}

		opts.Cache.SetCurrent(chapter)
		folder, err := opts.Cache.Folder(chapter)
		if err != nil {
			return err
		}

		req := provider.ChapterRequest{
			Title:       opts.Snapshot.Title,
			Chapter:     chapter,
			LibraryPath: libraryPath,
		}
		err = opts.Provider.LoadChapter(ctx, req, folder, func(pct int, _ string) {
			progress.Report(scaled(0, pct), fmt.Sprintf("chapter %s: downloading", chapter.Canonical()))
		})
		if err != nil {
			opts.Cache.MarkFailed(chapter)
			return errs.Wrap(errs.KindOf(err), err, "chapter %s failed to load", chapter.Canonical())
		}
		opts.Cache.MarkReady(chapter)

		err = opts.Saver.SaveChapter(ctx, saver.SaveRequest{
			LibraryPath: libraryPath,
			Title:       opts.Snapshot.Title,
			Chapter:     chapter,
			PagesDir:    folder,
			Quality:     opts.Quality,
		}, func(pct int, _ string) {
			progress.Report(scaled(share/2, pct), fmt.Sprintf("chapter %s: saving", chapter.Canonical()))
		})
		if err != nil {
			return errs.Wrap(errs.KindOf(err), err, "chapter %s failed to save", chapter.Canonical())
		}

		opts.Cache.EnforceCap(opts.Snapshot.MaxCachedChapters)
		if opts.OnChapterDone != nil {
			opts.OnChapterDone(chapter)
		}
		log.Info().Str("chapter", chapter.Canonical()).Msg("chapter transferred")
	}

	progress.Report(100, "transfer complete")
	return nil
}
