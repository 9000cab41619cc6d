package provider

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/library"
	"github.com/pkathuria/comicden/internal/models"
)

const LibraryProviderID = "library"

// LibraryProvider reads chapters back out of an on-disk library written by
// a compatible saver. It needs a library path on every request instead of a
// website.
type LibraryProvider struct {
	deps Deps

	logoOnce sync.Once
	logoPath string
}

func NewLibraryProvider(deps Deps) *LibraryProvider {
	return &LibraryProvider{deps: deps}
}

func (p *LibraryProvider) Info() models.ProviderInfo {
	return models.ProviderInfo{
		ID:               LibraryProviderID,
		Name:             "Library",
		NeedsLibraryPath: true,
		UsesThreading:    true,
	}
}

func (p *LibraryProvider) LogoPath() string {
	p.logoOnce.Do(func() {
		p.logoPath = materializeLogo(p.deps.LogoDir, LibraryProviderID, libraryLogo)
	})
	return p.logoPath
}

func (p *LibraryProvider) SupportsSearch() bool { return true }

// Search runs the cached fuzzy title search of the library itself.
func (p *LibraryProvider) Search(_ context.Context, req ChapterRequest, query string) ([]models.SearchResult, error) {
	if req.LibraryPath == "" {
		return nil, errs.New(errs.KindPermanent, "no library selected")
	}
	catalog := library.NewCatalog(req.LibraryPath)
	ids, err := catalog.SearchTitles(query)
	if err != nil {
		return nil, err
	}

	meta, err := catalog.LoadMeta()
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(ids))
	for _, id := range ids {
		if title, ok := meta.Content[id]; ok {
			results = append(results, models.SearchResult{Text: title, IconPath: p.LogoPath()})
		}
	}
	return results, nil
}

// IsWorking only requires the library directory to exist.
func (p *LibraryProvider) IsWorking(req ChapterRequest) bool {
	if req.LibraryPath == "" {
		return false
	}
	info, err := os.Stat(req.LibraryPath)
	return err == nil && info.IsDir()
}

func (p *LibraryProvider) CanWork() bool { return true }

func (p *LibraryProvider) Close() error { return nil }

// LoadChapter locates the stored chapter and unpacks it into dest.
func (p *LibraryProvider) LoadChapter(ctx context.Context, req ChapterRequest, dest string, progress ProgressFn) error {
	if req.LibraryPath == "" {
		return errs.New(errs.KindPermanent, "no library selected")
	}
	catalog := library.NewCatalog(req.LibraryPath)

	progress.Report(0, "locating title")
	id, ok := catalog.FindTitle(req.Title)
	if !ok {
		return errs.New(errs.KindPermanent, "title %q is not in this library", req.Title)
	}

	entry, err := catalog.Chapter(id, req.Chapter)
	if err != nil {
		return err
	}
	progress.Report(10, "unpacking chapter")

	location := filepath.Join(catalog.TitleDir(id), filepath.FromSlash(entry.Location))
	n, err := library.ExtractChapter(ctx, location, dest)
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.KindCorrupt, "stored chapter contains no pages")
	}

	progress.Report(100, "chapter ready")
	return nil
}
