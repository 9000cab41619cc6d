// Package saver writes fetched chapters into a library in a concrete
// archival format. Every saver shares the same flow: ensure the title slot,
// write the payload into chapters/, then commit the chapter entry into
// data.json. Image work accounts for progress 0-90, the container write for
// 90-99 and the metadata commit for 100.
package saver

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/library"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

// ProgressFn is the shared progress callback shape.
type ProgressFn = models.ProgressFn

// SaveRequest carries everything one save needs; savers keep no per-call
// state between the ensure step and the write.
type SaveRequest struct {
	LibraryPath  string
	Title        string
	Chapter      util.ChapterNum
	ChapterTitle string
	// PagesDir is the cache folder the provider filled.
	PagesDir string
	Quality  models.Quality
}

// Saver is one chapter archival format.
type Saver interface {
	Info() models.SaverInfo
	SaveChapter(ctx context.Context, req SaveRequest, progress ProgressFn) error
	CreateLibrary(path, name string) error
	RenameLibrary(path, name string) error
	IsCompatible(path string) bool
	// CanWork gates savers with external tool requirements.
	CanWork() bool
}

// base supplies the library-level operations every saver shares.
type base struct {
	info models.SaverInfo
}

func (b base) Info() models.SaverInfo { return b.info }

func (b base) CreateLibrary(path, name string) error {
	return library.CreateLibrary(path, name, b.info.ID)
}

func (b base) RenameLibrary(path, name string) error {
	return library.NewCatalog(path).Rename(name)
}

// IsCompatible allows writing when the library is managed by this saver or
// is not initialized yet.
func (b base) IsCompatible(path string) bool {
	return library.NewCatalog(path).IsCompatible(b.info.ID)
}

func (b base) CanWork() bool { return true }

// writeContext is the explicit state passed from the ensure step to the
// payload writer and the metadata commit.
type writeContext struct {
	catalog *library.Catalog
	titleID string
	// pages are absolute source paths in natural reading order.
	pages []string
}

// beginWrite validates the library, ensures the title slot and enumerates
// the source pages.
func beginWrite(saverID string, req SaveRequest) (*writeContext, error) {
	catalog := library.NewCatalog(req.LibraryPath)
	if !catalog.IsCompatible(saverID) {
		return nil, errs.New(errs.KindConflict, "library at %s is managed by a different saver", req.LibraryPath)
	}

	titleID, err := catalog.EnsureTitle(req.Title)
	if err != nil {
		return nil, err
	}

	pages, err := listPages(req.PagesDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errs.New(errs.KindPermanent, "no pages in %s", req.PagesDir)
	}

	return &writeContext{catalog: catalog, titleID: titleID, pages: pages}, nil
}

// chaptersDir returns the title's chapters directory, creating it.
func (w *writeContext) chaptersDir() (string, error) {
	dir := filepath.Join(w.catalog.TitleDir(w.titleID), "chapters")
	return dir, os.MkdirAll(dir, 0755)
}

// commit rewrites data.json with the finished chapter entry and reports the
// final progress tick.
func (w *writeContext) commit(req SaveRequest, location string, pageCount int, progress ProgressFn) error {
	now := time.Now()
	entry := models.ChapterEntry{
		ChapterNumber:  float64(req.Chapter),
		Title:          req.ChapterTitle,
		Location:       location,
		QualityPresent: req.Quality,
		Date:           models.ChapterDate{Year: now.Year(), Month: int(now.Month()), Day: now.Day()},
		PageCount:      pageCount,
	}
	for i := 0; i < pageCount; i++ {
		entry.Pages = append(entry.Pages, models.PageEntry{Image: i, Type: "Story"})
	}

	if err := w.catalog.RegisterChapter(w.titleID, entry); err != nil {
		return err
	}
	log.Info().Str("title", req.Title).Str("chapter", req.Chapter.Canonical()).
		Str("location", location).Msg("chapter saved")
	progress.Report(100, "chapter saved")
	return nil
}

// comicInfo builds the embedded metadata document for archive savers.
func (w *writeContext) comicInfo(req SaveRequest, pageCount int) *library.ComicInfo {
	entry := models.ChapterEntry{
		ChapterNumber: float64(req.Chapter),
		Title:         req.ChapterTitle,
		PageCount:     pageCount,
	}
	for i := 0; i < pageCount; i++ {
		entry.Pages = append(entry.Pages, models.PageEntry{Image: i, Type: "Story"})
	}
	return library.ComicInfoFromEntry(req.Title, &entry)
}

// listPages enumerates the image files of a cache folder in natural order.
func listPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindPermanent, err, "cache folder unreadable")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool { return util.NaturalLess(names[i], names[j]) })

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// Registry is the typed saver registry, mirroring the provider registry.
type Registry struct {
	order  []string
	savers map[string]Saver
}

func NewRegistry() *Registry {
	return &Registry{savers: make(map[string]Saver)}
}

func (r *Registry) Register(s Saver) {
	id := s.Info().ID
	if _, exists := r.savers[id]; exists {
		log.Warn().Str("saver", id).Msg("saver id registered twice, replacing")
	} else {
		r.order = append(r.order, id)
	}
	r.savers[id] = s
}

func (r *Registry) Get(id string) (Saver, error) {
	s, ok := r.savers[id]
	if !ok {
		return nil, errs.New(errs.KindPermanent, "unknown saver %q", id)
	}
	return s, nil
}

func (r *Registry) All() []Saver {
	out := make([]Saver, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.savers[id])
	}
	return out
}

// RegisterAll installs the built-in savers.
func RegisterAll(r *Registry) {
	r.Register(NewStd())
	r.Register(NewCBZ())
	r.Register(NewWebP())
	r.Register(NewTIFF())
	r.Register(NewDeepC())
}
