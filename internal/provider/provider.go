// Package provider defines the chapter source abstraction and its registry.
// A provider turns (title, chapter) into a cache folder full of ordered page
// images; concrete families are online HTTP scrapers, JS-rendered scrapers
// and readers over an existing library.
package provider

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/fetch"
	"github.com/pkathuria/comicden/internal/jsrender"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

// ProgressFn is the shared progress callback shape.
type ProgressFn = models.ProgressFn

// ChapterRequest carries everything one load needs. Providers hold no
// per-call state between operations; the request is passed explicitly.
type ChapterRequest struct {
	Title   string
	Chapter util.ChapterNum
	// LibraryPath is only set for providers that read a local library.
	LibraryPath string
}

// Provider is the common surface of every chapter source.
type Provider interface {
	Info() models.ProviderInfo

	// LoadChapter fills dest with pages named 001.<ext>, 002.<ext>, ... in
	// reading order.
	LoadChapter(ctx context.Context, req ChapterRequest, dest string, progress ProgressFn) error

	// SupportsSearch reports whether Search is implemented at all.
	SupportsSearch() bool
	Search(ctx context.Context, req ChapterRequest, query string) ([]models.SearchResult, error)

	// IsWorking is a cheap liveness probe bounded to ~200ms. A slow site is
	// still working; an unreachable one is not.
	IsWorking(req ChapterRequest) bool

	// CanWork is the static capability gate, e.g. a JS-render provider
	// without a headless browser on the host cannot work.
	CanWork() bool

	// LogoPath returns the provider logo on disk, materializing the
	// embedded asset on first use. Empty when the provider has none.
	LogoPath() string

	Close() error
}

// Deps are the shared runtime resources handed to provider factories. They
// are owned by the app, never by plugin or site code.
type Deps struct {
	Pool    *fetch.Pool
	Driver  jsrender.Driver
	LogoDir string
}

// Factory constructs a provider instance from the shared resources.
type Factory func(deps Deps) Provider

// Registry is the typed provider registry. Registration happens at startup
// (built-in sites) and at plugin load time.
type Registry struct {
	order     []string
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the provider id. A duplicate id replaces
// the earlier registration with a warning; its original position in the
// enumeration order is kept.
func (r *Registry) Register(id string, f Factory) {
	if _, exists := r.factories[id]; exists {
		log.Warn().Str("provider", id).Msg("provider id registered twice, replacing")
	} else {
		r.order = append(r.order, id)
	}
	r.factories[id] = f
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get instantiates the provider registered under id.
func (r *Registry) Get(id string, deps Deps) (Provider, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, errs.New(errs.KindPermanent, "unknown provider %q", id)
	}
	return f(deps), nil
}

// All instantiates every registered provider in registration order.
func (r *Registry) All(deps Deps) []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.factories[id](deps))
	}
	return out
}
