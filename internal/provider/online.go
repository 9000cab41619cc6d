package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/jsrender"
	"github.com/pkathuria/comicden/internal/models"
)

const livenessTimeout = 200 * time.Millisecond

// Site is the static description of one scraped website.
type Site struct {
	ID      string
	Name    string
	BaseURL string
	// JSEnabled marks sites whose image URLs only exist after JavaScript
	// runs; those render through the headless driver.
	JSEnabled bool
	Logo      []byte
}

// Hooks are the site-specific strategies composed into the shared online
// pipeline: deriving a chapter URL, filtering page images out of the DOM
// and searching the site.
type Hooks struct {
	// ChapterURL resolves the page URL for (title, chapter).
	ChapterURL func(ctx context.Context, o *Online, req ChapterRequest) (string, error)
	// FilterPages selects exactly the page image URLs, in DOM order.
	FilterPages func(doc *goquery.Document) []string
	// Search is nil for sites without a search surface.
	Search func(ctx context.Context, o *Online, query string) ([]models.SearchResult, error)
}

// Online is the shared scraper pipeline. Concrete sites provide a Site and
// Hooks; all state here is per-instance shared resources, never per-call.
type Online struct {
	site  Site
	deps  Deps
	hooks Hooks

	logoOnce sync.Once
	logoPath string
}

func NewOnline(site Site, hooks Hooks, deps Deps) *Online {
	return &Online{site: site, deps: deps, hooks: hooks}
}

func (o *Online) Info() models.ProviderInfo {
	return models.ProviderInfo{
		ID:            o.site.ID,
		Name:          o.site.Name,
		UsesThreading: !o.site.JSEnabled,
	}
}

func (o *Online) Site() Site { return o.site }

// BaseURL returns the site root without a trailing slash.
func (o *Online) BaseURL() string {
	return strings.TrimRight(o.site.BaseURL, "/")
}

func (o *Online) LogoPath() string {
	o.logoOnce.Do(func() {
		o.logoPath = materializeLogo(o.deps.LogoDir, o.site.ID, o.site.Logo)
	})
	return o.logoPath
}

func (o *Online) SupportsSearch() bool { return o.hooks.Search != nil }

func (o *Online) Search(ctx context.Context, _ ChapterRequest, query string) ([]models.SearchResult, error) {
	if o.hooks.Search == nil {
		return nil, errs.New(errs.KindPermanent, "%s does not support search", o.site.Name)
	}
	return o.hooks.Search(ctx, o, query)
}

// IsWorking probes the site root with a hard 200ms budget. A host that
// accepted the connection counts as alive even when slow; one that never
// completed the connect does not.
func (o *Online) IsWorking(ChapterRequest) bool {
	return o.deps.Pool.Probe(o.site.BaseURL, livenessTimeout)
}

func (o *Online) CanWork() bool {
	if o.site.JSEnabled {
		return jsrender.Available()
	}
	return true
}

func (o *Online) Close() error { return nil }

// Fetch is a convenience for hooks that need raw documents.
func (o *Online) Fetch(ctx context.Context, url string) ([]byte, error) {
	return o.deps.Pool.Request(ctx, url)
}

// FetchDocument GETs a URL and parses it.
func (o *Online) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := o.deps.Pool.Request(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindPermanent, err, "malformed page at %s", url)
	}
	return doc, nil
}

// LoadChapter runs the scrape pipeline: resolve the chapter URL, obtain the
// final DOM (rendered or plain), filter the page images and write them to
// dest as zero-padded ordinals in DOM order. Downloading accounts for the
// first half of progress, post-processing and writing for the second.
func (o *Online) LoadChapter(ctx context.Context, req ChapterRequest, dest string, progress ProgressFn) error {
	progress.Report(0, "resolving chapter")
	chapterURL, err := o.hooks.ChapterURL(ctx, o, req)
	if err != nil {
		return err
	}

	var doc *goquery.Document
	var rendered *jsrender.RenderResult

	if o.site.JSEnabled && o.deps.Driver != nil {
		rendered, err = o.deps.Driver.Render(ctx, jsrender.RenderRequest{
			URL:            chapterURL,
			ExpectedImages: o.estimateImages(ctx, chapterURL),
		})
		if err != nil {
			if errs.KindOf(err) == errs.KindCancelled {
				return err
			}
			log.Warn().Err(err).Str("provider", o.site.ID).Msg("JS render failed, falling back to HTTP")
			rendered = nil
		} else {
			doc, err = goquery.NewDocumentFromReader(strings.NewReader(rendered.HTML))
			if err != nil {
				return errs.Wrap(errs.KindPermanent, err, "malformed rendered page")
			}
			progress.Report(10, "page rendered")
		}
	}

	if doc == nil {
		doc, err = o.FetchDocument(ctx, chapterURL)
		if err != nil {
			return err
		}
	}

	srcs := o.hooks.FilterPages(doc)
	if len(srcs) == 0 {
		return errs.New(errs.KindPermanent, "no page images found at %s", chapterURL)
	}

	pages := make([][]byte, len(srcs))
	if rendered != nil {
		// Prefer bytes intercepted during the render; anything the page
		// loaded lazily past the scroll budget is fetched directly.
		var missing []int
		for i, src := range srcs {
			if body, ok := rendered.Images[stripQuery(src)]; ok {
				pages[i] = body
			} else {
				missing = append(missing, i)
			}
		}
		if len(missing) > 0 {
			urls := make([]string, len(missing))
			for j, i := range missing {
				urls[j] = srcs[i]
			}
			results := o.deps.Pool.RequestMany(ctx, urls, func(done, total int) {
				progress.Report(10+done*40/total, fmt.Sprintf("downloading pages (%d/%d)", done, total))
			})
			for j, res := range results {
				if res.Err != nil {
					return res.Err
				}
				pages[missing[j]] = res.Body
			}
		}
		progress.Report(50, "pages downloaded")
	} else {
		results := o.deps.Pool.RequestMany(ctx, srcs, func(done, total int) {
			progress.Report(done*50/total, fmt.Sprintf("downloading pages (%d/%d)", done, total))
		})
		for i, res := range results {
			if res.Err != nil {
				return res.Err
			}
			pages[i] = res.Body
		}
	}

	// Bodies are complete in memory before anything touches the disk, so a
	// cancelled load never leaves a torn page behind.
	for i, body := range pages {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.KindCancelled, err, "chapter load cancelled")
		}
		name := fmt.Sprintf("%03d%s", i+1, extFromURL(srcs[i]))
		if err := os.WriteFile(filepath.Join(dest, name), body, 0644); err != nil {
			return err
		}
		progress.Report(50+(i+1)*50/len(pages), fmt.Sprintf("writing pages (%d/%d)", i+1, len(pages)))
	}

	progress.Report(100, "chapter ready")
	return nil
}

// estimateImages counts page images in the plain-HTTP DOM so the render's
// scroll time scales with chapter length. Sites usually ship the <img>
// skeleton before hydrating the sources, which is enough for a count; when
// the plain fetch fails the renderer falls back to its floor.
func (o *Online) estimateImages(ctx context.Context, chapterURL string) int {
	doc, err := o.FetchDocument(ctx, chapterURL)
	if err != nil {
		return 0
	}
	return len(o.hooks.FilterPages(doc))
}

// extFromURL extracts a usable image extension from a page URL, defaulting
// to .jpg for unrecognized or extension-less paths.
func extFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
