// Package sites holds the built-in provider registrations. Each site is a
// static description composed with the shared scraper pipeline; plugins add
// further providers at runtime.
package sites

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pkathuria/comicden/internal/provider"
	"github.com/pkathuria/comicden/internal/util"
)

//go:embed logos/manhwaden.png
var manhwadenLogo []byte

//go:embed logos/scrollcomics.png
var scrollcomicsLogo []byte

// RegisterAll installs the built-in providers into the registry. The
// library reader registers first so it always heads the provider list.
func RegisterAll(r *provider.Registry) {
	r.Register(provider.LibraryProviderID, func(deps provider.Deps) provider.Provider {
		return provider.NewLibraryProvider(deps)
	})

	r.Register("manhwaden", func(deps provider.Deps) provider.Provider {
		return provider.ManhwaLike(provider.Site{
			ID:      "manhwaden",
			Name:    "ManhwaDen",
			BaseURL: "https://manhwaden.com",
			Logo:    manhwadenLogo,
		}, deps)
	})

	r.Register("scrollcomics", func(deps provider.Deps) provider.Provider {
		return scrollComics(deps)
	})
}

// scrollComics is a long-strip site that populates image sources from
// JavaScript, so chapters go through the headless renderer.
func scrollComics(deps provider.Deps) provider.Provider {
	return provider.NewOnline(provider.Site{
		ID:        "scrollcomics",
		Name:      "ScrollComics",
		BaseURL:   "https://scrollcomics.net",
		JSEnabled: true,
		Logo:      scrollcomicsLogo,
	}, provider.Hooks{
		ChapterURL: func(_ context.Context, o *provider.Online, req provider.ChapterRequest) (string, error) {
			return fmt.Sprintf("%s/series/%s/chapter-%s/",
				o.BaseURL(), util.Slugify(req.Title), req.Chapter.URLFragment()), nil
		},
		FilterPages: func(doc *goquery.Document) []string {
			var srcs []string
			doc.Find("div#pages img, div.page-container img").Each(func(_ int, s *goquery.Selection) {
				src := strings.TrimSpace(s.AttrOr("src", ""))
				if src == "" || strings.HasPrefix(src, "data:") {
					return
				}
				srcs = append(srcs, src)
			})
			return srcs
		},
	}, deps)
}
