package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

// ManhwaLike specializes the online pipeline for the common WordPress manga
// CMS family. Sites in this family share the same search page, the same
// AJAX search endpoint and the same reading-content page markup, so a
// concrete provider is just a Site description.
func ManhwaLike(site Site, deps Deps) *Online {
	return NewOnline(site, Hooks{
		ChapterURL:  manhwaChapterURL,
		FilterPages: manhwaFilterPages,
		Search:      manhwaSearch,
	}, deps)
}

// ajaxSearchResponse is the admin-ajax.php search payload.
type ajaxSearchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Type  string `json:"type"`
	} `json:"data"`
}

type manhwaHit struct {
	Title string
	URL   string
}

// manhwaHits runs the two search strategies: the regular search page is
// preferred; when it yields nothing, the AJAX endpoint is asked.
func manhwaHits(ctx context.Context, o *Online, query string) ([]manhwaHit, error) {
	hits, err := manhwaPageSearch(ctx, o, query)
	if err == nil && len(hits) > 0 {
		return hits, nil
	}
	if err != nil {
		log.Debug().Err(err).Str("provider", o.Site().ID).Msg("search page scrape failed, trying ajax")
	}
	return manhwaAjaxSearch(ctx, o, query)
}

func manhwaPageSearch(ctx context.Context, o *Online, query string) ([]manhwaHit, error) {
	searchURL := fmt.Sprintf("%s/?s=%s&post_type=wp-manga", o.BaseURL(), url.QueryEscape(query))
	doc, err := o.FetchDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var hits []manhwaHit
	doc.Find("div.post-title h3 a, div.post-title h4 a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		hits = append(hits, manhwaHit{
			Title: strings.TrimSpace(s.Text()),
			URL:   href,
		})
	})
	return hits, nil
}

func manhwaAjaxSearch(ctx context.Context, o *Online, query string) ([]manhwaHit, error) {
	body, err := o.deps.Pool.PostForm(ctx, o.BaseURL()+"/wp-admin/admin-ajax.php", url.Values{
		"action": {"wp-manga-search-manga"},
		"title":  {query},
	})
	if err != nil {
		return nil, err
	}

	var resp ajaxSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.Wrap(errs.KindPermanent, err, "malformed search response")
	}
	if !resp.Success {
		return nil, nil
	}
	hits := make([]manhwaHit, 0, len(resp.Data))
	for _, d := range resp.Data {
		hits = append(hits, manhwaHit{Title: d.Title, URL: d.URL})
	}
	return hits, nil
}

func manhwaSearch(ctx context.Context, o *Online, query string) ([]models.SearchResult, error) {
	hits, err := manhwaHits(ctx, o, query)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.SearchResult{Text: h.Title, IconPath: o.LogoPath()})
	}
	return results, nil
}

// manhwaChapterURL derives the chapter page from the first search hit for
// the title; dots in the chapter number become dashes. When search comes
// back empty, the URL is synthesized from the title slug instead.
func manhwaChapterURL(ctx context.Context, o *Online, req ChapterRequest) (string, error) {
	base := fmt.Sprintf("%s/manga/%s/", o.BaseURL(), util.Slugify(req.Title))

	hits, err := manhwaHits(ctx, o, req.Title)
	if err != nil {
		if errs.KindOf(err) == errs.KindDisallowed || errs.KindOf(err) == errs.KindCancelled {
			return "", err
		}
		log.Debug().Err(err).Str("provider", o.Site().ID).Msg("search failed, using slug url")
	}
	if len(hits) > 0 {
		base = strings.TrimRight(hits[0].URL, "/") + "/"
	}
	return fmt.Sprintf("%schapter-%s/", base, req.Chapter.URLFragment()), nil
}

// manhwaFilterPages picks the page images: every img inside the reading
// content, skipping inlined data: URIs (ads, spacers). Lazy-loading themes
// park the real URL in data-src.
func manhwaFilterPages(doc *goquery.Document) []string {
	var srcs []string
	doc.Find("div.reading-content img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		srcs = append(srcs, src)
	})
	return srcs
}
