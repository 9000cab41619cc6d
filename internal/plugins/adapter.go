package plugins

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/provider"
)

// factory turns a loaded plugin into a provider factory. ManhwaLike plugins
// are driven entirely by the manifest and reuse the built-in template;
// online plugins compose their script exports into the shared pipeline.
func factory(manifest *Manifest, rt *Runtime, dir string) provider.Factory {
	site := provider.Site{
		ID:        manifest.ProviderID,
		Name:      manifest.ProviderName,
		BaseURL:   manifest.BaseURL,
		JSEnabled: manifest.JSEnabled,
		Logo:      manifest.Logo(dir),
	}

	if manifest.Baseclass == BaseManhwaLike {
		return func(deps provider.Deps) provider.Provider {
			if rt != nil {
				rt.Bind(deps)
			}
			return provider.ManhwaLike(site, deps)
		}
	}
	return func(deps provider.Deps) provider.Provider {
		rt.Bind(deps)
		return provider.NewOnline(site, scriptHooks(rt), deps)
	}
}

// scriptHooks maps the online pipeline's strategy points onto the plugin's
// exports. chapterUrl receives the title and the hyphenated chapter
// fragment; filterPages receives the final DOM as HTML and returns image
// URLs in reading order.
func scriptHooks(rt *Runtime) provider.Hooks {
	hooks := provider.Hooks{
		ChapterURL: func(ctx context.Context, o *provider.Online, req provider.ChapterRequest) (string, error) {
			val, err := rt.Call(ctx, "chapterUrl", req.Title, req.Chapter.URLFragment())
			if err != nil {
				return "", err
			}
			return absoluteURL(o, val.String()), nil
		},
		FilterPages: func(doc *goquery.Document) []string {
			raw, err := doc.Html()
			if err != nil {
				return nil
			}
			val, err := rt.Call(context.Background(), "filterPages", raw)
			if err != nil {
				log.Warn().Err(err).
					Str("plugin", rt.Manifest().ProviderID).
					Msg("filterPages failed")
				return nil
			}
			return StringSlice(val)
		},
	}

	if rt.Has("search") {
		hooks.Search = func(ctx context.Context, o *provider.Online, query string) ([]models.SearchResult, error) {
			val, err := rt.Call(ctx, "search", query)
			if err != nil {
				return nil, err
			}
			return searchResults(val), nil
		}
	}
	return hooks
}

// searchResults accepts either plain strings or {text, icon_path} objects.
func searchResults(val goja.Value) []models.SearchResult {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	arr, ok := val.Export().([]interface{})
	if !ok {
		return nil
	}
	out := make([]models.SearchResult, 0, len(arr))
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			out = append(out, models.SearchResult{Text: v})
		case map[string]interface{}:
			text, _ := v["text"].(string)
			if text == "" {
				continue
			}
			icon, _ := v["icon_path"].(string)
			out = append(out, models.SearchResult{Text: text, IconPath: icon})
		}
	}
	return out
}

// absoluteURL resolves script-returned URLs against the site root.
func absoluteURL(o *provider.Online, raw string) string {
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return o.BaseURL() + "/" + strings.TrimLeft(raw, "/")
}
