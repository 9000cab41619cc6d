// Package search implements the fan-out search over every usable provider.
package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/provider"
)

// perProviderCap limits how many hits each provider contributes to the
// aggregate, keeping the combined list scannable.
const perProviderCap = 2

// All fans query out to every provider that can work, is currently alive
// and supports search. Each provider contributes at most two hits, prefixed
// with its display name, concatenated in registration order. The aggregate
// is single-shot; nothing is cached.
func All(ctx context.Context, providers []provider.Provider, req provider.ChapterRequest, query string) []models.SearchResult {
	type slot struct {
		results []models.SearchResult
	}
	slots := make([]slot, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		if !p.CanWork() || !p.SupportsSearch() || !p.IsWorking(req) {
			continue
		}
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			info := p.Info()
			hits, err := p.Search(ctx, req, query)
			if err != nil {
				log.Warn().Err(err).Str("provider", info.ID).Msg("provider search failed")
				return
			}
			if len(hits) > perProviderCap {
				hits = hits[:perProviderCap]
			}
			for _, h := range hits {
				slots[i].results = append(slots[i].results, models.SearchResult{
					Text:     fmt.Sprintf("%s: %s, Ch 1", info.Name, h.Text),
					IconPath: h.IconPath,
				})
			}
		}(i, p)
	}
	wg.Wait()

	var out []models.SearchResult
	for _, s := range slots {
		out = append(out, s.results...)
	}
	return out
}
