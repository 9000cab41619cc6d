package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/provider"
)

type fakeProvider struct {
	id       string
	name     string
	hits     []string
	working  bool
	canWork  bool
	searches bool
}

func (f *fakeProvider) Info() models.ProviderInfo {
	return models.ProviderInfo{ID: f.id, Name: f.name, UsesThreading: true}
}

func (f *fakeProvider) LoadChapter(context.Context, provider.ChapterRequest, string, provider.ProgressFn) error {
	return nil
}

func (f *fakeProvider) SupportsSearch() bool { return f.searches }

func (f *fakeProvider) Search(context.Context, provider.ChapterRequest, string) ([]models.SearchResult, error) {
	out := make([]models.SearchResult, 0, len(f.hits))
	for _, h := range f.hits {
		out = append(out, models.SearchResult{Text: h})
	}
	return out, nil
}

func (f *fakeProvider) IsWorking(provider.ChapterRequest) bool { return f.working }
func (f *fakeProvider) CanWork() bool                          { return f.canWork }
func (f *fakeProvider) LogoPath() string                       { return "" }
func (f *fakeProvider) Close() error                           { return nil }

func TestAllCapsAndPrefixes(t *testing.T) {
	providers := []provider.Provider{
		&fakeProvider{id: "a", name: "SiteA", hits: []string{"One", "Two", "Three"},
			working: true, canWork: true, searches: true},
		&fakeProvider{id: "b", name: "SiteB", hits: []string{"Four", "Five", "Six", "Seven", "Eight"},
			working: true, canWork: true, searches: true},
	}

	results := All(context.Background(), providers, provider.ChapterRequest{}, "query")
	// 3 and 5 hits collapse to 2 + 2, in registration order.
	assert.Equal(t, []models.SearchResult{
		{Text: "SiteA: One, Ch 1"},
		{Text: "SiteA: Two, Ch 1"},
		{Text: "SiteB: Four, Ch 1"},
		{Text: "SiteB: Five, Ch 1"},
	}, results)
}

func TestAllSkipsUnusableProviders(t *testing.T) {
	providers := []provider.Provider{
		&fakeProvider{id: "down", name: "Down", hits: []string{"x"}, working: false, canWork: true, searches: true},
		&fakeProvider{id: "nodrv", name: "NoDriver", hits: []string{"x"}, working: true, canWork: false, searches: true},
		&fakeProvider{id: "nosearch", name: "NoSearch", hits: []string{"x"}, working: true, canWork: true, searches: false},
		&fakeProvider{id: "ok", name: "OK", hits: []string{"Hit"}, working: true, canWork: true, searches: true},
	}

	results := All(context.Background(), providers, provider.ChapterRequest{}, "query")
	assert.Equal(t, []models.SearchResult{{Text: "OK: Hit, Ch 1"}}, results)
}

func TestAllEmpty(t *testing.T) {
	assert.Empty(t, All(context.Background(), nil, provider.ChapterRequest{}, "q"))
}
