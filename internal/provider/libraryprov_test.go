package provider

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkathuria/comicden/internal/library"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/testutil"
)

// seedLibrary builds a library with one title and one loose-folder chapter.
func seedLibrary(t *testing.T) (root string) {
	t.Helper()
	root = t.TempDir()
	require.NoError(t, library.CreateLibrary(root, "Shelf", "std_saver"))
	catalog := library.NewCatalog(root)

	id, err := catalog.EnsureTitle("Blame!")
	require.NoError(t, err)

	chapterDir := filepath.Join(catalog.TitleDir(id), "chapters", "1.0")
	require.NoError(t, os.MkdirAll(chapterDir, 0755))
	testutil.WritePageImage(t, chapterDir, "001.png", 20, 30, color.White)
	testutil.WritePageImage(t, chapterDir, "002.png", 20, 30, color.Black)

	require.NoError(t, catalog.RegisterChapter(id, models.ChapterEntry{
		ChapterNumber: 1,
		Location:      "chapters/1.0",
		PageCount:     2,
	}))
	return root
}

func TestLibraryProviderLoadsStoredChapter(t *testing.T) {
	root := seedLibrary(t)
	p := NewLibraryProvider(Deps{LogoDir: t.TempDir()})
	dest := t.TempDir()

	var last int
	err := p.LoadChapter(context.Background(),
		ChapterRequest{Title: "blame!", Chapter: 1, LibraryPath: root},
		dest, func(pct int, _ string) { last = pct })
	require.NoError(t, err)
	assert.Equal(t, 100, last)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLibraryProviderUnknownTitle(t *testing.T) {
	root := seedLibrary(t)
	p := NewLibraryProvider(Deps{})
	err := p.LoadChapter(context.Background(),
		ChapterRequest{Title: "Nausicaa", Chapter: 1, LibraryPath: root}, t.TempDir(), nil)
	assert.Error(t, err)
}

func TestLibraryProviderUnknownChapter(t *testing.T) {
	root := seedLibrary(t)
	p := NewLibraryProvider(Deps{})
	err := p.LoadChapter(context.Background(),
		ChapterRequest{Title: "Blame!", Chapter: 9, LibraryPath: root}, t.TempDir(), nil)
	assert.Error(t, err)
}

func TestLibraryProviderSearch(t *testing.T) {
	root := seedLibrary(t)
	p := NewLibraryProvider(Deps{LogoDir: t.TempDir()})

	results, err := p.Search(context.Background(), ChapterRequest{LibraryPath: root}, "blame")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Blame!", results[0].Text)
}

func TestLibraryProviderIsWorking(t *testing.T) {
	root := seedLibrary(t)
	p := NewLibraryProvider(Deps{})
	assert.True(t, p.IsWorking(ChapterRequest{LibraryPath: root}))
	assert.False(t, p.IsWorking(ChapterRequest{LibraryPath: filepath.Join(root, "missing")}))
	assert.False(t, p.IsWorking(ChapterRequest{}))
}
