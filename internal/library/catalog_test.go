package library

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkathuria/comicden/internal/models"
)

func newTestLibrary(t *testing.T) *Catalog {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, CreateLibrary(root, "Test Library", "cbz_saver"))
	return NewCatalog(root)
}

func TestCreateLibraryWritesMetadata(t *testing.T) {
	c := newTestLibrary(t)

	name, err := c.Name()
	require.NoError(t, err)
	assert.Equal(t, "Test Library", name)

	meta, err := c.LoadMeta()
	require.NoError(t, err)
	assert.Equal(t, "cbz_saver", meta.Meta.LibraryManager)
	assert.Empty(t, meta.Content)

	// The search cache starts out as an empty object.
	data, err := os.ReadFile(filepath.Join(c.Root(), searchMetaFile))
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(data))
}

func TestIsCompatible(t *testing.T) {
	c := newTestLibrary(t)
	assert.True(t, c.IsCompatible("cbz_saver"))
	assert.False(t, c.IsCompatible("tiff_saver"))

	// An uninitialized directory accepts any saver.
	empty := NewCatalog(t.TempDir())
	assert.True(t, empty.IsCompatible("tiff_saver"))
}

func TestEnsureTitleIsStable(t *testing.T) {
	c := newTestLibrary(t)

	id1, err := c.EnsureTitle("One Piece")
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	// Same title, different case: same slot.
	id2, err := c.EnsureTitle("one piece")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	data, err := c.TitleData(id1)
	require.NoError(t, err)
	assert.Equal(t, "One Piece", data.Title)
	assert.Empty(t, data.Chapters)

	meta, err := c.LoadMeta()
	require.NoError(t, err)
	assert.Equal(t, "One Piece", meta.Content[id1])
}

func TestEnsureTitleMissingLibraryPath(t *testing.T) {
	c := NewCatalog(filepath.Join(t.TempDir(), "nope"))
	_, err := c.EnsureTitle("One Piece")
	assert.Error(t, err)
}

func TestEnsureTitleResetsSearchCache(t *testing.T) {
	c := newTestLibrary(t)

	// Prime the cache with a miss.
	ids, err := c.SearchTitles("one piece")
	require.NoError(t, err)
	assert.Empty(t, ids)

	id, err := c.EnsureTitle("One Piece")
	require.NoError(t, err)

	// The cached miss must be gone: the same query now finds the title.
	ids, err = c.SearchTitles("one piece")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func entryFor(num float64) models.ChapterEntry {
	return models.ChapterEntry{
		ChapterNumber: num,
		Location:      "chapters/x",
		Pages:         []models.PageEntry{{Image: 0, Type: "FrontCover"}},
	}
}

func TestRegisterChapterDedupesAndSorts(t *testing.T) {
	c := newTestLibrary(t)
	id, err := c.EnsureTitle("Berserk")
	require.NoError(t, err)

	require.NoError(t, c.RegisterChapter(id, entryFor(3)))
	require.NoError(t, c.RegisterChapter(id, entryFor(1)))
	require.NoError(t, c.RegisterChapter(id, entryFor(1.5)))

	// Re-saving chapter 1 replaces the old entry, 1.0 and 1 are the same
	// chapter.
	replaced := entryFor(1.0)
	replaced.Title = "replaced"
	require.NoError(t, c.RegisterChapter(id, replaced))

	data, err := c.TitleData(id)
	require.NoError(t, err)
	require.Len(t, data.Chapters, 3)
	assert.Equal(t, 1.0, data.Chapters[0].ChapterNumber)
	assert.Equal(t, "replaced", data.Chapters[0].Title)
	assert.Equal(t, 1.5, data.Chapters[1].ChapterNumber)
	assert.Equal(t, 3.0, data.Chapters[2].ChapterNumber)
}

func TestChapterLookup(t *testing.T) {
	c := newTestLibrary(t)
	id, err := c.EnsureTitle("Berserk")
	require.NoError(t, err)
	require.NoError(t, c.RegisterChapter(id, entryFor(2)))

	got, err := c.Chapter(id, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.ChapterNumber)

	_, err = c.Chapter(id, 5)
	assert.Error(t, err)
}

func TestSearchTitlesCachesResults(t *testing.T) {
	c := newTestLibrary(t)
	id, err := c.EnsureTitle("Vinland Saga")
	require.NoError(t, err)

	ids, err := c.SearchTitles("vinland")
	require.NoError(t, err)
	require.Equal(t, []string{id}, ids)

	// The ranked list is persisted under the lowercased query.
	raw, err := os.ReadFile(filepath.Join(c.Root(), searchMetaFile))
	require.NoError(t, err)
	var cache models.SearchMeta
	require.NoError(t, json.Unmarshal(raw, &cache))
	assert.Equal(t, []string{id}, cache["vinland"])
}

func TestSearchTitlesKeepsDuplicateNamesApart(t *testing.T) {
	c := newTestLibrary(t)
	meta, err := c.LoadMeta()
	require.NoError(t, err)
	// Two slots can carry the same display title, e.g. after a manual
	// re-import; both must surface as hits.
	meta.Content["uuid-a"] = "Tower of God"
	meta.Content["uuid-b"] = "Tower of God"
	require.NoError(t, c.writeMeta(meta))

	ids, err := c.SearchTitles("tower")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"uuid-a", "uuid-b"}, ids)
}

func TestSearchTitlesCachesEmptyResult(t *testing.T) {
	c := newTestLibrary(t)
	_, err := c.EnsureTitle("Vinland Saga")
	require.NoError(t, err)

	ids, err := c.SearchTitles("zzzzzz")
	require.NoError(t, err)
	assert.Empty(t, ids)

	raw, err := os.ReadFile(filepath.Join(c.Root(), searchMetaFile))
	require.NoError(t, err)
	var cache models.SearchMeta
	require.NoError(t, json.Unmarshal(raw, &cache))
	got, ok := cache["zzzzzz"]
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestFindTitleFallsBackToScan(t *testing.T) {
	c := newTestLibrary(t)
	id, err := c.EnsureTitle("Dorohedoro")
	require.NoError(t, err)

	// Wipe the content map to simulate a stale libmeta.
	meta, err := c.LoadMeta()
	require.NoError(t, err)
	meta.Content = map[string]string{}
	require.NoError(t, c.writeMeta(meta))

	got, ok := c.FindTitle("dorohedoro")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestRename(t *testing.T) {
	c := newTestLibrary(t)
	require.NoError(t, c.Rename("Shelf B"))

	fresh := NewCatalog(c.Root())
	name, err := fresh.Name()
	require.NoError(t, err)
	assert.Equal(t, "Shelf B", name)
}
