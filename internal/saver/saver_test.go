package saver

import (
	"archive/zip"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/ffmpegx"
	"github.com/pkathuria/comicden/internal/imaging"
	"github.com/pkathuria/comicden/internal/library"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/testutil"
	"github.com/pkathuria/comicden/internal/tiffx"
)

func newLibraryFor(t *testing.T, s Saver) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, s.CreateLibrary(root, "Test Shelf"))
	return root
}

func saveRequest(root, pagesDir string, quality models.Quality) SaveRequest {
	return SaveRequest{
		LibraryPath:  root,
		Title:        "One Piece",
		Chapter:      1,
		ChapterTitle: "Romance Dawn",
		PagesDir:     pagesDir,
		Quality:      quality,
	}
}

func titleDataFor(t *testing.T, root, title string) (*library.Catalog, string, *models.TitleData) {
	t.Helper()
	catalog := library.NewCatalog(root)
	id, ok := catalog.FindTitle(title)
	require.True(t, ok, "title not registered")
	data, err := catalog.TitleData(id)
	require.NoError(t, err)
	return catalog, id, data
}

func TestListPagesAcceptsMixedCaseExtensions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"001.Jpg", "002.PNG", "003.webp", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	paths, err := listPages(dir)
	require.NoError(t, err)
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	assert.Equal(t, []string{"001.Jpg", "002.PNG", "003.webp"}, names)
}

func TestStdSaveThenLoadRoundTrip(t *testing.T) {
	pages := t.TempDir()
	testutil.WritePageImage(t, pages, "a.jpg", 100, 150, color.White)
	testutil.WritePageImage(t, pages, "b.jpg", 120, 180, color.Black)

	s := NewStd()
	root := newLibraryFor(t, s)
	require.NoError(t, s.SaveChapter(context.Background(),
		saveRequest(root, pages, models.QualityBest), nil))

	catalog, id, data := titleDataFor(t, root, "One Piece")
	require.Len(t, data.Chapters, 1)
	assert.Equal(t, 2, data.Chapters[0].PageCount)
	assert.Equal(t, "chapters/1.0", data.Chapters[0].Location)

	// Best quality keeps the files byte for byte.
	for _, name := range []string{"a.jpg", "b.jpg"} {
		want, err := os.ReadFile(filepath.Join(pages, name))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(catalog.TitleDir(id), "chapters", "1.0", name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	// Loading the stored chapter into an empty cache reproduces the bytes.
	dest := t.TempDir()
	n, err := library.ExtractChapter(context.Background(),
		filepath.Join(catalog.TitleDir(id), "chapters", "1.0"), dest)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	want, err := os.ReadFile(filepath.Join(pages, "a.jpg"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dest, "001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCBZIdempotency(t *testing.T) {
	pages := testutil.MakeChapterDir(t, "001.jpg", "002.jpg")
	s := NewCBZ()
	root := newLibraryFor(t, s)
	req := saveRequest(root, pages, models.QualityBest)

	require.NoError(t, s.SaveChapter(context.Background(), req, nil))
	require.NoError(t, s.SaveChapter(context.Background(), req, nil))

	catalog, id, data := titleDataFor(t, root, "One Piece")
	require.Len(t, data.Chapters, 1, "saving twice must leave one entry")

	archive := filepath.Join(catalog.TitleDir(id), "chapters", "1.0.cbz")
	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer zr.Close()

	var comicInfo []byte
	pageCount := 0
	for _, f := range zr.File {
		if f.Name == "ComicInfo.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			comicInfo, err = io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
		} else {
			pageCount++
		}
	}
	assert.Equal(t, 2, pageCount)

	require.NotEmpty(t, comicInfo)
	parsed, err := library.ParseComicInfo(comicInfo)
	require.NoError(t, err)
	assert.Equal(t, "1.0", parsed.Number)
	assert.Equal(t, "One Piece", parsed.Series)
}

func TestCBZRoundTripOrder(t *testing.T) {
	pages := testutil.MakeChapterDir(t, "001.jpg", "002.jpg", "003.jpg")
	s := NewCBZ()
	root := newLibraryFor(t, s)
	require.NoError(t, s.SaveChapter(context.Background(),
		saveRequest(root, pages, models.QualityBest), nil))

	catalog, id, _ := titleDataFor(t, root, "One Piece")
	dest := t.TempDir()
	n, err := library.ExtractChapter(context.Background(),
		filepath.Join(catalog.TitleDir(id), "chapters", "1.0.cbz"), dest)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTIFFSmallestUsesJPEG(t *testing.T) {
	pages := testutil.MakeChapterDir(t, "001.png", "002.png")
	s := NewTIFF()
	root := newLibraryFor(t, s)
	require.NoError(t, s.SaveChapter(context.Background(),
		saveRequest(root, pages, models.QualitySmallest), nil))

	catalog, id, data := titleDataFor(t, root, "One Piece")
	assert.Equal(t, "chapters/1.0.tiff", data.Chapters[0].Location)

	raw, err := os.ReadFile(filepath.Join(catalog.TitleDir(id), "chapters", "1.0.tiff"))
	require.NoError(t, err)
	decoded, err := tiffx.Decode(raw)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestTIFFCompressionMapping(t *testing.T) {
	assert.Equal(t, tiffx.CompressionNone, tiffCompression(models.QualityBest))
	assert.Equal(t, tiffx.CompressionLZW, tiffCompression(models.QualityGood))
	assert.Equal(t, tiffx.CompressionDeflate, tiffCompression(models.QualitySize))
	assert.Equal(t, tiffx.CompressionJPEG, tiffCompression(models.QualitySmallest))
}

func TestWebPSaverWritesWebPPages(t *testing.T) {
	pages := testutil.MakeChapterDir(t, "001.jpg", "002.jpg")
	s := NewWebP()
	root := newLibraryFor(t, s)
	require.NoError(t, s.SaveChapter(context.Background(),
		saveRequest(root, pages, models.QualitySize), nil))

	catalog, id, data := titleDataFor(t, root, "One Piece")
	assert.Equal(t, 2, data.Chapters[0].PageCount)

	entries, err := os.ReadDir(filepath.Join(catalog.TitleDir(id), "chapters", "1.0"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, ".webp", filepath.Ext(e.Name()))
	}
}

func TestDeepCMissingFFmpeg(t *testing.T) {
	if ffmpegx.Available() {
		t.Skip("ffmpeg is installed on this host")
	}
	pages := testutil.MakeChapterDir(t, "001.jpg")
	s := NewDeepC()
	root := newLibraryFor(t, s)

	err := s.SaveChapter(context.Background(), saveRequest(root, pages, models.QualityBest), nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindDriverMissing, errs.KindOf(err))
	assert.Contains(t, err.Error(), "ffmpeg")

	// Nothing may be written, not even the title slot.
	_, err = os.Stat(filepath.Join(root, "libmeta.json"))
	assert.NoError(t, err)
	catalog := library.NewCatalog(root)
	_, found := catalog.FindTitle("One Piece")
	assert.False(t, found)
}

func TestConflictingLibraryRefused(t *testing.T) {
	pages := testutil.MakeChapterDir(t, "001.jpg")
	std := NewStd()
	root := newLibraryFor(t, std)

	err := NewCBZ().SaveChapter(context.Background(),
		saveRequest(root, pages, models.QualityBest), nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestSaveEmptyCacheFolderFails(t *testing.T) {
	s := NewStd()
	root := newLibraryFor(t, s)
	err := s.SaveChapter(context.Background(),
		saveRequest(root, t.TempDir(), models.QualityBest), nil)
	assert.Error(t, err)
}

func TestResizeQualityShrinksPages(t *testing.T) {
	pages := t.TempDir()
	testutil.WritePageImage(t, pages, "001.png", 200, 300, color.White)

	s := NewStd()
	root := newLibraryFor(t, s)
	require.NoError(t, s.SaveChapter(context.Background(),
		saveRequest(root, pages, models.QualitySize), nil))

	catalog, id, _ := titleDataFor(t, root, "One Piece")
	img, err := imaging.Decode(filepath.Join(catalog.TitleDir(id), "chapters", "1.0", "001.png"))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())
}

func TestProgressReachesTerminalValue(t *testing.T) {
	pages := testutil.MakeChapterDir(t, "001.jpg", "002.jpg")
	s := NewCBZ()
	root := newLibraryFor(t, s)

	var history []int
	require.NoError(t, s.SaveChapter(context.Background(),
		saveRequest(root, pages, models.QualityBest),
		func(pct int, _ string) { history = append(history, pct) }))

	require.NotEmpty(t, history)
	assert.Equal(t, 100, history[len(history)-1])
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i], history[i-1], "progress must not move backward")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	RegisterAll(r)

	all := r.All()
	require.Len(t, all, 5)
	assert.Equal(t, "std_saver", all[0].Info().ID)

	s, err := r.Get("tiff_saver")
	require.NoError(t, err)
	assert.Equal(t, "TIFF", s.Info().Name)

	_, err = r.Get("nope")
	assert.Error(t, err)
}
