package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkathuria/comicden/internal/config"
	"github.com/pkathuria/comicden/internal/core"
	"github.com/pkathuria/comicden/internal/library"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/saver"
	"github.com/pkathuria/comicden/internal/tasks"
	"github.com/pkathuria/comicden/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *core.App) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(root, "settings.db")
	cfg.Cache.Path = filepath.Join(root, "cache")
	cfg.Logos.Path = filepath.Join(root, "logos")
	cfg.Plugins.Path = filepath.Join(root, "plugins")
	cfg.Fetch.Retries = 1

	app, err := core.NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return NewServer(app, nil), app
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestListProviders(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodGet, "/api/providers", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out []providerView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "library", out[0].ID)
	assert.True(t, out[0].NeedsLibraryPath)
	assert.Equal(t, "manhwaden", out[1].ID)
	assert.Equal(t, "scrollcomics", out[2].ID)
}

func TestListSavers(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodGet, "/api/savers", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out []saverView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 5)
	assert.Equal(t, "std_saver", out[0].ID)
}

func TestSearchRequiresQuery(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodGet, "/api/search?provider=library", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchUnknownProvider(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodGet, "/api/search?provider=nope&q=x", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateAndRenameLibrary(t *testing.T) {
	s, app := newTestServer(t)
	router := s.Router()
	libRoot := t.TempDir()

	rr := doJSON(t, router, http.MethodPost, "/api/libraries",
		libraryRequest{Path: libRoot, Name: "Shelf", SaverID: "std_saver"})
	require.Equal(t, http.StatusCreated, rr.Code)

	_, err := os.Stat(filepath.Join(libRoot, "libmeta.json"))
	assert.NoError(t, err)

	libs, err := app.Store.Libraries()
	require.NoError(t, err)
	require.Len(t, libs, 1)
	assert.Equal(t, "Shelf", libs[0].Name)

	rr = doJSON(t, router, http.MethodPost, "/api/libraries/rename",
		libraryRequest{Path: libRoot, Name: "Bookcase", SaverID: "std_saver"})
	require.Equal(t, http.StatusOK, rr.Code)

	name, err := library.NewCatalog(libRoot).Name()
	require.NoError(t, err)
	assert.Equal(t, "Bookcase", name)
}

func TestCreateLibraryValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/libraries", libraryRequest{Name: "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransferEndToEnd(t *testing.T) {
	s, app := newTestServer(t)
	router := s.Router()

	// Seed a library with one stored chapter, then transfer it back into
	// itself through the library provider.
	libRoot := t.TempDir()
	std := saver.NewStd()
	require.NoError(t, std.CreateLibrary(libRoot, "Shelf"))
	require.NoError(t, std.SaveChapter(context.Background(), saver.SaveRequest{
		LibraryPath: libRoot,
		Title:       "Blame!",
		Chapter:     1,
		PagesDir:    testutil.MakeChapterDir(t, "001.png", "002.png"),
		Quality:     models.QualityBest,
	}, nil))

	require.NoError(t, app.Store.AddLibrary("Shelf", libRoot))
	require.NoError(t, app.Store.Set("title", "Blame!"))
	require.NoError(t, app.Store.Set("provider_id", "library"))
	require.NoError(t, app.Store.Set("library_manager_id", "std_saver"))

	rr := doJSON(t, router, http.MethodPost, "/api/transfer",
		transferRequest{From: 1, To: 1})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var task tasks.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
	require.NotEmpty(t, task.ID)

	outcome, err := app.Runner.Wait(task.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.OutcomeOK, outcome)

	rr = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/tasks/%s", task.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got tasks.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 100, got.Progress)

	// The reading position advanced with the completed chapter.
	snap, err := app.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "1", snap.Chapter.Canonical())
}

func TestTransferUnknownProvider(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/transfer",
		transferRequest{From: 1, To: 2, ProviderID: "nope", SaverID: "std_saver"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelUnknownTask(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodPost, "/api/tasks/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	rr := doJSON(t, router, http.MethodPut, "/api/settings",
		map[string]string{"title": "Berserk", "chapter_rate": "0.5"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "Berserk", out["title"])
	assert.Equal(t, 0.5, out["chapter_rate"])
}

func TestCacheStatus(t *testing.T) {
	s, app := newTestServer(t)
	router := s.Router()

	_, err := app.Cache.Folder(3)
	require.NoError(t, err)
	app.Cache.MarkReady(3)
	app.Cache.SetCurrent(3)

	rr := doJSON(t, router, http.MethodGet, "/api/cache", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "3", out["current"])
	assert.Equal(t, float64(1), out["ready_count"])

	rr = doJSON(t, router, http.MethodPost, "/api/cache/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, app.Cache.ReadyCount())
}

func TestVersionEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rr := doJSON(t, s.Router(), http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "version")
}
