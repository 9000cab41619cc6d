package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/provider"
	"github.com/pkathuria/comicden/internal/saver"
	"github.com/pkathuria/comicden/internal/search"
	"github.com/pkathuria/comicden/internal/transfer"
	"github.com/pkathuria/comicden/internal/util"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"version": Version})
}

type providerView struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	NeedsLibraryPath bool   `json:"needs_library_path"`
	UsesThreading    bool   `json:"uses_threading"`
	SupportsSearch   bool   `json:"supports_search"`
	CanWork          bool   `json:"can_work"`
	Working          bool   `json:"working"`
	LogoPath         string `json:"logo_path,omitempty"`
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	deps := s.app.ProviderDeps()
	var out []providerView
	for _, p := range s.app.Providers.All(deps) {
		info := p.Info()
		out = append(out, providerView{
			ID:               info.ID,
			Name:             info.Name,
			NeedsLibraryPath: info.NeedsLibraryPath,
			UsesThreading:    info.UsesThreading,
			SupportsSearch:   p.SupportsSearch(),
			CanWork:          p.CanWork(),
			Working:          s.liveness.Working(info.ID),
			LogoPath:         p.LogoPath(),
		})
	}
	respondWithJSON(w, http.StatusOK, out)
}

type saverView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CanWork bool   `json:"can_work"`
}

func (s *Server) handleListSavers(w http.ResponseWriter, r *http.Request) {
	var out []saverView
	for _, sv := range s.app.Savers.All() {
		info := sv.Info()
		out = append(out, saverView{ID: info.ID, Name: info.Name, CanWork: sv.CanWork()})
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.app.Plugins.Plugins())
}

// chapterRequest builds the provider request from current settings; the
// library provider needs the active library path.
func (s *Server) chapterRequest() (provider.ChapterRequest, error) {
	snap, err := s.app.Snapshot()
	if err != nil {
		return provider.ChapterRequest{}, err
	}
	return provider.ChapterRequest{
		Title:       snap.Title,
		Chapter:     snap.Chapter,
		LibraryPath: snap.CurrentLibraryPath(),
	}, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	id := r.URL.Query().Get("provider")
	p, err := s.app.Providers.Get(id, s.app.ProviderDeps())
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if !p.SupportsSearch() {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("provider %s does not support search", id))
		return
	}
	req, err := s.chapterRequest()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hits, err := p.Search(r.Context(), req, query)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, hits)
}

func (s *Server) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	req, err := s.chapterRequest()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results := search.All(r.Context(), s.app.Providers.All(s.app.ProviderDeps()), req, query)
	respondWithJSON(w, http.StatusOK, results)
}

type transferRequest struct {
	From           float64 `json:"from"`
	To             float64 `json:"to"`
	ProviderID     string  `json:"provider_id,omitempty"`
	SaverID        string  `json:"saver_id,omitempty"`
	RestoreChapter bool    `json:"restore_chapter,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snap, err := s.app.Snapshot()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	providerID := req.ProviderID
	if providerID == "" {
		providerID = snap.ProviderID
	}
	saverID := req.SaverID
	if saverID == "" {
		saverID = snap.LibraryManagerID
	}

	prov, err := s.app.Providers.Get(providerID, s.app.ProviderDeps())
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	sv, err := s.app.Savers.Get(saverID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	opts := transfer.Options{
		Provider:       prov,
		Saver:          sv,
		Cache:          s.app.Cache,
		Snapshot:       snap,
		From:           util.ChapterNum(req.From),
		To:             util.ChapterNum(req.To),
		Quality:        snap.QualityPreset,
		RestoreChapter: req.RestoreChapter,
	}
	if !req.RestoreChapter {
		opts.OnChapterDone = func(n util.ChapterNum) {
			s.app.Store.SetChapter(n)
		}
	}

	name := fmt.Sprintf("transfer %s ch %s-%s", snap.Title,
		opts.From.Canonical(), opts.To.Canonical())
	task, err := s.app.Runner.Submit(name, !prov.Info().UsesThreading,
		func(ctx context.Context, progress models.ProgressFn) error {
			return transfer.Run(ctx, opts, progress)
		})
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.app.Runner.List())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.app.Runner.Get(chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "unknown task")
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Runner.Cancel(chi.URLParam(r, "id")); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

type libraryRequest struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	SaverID string `json:"saver_id"`
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req libraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "path and name are required")
		return
	}
	sv, err := s.resolveSaver(req.SaverID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := sv.CreateLibrary(req.Path, req.Name); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	if err := s.app.Store.AddLibrary(req.Name, req.Path); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"path": req.Path, "name": req.Name})
}

func (s *Server) handleRenameLibrary(w http.ResponseWriter, r *http.Request) {
	var req libraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "path and name are required")
		return
	}
	sv, err := s.resolveSaver(req.SaverID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := sv.RenameLibrary(req.Path, req.Name); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"path": req.Path, "name": req.Name})
}

func (s *Server) resolveSaver(id string) (saver.Saver, error) {
	if id == "" {
		snap, err := s.app.Snapshot()
		if err != nil {
			return nil, err
		}
		id = snap.LibraryManagerID
	}
	return s.app.Savers.Get(id)
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"current":     s.app.Cache.Current().Canonical(),
		"ready_count": s.app.Cache.ReadyCount(),
	})
}

func (s *Server) handleCacheReset(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Cache.ResetAll(); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Snapshot()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"provider_id":         snap.ProviderID,
		"library_manager_id":  snap.LibraryManagerID,
		"title":               snap.Title,
		"chapter":             snap.Chapter.Canonical(),
		"chapter_rate":        snap.ChapterRate,
		"libraries":           snap.Libraries,
		"current_lib_idx":     snap.CurrentLibIdx,
		"quality_preset":      snap.QualityPreset,
		"max_cached_chapters": snap.MaxCachedChapters,
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req) == 0 {
		respondWithError(w, http.StatusBadRequest, "expected a key/value object")
		return
	}
	for key, value := range req {
		if err := s.app.Store.Set(key, value); err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
