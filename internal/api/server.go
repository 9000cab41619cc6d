// Package api is the local control surface for the desktop UI: provider and
// saver listings, search, transfer submission, task control and the
// websocket progress stream.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pkathuria/comicden/internal/core"
	"github.com/pkathuria/comicden/internal/jobs"
	"github.com/pkathuria/comicden/internal/websocket"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Server holds the dependencies for the API handlers.
type Server struct {
	app      *core.App
	liveness *jobs.Liveness
}

// NewServer creates a Server over a built App. liveness may be nil; the
// handlers then fall back to direct probes.
func NewServer(app *core.App, liveness *jobs.Liveness) *Server {
	if liveness == nil {
		liveness = jobs.NewLiveness()
	}
	return &Server{app: app, liveness: liveness}
}

// Router sets up and returns the main router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		r.Get("/providers", s.handleListProviders)
		r.Get("/savers", s.handleListSavers)
		r.Get("/plugins", s.handleListPlugins)

		r.Get("/search", s.handleSearch)
		r.Get("/search/all", s.handleSearchAll)

		r.Post("/transfer", s.handleTransfer)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/tasks/{id}/cancel", s.handleCancelTask)

		r.Post("/libraries", s.handleCreateLibrary)
		r.Post("/libraries/rename", s.handleRenameLibrary)

		r.Get("/cache", s.handleCacheStatus)
		r.Post("/cache/reset", s.handleCacheReset)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(s.app.Hub, w, req)
	})

	return r
}
