package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/api"
	"github.com/pkathuria/comicden/internal/core"
	"github.com/pkathuria/comicden/internal/jobs"
	"github.com/pkathuria/comicden/internal/library"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	app, err := core.New()
	if err != nil {
		log.Fatal().Err(err).Msg("fatal error during application setup")
	}
	defer app.Close()

	// Background maintenance: provider liveness sweep and cache cap.
	liveness := jobs.NewLiveness()
	scheduler := jobs.Start(app, liveness)
	defer scheduler.Stop()

	// Watch the active library so on-disk edits invalidate the catalog and
	// search caches without a restart.
	if snap, err := app.Snapshot(); err == nil && snap.CurrentLibraryPath() != "" {
		watcher := library.NewWatcher(library.NewCatalog(snap.CurrentLibraryPath()), nil)
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("library watcher could not start")
		} else {
			defer watcher.Stop()
		}
	}

	server := api.NewServer(app, liveness)
	addr := fmt.Sprintf("127.0.0.1:%d", app.Config.Port)
	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	go func() {
		log.Info().Str("addr", addr).Msg("starting control server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
}
