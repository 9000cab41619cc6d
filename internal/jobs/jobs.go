// Package jobs runs background maintenance on a schedule: a provider
// liveness sweep that keeps a warm "working" set for the search aggregator,
// and periodic enforcement of the chapter cache cap.
package jobs

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/core"
	"github.com/pkathuria/comicden/internal/provider"
)

// cacheSweepInterval is fixed; the cap itself comes from settings.
const cacheSweepInterval = 10 * time.Minute

// Liveness is the warm working-provider set. Providers never swept count as
// working so a fresh start does not hide everything.
type Liveness struct {
	mu      sync.RWMutex
	working map[string]bool
}

func NewLiveness() *Liveness {
	return &Liveness{working: make(map[string]bool)}
}

// Working reports the last sweep's verdict for a provider id.
func (l *Liveness) Working(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ok, seen := l.working[id]
	return !seen || ok
}

// Sweep probes every provider and records the verdicts. Providers that
// cannot work on this host are recorded as not working without a probe.
func (l *Liveness) Sweep(providers []provider.Provider) {
	for _, p := range providers {
		info := p.Info()
		ok := p.CanWork() && p.IsWorking(provider.ChapterRequest{})
		l.mu.Lock()
		l.working[info.ID] = ok
		l.mu.Unlock()
		if !ok {
			log.Debug().Str("provider", info.ID).Msg("provider not working")
		}
	}
}

// Start schedules the background jobs and returns the running scheduler.
// SingletonMode keeps a slow sweep from piling up behind itself.
func Start(app *core.App, liveness *Liveness) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startLivenessSweep(s, app, liveness)
	startCacheSweep(s, app)

	log.Info().Msg("starting background job scheduler")
	s.StartAsync()
	return s
}

func startLivenessSweep(s *gocron.Scheduler, app *core.App, liveness *Liveness) {
	interval := app.Config.LivenessInterval
	if interval <= 0 {
		log.Info().Msg("liveness interval is 0, provider sweep disabled")
		return
	}
	_, err := s.Every(interval).Minutes().Do(func() {
		liveness.Sweep(app.Providers.All(app.ProviderDeps()))
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not schedule liveness sweep")
	}
}

func startCacheSweep(s *gocron.Scheduler, app *core.App) {
	_, err := s.Every(cacheSweepInterval).Do(func() {
		snap, err := app.Snapshot()
		if err != nil {
			log.Warn().Err(err).Msg("cache sweep could not read settings")
			return
		}
		app.Cache.EnforceCap(snap.MaxCachedChapters)
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not schedule cache sweep")
	}
}
