package plugins

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/provider"
)

// Info is the loader's record of one discovered plugin, loaded or not.
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	Baseclass  string `json:"baseclass"`
	Path       string `json:"path"`
	Loaded     bool   `json:"loaded"`
	Error      string `json:"error,omitempty"`
}

// Loader discovers plugins under a directory. A malformed plugin is skipped
// with a warning and recorded; discovery itself never fails the startup.
type Loader struct {
	dir string

	mu    sync.Mutex
	infos []Info
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load walks the plugins directory, one subdirectory per plugin, and
// registers every valid plugin into the provider registry. Directory order
// is alphabetical so registration order is stable across runs. A plugin
// reusing a built-in id replaces it, which the registry warns about.
func (l *Loader) Load(reg *provider.Registry) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		log.Warn().Err(err).Str("dir", l.dir).Msg("cannot create plugins directory")
		return
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", l.dir).Msg("cannot read plugins directory")
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.dir, entry.Name())
		l.loadOne(dir, reg)
	}
}

func (l *Loader) loadOne(dir string, reg *provider.Registry) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("skipping malformed plugin")
		l.record(Info{Path: dir, Error: err.Error()})
		return
	}

	info := Info{
		ID:         manifest.ProviderID,
		Name:       manifest.ProviderName,
		Version:    manifest.Version,
		APIVersion: manifest.APIVersion,
		Baseclass:  manifest.Baseclass,
		Path:       dir,
	}

	if !Compatible(manifest.APIVersion) {
		log.Warn().
			Str("plugin", manifest.ProviderID).
			Str("wants", manifest.APIVersion).
			Str("have", APIVersion).
			Msg("skipping plugin with incompatible api_version")
		info.Error = "incompatible api_version " + manifest.APIVersion
		l.record(info)
		return
	}

	var rt *Runtime
	needsScript := manifest.Baseclass != BaseManhwaLike
	if _, err := os.Stat(filepath.Join(dir, manifest.EntryPoint)); err == nil || needsScript {
		rt, err = NewRuntime(manifest, dir)
		if err != nil {
			log.Warn().Err(err).Str("plugin", manifest.ProviderID).Msg("skipping broken plugin")
			info.Error = err.Error()
			l.record(info)
			return
		}
	}

	reg.Register(manifest.ProviderID, factory(manifest, rt, dir))
	info.Loaded = true
	l.record(info)
	log.Info().
		Str("plugin", manifest.ProviderID).
		Str("baseclass", manifest.Baseclass).
		Str("version", manifest.Version).
		Msg("plugin loaded")
}

func (l *Loader) record(info Info) {
	l.mu.Lock()
	l.infos = append(l.infos, info)
	l.mu.Unlock()
}

// Plugins lists every discovered plugin in load order.
func (l *Loader) Plugins() []Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Info, len(l.infos))
	copy(out, l.infos)
	return out
}
