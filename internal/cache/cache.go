// Package cache maintains the on-disk chapter cache: one directory per
// chapter under a root folder, named by the canonical decimal chapter
// number. The manager tracks slot states around the current chapter and
// enforces the configured cap by evicting ready slots farthest from it.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/util"
)

// State is the lifecycle of one cache slot.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateFailed
)

type slot struct {
	number util.ChapterNum
	state  State
}

// Manager owns the cache root for one reading session.
type Manager struct {
	root string

	mu      sync.Mutex
	current util.ChapterNum
	slots   map[string]*slot
	gen     int
}

func New(root string) *Manager {
	return &Manager{
		root:  root,
		slots: make(map[string]*slot),
	}
}

func (m *Manager) Root() string { return m.root }

// Folder returns the cache directory for a chapter, creating it and
// registering the slot as loading if it was not ready yet. Integer chapters
// map to folders without a fractional part ("12", not "12.0").
func (m *Manager) Folder(number util.ChapterNum) (string, error) {
	key := number.Canonical()
	path := filepath.Join(m.root, key)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}

	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{number: number}
		m.slots[key] = s
	}
	if s.state != StateReady {
		s.state = StateLoading
	}
	m.mu.Unlock()
	return path, nil
}

// MarkReady flips a slot to ready after a provider filled it.
func (m *Manager) MarkReady(number util.ChapterNum) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := number.Canonical()
	if s, ok := m.slots[key]; ok {
		s.state = StateReady
	} else {
		m.slots[key] = &slot{number: number, state: StateReady}
	}
}

// MarkFailed records a failed fill so the slot is not treated as cached.
func (m *Manager) MarkFailed(number util.ChapterNum) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[number.Canonical()]; ok {
		s.state = StateFailed
	}
}

// State reports the slot state for a chapter.
func (m *Manager) State(number util.ChapterNum) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[number.Canonical()]; ok {
		return s.state
	}
	return StateEmpty
}

// IsReady is a convenience for the common check.
func (m *Manager) IsReady(number util.ChapterNum) bool {
	return m.State(number) == StateReady
}

// SetCurrent repositions the window without stepping.
func (m *Manager) SetCurrent(number util.ChapterNum) {
	m.mu.Lock()
	m.current = number
	m.mu.Unlock()
}

// Current returns the chapter the window is centered on.
func (m *Manager) Current() util.ChapterNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the current chapter forward by step and returns the new
// position.
func (m *Manager) Advance(step util.ChapterNum) util.ChapterNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current += step
	return m.current
}

// Retract moves the current chapter backward by step, stopping at zero.
func (m *Manager) Retract(step util.ChapterNum) util.ChapterNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current -= step
	if m.current < 0 {
		m.current = 0
	}
	return m.current
}

// ResetAll deletes every slot. Called when the provider or title changes,
// since cached folders from another source are meaningless.
func (m *Manager) ResetAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for key := range m.slots {
		if err := os.RemoveAll(filepath.Join(m.root, key)); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.slots, key)
	}
	m.gen++
	return firstErr
}

// EnforceCap evicts ready slots until at most max remain. Eviction order is
// farthest from the current chapter first; the current chapter itself is
// never evicted. max < 0 disables the cap.
func (m *Manager) EnforceCap(max int) {
	if max < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var ready []*slot
	for _, s := range m.slots {
		if s.state == StateReady {
			ready = append(ready, s)
		}
	}
	if len(ready) <= max {
		return
	}

	dist := func(s *slot) float64 {
		d := float64(s.number - m.current)
		if d < 0 {
			d = -d
		}
		return d
	}
	sort.Slice(ready, func(i, j int) bool { return dist(ready[i]) > dist(ready[j]) })

	remaining := len(ready)
	for _, s := range ready {
		if remaining <= max {
			break
		}
		if s.number.Equal(m.current) {
			continue
		}
		key := s.number.Canonical()
		if err := os.RemoveAll(filepath.Join(m.root, key)); err != nil {
			log.Warn().Err(err).Str("chapter", key).Msg("failed to evict cache slot")
			continue
		}
		delete(m.slots, key)
		remaining--
	}
}

// ReadyCount returns the number of ready slots.
func (m *Manager) ReadyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s.state == StateReady {
			n++
		}
	}
	return n
}
