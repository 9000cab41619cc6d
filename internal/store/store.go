// Package store is the data access layer over the settings database. The
// core only reads a small snapshot of keys; everything else in the database
// belongs to the UI.
package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

// Store provides settings access on top of *sql.DB.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Library is one configured library root.
type Library struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Snapshot is the set of settings keys the core reads.
type Snapshot struct {
	ProviderID        string
	LibraryManagerID  string
	Title             string
	Chapter           util.ChapterNum
	ChapterRate       float64
	Libraries         []Library
	CurrentLibIdx     int
	QualityPreset     models.Quality
	MaxCachedChapters int // -1 means unbounded
}

// CurrentLibraryPath resolves the active library root, or "" when none is
// configured.
func (s *Snapshot) CurrentLibraryPath() string {
	if s.CurrentLibIdx < 0 || s.CurrentLibIdx >= len(s.Libraries) {
		return ""
	}
	return s.Libraries[s.CurrentLibIdx].Path
}

func (s *Store) get(key, fallback string) string {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return fallback
	}
	return value
}

// Set writes a single settings key.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// SetChapter updates the active chapter number.
func (s *Store) SetChapter(n util.ChapterNum) error {
	return s.Set("chapter", n.Canonical())
}

// AddLibrary registers a library root.
func (s *Store) AddLibrary(name, path string) error {
	_, err := s.db.Exec(
		"INSERT INTO libraries (name, path, position) VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM libraries))",
		name, path,
	)
	if err != nil {
		return fmt.Errorf("failed to add library: %w", err)
	}
	return nil
}

// Libraries returns the configured library roots in position order.
func (s *Store) Libraries() ([]Library, error) {
	rows, err := s.db.Query("SELECT name, path FROM libraries ORDER BY position, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libs []Library
	for rows.Next() {
		var l Library
		if err := rows.Scan(&l.Name, &l.Path); err != nil {
			return nil, err
		}
		libs = append(libs, l)
	}
	return libs, rows.Err()
}

// GetSnapshot reads the settings snapshot the core acts on. Missing keys
// fall back to sensible defaults so a fresh database is usable.
func (s *Store) GetSnapshot() (*Snapshot, error) {
	libs, err := s.Libraries()
	if err != nil {
		return nil, fmt.Errorf("failed to load libraries: %w", err)
	}

	chapter, err := util.ParseChapterNum(s.get("chapter", "1"))
	if err != nil {
		chapter = 1
	}
	rate, err := strconv.ParseFloat(s.get("chapter_rate", "1"), 64)
	if err != nil || rate <= 0 {
		rate = 1
	}
	libIdx, _ := strconv.Atoi(s.get("current_lib_idx", "0"))
	maxCached, err := strconv.Atoi(s.get("advanced.misc.max_cached_chapters", "-1"))
	if err != nil {
		maxCached = -1
	}

	return &Snapshot{
		ProviderID:        s.get("provider_id", ""),
		LibraryManagerID:  s.get("library_manager_id", ""),
		Title:             s.get("title", ""),
		Chapter:           chapter,
		ChapterRate:       rate,
		Libraries:         libs,
		CurrentLibIdx:     libIdx,
		QualityPreset:     models.ParseQuality(s.get("advanced.misc.quality_preset", "")),
		MaxCachedChapters: maxCached,
	}, nil
}
