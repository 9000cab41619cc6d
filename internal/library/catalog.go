// Package library manages on-disk comic libraries: the libmeta.json catalog,
// per-title data.json documents, the searchmeta.json query cache and the
// readers that unpack stored chapters back into page folders.
package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/util"
)

const (
	libMetaFile    = "libmeta.json"
	searchMetaFile = "searchmeta.json"
	titleDataFile  = "data.json"
)

// Catalog is the metadata view over one library root. Metadata is re-read
// lazily; the watcher (or any writer) calls Invalidate to drop the cache.
type Catalog struct {
	root string

	mu   sync.Mutex
	meta *models.LibMeta
}

func NewCatalog(root string) *Catalog {
	return &Catalog{root: root}
}

func (c *Catalog) Root() string { return c.root }

// Invalidate drops the cached libmeta so the next read hits the disk.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.meta = nil
	c.mu.Unlock()
}

// writeJSONAtomic writes v to path via a temp file and rename, so readers
// never observe a torn document.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".comicden-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.KindCorrupt, err, "unreadable %s", filepath.Base(path))
	}
	return nil
}

// CreateLibrary initializes a directory as a library managed by managerID,
// writing libmeta.json and an empty searchmeta.json.
func CreateLibrary(root, name, managerID string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}
	meta := &models.LibMeta{Content: map[string]string{}}
	meta.Meta.Name = name
	meta.Meta.LibraryManager = managerID
	if err := writeJSONAtomic(filepath.Join(root, libMetaFile), meta); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(root, searchMetaFile), models.SearchMeta{})
}

// LoadMeta reads libmeta.json, serving the cached copy when present.
func (c *Catalog) LoadMeta() (*models.LibMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meta != nil {
		return c.meta, nil
	}
	var meta models.LibMeta
	if err := readJSON(filepath.Join(c.root, libMetaFile), &meta); err != nil {
		return nil, err
	}
	if meta.Content == nil {
		meta.Content = map[string]string{}
	}
	c.meta = &meta
	return c.meta, nil
}

func (c *Catalog) writeMeta(meta *models.LibMeta) error {
	if err := writeJSONAtomic(filepath.Join(c.root, libMetaFile), meta); err != nil {
		return err
	}
	c.mu.Lock()
	c.meta = meta
	c.mu.Unlock()
	return nil
}

// Name returns the library display name.
func (c *Catalog) Name() (string, error) {
	meta, err := c.LoadMeta()
	if err != nil {
		return "", err
	}
	return meta.Meta.Name, nil
}

// Rename edits libmeta.meta.name in place.
func (c *Catalog) Rename(name string) error {
	meta, err := c.LoadMeta()
	if err != nil {
		return err
	}
	meta.Meta.Name = name
	return c.writeMeta(meta)
}

// IsCompatible reports whether a saver with the given id may write here:
// either the library is managed by that id, or no libmeta.json exists yet
// (an empty directory is compatible with any saver).
func (c *Catalog) IsCompatible(saverID string) bool {
	meta, err := c.LoadMeta()
	if err != nil {
		if os.IsNotExist(err) {
			return true
		}
		return false
	}
	return meta.Meta.LibraryManager == saverID
}

// FindTitle resolves a title to its uuid with an exact case-insensitive
// match. When libmeta's content map is missing or stale, it falls back to
// scanning every data.json.
func (c *Catalog) FindTitle(title string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(title))

	if meta, err := c.LoadMeta(); err == nil {
		for id, t := range meta.Content {
			if strings.ToLower(t) == want {
				return id, true
			}
		}
	}

	// The content map can lag behind the filesystem; trust data.json.
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var data models.TitleData
		if err := readJSON(filepath.Join(c.root, entry.Name(), titleDataFile), &data); err != nil {
			continue
		}
		if strings.ToLower(data.Title) == want {
			return entry.Name(), true
		}
	}
	return "", false
}

// EnsureTitle finds or creates the uuid slot for a title and returns it as
// an explicit context for the chapter write that follows. Creating a title
// resets searchmeta.json, since every cached miss may now be wrong.
func (c *Catalog) EnsureTitle(title string) (string, error) {
	if _, err := os.Stat(c.root); err != nil {
		return "", errs.Wrap(errs.KindPermanent, err, "library path does not exist")
	}

	if id, ok := c.FindTitle(title); ok {
		return id, nil
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Join(c.root, id, "chapters"), 0755); err != nil {
		return "", err
	}
	data := &models.TitleData{Title: title, Chapters: []models.ChapterEntry{}}
	if err := writeJSONAtomic(filepath.Join(c.root, id, titleDataFile), data); err != nil {
		return "", err
	}

	meta, err := c.LoadMeta()
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		meta = &models.LibMeta{Content: map[string]string{}}
	}
	meta.Content[id] = title
	if err := c.writeMeta(meta); err != nil {
		return "", err
	}

	if err := writeJSONAtomic(filepath.Join(c.root, searchMetaFile), models.SearchMeta{}); err != nil {
		log.Warn().Err(err).Msg("failed to reset search cache")
	}
	return id, nil
}

// TitleData reads a title's data.json.
func (c *Catalog) TitleData(id string) (*models.TitleData, error) {
	var data models.TitleData
	if err := readJSON(filepath.Join(c.root, id, titleDataFile), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// TitleDir returns the directory of a title slot.
func (c *Catalog) TitleDir(id string) string {
	return filepath.Join(c.root, id)
}

// RegisterChapter commits a chapter entry into data.json: any previous entry
// with the same canonical chapter number is replaced, and the array is kept
// sorted ascending.
func (c *Catalog) RegisterChapter(id string, entry models.ChapterEntry) error {
	data, err := c.TitleData(id)
	if err != nil {
		return err
	}

	number := entry.Number().Canonical()
	kept := data.Chapters[:0]
	for _, ch := range data.Chapters {
		if ch.Number().Canonical() != number {
			kept = append(kept, ch)
		}
	}
	data.Chapters = append(kept, entry)
	sort.Slice(data.Chapters, func(i, j int) bool {
		return data.Chapters[i].ChapterNumber < data.Chapters[j].ChapterNumber
	})

	return writeJSONAtomic(filepath.Join(c.root, id, titleDataFile), data)
}

// Chapter looks a chapter entry up by number.
func (c *Catalog) Chapter(id string, number util.ChapterNum) (*models.ChapterEntry, error) {
	data, err := c.TitleData(id)
	if err != nil {
		return nil, err
	}
	for i := range data.Chapters {
		if data.Chapters[i].Number().Equal(number) {
			return &data.Chapters[i], nil
		}
	}
	return nil, errs.New(errs.KindPermanent, "chapter %s not stored for this title", number.Canonical())
}

// SearchTitles performs a fuzzy title search backed by searchmeta.json. On
// a cache miss it ranks libmeta content (or data.json titles when libmeta is
// absent) and writes the uuid list back, including empty results.
func (c *Catalog) SearchTitles(query string) ([]string, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	searchPath := filepath.Join(c.root, searchMetaFile)

	cache := models.SearchMeta{}
	if err := readJSON(searchPath, &cache); err == nil {
		if ids, ok := cache[key]; ok {
			return ids, nil
		}
	} else {
		cache = models.SearchMeta{}
	}

	titles := c.allTitles()
	names := make([]string, 0, len(titles))
	uuids := make([]string, 0, len(titles))
	for id, title := range titles {
		names = append(names, title)
		uuids = append(uuids, id)
	}

	ranked := fuzzy.RankFindNormalizedFold(key, names)
	sort.Sort(ranked)
	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		// Two uuids may share a display title; the rank's original index
		// keeps them distinct.
		ids = append(ids, uuids[r.OriginalIndex])
	}

	cache[key] = ids
	if err := writeJSONAtomic(searchPath, cache); err != nil {
		log.Warn().Err(err).Msg("failed to write search cache")
	}
	return ids, nil
}

// allTitles prefers the libmeta content map and falls back to scanning
// data.json documents.
func (c *Catalog) allTitles() map[string]string {
	if meta, err := c.LoadMeta(); err == nil && len(meta.Content) > 0 {
		return meta.Content
	}

	titles := make(map[string]string)
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return titles
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var data models.TitleData
		if err := readJSON(filepath.Join(c.root, entry.Name(), titleDataFile), &data); err != nil {
			continue
		}
		titles[entry.Name()] = data.Title
	}
	return titles
}
