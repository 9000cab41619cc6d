// Package models holds the shared data types: provider and saver identity,
// search results, the on-disk library metadata shapes and progress updates.
package models

import "github.com/pkathuria/comicden/internal/util"

// ProviderInfo contains the static identity of a provider.
type ProviderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// NeedsLibraryPath is set for providers that read a local library
	// instead of a remote site.
	NeedsLibraryPath bool `json:"needs_library_path"`
	// UsesThreading is false for JS-render providers: the headless driver
	// is not re-entrant, so those run on one dedicated worker.
	UsesThreading bool `json:"uses_threading"`
}

// SaverInfo contains the static identity of a library saver.
type SaverInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchResult is a single hit returned by a provider search.
type SearchResult struct {
	Text     string `json:"text"`
	IconPath string `json:"icon_path,omitempty"`
}

// Quality is the user-visible quality preset. Each saver maps it to its own
// parameters (resize factor, codec quality, compression, encoder tuple).
type Quality string

const (
	QualityBest     Quality = "best_quality"
	QualityGood     Quality = "quality"
	QualitySize     Quality = "size"
	QualitySmallest Quality = "smallest_size"
)

// ParseQuality normalizes a settings value, defaulting to best quality.
func ParseQuality(s string) Quality {
	switch Quality(s) {
	case QualityGood, QualitySize, QualitySmallest:
		return Quality(s)
	}
	return QualityBest
}

// ProgressFn receives progress in [0,100] with a short status message.
// Providers, savers and the task runner all report through this shape.
type ProgressFn func(pct int, message string)

// Report is a nil-safe call.
func (f ProgressFn) Report(pct int, message string) {
	if f != nil {
		f(pct, message)
	}
}

// ProgressUpdate is what the task runner pushes to the UI.
type ProgressUpdate struct {
	TaskID   string  `json:"task_id"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Done     bool    `json:"done"`
}

// LibMeta is the root catalog of a library: libmeta.json.
type LibMeta struct {
	Meta struct {
		Name           string `json:"name"`
		LibraryManager string `json:"library_manager"`
	} `json:"meta"`
	// Content maps title uuid -> display title.
	Content map[string]string `json:"content"`
}

// TitleData is a per-title data.json document.
type TitleData struct {
	Title    string         `json:"title"`
	Chapters []ChapterEntry `json:"chapters"`
}

// ChapterDate is the stored publication/save date.
type ChapterDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// PageEntry describes one page inside a chapter entry.
type PageEntry struct {
	Image int    `json:"image"`
	Type  string `json:"type"` // "Story" or "FrontCover"
}

// ChapterEntry is a chapter record inside data.json. Field names are part of
// the on-disk format and must not change.
type ChapterEntry struct {
	ChapterNumber       float64     `json:"chapter_number"`
	Title               string      `json:"title"`
	Location            string      `json:"location"`
	QualityPresent      Quality     `json:"quality_present"`
	Volume              int         `json:"volume"`
	Summary             string      `json:"summary"`
	Date                ChapterDate `json:"date"`
	Publisher           string      `json:"publisher"`
	Genre               string      `json:"genre"`
	Tags                string      `json:"tags"`
	PageCount           int         `json:"pagecount"`
	LanguageISO         string      `json:"languageISO"`
	BlackAndWhite       bool        `json:"blackandwhite"`
	Manga               bool        `json:"manga"`
	Characters          string      `json:"characters"`
	Web                 string      `json:"web"`
	Teams               string      `json:"teams"`
	Locations           string      `json:"locations"`
	StoryArc            string      `json:"storyarc"`
	SeriesGroup         string      `json:"seriesgroup"`
	AgeRating           string      `json:"agerating"`
	CommunityRating     float64     `json:"communityrating"`
	MainCharacterOrTeam string      `json:"maincharacterorteam"`
	Pages               []PageEntry `json:"pages"`
}

// Number returns the chapter number as a canonical decimal.
func (c *ChapterEntry) Number() util.ChapterNum {
	return util.ChapterNum(c.ChapterNumber)
}

// SearchMeta is the persistent query cache: searchmeta.json. Keys are
// lowercased queries, values the matching title uuids. It is non-authoritative
// and may be deleted at any time.
type SearchMeta map[string][]string
