package library

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/pkathuria/comicden/internal/models"
)

// ComicInfo is the ComicRack metadata document embedded in CBZ chapters.
// Only the fields the reader ecosystem actually consumes are carried.
type ComicInfo struct {
	XMLName             xml.Name       `xml:"ComicInfo"`
	Title               string         `xml:"Title,omitempty"`
	Series              string         `xml:"Series,omitempty"`
	Number              string         `xml:"Number,omitempty"`
	Volume              int            `xml:"Volume,omitempty"`
	Summary             string         `xml:"Summary,omitempty"`
	Year                int            `xml:"Year,omitempty"`
	Month               int            `xml:"Month,omitempty"`
	Day                 int            `xml:"Day,omitempty"`
	Publisher           string         `xml:"Publisher,omitempty"`
	Genre               string         `xml:"Genre,omitempty"`
	Tags                string         `xml:"Tags,omitempty"`
	Web                 string         `xml:"Web,omitempty"`
	PageCount           int            `xml:"PageCount,omitempty"`
	LanguageISO         string         `xml:"LanguageISO,omitempty"`
	BlackAndWhite       string         `xml:"BlackAndWhite,omitempty"`
	Manga               string         `xml:"Manga,omitempty"`
	Characters          string         `xml:"Characters,omitempty"`
	Teams               string         `xml:"Teams,omitempty"`
	Locations           string         `xml:"Locations,omitempty"`
	StoryArc            string         `xml:"StoryArc,omitempty"`
	SeriesGroup         string         `xml:"SeriesGroup,omitempty"`
	AgeRating           string         `xml:"AgeRating,omitempty"`
	CommunityRating     float64        `xml:"CommunityRating,omitempty"`
	MainCharacterOrTeam string         `xml:"MainCharacterOrTeam,omitempty"`
	Pages               *ComicInfoPage `xml:"Pages,omitempty"`
}

type ComicInfoPage struct {
	Page []ComicPageEntry `xml:"Page"`
}

type ComicPageEntry struct {
	Image int    `xml:"Image,attr"`
	Type  string `xml:"Type,attr,omitempty"`
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// ComicInfoFromEntry builds the XML document for a stored chapter. The
// Number field uses the library rendering, so whole chapters keep their
// ".0" suffix.
func ComicInfoFromEntry(series string, entry *models.ChapterEntry) *ComicInfo {
	info := &ComicInfo{
		Title:               entry.Title,
		Series:              series,
		Number:              entry.Number().LibrarySlug(),
		Volume:              entry.Volume,
		Summary:             entry.Summary,
		Year:                entry.Date.Year,
		Month:               entry.Date.Month,
		Day:                 entry.Date.Day,
		Publisher:           entry.Publisher,
		Genre:               entry.Genre,
		Tags:                entry.Tags,
		Web:                 entry.Web,
		PageCount:           entry.PageCount,
		LanguageISO:         entry.LanguageISO,
		BlackAndWhite:       yesNo(entry.BlackAndWhite),
		Manga:               yesNo(entry.Manga),
		Characters:          entry.Characters,
		Teams:               entry.Teams,
		Locations:           entry.Locations,
		StoryArc:            entry.StoryArc,
		SeriesGroup:         entry.SeriesGroup,
		AgeRating:           entry.AgeRating,
		CommunityRating:     entry.CommunityRating,
		MainCharacterOrTeam: entry.MainCharacterOrTeam,
	}
	if len(entry.Pages) > 0 {
		pages := &ComicInfoPage{}
		for _, p := range entry.Pages {
			pages.Page = append(pages.Page, ComicPageEntry{Image: p.Image, Type: p.Type})
		}
		info.Pages = pages
	}
	return info
}

// Marshal renders the document with the XML header readers expect.
func (ci *ComicInfo) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(ci, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ComicInfo.xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// WriteComicInfo writes ComicInfo.xml into a chapter staging directory.
func WriteComicInfo(path string, ci *ComicInfo) error {
	data, err := ci.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ParseComicInfo reads a ComicInfo.xml payload.
func ParseComicInfo(data []byte) (*ComicInfo, error) {
	var ci ComicInfo
	if err := xml.Unmarshal(data, &ci); err != nil {
		return nil, fmt.Errorf("failed to parse ComicInfo.xml: %w", err)
	}
	return &ci, nil
}
