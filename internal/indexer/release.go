package indexer

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Release is one row of a result page.
type Release struct {
	Title       string
	Description string
	// Guid identifies the release: details, else comments, else the download link.
	Guid      string
	Link      string
	MagnetURI string
	InfoHash  string
	Details   string
	Comments  string

	PublishDate time.Time
	Size        uint64
	Seeders     int
	Leechers    int
	Peers       int
	Categories  []int
	Files       int
	Grabs       int

	DownloadVolumeFactor float64
	UploadVolumeFactor   float64
	MinimumRatio         float64
	// MinimumSeedTime is in seconds.
	MinimumSeedTime int64
	IMDBID          string
}

// Query is a search request, every field is optional.
type Query struct {
	// Type is the search mode, ex. `search`, `tv-search`, `movie-search`.
	Type       string
	Q          string
	Season     int
	Episode    string
	Categories []int
	Limit      int
	Offset     int
	IMDBID     string
	TVDBID     int
	TVRageID   int
	TMDBID     int
}

// EpisodeString formats the season/episode part of the keywords, ex. `S02E05`.
func (q Query) EpisodeString() string {
	if q.Season <= 0 {
		return strings.TrimSpace(q.Episode)
	}
	if q.Episode == "" {
		return fmt.Sprintf("S%02d", q.Season)
	}
	ep, err := strconv.Atoi(q.Episode)
	if err != nil {
		return fmt.Sprintf("S%02d %s", q.Season, q.Episode)
	}
	return fmt.Sprintf("S%02dE%02d", q.Season, ep)
}

// Keywords joins the non blank parts of the query text and episode string.
func (q Query) Keywords() string {
	var parts []string
	for _, part := range []string{strings.TrimSpace(q.Q), q.EpisodeString()} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// IMDBIDShort is the IMDB id without the `tt` prefix.
func (q Query) IMDBIDShort() string {
	return strings.TrimPrefix(strings.ToLower(q.IMDBID), "tt")
}

func (q Query) cacheKey() string {
	categories := slices.Clone(q.Categories)
	slices.Sort(categories)
	return fmt.Sprintf(
		"%s|%s|%d|%s|%v|%d|%d|%s|%d|%d|%d",
		strings.ToLower(q.Type),
		strings.ToLower(strings.Join(strings.Fields(q.Q), " ")),
		q.Season,
		strings.ToLower(q.Episode),
		categories,
		q.Limit,
		q.Offset,
		strings.ToLower(q.IMDBID),
		q.TVDBID,
		q.TVRageID,
		q.TMDBID,
	)
}
