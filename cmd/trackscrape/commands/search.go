package commands

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"trackscrape/internal/indexer"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var searchFlags struct {
	mode       string
	categories []int
	season     int
	episode    string
	imdb       string
	limit      int
	offset     int
}

func init() {
	flags := searchCmd.Flags()
	flags.StringVar(&searchFlags.mode, "mode", "search", "The search mode, ex. tv-search or movie-search.")
	flags.IntSliceVar(&searchFlags.categories, "cat", nil, "Newznab category codes to search in.")
	flags.IntVar(&searchFlags.season, "season", 0, "The season to search for.")
	flags.StringVar(&searchFlags.episode, "ep", "", "The episode to search for.")
	flags.StringVar(&searchFlags.imdb, "imdb", "", "The IMDB id to search for.")
	flags.IntVar(&searchFlags.limit, "limit", 0, "The maximum number of results requested from the site.")
	flags.IntVar(&searchFlags.offset, "offset", 0, "The offset of the results requested from the site.")
	rootCmd.AddCommand(searchCmd)
}

func formatCategories(codes []int) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = strconv.Itoa(code)
	}
	return strings.Join(parts, ",")
}

func renderReleases(w io.Writer, releases []indexer.Release) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Title", "Size", "Seeders", "Leechers", "Published", "Categories", "Link"})
	for _, r := range releases {
		published := ""
		if !r.PublishDate.IsZero() {
			published = r.PublishDate.Format(time.DateTime)
		}
		link := r.Link
		if link == "" {
			link = r.MagnetURI
		}
		t.AppendRow(table.Row{
			r.Title,
			humanize.IBytes(r.Size),
			r.Seeders,
			r.Leechers,
			published,
			formatCategories(r.Categories),
			link,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(releases)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var searchCmd = &cobra.Command{
	Use:   "search <site> [query]",
	Short: "Searches a site and prints the releases found.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := env.indexer(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		q := indexer.Query{
			Type:       searchFlags.mode,
			Categories: searchFlags.categories,
			Season:     searchFlags.season,
			Episode:    searchFlags.episode,
			IMDBID:     searchFlags.imdb,
			Limit:      searchFlags.limit,
			Offset:     searchFlags.offset,
		}
		if len(args) == 2 {
			q.Q = args[1]
		}

		releases, err := idx.Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		renderReleases(os.Stdout, releases)
		return nil
	},
}
