package commands

import (
	"io"
	"os"
	"sort"
	"strings"

	"trackscrape/internal/indexer"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(capsCmd)
}

func renderCapabilities(w io.Writer, caps indexer.Capabilities) {
	settings := table.NewWriter()
	settings.SetOutputMirror(w)
	settings.SetTitle("Settings")
	settings.AppendHeader(table.Row{"Name", "Type", "Label", "Default"})
	for _, s := range caps.Settings {
		settings.AppendRow(table.Row{s.Name, s.Type, s.Label, s.Default})
	}
	settings.SetStyle(table.StyleRounded)
	settings.Render()

	modes := table.NewWriter()
	modes.SetOutputMirror(w)
	modes.SetTitle("Modes")
	modes.AppendHeader(table.Row{"Mode", "Parameters"})
	names := make([]string, 0, len(caps.Modes))
	for mode := range caps.Modes {
		names = append(names, mode)
	}
	sort.Strings(names)
	for _, mode := range names {
		modes.AppendRow(table.Row{mode, strings.Join(caps.Modes[mode], ", ")})
	}
	modes.SetStyle(table.StyleRounded)
	modes.Render()

	categories := table.NewWriter()
	categories.SetOutputMirror(w)
	categories.SetTitle("Categories")
	categories.AppendHeader(table.Row{"Tracker ID", "Code", "Category", "Description", "Default"})
	for _, m := range caps.Categories {
		categories.AppendRow(table.Row{m.TrackerID, m.Category.ID, m.Category.Name, m.Desc, m.Default})
	}
	categories.SetStyle(table.StyleRounded)
	categories.Render()
}

var capsCmd = &cobra.Command{
	Use:   "caps <site>",
	Short: "Prints the settings, search modes and categories of a site.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := env.indexer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderCapabilities(os.Stdout, idx.Capabilities())
		return nil
	},
}
