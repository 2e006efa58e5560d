package commands

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"trackscrape/internal/definition"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

// loadErrors flattens the joined error returned by definition.LoadDir.
func loadErrors(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	return joined.Unwrap()
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Loads every definition in the definitions directory and prints the ones that fail.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := definition.LoadDir(env.config.Definitions)
		failures := loadErrors(err)

		sites := make([]string, 0, len(defs))
		for site := range defs {
			sites = append(sites, site)
		}
		sort.Strings(sites)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Site", "Name", "Status"})
		for _, site := range sites {
			t.AppendRow(table.Row{site, defs[site].Name, "ok"})
		}
		for _, failure := range failures {
			site := ""
			var defErr *definition.Error
			if errors.As(failure, &defErr) {
				site = defErr.Site
			}
			t.AppendRow(table.Row{site, "", failure.Error()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		if len(failures) > 0 {
			return fmt.Errorf("%d of %d definitions failed to load", len(failures), len(failures)+len(defs))
		}
		return nil
	},
}
