package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Prints the sites with a stored login session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := env.sessions.Sites(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Site"})
		for _, site := range sites {
			t.AppendRow(table.Row{site})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
