package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(ratioCmd)
}

var ratioCmd = &cobra.Command{
	Use:   "ratio <site>",
	Short: "Prints the ratio of the logged in account.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := env.indexer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ratio, err := idx.Ratio(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(ratio)
		return nil
	},
}
