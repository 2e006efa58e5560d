package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <site>",
	Short: "Logs in to a site and stores the session for later commands.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := env.indexer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		err = idx.Login(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", idx.Key(), idx.State())
		return nil
	},
}
