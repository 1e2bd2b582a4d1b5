package cli

import (
	"fmt"

	"github.com/glimps-re/autovt/pkg/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print autovt version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autovt version: %s\n", config.Version)
	},
}
