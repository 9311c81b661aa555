package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okatz/crewfloor/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crewfloor version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crewfloor %s\n", buildinfo.Current())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
