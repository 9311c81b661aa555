package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Run the TUI with the read-only web mirror enabled",
	Long: `Starts the normal TUI plus an HTTP server exposing live floor
state as JSON and over WebSocket, for viewing from another device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			return fmt.Errorf("the mirror runs alongside the TUI and needs a terminal")
		}
		return runApp(true)
	},
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}
