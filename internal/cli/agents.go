package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okatz/crewfloor/internal/runtimescan"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agent CLI runtimes installed on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimes := runtimescan.Scan()
		if len(runtimes) == 0 {
			fmt.Println("No agent runtimes found.")
			fmt.Println("Install claude or codex, or list extras in $CREWFLOOR_EXTRA_AGENT_BINS.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintf(w, "%sNAME\tVERSION\tPATH%s\n", colorBold, colorReset)
		for _, rt := range runtimes {
			fmt.Fprintf(w, "%s\t%s\t%s\n", rt.Name, rt.Version, rt.Path)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
