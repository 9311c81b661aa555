// Package cli wires the cobra command tree: the TUI entrypoint, runtime
// detection, session history, and the LAN mirror.
package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/okatz/crewfloor/internal/buildinfo"
	"github.com/okatz/crewfloor/internal/debug"
)

const (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"

	styleBoldWhite = "\033[1;37m"
	styleBoldCyan  = "\033[1;36m"
)

var rootCmd = &cobra.Command{
	Use:   "crewfloor",
	Short: "Coordinate AI agent sessions across floors",
	Long: `
  ` + styleBoldCyan + `crewfloor` + colorReset + ` v` + buildinfo.Current().Version + `

  Run AI coding agents in parallel workspaces ("floors"): start a task,
  watch the team work, answer follow-ups, or drop into the agent's
  terminal when it gets stuck.

  Run ` + styleBoldWhite + `crewfloor` + colorReset + ` in a terminal to launch the TUI.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			return cmd.Help()
		}
		withMirror, _ := cmd.Flags().GetBool("mirror")
		return runApp(withMirror)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.Flags().Bool("mirror", false, "Also serve the read-only LAN mirror")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.crewfloor/debug/")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "crewfloor starting",
			"version", bi.Version,
			"commit", bi.Commit,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
