package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okatz/crewfloor/internal/config"
	"github.com/okatz/crewfloor/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		hist, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer hist.Close()

		sessions, err := hist.ListSessions(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No archived sessions yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintf(w, "%sID\tSTATUS\tAGENTS\tTOKENS\tSTARTED\tTASK%s\n", colorBold, colorReset)
		for _, s := range sessions {
			task := s.Task
			if len(task) > 60 {
				task = task[:60] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				s.ID, s.Status, s.AgentCount, s.TokensUsed,
				s.StartedAt.Local().Format("2006-01-02 15:04"), task)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print an archived session's roster and timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer hist.Close()

		sess, agents, evs, err := hist.LoadSession(cmd.Context(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no archived session %q", args[0])
		}
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}

		fmt.Printf("%s%s%s  %s\n", styleBoldWhite, sess.ID, colorReset, sess.Status)
		fmt.Printf("Task:    %s\n", sess.Task)
		fmt.Printf("Runtime: %s\n", sess.Runtime)
		fmt.Printf("Started: %s\n", sess.StartedAt.Local().Format(time.RFC1123))
		if !sess.EndedAt.IsZero() {
			fmt.Printf("Ended:   %s\n", sess.EndedAt.Local().Format(time.RFC1123))
		}
		if sess.TokensUsed > 0 {
			fmt.Printf("Usage:   %d tokens · $%.4f\n", sess.TokensUsed, sess.CostEstimate)
		}
		if sess.Summary != "" {
			fmt.Printf("Summary: %s\n", sess.Summary)
		}

		if len(agents) > 0 {
			fmt.Printf("\n%sAgents%s\n", colorBold, colorReset)
			for _, a := range agents {
				lead := ""
				if a.ParentID == "" && len(agents) > 1 {
					lead = " (lead)"
				}
				fmt.Printf("  %s — %s [%s]%s\n", a.Name, a.Role, a.Status, lead)
			}
		}

		if len(evs) > 0 {
			fmt.Printf("\n%sTimeline%s (%d events)\n", colorBold, colorReset, len(evs))
			for _, ev := range evs {
				who := ev.SubAgentName
				if who == "" {
					who = string(ev.Kind)
				}
				text := compactPayload(string(ev.Payload))
				fmt.Printf("  %s  %-12s %s\n", ev.Timestamp.Local().Format("15:04:05"), who, text)
			}
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Remove an archived session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer hist.Close()

		if err := hist.DeleteSession(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no archived session %q", args[0])
			}
			return err
		}
		fmt.Printf("Deleted session %s.\n", args[0])
		return nil
	},
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	hist, err := history.Open(cmd.Context(), cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	return hist, nil
}

func compactPayload(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}

func init() {
	historyCmd.Flags().Int("limit", 50, "Maximum number of sessions to list")
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
