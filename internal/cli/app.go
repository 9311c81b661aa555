package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okatz/crewfloor/internal/backend"
	"github.com/okatz/crewfloor/internal/config"
	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/handoff"
	"github.com/okatz/crewfloor/internal/history"
	"github.com/okatz/crewfloor/internal/lifecycle"
	"github.com/okatz/crewfloor/internal/mirror"
	"github.com/okatz/crewfloor/internal/tui"
)

// runApp wires the store, backend, controllers and TUI together and
// blocks until the user quits.
func runApp(withMirror bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := floor.NewStore()

	// The backend emits into the bubbletea program; the program does
	// not exist until the model does, so emit through an indirection.
	var program *tea.Program
	emit := func(msg any) {
		if program != nil {
			program.Send(msg)
		}
	}
	be := backend.NewLocal(emit)

	workdir := cfg.ProjectDir
	if workdir == "" {
		workdir, _ = os.Getwd()
	}

	lc := lifecycle.New(store, be, nil)
	lc.Workdir = workdir

	hist, err := history.Open(context.Background(), cfg.HistoryDBPath())
	if err != nil {
		debug.Logf("cli", "history unavailable: %v", err)
		hist = nil
	} else {
		lc.SetRecorder(hist)
		defer hist.Close()
	}

	ho := handoff.New(store, be)
	ho.Workdir = workdir

	if withMirror {
		srv := mirror.New(store, mirror.Options{
			Host: cfg.Mirror.Host,
			Port: cfg.Mirror.Port,
		})
		if err := srv.Start(); err != nil {
			return fmt.Errorf("starting mirror: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		fmt.Fprintf(os.Stderr, "Mirror serving at %s\n", srv.URL())
		if cfg.Mirror.MDNS {
			if mdnsServer, err := mirror.Announce("crewfloor", srv.Port(), srv.URL()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to start mDNS advertisement: %v\n", err)
			} else {
				defer mdnsServer.Shutdown()
			}
		}
		if qr, err := mirror.PairingQR(srv.URL()); err == nil {
			fmt.Fprintln(os.Stderr, qr)
		}
	}

	model := tui.New(store, lc, ho, cfg.StallInterval(), cfg.StallThreshold())
	model.History = hist
	program = tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
