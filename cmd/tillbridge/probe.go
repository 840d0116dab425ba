package main

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jetsetgo/till-bridge/internal/tray"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether the tray daemon is reachable",
	RunE:  runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := createLogger()
	defer logger.Sync()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if a.probe.Check(ctx) {
		pterm.Success.Printf("Tray daemon reachable at %s\n", cfg.Tray.URL)
		return nil
	}

	pterm.Warning.Printf("Tray daemon not reachable at %s\n", cfg.Tray.URL)
	if port, err := tray.PortFromURL(cfg.Tray.URL); err == nil {
		l, err := tray.FindListener(ctx, port)
		switch {
		case err != nil:
			pterm.Info.Printf("Could not inspect local ports: %v\n", err)
		case l == nil:
			pterm.Info.Printf("Nothing is listening on port %d - is the tray daemon running?\n", port)
		default:
			pterm.Info.Printf("Port %d is held by %s (pid %d)\n", port, l.Process, l.PID)
		}
	}
	return errUnavailable
}
