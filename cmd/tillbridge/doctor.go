package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jetsetgo/till-bridge/internal/config"
	"github.com/jetsetgo/till-bridge/internal/page/cdpdom"
	"github.com/jetsetgo/till-bridge/internal/tray"
)

var errUnavailable = errors.New("tray daemon unavailable")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, tray daemon, backend and browser connectivity",
	RunE:  runDoctor,
}

type check struct {
	name   string
	ok     bool
	detail string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []check

	cfg, err := loadConfig()
	if err != nil {
		checks = append(checks, check{"config", false, err.Error()})
		printChecks(checks)
		return err
	}
	checks = append(checks, check{"config", true, cfg.ConfigPath})

	logger := createLogger()
	defer logger.Sync()

	a, err := newApp(cfg, logger)
	if err != nil {
		checks = append(checks, check{"page rules", false, err.Error()})
		printChecks(checks)
		return err
	}
	checks = append(checks, check{"page rules", true, fmt.Sprintf("%d rules", len(a.engine.Rules()))})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checks = append(checks, listenerCheck(ctx, cfg))

	if a.probe.Check(ctx) {
		checks = append(checks, check{"tray daemon", true, cfg.Tray.URL})
	} else {
		checks = append(checks, check{"tray daemon", false, "handshake failed at " + cfg.Tray.URL})
	}

	if cert := a.auth.Certificate(ctx); cert != "" {
		checks = append(checks, check{"backend certificate", true, fmt.Sprintf("%d bytes", len(cert))})
	} else {
		checks = append(checks, check{"backend certificate", false, cfg.Backend.Endpoint + cfg.Backend.CertificatePath})
	}

	if cfg.Session.RegisterID == "" {
		checks = append(checks, check{"session register", true, "not set, page value or default printer is used"})
	} else if name, ok := a.registers.PrinterFor(cfg.Session.RegisterID); ok {
		checks = append(checks, check{"session register", true, fmt.Sprintf("%s -> %s", cfg.Session.RegisterID, name)})
	} else {
		checks = append(checks, check{"session register", true, cfg.Session.RegisterID + " has no printer mapping, default printer is used"})
	}

	if cfg.Browser.CDPURL != "" {
		doc, err := cdpdom.Attach(ctx, cdpdom.Options{CDPURL: cfg.Browser.CDPURL, URLContains: tabMatch}, logger)
		if err != nil {
			checks = append(checks, check{"kiosk browser", false, err.Error()})
		} else {
			checks = append(checks, check{"kiosk browser", true, doc.URL()})
			doc.Close()
		}
	}

	printChecks(checks)

	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%s check failed", c.name)
		}
	}
	return nil
}

func listenerCheck(ctx context.Context, cfg *config.Config) check {
	port, err := tray.PortFromURL(cfg.Tray.URL)
	if err != nil {
		return check{"tray port", false, err.Error()}
	}
	l, err := tray.FindListener(ctx, port)
	switch {
	case err != nil:
		return check{"tray port", false, err.Error()}
	case l == nil:
		return check{"tray port", false, fmt.Sprintf("nothing listening on %d", port)}
	default:
		return check{"tray port", true, fmt.Sprintf("%d held by %s (pid %d)", port, l.Process, l.PID)}
	}
}

func printChecks(checks []check) {
	table := pterm.TableData{{"Check", "Result", "Detail"}}
	for _, c := range checks {
		result := pterm.Green("ok")
		if !c.ok {
			result = pterm.Red("fail")
		}
		table = append(table, []string{c.name, result, c.detail})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}
