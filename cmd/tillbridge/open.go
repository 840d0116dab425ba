package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jetsetgo/till-bridge/internal/drawer"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the cash drawer once",
	Long: `Makes a single drawer-open attempt. The printer is picked from the
register mapping when --register matches one, otherwise the daemon's
default printer is used.`,
	RunE: runOpen,
}

var (
	openRegister string
	openHidden   string
	openPageURL  string
)

func init() {
	openCmd.Flags().StringVarP(&openRegister, "register", "r", "", "Register ID as selected on the page")
	openCmd.Flags().StringVar(&openHidden, "hidden-register", "", "Register ID from the page's hidden field")
	openCmd.Flags().StringVar(&openPageURL, "page-url", "", "Page URL attached to diagnostics")
}

func runOpen(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	spinner, _ := pterm.DefaultSpinner.Start("Opening cash drawer...")
	receipt, err := a.controller.OpenDrawer(ctx, drawer.Request{
		Register: drawer.RegisterHint{Visible: openRegister, Hidden: openHidden},
		PageURL:  openPageURL,
	})
	spinner.Stop()

	if err != nil {
		pterm.Warning.Printf("Drawer did not open (%s): %v\n", drawer.KindOf(err), err)
		return err
	}

	register := receipt.RegisterID
	if register == "" {
		register = "none"
	}
	pterm.Success.Printf("Cash drawer opened on %q (register %s) in %s\n", receipt.Printer, register, receipt.Duration.Round(time.Millisecond))
	pterm.Info.Printf("Sent %s\n", formatBytes(receipt.Bytes))
	return nil
}
