package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jetsetgo/till-bridge/internal/page/cdpdom"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API and, with --cdp, drive the POS tab in the kiosk browser",
	Long: `Starts the local control API. When a DevTools endpoint is configured
(browser.cdp_url, TILLBRIDGE_CDP_URL or --cdp) the bridge also attaches to
the POS tab and replaces drawer-opening buttons on every page load.`,
	RunE: runServe,
}

var (
	cdpURL    string
	tabMatch  string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&cdpURL, "cdp", "", "DevTools endpoint of the kiosk browser")
	serveCmd.Flags().StringVar(&tabMatch, "tab", "/pos", "Attach to the first tab whose URL contains this")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Control API port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if cdpURL != "" {
		cfg.Browser.CDPURL = cdpURL
	}

	logger := createLogger()
	defer logger.Sync()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Printf("Control API on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	pterm.Info.Printf("Tray daemon at %s\n", cfg.Tray.URL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.apiServer().Start(gctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if cfg.Browser.CDPURL != "" {
		g.Go(func() error {
			return drivePage(gctx, a, cfg.Browser.CDPURL)
		})
	}

	if err := g.Wait(); err != nil {
		pterm.Error.Println(err)
		return err
	}
	pterm.Info.Println("Stopped")
	return nil
}

// drivePage attaches to the POS tab and rebinds its buttons after every load
func drivePage(ctx context.Context, a *app, endpoint string) error {
	doc, err := cdpdom.Attach(ctx, cdpdom.Options{CDPURL: endpoint, URLContains: tabMatch}, a.logger.Named("cdp"))
	if err != nil {
		return fmt.Errorf("attach to browser: %w", err)
	}
	defer doc.Close()

	orch, detach := a.orchestrator(doc)
	defer detach()
	bind := func() {
		a.notifier.SetPageURL(doc.URL())
		n, err := orch.Reload(ctx)
		if err != nil {
			a.logger.Warn("failed to bind page", zap.String("url", doc.URL()), zap.Error(err))
			return
		}
		if n > 0 {
			pterm.Success.Printf("Bound %d drawer button(s) on %s\n", n, doc.URL())
		}
	}
	doc.OnLoad(bind)
	bind()

	select {
	case <-ctx.Done():
		orch.Wait()
		orch.Reset()
		return nil
	case <-doc.Done():
		return errors.New("browser connection closed")
	}
}
