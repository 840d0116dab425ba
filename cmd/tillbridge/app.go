package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/api"
	"github.com/jetsetgo/till-bridge/internal/backend"
	"github.com/jetsetgo/till-bridge/internal/config"
	"github.com/jetsetgo/till-bridge/internal/drawer"
	"github.com/jetsetgo/till-bridge/internal/notify"
	"github.com/jetsetgo/till-bridge/internal/page"
	"github.com/jetsetgo/till-bridge/internal/printer"
	"github.com/jetsetgo/till-bridge/internal/tray"
)

// app holds the wired components shared by the commands
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	backend    *backend.Client
	sink       *backend.LogSink
	auth       *backend.AuthBridge
	notices    *notify.History
	notifier   *notify.Notifier
	probe      *drawer.Probe
	codes      *printer.CodeRegistry
	registers  *printer.RegisterMap
	history    *drawer.History
	controller *drawer.Controller
	engine     *page.Engine
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.backend = backend.NewClient(&cfg.Backend, logger.Named("backend"))
	a.sink = backend.NewLogSink(a.backend, logger.Named("backend"))
	a.notices = notify.NewHistory(200)
	a.notifier = notify.NewNotifier(a.sink, a.notices, logger.Named("notify"))
	a.auth = backend.NewAuthBridge(a.backend, a.notifier, logger.Named("auth"))

	// The probe gets its own client so its disconnect cannot end a drawer session.
	probeClient := tray.NewClient(cfg.Tray.URL, cfg.Tray.ConnectTimeout, cfg.Tray.CallTimeout, logger.Named("probe"))
	a.probe = drawer.NewProbe(probeClient, cfg.Tray.ProbeTimeout, logger.Named("probe"))

	a.codes = printer.NewCodeRegistry()
	a.registers = printer.NewRegisterMap(cfg.Registers)
	a.history = drawer.NewHistory(cfg.Drawer.HistorySize)

	drawerClient := tray.NewClient(cfg.Tray.URL, cfg.Tray.ConnectTimeout, cfg.Tray.CallTimeout, logger.Named("tray"))
	a.controller = drawer.NewController(
		drawerClient,
		a.auth,
		a.probe,
		a.codes,
		a.registers,
		a.notifier,
		a.sink,
		a.history,
		drawer.Options{
			Connect: tray.ConnectOptions{
				Retries: cfg.Tray.Retries,
				Delay:   cfg.Tray.RetryDelay,
			},
			SessionRegisterID: cfg.Session.RegisterID,
		},
		logger.Named("drawer"),
	)

	engine, err := page.NewEngineFromConfig(cfg.Page)
	if err != nil {
		return nil, fmt.Errorf("page rules: %w", err)
	}
	a.engine = engine
	return a, nil
}

func (a *app) apiServer() *api.Server {
	return api.NewServer(a.cfg, api.Deps{
		Drawer:     a.controller,
		Probe:      a.probe,
		Engine:     a.engine,
		Codes:      a.codes,
		Registers:  a.registers,
		Notices:    a.notices,
		Operations: a.history,
		Version:    Version,
	}, a.logger.Named("api"))
}

func (a *app) pageOptions() page.Options {
	return page.Options{
		ResumeDelay:             a.cfg.Drawer.ResumeDelay,
		AutoSubmit:              a.cfg.Drawer.AutoSubmit,
		VisibleRegisterSelector: a.cfg.Page.VisibleRegisterSelector,
		HiddenRegisterSelector:  a.cfg.Page.HiddenRegisterSelector,
		WriteoffSelector:        a.cfg.Page.WriteoffSelector,
		SessionRegisterID:       a.cfg.Session.RegisterID,
	}
}

// orchestrator builds a page orchestrator for doc and shows notices on it
// until detach is called.
func (a *app) orchestrator(doc page.Document) (orch *page.Orchestrator, detach func()) {
	surface := page.NewSurface(doc, a.logger.Named("page"))
	a.notifier.AddSurface(surface)
	a.notifier.SetPageURL(doc.URL())
	detach = func() { a.notifier.RemoveSurface(surface) }
	return page.NewOrchestrator(
		a.engine,
		doc,
		drawer.NewTransactionLock(),
		a.probe,
		a.controller,
		a.notifier,
		a.pageOptions(),
		a.logger.Named("page"),
	), detach
}
