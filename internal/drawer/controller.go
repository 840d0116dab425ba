// Package drawer opens the cash drawer through the local tray daemon.
package drawer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/backend"
	"github.com/jetsetgo/till-bridge/internal/printer"
	"github.com/jetsetgo/till-bridge/internal/tray"
)

const (
	opGuard          = "guard"
	opAvailability   = "availability"
	opConnect        = "connect"
	opResolvePrinter = "resolve_printer"
	opPrint          = "print"
)

// Daemon is the tray client as seen by the controller
type Daemon interface {
	Connector
	SetCertificatePromise(fn tray.CertificateFunc)
	SetSignaturePromise(fn tray.SignatureFunc)
	DefaultPrinter(ctx context.Context) (string, error)
	Printers(ctx context.Context) ([]string, error)
	Print(ctx context.Context, cfg tray.PrintConfig, data []byte) error
}

// Signer supplies the tray certificate and call signatures
type Signer interface {
	CertificateFunc() tray.CertificateFunc
	SignatureFunc() tray.SignatureFunc
}

// Notifier shows outcomes to the cashier and reports diagnostics
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	ReportError(ctx context.Context, err error, errContext string)
}

// PrinterSink receives printer diagnostics
type PrinterSink interface {
	LogPrinters(ctx context.Context, report backend.PrinterReport)
}

// RegisterHint carries the register ID fields read from the page
type RegisterHint struct {
	Visible string
	Hidden  string
}

// Request is one drawer-open request
type Request struct {
	Register RegisterHint
	PageURL  string
}

// Receipt describes a successful drawer kick
type Receipt struct {
	RegisterID string
	Printer    string
	Bytes      []byte
	Duration   time.Duration
}

// Options tunes the controller
type Options struct {
	Connect           tray.ConnectOptions
	SessionRegisterID string
}

// Controller runs one drawer-open attempt end to end
type Controller struct {
	daemon    Daemon
	signer    Signer
	probe     *Probe
	codes     *printer.CodeRegistry
	registers *printer.RegisterMap
	notifier  Notifier
	printers  PrinterSink
	history   *History
	opts      Options
	logger    *zap.Logger

	guard *TransactionLock
}

// NewController creates a drawer controller. printers and history may be nil.
func NewController(
	daemon Daemon,
	signer Signer,
	probe *Probe,
	codes *printer.CodeRegistry,
	registers *printer.RegisterMap,
	notifier Notifier,
	printers PrinterSink,
	history *History,
	opts Options,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		daemon:    daemon,
		signer:    signer,
		probe:     probe,
		codes:     codes,
		registers: registers,
		notifier:  notifier,
		printers:  printers,
		history:   history,
		opts:      opts,
		logger:    logger,
		guard:     NewTransactionLock(),
	}
}

// Probe returns the availability probe used by the controller
func (c *Controller) Probe() *Probe {
	return c.probe
}

// Busy reports whether an operation is running
func (c *Controller) Busy() bool {
	return c.guard.IsLocked()
}

// RegisterID resolves the register for a request
func (c *Controller) RegisterID(req Request) string {
	return printer.ResolveRegisterID(req.Register.Visible, req.Register.Hidden, c.opts.SessionRegisterID)
}

// OpenDrawer makes one attempt to open the drawer. It never retries; a
// failed attempt returns a *Error and the caller carries on with its workflow.
func (c *Controller) OpenDrawer(ctx context.Context, req Request) (Receipt, error) {
	recID := uuid.NewString()
	registerID := c.RegisterID(req)
	c.record(Record{
		ID:         recID,
		RegisterID: registerID,
		Status:     "opening",
		PageURL:    req.PageURL,
		StartedAt:  time.Now(),
	})

	if !c.guard.Lock() {
		err := &Error{Kind: KindOperationInProgress, Op: opGuard, Err: ErrOperationInProgress}
		c.finish(recID, "rejected", "", err)
		return Receipt{}, err
	}
	defer c.guard.Unlock()

	if c.probe != nil && c.probe.State() == StateUnavailable {
		err := &Error{Kind: KindDaemonUnavailable, Op: opAvailability, Err: ErrDaemonUnavailable}
		c.finish(recID, "rejected", "", err)
		return Receipt{}, err
	}

	start := time.Now()
	receipt, op, err := c.run(ctx, registerID)
	receipt.Duration = time.Since(start)

	if derr := c.daemon.Disconnect(); derr != nil {
		c.logger.Debug("tray disconnect failed", zap.Error(derr))
	}

	if err != nil {
		derr := &Error{Kind: classify(op, err), Op: op, Err: err}
		c.fail(ctx, derr, registerID, req)
		c.finish(recID, "failed", receipt.Printer, derr)
		return receipt, derr
	}

	c.logger.Info("cash drawer opened",
		zap.String("register_id", registerID),
		zap.String("printer", receipt.Printer),
		zap.Duration("took", receipt.Duration))
	c.notifier.Success("Cash drawer opened")
	c.finish(recID, "opened", receipt.Printer, nil)
	return receipt, nil
}

// run performs steps 3-7 and returns the step that failed
func (c *Controller) run(ctx context.Context, registerID string) (Receipt, string, error) {
	receipt := Receipt{RegisterID: registerID}

	if c.signer != nil {
		c.daemon.SetCertificatePromise(c.signer.CertificateFunc())
		c.daemon.SetSignaturePromise(c.signer.SignatureFunc())
	}

	if err := c.daemon.Connect(ctx, c.opts.Connect); err != nil {
		return receipt, opConnect, err
	}

	name, err := c.resolvePrinter(ctx, registerID)
	if err != nil {
		return receipt, opResolvePrinter, err
	}
	receipt.Printer = name
	receipt.Bytes = c.codes.Resolve(name)

	c.logger.Debug("sending drawer kick",
		zap.String("printer", name),
		zap.Binary("bytes", receipt.Bytes))

	if err := c.daemon.Print(ctx, tray.PrintConfig{Printer: name}, receipt.Bytes); err != nil {
		return receipt, opPrint, err
	}
	return receipt, "", nil
}

func (c *Controller) resolvePrinter(ctx context.Context, registerID string) (string, error) {
	if registerID != "" && c.registers != nil {
		if name, ok := c.registers.PrinterFor(registerID); ok {
			return name, nil
		}
	}

	name, err := c.daemon.DefaultPrinter(ctx)
	if err != nil {
		return "", fmt.Errorf("default printer: %w", err)
	}
	if name == "" {
		return "", errNoPrinter
	}
	return name, nil
}

func (c *Controller) fail(ctx context.Context, err *Error, registerID string, req Request) {
	c.logger.Warn("cash drawer failed to open",
		zap.String("register_id", registerID),
		zap.String("kind", err.Kind.String()),
		zap.Error(err.Err))

	// A caller that gave up proves nothing about the daemon.
	if err.Kind.ConnectionClass() && c.probe != nil && ctx.Err() == nil {
		c.probe.MarkUnavailable()
	}

	c.notifier.Warning(warningFor(err.Kind))
	c.notifier.ReportError(ctx, err, "qztray_"+err.Kind.String())

	if err.Kind == KindPrinterResolution || err.Kind == KindPrint {
		c.reportPrinters(ctx, registerID, req.PageURL)
	}
}

// reportPrinters sends the daemon's printer list when the session is still open.
func (c *Controller) reportPrinters(ctx context.Context, registerID, pageURL string) {
	if c.printers == nil {
		return
	}
	names, err := c.daemon.Printers(ctx)
	if err != nil {
		c.logger.Debug("printer list unavailable", zap.Error(err))
		return
	}
	c.printers.LogPrinters(ctx, backend.PrinterReport{
		Printers:   names,
		RegisterID: registerID,
		PageURL:    pageURL,
	})
}

// ReportPrinters connects, lists the daemon's printers and posts them to the backend
func (c *Controller) ReportPrinters(ctx context.Context, req Request) ([]string, error) {
	if !c.guard.Lock() {
		return nil, &Error{Kind: KindOperationInProgress, Op: opGuard, Err: ErrOperationInProgress}
	}
	defer c.guard.Unlock()

	if c.probe != nil && c.probe.State() == StateUnavailable {
		return nil, &Error{Kind: KindDaemonUnavailable, Op: opAvailability, Err: ErrDaemonUnavailable}
	}

	if c.signer != nil {
		c.daemon.SetCertificatePromise(c.signer.CertificateFunc())
		c.daemon.SetSignaturePromise(c.signer.SignatureFunc())
	}
	defer c.daemon.Disconnect()

	if err := c.daemon.Connect(ctx, c.opts.Connect); err != nil {
		derr := &Error{Kind: classify(opConnect, err), Op: opConnect, Err: err}
		if derr.Kind.ConnectionClass() && c.probe != nil && ctx.Err() == nil {
			c.probe.MarkUnavailable()
		}
		return nil, derr
	}

	names, err := c.daemon.Printers(ctx)
	if err != nil {
		return nil, &Error{Kind: classify(opResolvePrinter, err), Op: opResolvePrinter, Err: err}
	}

	if c.printers != nil {
		c.printers.LogPrinters(ctx, backend.PrinterReport{
			Printers:   names,
			RegisterID: c.RegisterID(req),
			PageURL:    req.PageURL,
		})
	}
	return names, nil
}

func (c *Controller) record(rec Record) {
	if c.history != nil {
		c.history.Add(rec)
	}
}

func (c *Controller) finish(id, status, printerName string, err error) {
	if c.history != nil {
		c.history.Finish(id, status, printerName, err)
	}
}

func warningFor(k Kind) string {
	switch k {
	case KindConnection, KindDaemonUnavailable, KindPrinterResolution:
		return "Cash drawer not reachable - transaction will continue"
	case KindSigning, KindCertificate:
		return "Cash drawer service refused the request - transaction will continue"
	default:
		return "Cash drawer did not open - transaction will continue"
	}
}
