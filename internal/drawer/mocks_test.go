package drawer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jetsetgo/till-bridge/internal/backend"
	"github.com/jetsetgo/till-bridge/internal/tray"
)

// mockDaemon implements Daemon for testing
type mockDaemon struct {
	connectErr     error
	connectBlock   chan struct{}
	defaultPrinter string
	defaultErr     error
	printers       []string
	printErr       error

	connects    atomic.Int32
	disconnects atomic.Int32

	mu       sync.Mutex
	printed  []printCall
	certFn   tray.CertificateFunc
	signFn   tray.SignatureFunc
	lastOpts tray.ConnectOptions
}

type printCall struct {
	printer string
	data    []byte
}

func (m *mockDaemon) Connect(ctx context.Context, opts tray.ConnectOptions) error {
	m.connects.Add(1)
	m.mu.Lock()
	m.lastOpts = opts
	m.mu.Unlock()
	if m.connectBlock != nil {
		select {
		case <-m.connectBlock:
		case <-ctx.Done():
			return &tray.ConnectionError{Op: "connect", Err: ctx.Err()}
		}
	}
	return m.connectErr
}

func (m *mockDaemon) Disconnect() error {
	m.disconnects.Add(1)
	return nil
}

func (m *mockDaemon) SetCertificatePromise(fn tray.CertificateFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certFn = fn
}

func (m *mockDaemon) SetSignaturePromise(fn tray.SignatureFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signFn = fn
}

func (m *mockDaemon) DefaultPrinter(ctx context.Context) (string, error) {
	return m.defaultPrinter, m.defaultErr
}

func (m *mockDaemon) Printers(ctx context.Context) ([]string, error) {
	return m.printers, nil
}

func (m *mockDaemon) Print(ctx context.Context, cfg tray.PrintConfig, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.printed = append(m.printed, printCall{printer: cfg.Printer, data: data})
	return m.printErr
}

func (m *mockDaemon) prints() []printCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]printCall(nil), m.printed...)
}

// mockSigner implements Signer for testing
type mockSigner struct{}

func (mockSigner) CertificateFunc() tray.CertificateFunc {
	return func(ctx context.Context) string { return "CERT" }
}

func (mockSigner) SignatureFunc() tray.SignatureFunc {
	return func(ctx context.Context, challenge string) string { return "SIG" }
}

// mockNotifier implements Notifier for testing
type mockNotifier struct {
	mu        sync.Mutex
	successes []string
	warnings  []string
	contexts  []string
}

func (m *mockNotifier) Success(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, msg)
}

func (m *mockNotifier) Warning(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, msg)
}

func (m *mockNotifier) ReportError(ctx context.Context, err error, errContext string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts = append(m.contexts, errContext)
}

// mockPrinterSink implements PrinterSink for testing
type mockPrinterSink struct {
	reports []backend.PrinterReport
}

func (m *mockPrinterSink) LogPrinters(ctx context.Context, report backend.PrinterReport) {
	m.reports = append(m.reports, report)
}
