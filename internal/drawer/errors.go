package drawer

import (
	"errors"
	"fmt"

	"github.com/jetsetgo/till-bridge/internal/tray"
)

// Kind classifies a drawer failure
type Kind int

const (
	KindUnknown Kind = iota
	KindOperationInProgress
	KindDaemonUnavailable
	KindConnection
	KindPrinterResolution
	KindPrint
	KindSigning
	KindCertificate
)

func (k Kind) String() string {
	switch k {
	case KindOperationInProgress:
		return "operation_in_progress"
	case KindDaemonUnavailable:
		return "daemon_unavailable"
	case KindConnection:
		return "connection"
	case KindPrinterResolution:
		return "printer_resolution"
	case KindPrint:
		return "print"
	case KindSigning:
		return "signing"
	case KindCertificate:
		return "certificate"
	default:
		return "unknown"
	}
}

// ConnectionClass reports whether the failure means the daemon is not usable
func (k Kind) ConnectionClass() bool {
	return k == KindDaemonUnavailable || k == KindConnection
}

var (
	// ErrOperationInProgress is returned while another drawer operation runs
	ErrOperationInProgress = errors.New("drawer operation already in progress")

	// ErrDaemonUnavailable is returned when the tray daemon is known to be unreachable
	ErrDaemonUnavailable = errors.New("tray daemon unavailable")

	errNoPrinter = errors.New("no printer configured for register and no system default")
)

// Error is a classified drawer failure
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("drawer %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel errors by kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrOperationInProgress:
		return e.Kind == KindOperationInProgress
	case ErrDaemonUnavailable:
		return e.Kind == KindDaemonUnavailable || e.Kind == KindConnection
	}
	return false
}

// KindOf returns the kind of a drawer error, KindUnknown otherwise
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// classify maps a failure in step op to a Kind. A call that timed out on an
// open connection is charged to its step, not to the connection.
func classify(op string, err error) Kind {
	var callErr *tray.CallError
	if errors.As(err, &callErr) {
		switch callErr.Code {
		case tray.CodeUntrustedCertificate:
			return KindCertificate
		case tray.CodeInvalidSignature:
			return KindSigning
		case tray.CodePrinterNotFound:
			return KindPrinterResolution
		}
		if callErr.Call == tray.CallHandshake {
			return KindCertificate
		}
	}
	if tray.IsConnectionError(err) {
		return KindConnection
	}
	switch op {
	case opConnect:
		return KindConnection
	case opResolvePrinter:
		return KindPrinterResolution
	case opPrint:
		return KindPrint
	}
	return KindUnknown
}
