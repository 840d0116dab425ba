// Package notify shows drawer outcomes to the cashier and forwards
// diagnostics to the backend.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/backend"
)

// Level is the severity of a notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one user-visible message
type Notice struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// Surface renders notices somewhere the cashier can see them
type Surface interface {
	Render(n Notice)
}

// Sink receives diagnostic reports
type Sink interface {
	LogError(ctx context.Context, report backend.ErrorReport)
}

// Notifier fans notices out to surfaces and the history, and error
// reports to the backend sink.
type Notifier struct {
	sink    Sink
	history *History
	logger  *zap.Logger

	mu       sync.RWMutex
	surfaces []Surface
	pageURL  string
}

// NewNotifier creates a Notifier. sink may be nil.
func NewNotifier(sink Sink, history *History, logger *zap.Logger) *Notifier {
	return &Notifier{
		sink:    sink,
		history: history,
		logger:  logger,
	}
}

// AddSurface registers a surface
func (n *Notifier) AddSurface(s Surface) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.surfaces = append(n.surfaces, s)
}

// RemoveSurface unregisters a surface
func (n *Notifier) RemoveSurface(s Surface) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, cur := range n.surfaces {
		if cur == s {
			n.surfaces = append(n.surfaces[:i], n.surfaces[i+1:]...)
			return
		}
	}
}

// SetPageURL records the page that diagnostics refer to
func (n *Notifier) SetPageURL(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pageURL = url
}

// Success shows a success notice
func (n *Notifier) Success(msg string) { n.show(LevelSuccess, msg) }

// Warning shows a non-blocking warning
func (n *Notifier) Warning(msg string) { n.show(LevelWarning, msg) }

// Error shows an error notice
func (n *Notifier) Error(msg string) { n.show(LevelError, msg) }

// ReportError logs err locally and forwards it to the backend
func (n *Notifier) ReportError(ctx context.Context, err error, errContext string) {
	if err == nil {
		return
	}

	n.logger.Warn("drawer diagnostic",
		zap.String("context", errContext),
		zap.Error(err))

	if n.sink == nil {
		return
	}

	n.mu.RLock()
	pageURL := n.pageURL
	n.mu.RUnlock()

	n.sink.LogError(ctx, backend.ErrorReport{
		Error:   err.Error(),
		Context: errContext,
		PageURL: pageURL,
	})
}

func (n *Notifier) show(level Level, msg string) {
	notice := Notice{Timestamp: time.Now(), Level: level, Message: msg}

	switch level {
	case LevelWarning:
		n.logger.Warn(msg)
	case LevelError:
		n.logger.Error(msg)
	default:
		n.logger.Info(msg, zap.String("level", string(level)))
	}

	if n.history != nil {
		n.history.Add(notice)
	}

	n.mu.RLock()
	surfaces := append([]Surface(nil), n.surfaces...)
	n.mu.RUnlock()

	for _, s := range surfaces {
		s.Render(notice)
	}
}

var _ backend.ErrorReporter = (*Notifier)(nil)
