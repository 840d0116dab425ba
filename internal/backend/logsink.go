package backend

import (
	"context"

	"go.uber.org/zap"
)

// ErrorReport is the body of the log-error endpoint
type ErrorReport struct {
	Error     string `json:"error"`
	Context   string `json:"context"`
	UserAgent string `json:"user_agent"`
	PageURL   string `json:"page_url"`
}

// PrinterReport is the body of the log-printer endpoint
type PrinterReport struct {
	Printers   []string `json:"printers"`
	RegisterID string   `json:"register_id"`
	PageURL    string   `json:"page_url"`
}

// LogSink forwards client diagnostics to the backend. Delivery is
// best-effort; failures are logged locally and swallowed.
type LogSink struct {
	client *Client
	logger *zap.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(client *Client, logger *zap.Logger) *LogSink {
	return &LogSink{client: client, logger: logger}
}

// LogError posts an error report
func (s *LogSink) LogError(ctx context.Context, report ErrorReport) {
	if report.UserAgent == "" {
		report.UserAgent = s.client.config.UserAgent
	}
	if _, err := s.client.postJSON(ctx, s.client.config.LogErrorPath, report); err != nil {
		s.logger.Debug("failed to deliver error report",
			zap.String("context", report.Context),
			zap.Error(err))
	}
}

// LogPrinters posts the printers visible to the daemon
func (s *LogSink) LogPrinters(ctx context.Context, report PrinterReport) {
	if report.Printers == nil {
		report.Printers = []string{}
	}
	if _, err := s.client.postJSON(ctx, s.client.config.LogPrinterPath, report); err != nil {
		s.logger.Debug("failed to deliver printer report",
			zap.String("register_id", report.RegisterID),
			zap.Error(err))
	}
}
