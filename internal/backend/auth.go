package backend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/tray"
)

// Diagnostic contexts attached to AuthBridge failures
const (
	ContextCertificate = "qztray_certificate"
	ContextSigning     = "qztray_message_signing"
)

// ErrorReporter receives failures that should reach the user and the backend
type ErrorReporter interface {
	ReportError(ctx context.Context, err error, errContext string)
}

// AuthBridge fetches the tray certificate and signs challenges through the backend.
// It never fails: on error it reports and degrades to an empty value so the
// daemon can fall back to its own trust prompt.
type AuthBridge struct {
	client   *Client
	reporter ErrorReporter
	logger   *zap.Logger
}

// NewAuthBridge creates an AuthBridge
func NewAuthBridge(client *Client, reporter ErrorReporter, logger *zap.Logger) *AuthBridge {
	return &AuthBridge{
		client:   client,
		reporter: reporter,
		logger:   logger,
	}
}

// Certificate returns the PEM certificate, or "" on failure
func (a *AuthBridge) Certificate(ctx context.Context) string {
	body, err := a.client.get(ctx, a.client.config.CertificatePath)
	if err != nil {
		a.fail(ctx, fmt.Errorf("fetch certificate: %w", err), ContextCertificate)
		return ""
	}
	return string(body)
}

// Sign returns the base64 signature of challenge, or "" on failure
func (a *AuthBridge) Sign(ctx context.Context, challenge string) string {
	body, err := a.client.postJSON(ctx, a.client.config.SignPath, map[string]string{
		"message": challenge,
	})
	if err != nil {
		a.fail(ctx, fmt.Errorf("sign message: %w", err), ContextSigning)
		return ""
	}
	return strings.TrimSpace(string(body))
}

// CertificateFunc adapts Certificate to the tray client callback
func (a *AuthBridge) CertificateFunc() tray.CertificateFunc {
	return a.Certificate
}

// SignatureFunc adapts Sign to the tray client callback
func (a *AuthBridge) SignatureFunc() tray.SignatureFunc {
	return a.Sign
}

func (a *AuthBridge) fail(ctx context.Context, err error, errContext string) {
	a.logger.Warn("auth bridge request failed",
		zap.String("context", errContext),
		zap.Error(err))
	if a.reporter != nil {
		a.reporter.ReportError(ctx, err, errContext)
	}
}
