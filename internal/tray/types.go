package tray

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Calls understood by the tray daemon
const (
	CallHandshake      = "websocket.handshake"
	CallDefaultPrinter = "printers.getDefault"
	CallFindPrinters   = "printers.find"
	CallPrint          = "print"
)

// Error codes returned by the daemon
const (
	CodeUntrustedCertificate = "untrusted_certificate"
	CodeInvalidSignature     = "invalid_signature"
	CodePrinterNotFound      = "printer_not_found"
)

// ConnectOptions controls the dial retry policy
type ConnectOptions struct {
	Retries int
	Delay   time.Duration
}

// ProbeOptions is the single-shot policy used for availability checks
var ProbeOptions = ConnectOptions{Retries: 0, Delay: 0}

// CertificateFunc supplies the certificate presented at handshake
type CertificateFunc func(ctx context.Context) string

// SignatureFunc signs a call challenge and returns a base64 signature
type SignatureFunc func(ctx context.Context, challenge string) string

// PrintConfig selects the target printer for a raw job
type PrintConfig struct {
	Printer string
}

// request is a call sent to the daemon
type request struct {
	UID       string          `json:"uid"`
	Call      string          `json:"call"`
	Params    json.RawMessage `json:"params,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature,omitempty"`
}

// response is the daemon's reply to a call
type response struct {
	UID    string          `json:"uid"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type handshakeParams struct {
	Certificate string `json:"certificate"`
}

type printParams struct {
	Printer string `json:"printer"`
	Type    string `json:"type"`
	Format  string `json:"format"`
	Data    string `json:"data"`
}

// Challenge builds the string signed for a call
func Challenge(call string, timestamp int64, params []byte) string {
	return fmt.Sprintf("%s|%d|%s", call, timestamp, params)
}

// ConnectionError reports that the daemon could not be reached or went away
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("tray %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that an open connection did not answer a call in time
type TimeoutError struct {
	Call string
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tray %s: no response: %v", e.Call, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// CallError is an error answered by the daemon for a call
type CallError struct {
	Call    string
	Code    string
	Message string
}

func (e *CallError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tray call %s failed (%s): %s", e.Call, e.Code, e.Message)
	}
	return fmt.Sprintf("tray call %s failed: %s", e.Call, e.Message)
}

// IsConnectionError reports whether err is a transport-level failure
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is an unanswered call on a live connection
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ErrNotConnected is returned by calls made without an open connection
var ErrNotConnected = errors.New("not connected")
