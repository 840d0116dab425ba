package tray

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client manages the WebSocket connection to the local tray daemon
type Client struct {
	url         string
	dialer      *websocket.Dialer
	callTimeout time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	session *session
	certFn  CertificateFunc
	signFn  SignatureFunc
}

// session is one open connection and its in-flight calls
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan response
	done    chan struct{}
	err     error
}

// NewClient creates a new tray client
func NewClient(url string, connectTimeout, callTimeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: connectTimeout,
		},
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// SetCertificatePromise installs the certificate callback used at handshake
func (c *Client) SetCertificatePromise(fn CertificateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certFn = fn
}

// SetSignaturePromise installs the callback that signs each call
func (c *Client) SetSignaturePromise(fn SignatureFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signFn = fn
}

// IsActive reports whether a connection is open
func (c *Client) IsActive() bool {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	return s != nil && !s.closed()
}

// Connect dials the daemon and performs the certificate handshake.
// An already open connection is reused.
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) error {
	if c.IsActive() {
		return nil
	}

	var conn *websocket.Conn
	var err error
	for attempt := 0; ; attempt++ {
		conn, _, err = c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			break
		}
		if attempt >= opts.Retries {
			return &ConnectionError{Op: "connect", Err: err}
		}

		c.logger.Debug("tray dial failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", opts.Delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return &ConnectionError{Op: "connect", Err: ctx.Err()}
		case <-time.After(opts.Delay):
		}
	}

	s := &session{
		conn:    conn,
		pending: make(map[string]chan response),
		done:    make(chan struct{}),
	}
	go s.readLoop(c.logger)

	c.mu.Lock()
	c.session = s
	certFn := c.certFn
	c.mu.Unlock()

	cert := ""
	if certFn != nil {
		cert = certFn(ctx)
	}
	params, _ := json.Marshal(handshakeParams{Certificate: cert})
	if _, err := c.call(ctx, s, CallHandshake, params, false); err != nil {
		c.drop(s)
		if IsTimeout(err) {
			return &ConnectionError{Op: CallHandshake, Err: err}
		}
		return err
	}

	c.logger.Debug("tray connected", zap.String("url", c.url))
	return nil
}

// Disconnect closes the connection if one is open
func (c *Client) Disconnect() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	s.shutdown(errors.New("disconnected"))
	return nil
}

// DefaultPrinter asks the daemon for the system default printer
func (c *Client) DefaultPrinter(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, CallDefaultPrinter, nil)
	if err != nil {
		return "", err
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", fmt.Errorf("decode default printer: %w", err)
	}
	return name, nil
}

// Printers lists the printers the daemon can see
func (c *Client) Printers(ctx context.Context) ([]string, error) {
	raw, err := c.do(ctx, CallFindPrinters, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode printer list: %w", err)
	}
	return names, nil
}

// Print sends raw bytes to a printer
func (c *Client) Print(ctx context.Context, cfg PrintConfig, data []byte) error {
	params, err := json.Marshal(printParams{
		Printer: cfg.Printer,
		Type:    "raw",
		Format:  "base64",
		Data:    base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, CallPrint, params)
	return err
}

func (c *Client) do(ctx context.Context, call string, params []byte) (json.RawMessage, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil || s.closed() {
		return nil, &ConnectionError{Op: call, Err: ErrNotConnected}
	}
	return c.call(ctx, s, call, params, true)
}

// call sends one request and waits for its response
func (c *Client) call(ctx context.Context, s *session, call string, params []byte, signed bool) (json.RawMessage, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	req := request{
		UID:       uuid.NewString(),
		Call:      call,
		Params:    params,
		Timestamp: time.Now().UnixMilli(),
	}

	if signed {
		c.mu.Lock()
		signFn := c.signFn
		c.mu.Unlock()
		if signFn != nil {
			req.Signature = signFn(ctx, Challenge(call, req.Timestamp, params))
		}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ch := s.register(req.UID)
	defer s.unregister(req.UID)

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	err = s.conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		s.shutdown(err)
		return nil, &ConnectionError{Op: call, Err: err}
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, &CallError{Call: call, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	case <-s.done:
		return nil, &ConnectionError{Op: call, Err: s.cause()}
	case <-ctx.Done():
		return nil, &TimeoutError{Call: call, Err: ctx.Err()}
	}
}

func (c *Client) drop(s *session) {
	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()
	s.shutdown(errors.New("handshake failed"))
}

// readLoop reads responses until the connection closes
func (s *session) readLoop(logger *zap.Logger) {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("tray read error", zap.Error(err))
			}
			s.shutdown(err)
			return
		}

		var resp response
		if err := json.Unmarshal(message, &resp); err != nil {
			logger.Warn("failed to parse tray message", zap.Error(err))
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[resp.UID]
		s.mu.Unlock()
		if !ok {
			logger.Debug("dropping tray message for unknown call", zap.String("uid", resp.UID))
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}

func (s *session) register(uid string) chan response {
	ch := make(chan response, 1)
	s.mu.Lock()
	s.pending[uid] = ch
	s.mu.Unlock()
	return ch
}

func (s *session) unregister(uid string) {
	s.mu.Lock()
	delete(s.pending, uid)
	s.mu.Unlock()
}

func (s *session) shutdown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}
	s.err = err
	close(s.done)
	s.conn.Close()
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
