// Package traytest provides an in-process fake tray daemon for tests.
package traytest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Job is a raw print job received by the fake daemon
type Job struct {
	Printer string
	Data    []byte
}

// Call is one request seen by the fake daemon
type Call struct {
	Name        string
	Signature   string
	Certificate string
}

// Server is a fake tray daemon speaking the client's JSON protocol
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	connections atomic.Int32

	mu             sync.Mutex
	defaultPrinter string
	printers       []string
	failures       map[string]failure
	delays         map[string]time.Duration
	jobs           []Job
	calls          []Call
}

type failure struct {
	code    string
	message string
}

// NewServer starts a fake daemon
func NewServer() *Server {
	s := &Server{
		defaultPrinter: "Epson TM-T88V",
		printers:       []string{"Epson TM-T88V"},
		failures:       make(map[string]failure),
		delays:         make(map[string]time.Duration),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the ws:// address of the daemon
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Close stops the daemon
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

// SetDefaultPrinter changes the reported system default
func (s *Server) SetDefaultPrinter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultPrinter = name
}

// SetPrinters changes the printer list
func (s *Server) SetPrinters(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printers = names
}

// Fail makes every subsequent call named call answer with an error
func (s *Server) Fail(call, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[call] = failure{code: code, message: message}
}

// Delay holds every subsequent answer to call back for d
func (s *Server) Delay(call string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[call] = d
}

// Connections counts accepted WebSocket upgrades
func (s *Server) Connections() int {
	return int(s.connections.Load())
}

// Jobs returns received print jobs
func (s *Server) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// Calls returns every request received, in order
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

type wireRequest struct {
	UID       string          `json:"uid"`
	Call      string          `json:"call"`
	Params    json.RawMessage `json:"params"`
	Signature string          `json:"signature"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireResponse struct {
	UID    string      `json:"uid"`
	Result interface{} `json:"result,omitempty"`
	Error  *wireError  `json:"error,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.connections.Add(1)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req wireRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}

		s.mu.Lock()
		delay := s.delays[req.Call]
		s.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}

		resp := s.answer(req)
		data, _ := json.Marshal(resp)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (s *Server) answer(req wireRequest) wireResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := Call{Name: req.Call, Signature: req.Signature}
	if req.Call == "websocket.handshake" {
		var p struct {
			Certificate string `json:"certificate"`
		}
		_ = json.Unmarshal(req.Params, &p)
		call.Certificate = p.Certificate
	}
	s.calls = append(s.calls, call)

	resp := wireResponse{UID: req.UID}
	if f, ok := s.failures[req.Call]; ok {
		resp.Error = &wireError{Code: f.code, Message: f.message}
		return resp
	}

	switch req.Call {
	case "websocket.handshake":
		resp.Result = true
	case "printers.getDefault":
		resp.Result = s.defaultPrinter
	case "printers.find":
		resp.Result = s.printers
	case "print":
		var p struct {
			Printer string `json:"printer"`
			Data    string `json:"data"`
		}
		_ = json.Unmarshal(req.Params, &p)
		data, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			resp.Error = &wireError{Message: err.Error()}
			return resp
		}
		s.jobs = append(s.jobs, Job{Printer: p.Printer, Data: data})
		resp.Result = true
	default:
		resp.Error = &wireError{Message: "unknown call " + req.Call}
	}
	return resp
}
