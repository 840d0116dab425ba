// Package api exposes the local control API used by the POS shell and by
// support staff to open the drawer and inspect the bridge.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/config"
	"github.com/jetsetgo/till-bridge/internal/drawer"
	"github.com/jetsetgo/till-bridge/internal/notify"
	"github.com/jetsetgo/till-bridge/internal/page"
	"github.com/jetsetgo/till-bridge/internal/printer"
)

// Drawer is the drawer controller as seen by the API
type Drawer interface {
	OpenDrawer(ctx context.Context, req drawer.Request) (drawer.Receipt, error)
	ReportPrinters(ctx context.Context, req drawer.Request) ([]string, error)
	RegisterID(req drawer.Request) string
	Busy() bool
}

// Availability is the daemon reachability cache
type Availability interface {
	State() drawer.State
	Recheck(ctx context.Context) bool
}

// Deps are the components the server reports on and drives
type Deps struct {
	Drawer     Drawer
	Probe      Availability
	Engine     *page.Engine
	Codes      *printer.CodeRegistry
	Registers  *printer.RegisterMap
	Notices    *notify.History
	Operations *drawer.History
	Version    string
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	deps   Deps
	mux    *http.ServeMux
	logger *zap.Logger
	start  time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		mux:    http.NewServeMux(),
		logger: logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Health check
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Status
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/availability/recheck", s.handleRecheck)

	// Drawer
	s.mux.HandleFunc("POST /api/drawer/open", s.handleOpenDrawer)
	s.mux.HandleFunc("GET /api/operations", s.handleOperations)
	s.mux.HandleFunc("GET /api/notices", s.handleNotices)
	s.mux.HandleFunc("DELETE /api/notices", s.handleClearNotices)

	// Printers
	s.mux.HandleFunc("GET /api/printer-codes", s.handleCodes)
	s.mux.HandleFunc("GET /api/printer-codes/resolve", s.handleResolveCode)
	s.mux.HandleFunc("POST /api/printers/report", s.handleReportPrinters)

	// Page rules
	s.mux.HandleFunc("GET /api/pages", s.handlePages)

	// Web UI
	s.mux.HandleFunc("GET /{$}", s.handleUI)
}

// Handler returns the route multiplexer
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleStatus returns bridge status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "running",
		"version":          s.deps.Version,
		"uptime_seconds":   int(time.Since(s.start).Seconds()),
		"tray_url":         s.config.Tray.URL,
		"daemon":           s.deps.Probe.State().String(),
		"busy":             s.deps.Drawer.Busy(),
		"session_register": s.config.Session.RegisterID,
		"registers":        len(s.deps.Registers.RegisterIDs()),
		"rules":            len(s.deps.Engine.Rules()),
	})
}

// handleRecheck discards the cached availability and probes again
func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	available := s.deps.Probe.Recheck(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": available,
		"state":     s.deps.Probe.State().String(),
	})
}

// OpenRequest asks the bridge to open the drawer
type OpenRequest struct {
	RegisterID       string `json:"register_id"`
	HiddenRegisterID string `json:"hidden_register_id"`
	PageURL          string `json:"page_url"`
}

func (o OpenRequest) drawerRequest() drawer.Request {
	return drawer.Request{
		Register: drawer.RegisterHint{Visible: o.RegisterID, Hidden: o.HiddenRegisterID},
		PageURL:  o.PageURL,
	}
}

// decodeOptional decodes a JSON body, accepting an empty one
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleOpenDrawer runs one drawer attempt
func (s *Server) handleOpenDrawer(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// A client that hangs up mid-attempt says nothing about the daemon.
	receipt, err := s.deps.Drawer.OpenDrawer(context.WithoutCancel(r.Context()), req.drawerRequest())
	if err != nil {
		kind := drawer.KindOf(err)
		writeJSON(w, statusFor(kind), map[string]interface{}{
			"success":     false,
			"kind":        kind.String(),
			"error":       err.Error(),
			"register_id": s.deps.Drawer.RegisterID(req.drawerRequest()),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"register_id": receipt.RegisterID,
		"printer":     receipt.Printer,
		"bytes":       byteList(receipt.Bytes),
		"duration_ms": receipt.Duration.Milliseconds(),
	})
}

func statusFor(k drawer.Kind) int {
	switch k {
	case drawer.KindOperationInProgress:
		return http.StatusConflict
	case drawer.KindDaemonUnavailable, drawer.KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// handleOperations returns recent drawer attempts, newest first
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	var ops []drawer.Record
	if s.deps.Operations != nil {
		ops = s.deps.Operations.Entries()
	}
	if ops == nil {
		ops = []drawer.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
	})
}

// handleNotices returns cashier notices, optionally filtered by ?level=a,b
func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if l := r.URL.Query().Get("level"); l != "" {
		levels = strings.Split(l, ",")
	}

	notices := []notify.Notice{}
	if s.deps.Notices != nil {
		notices = s.deps.Notices.Entries(levels)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notices": notices,
	})
}

// handleClearNotices empties the notice history
func (s *Server) handleClearNotices(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notices != nil {
		s.deps.Notices.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

type codeView struct {
	Pattern     string `json:"pattern"`
	Bytes       []int  `json:"bytes"`
	Description string `json:"description"`
}

func byteList(b []byte) []int {
	return lo.Map(b, func(v byte, _ int) int { return int(v) })
}

// handleCodes lists the printer code table, default entry last
func (s *Server) handleCodes(w http.ResponseWriter, r *http.Request) {
	codes := lo.Map(s.deps.Codes.Entries(), func(e printer.CodeEntry, _ int) codeView {
		return codeView{Pattern: e.Pattern, Bytes: byteList(e.Bytes), Description: e.Description}
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"codes": codes,
	})
}

// handleResolveCode resolves ?name= to its drawer code
func (s *Server) handleResolveCode(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	entry := s.deps.Codes.Lookup(name)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"printer":     name,
		"pattern":     entry.Pattern,
		"description": entry.Description,
		"bytes":       byteList(entry.Bytes),
	})
}

// handleReportPrinters lists the daemon's printers and forwards them to the backend
func (s *Server) handleReportPrinters(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	names, err := s.deps.Drawer.ReportPrinters(context.WithoutCancel(r.Context()), req.drawerRequest())
	if err != nil {
		kind := drawer.KindOf(err)
		writeJSON(w, statusFor(kind), map[string]interface{}{
			"success": false,
			"kind":    kind.String(),
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"printers": names,
	})
}

// handlePages returns the rules that apply to ?url=
func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	rules := s.deps.Engine.Detect(url)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":       url,
		"supported": len(rules) > 0,
		"rules":     rules,
	})
}

// handleUI serves the status page
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(webUI))
}
