// Package server exposes the dialog engine over HTTP: a JSON API for direct
// clients and a form webhook for SMS channel callbacks.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crm-agent/internal/common/config"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/gateway"
	"crm-agent/internal/models"
)

// Engine is the dialog entry point the server drives.
type Engine interface {
	ProcessMessage(ctx context.Context, conversationID, text string) *models.TurnResponse
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Server hosts the HTTP endpoints.
type Server struct {
	engine  Engine
	sender  gateway.Sender
	checks  map[string]HealthChecker
	logger  logger.Logger
	httpSrv *http.Server
}

func New(cfg config.ServerConfig, engine Engine, sender gateway.Sender, checks map[string]HealthChecker, log logger.Logger) *Server {
	s := &Server{
		engine: engine,
		sender: sender,
		checks: checks,
		logger: log.WithFields(map[string]interface{}{"component": "server"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", s.handleMessage)
	mux.HandleFunc("/webhook/channel", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
	}
	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", map[string]interface{}{"addr": s.httpSrv.Addr})
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleMessage serves direct API clients. The engine never fails a turn, so
// the reply is always 200 with a status field inside the body.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var in models.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if in.Text == "" || in.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message and session_id are required"})
		return
	}

	resp := s.engine.ProcessMessage(r.Context(), in.SessionID, in.Text)
	writeJSON(w, http.StatusOK, resp)
}

// handleWebhook serves channel provider callbacks (Twilio-style form posts).
// The reply goes back out through the configured gateway; the webhook body
// itself only acknowledges receipt.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" || body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "From and Body are required"})
		return
	}

	resp := s.engine.ProcessMessage(r.Context(), from, body)

	if err := s.sender.Send(r.Context(), from, resp.Message); err != nil {
		s.logger.WithError(err).Error("reply delivery failed", map[string]interface{}{"to": from})
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "reply delivery failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deps := map[string]string{}
	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = "unreachable"
			healthy = false
			continue
		}
		deps[name] = "ok"
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":       overall,
		"dependencies": deps,
	})
}
