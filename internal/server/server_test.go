package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-agent/internal/common/config"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/models"
)

type stubEngine struct {
	conversationID string
	text           string
	reply          *models.TurnResponse
}

func (s *stubEngine) ProcessMessage(ctx context.Context, conversationID, text string) *models.TurnResponse {
	s.conversationID = conversationID
	s.text = text
	return s.reply
}

type stubSender struct {
	to   string
	body string
	err  error
}

func (s *stubSender) Send(ctx context.Context, to, body string) error {
	s.to = to
	s.body = body
	return s.err
}

func newTestServer(engine *stubEngine, sender *stubSender, checks map[string]HealthChecker) *Server {
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: 1000, WriteTimeout: 1000}
	return New(cfg, engine, sender, checks, logger.NewNoOpLogger())
}

func TestHandleMessage(t *testing.T) {
	engine := &stubEngine{reply: &models.TurnResponse{Status: models.StatusSuccess, Message: "hecho"}}
	srv := newTestServer(engine, &stubSender{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"message": "lista de clientes", "session_id": "conv-1"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "conv-1", engine.conversationID)
	assert.Equal(t, "lista de clientes", engine.text)

	var body models.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.StatusSuccess, body.Status)
	assert.Equal(t, "hecho", body.Message)
}

func TestHandleMessage_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing message", `{"session_id": "conv-1"}`},
		{"missing session", `{"message": "hola"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubEngine{}, &stubSender{}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleMessage_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubEngine{}, &stubSender{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/message", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleWebhook(t *testing.T) {
	engine := &stubEngine{reply: &models.TurnResponse{Status: models.StatusSuccess, Message: "respuesta"}}
	sender := &stubSender{}
	srv := newTestServer(engine, sender, nil)

	form := url.Values{"From": {"+15550001111"}, "Body": {"hola"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/channel", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// The conversation is keyed by the sender's number.
	assert.Equal(t, "+15550001111", engine.conversationID)
	assert.Equal(t, "+15550001111", sender.to)
	assert.Equal(t, "respuesta", sender.body)
}

func TestHandleWebhook_DeliveryFailure(t *testing.T) {
	engine := &stubEngine{reply: &models.TurnResponse{Status: models.StatusSuccess, Message: "respuesta"}}
	sender := &stubSender{err: errors.New("twilio down")}
	srv := newTestServer(engine, sender, nil)

	form := url.Values{"From": {"+15550001111"}, "Body": {"hola"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/channel", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleWebhook_MissingFields(t *testing.T) {
	srv := newTestServer(&stubEngine{}, &stubSender{}, nil)

	form := url.Values{"From": {"+15550001111"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/channel", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	checks := map[string]HealthChecker{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return nil },
	}
	srv := newTestServer(&stubEngine{}, &stubSender{}, checks)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleHealth_Degraded(t *testing.T) {
	checks := map[string]HealthChecker{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("down") },
	}
	srv := newTestServer(&stubEngine{}, &stubSender{}, checks)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "unreachable", deps["redis"])
}
