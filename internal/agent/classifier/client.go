// Package classifier calls the local language model to extract structured
// data from an utterance. The call is advisory: whatever happens here, the
// caller gets a structurally valid payload, never an error.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/common/metrics"
)

// Completer is the single-call language model contract shared with the
// conversational responder.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds the language model connection settings.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// Client talks to an Ollama-compatible /api/generate endpoint.
type Client struct {
	config Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.WithFields(map[string]interface{}{
			"component": "classifier",
			"model":     config.Model,
		}),
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete sends one prompt and returns the model's raw text output.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(generateRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": c.config.Temperature,
		},
	})

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", apperrors.NewLLMTimeoutError()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.config.BaseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return "", apperrors.NewLLMSynthesisFailedError(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return "", apperrors.NewLLMTimeoutError()
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewLLMTimeoutError()
		}
		return "", apperrors.NewLLMSynthesisFailedError(lastErr)
	}
	if resp == nil {
		return "", apperrors.NewLLMSynthesisFailedError(
			fmt.Errorf("no successful response after %d retries", c.config.MaxRetries))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewLLMSynthesisFailedError(err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperrors.NewLLMSynthesisFailedError(err)
	}
	return strings.TrimSpace(out.Response), nil
}

// intentionTemplate is the fixed instruction sent for structured extraction.
const intentionTemplate = `<s>[INST] Eres un asistente virtual de una empresa. Analiza el siguiente mensaje del usuario y determina:
1. La intención del usuario (consulta, registro, modificación, eliminación, venta, facturación, otro)
2. Las entidades mencionadas (cliente, producto, venta, factura, detalle_venta)
3. La acción requerida (listar, buscar, crear, actualizar, eliminar, procesar_venta, generar_factura, actualizar_stock)
4. Los datos extraídos del mensaje

Mensaje del usuario: %s

IMPORTANTE: Debes responder ÚNICAMENTE con JSON válido, sin texto adicional.
Usa esta estructura exacta:
{
    "intention": "tipo de intención",
    "entities": ["entidades mencionadas"],
    "action": "acción requerida",
    "extracted_data": {
        "entidad1": {"campo1": "valor1", "campo2": "valor2"},
        "entidad2": {"campo1": "valor1"}
    }
}

IMPORTANTE: En caso de que no se pueda determinar la intencion o la intencion no sea alguna de las mencionadas, responde con la intención "otro" y en la entidad "otro" y en la acción "otro".

[/INST]</s>`

// Classify runs the extraction prompt over the message and returns the
// decoded payload. Every failure path degrades to the default payload.
func (c *Client) Classify(ctx context.Context, message string) *Payload {
	start := time.Now()
	raw, err := c.Complete(ctx, fmt.Sprintf(intentionTemplate, message))
	metrics.LLMCallDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCalls.WithLabelValues("classify", "error").Inc()
		c.logger.WithError(err).Warn("classification call failed, using default payload", nil)
		return DefaultPayload()
	}
	metrics.LLMCalls.WithLabelValues("classify", "success").Inc()
	return ExtractPayload(raw)
}
