// Package agent implements the dialog engine: intent resolution over free
// text, the two-turn confirm-then-execute state machine, and dispatch of
// confirmed actions against storage.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"crm-agent/internal/agent/classifier"
	"crm-agent/internal/agent/intent"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/common/metrics"
	"crm-agent/internal/models"
	"crm-agent/internal/session"
)

// Confirmation policies. Legacy executes the pending action on any
// follow-up message; strict gates execution on an affirmative keyword
// and discards on a negative one.
const (
	ConfirmPolicyStrict = "strict"
	ConfirmPolicyLegacy = "legacy"
)

const nextTaskPrompt = "¿Qué otra tarea desea realizar?"

// Classifier extracts structured data from an utterance. Always returns a
// valid payload.
type Classifier interface {
	Classify(ctx context.Context, message string) *classifier.Payload
}

// Conversationalist answers small-talk messages.
type Conversationalist interface {
	Respond(ctx context.Context, message string) *models.TurnResponse
}

// SessionStore persists per-conversation dialog state.
type SessionStore interface {
	Load(ctx context.Context, conversationID string) (*session.State, error)
	Save(ctx context.Context, conversationID string, state *session.State) error
}

// Engine processes one turn at a time per conversation.
type Engine struct {
	classifier    Classifier
	responder     Conversationalist
	dispatcher    *Dispatcher
	sessions      SessionStore
	confirmPolicy string
	logger        logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(cls Classifier, responder Conversationalist, dispatcher *Dispatcher, sessions SessionStore, confirmPolicy string, log logger.Logger) *Engine {
	if confirmPolicy == "" {
		confirmPolicy = ConfirmPolicyStrict
	}
	return &Engine{
		classifier:    cls,
		responder:     responder,
		dispatcher:    dispatcher,
		sessions:      sessions,
		confirmPolicy: confirmPolicy,
		logger:        log.WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// lockConversation returns the mutex serializing turns for one id. Session
// load-modify-save would race without it.
func (e *Engine) lockConversation(conversationID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locks == nil {
		e.locks = make(map[string]*sync.Mutex)
	}
	m, ok := e.locks[conversationID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[conversationID] = m
	}
	return m
}

func errorReply(message string) *models.TurnResponse {
	return &models.TurnResponse{
		Status:  models.StatusError,
		Message: message,
	}
}

// ProcessMessage runs one dialog turn. It always returns a reply; internal
// failures are logged and surfaced as generic error replies.
func (e *Engine) ProcessMessage(ctx context.Context, conversationID, text string) *models.TurnResponse {
	lock := e.lockConversation(conversationID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	log := e.logger.WithFields(map[string]interface{}{"conversationId": conversationID})
	log.Info("processing message", map[string]interface{}{"length": len(text)})

	state, err := e.sessions.Load(ctx, conversationID)
	if err != nil {
		log.WithError(err).Error("session load failed", nil)
		metrics.TurnsFailed.WithLabelValues("unknown", "SESSION_LOAD_FAILED").Inc()
		return errorReply("Ocurrió un error al procesar el mensaje.\n" + nextTaskPrompt)
	}

	var resp *models.TurnResponse
	var intentKey string
	if !state.Idle() {
		intentKey = state.PendingIntent.Key
		resp = e.handlePendingTurn(ctx, conversationID, state, text, log)
	} else {
		resp, intentKey = e.handleFreshTurn(ctx, conversationID, state, text, log)
	}

	metrics.TurnsProcessed.WithLabelValues(intentKey, resp.Status).Inc()
	metrics.TurnDuration.WithLabelValues(intentKey).Observe(time.Since(start).Seconds())
	return resp
}

// handlePendingTurn resolves the second turn of the confirm-then-execute
// cycle. Whatever happens, the pending state is cleared before replying,
// except for a strict-policy re-prompt which keeps it intact.
func (e *Engine) handlePendingTurn(ctx context.Context, conversationID string, state *session.State, text string, log logger.Logger) *models.TurnResponse {
	normalized := intent.Normalize(text)

	if e.confirmPolicy == ConfirmPolicyStrict {
		switch {
		case intent.IsNegation(normalized):
			e.resetState(ctx, conversationID, state, log)
			return &models.TurnResponse{
				Status:  models.StatusSuccess,
				Message: "Acción cancelada.\n" + nextTaskPrompt,
			}
		case intent.IsConfirmation(normalized):
			// fall through to execution
		default:
			// Neither yes nor no: keep the pending action and ask again.
			return &models.TurnResponse{
				Status:  models.StatusConfirmationRequired,
				Message: fmt.Sprintf("Hay una acción pendiente: %s.\n¿Deseas que proceda con esta acción? (Responde 'sí' o 'no')", state.CurrentPurpose),
				Data: map[string]interface{}{
					"intention": string(state.PendingIntent.Category),
					"action":    string(state.PendingIntent.Action),
				},
			}
		}
	}

	pending := state.PendingIntent
	pendingData := state.PendingData

	result, execErr := e.dispatcher.Execute(ctx, pending, pendingData)

	// Pending state is cleared unconditionally, on success and on failure.
	e.resetState(ctx, conversationID, state, log)

	if execErr != nil {
		log.WithError(execErr).Error("action execution failed", map[string]interface{}{
			"intent": pending.Key,
		})
		metrics.TurnsFailed.WithLabelValues(pending.Key, "EXECUTION_FAILED").Inc()
		return errorReply("Ocurrió un error al ejecutar la acción solicitada.\n" + nextTaskPrompt)
	}

	entityLabels := make([]string, len(pending.Entities))
	for i, en := range pending.Entities {
		entityLabels[i] = string(en)
	}
	return &models.TurnResponse{
		Status:  models.StatusSuccess,
		Message: fmt.Sprintf("%s\n\n%s", FormatResult(result), nextTaskPrompt),
		Data: map[string]interface{}{
			"intention": string(pending.Category),
			"entities":  entityLabels,
			"action":    string(pending.Action),
			"result":    result,
		},
	}
}

// handleFreshTurn resolves a message with no pending action: orphan
// confirmations, small talk, or a new intent awaiting confirmation.
func (e *Engine) handleFreshTurn(ctx context.Context, conversationID string, state *session.State, text string, log logger.Logger) (*models.TurnResponse, string) {
	normalized := intent.Normalize(text)

	if intent.IsConfirmation(normalized) || intent.IsNegation(normalized) {
		log.Warn("confirmation received with no pending action", nil)
		return errorReply("No hay ninguna acción pendiente para confirmar o cancelar. ¿Qué tarea desea realizar?"), "none"
	}

	matched := intent.Match(text)
	if matched == nil {
		// Unreachable: confirmations were handled above. Kept as a guard.
		return errorReply("No se pudo determinar la intención del mensaje. ¿Qué tarea desea realizar?"), "none"
	}

	if matched.Category == intent.CategoryConversacion {
		return e.responder.Respond(ctx, text), matched.Key
	}

	// The classifier call is advisory: it only contributes extracted data.
	// The matched intent label is authoritative.
	payload := e.classifier.Classify(ctx, text)

	entityLabels := make([]string, len(matched.Entities))
	for i, en := range matched.Entities {
		entityLabels[i] = string(en)
	}

	state.PendingIntent = matched
	state.PendingData = payload.ExtractedData
	state.CurrentPurpose = fmt.Sprintf("Realizar %s en %s", matched.Action, strings.Join(entityLabels, ", "))

	if err := e.sessions.Save(ctx, conversationID, state); err != nil {
		log.WithError(err).Error("session save failed", nil)
		metrics.TurnsFailed.WithLabelValues(matched.Key, "SESSION_SAVE_FAILED").Inc()
		return errorReply("Ocurrió un error al procesar el mensaje.\n" + nextTaskPrompt), matched.Key
	}
	metrics.SessionsActive.WithLabelValues(matched.Key).Inc()

	extracted, _ := json.MarshalIndent(payload.ExtractedData, "", "  ")
	message := "Detecté que deseas realizar la siguiente acción:\n"
	message += fmt.Sprintf("Intención: %s\n", matched.Category)
	message += fmt.Sprintf("Entidades: %s\n", strings.Join(entityLabels, ", "))
	message += fmt.Sprintf("Acción: %s\n", matched.Action)
	message += fmt.Sprintf("Datos extraídos: %s\n\n", extracted)
	message += "¿Deseas que proceda con esta acción? (Responde 'sí' o 'no')"

	return &models.TurnResponse{
		Status:  models.StatusConfirmationRequired,
		Message: message,
		Data: map[string]interface{}{
			"intention":      string(matched.Category),
			"entities":       entityLabels,
			"action":         string(matched.Action),
			"extracted_data": payload.ExtractedData,
		},
	}, matched.Key
}

// resetState clears pending state and persists the idle record. A save
// failure here is logged but does not change the user-facing outcome.
func (e *Engine) resetState(ctx context.Context, conversationID string, state *session.State, log logger.Logger) {
	if state.PendingIntent != nil {
		metrics.SessionsActive.WithLabelValues(state.PendingIntent.Key).Dec()
	}
	state.PendingIntent = nil
	state.PendingData = nil
	state.CurrentPurpose = ""
	if err := e.sessions.Save(ctx, conversationID, state); err != nil {
		log.WithError(err).Error("failed to persist idle state", nil)
	}
}
