// Package responder handles the small-talk branch of the dialog: greetings,
// farewells, thanks, identity and capability questions, with a language
// model fallback for anything else. It never touches conversation state.
package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-agent/internal/agent/classifier"
	"crm-agent/internal/agent/intent"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/common/metrics"
	"crm-agent/internal/models"
)

// ConversationType labels what kind of small talk was detected.
const (
	TypeGreeting     = "greeting"
	TypeGoodbye      = "goodbye"
	TypeThanks       = "thanks"
	TypeIdentity     = "identity"
	TypeCapabilities = "capabilities"
	TypeGeneral      = "general"
	TypeFallback     = "fallback"
)

// Branch keyword sets, checked in this fixed order against normalized text.
var (
	greetingKeywords   = []string{"hola", "buenos dias", "buenas tardes", "buenas noches", "saludos"}
	goodbyeKeywords    = []string{"adios", "hasta luego", "nos vemos", "chao", "bye"}
	thanksKeywords     = []string{"gracias", "muchas gracias", "te agradezco", "thanks"}
	identityKeywords   = []string{"quien eres", "como te llamas", "tu nombre", "que eres"}
	capabilityKeywords = []string{"que puedes hacer", "como funciona", "ayuda", "ayudame", "help"}
)

const (
	greetingReply = "¡Hola! Soy el asistente virtual de la empresa. Puedo ayudarte con la gestión de clientes, productos, ventas y facturas. ¿En qué puedo ayudarte hoy?"
	goodbyeReply  = "¡Hasta luego! Si necesitas algo más, estaré aquí para ayudarte."
	thanksReply   = "¡De nada! Estoy aquí para ayudarte. ¿Hay algo más en lo que pueda asistirte?"
	identityReply = "Soy el asistente virtual de la empresa, diseñado para ayudarte con la gestión de clientes, productos, ventas y facturas. Puedo realizar operaciones como listar, buscar, crear y actualizar registros."
	fallbackReply = "Entiendo lo que quieres decir. ¿Te interesa conocer información sobre nuestros clientes o productos? Puedes pedirme que te muestre listas o te ayude a registrar nueva información."

	capabilitiesReply = "Puedo ayudarte con las siguientes tareas:\n\n" +
		"📋 **Clientes**: Listar, buscar, crear, actualizar y eliminar clientes\n" +
		"📦 **Productos**: Listar, buscar, crear, actualizar y eliminar productos\n" +
		"💰 **Ventas**: Crear y consultar ventas\n" +
		"🧾 **Facturas**: Generar y consultar facturas\n\n" +
		"Puedes pedirme, por ejemplo: \"Listar clientes\", \"Crear un nuevo cliente\" o \"Muestra los productos\"."
)

const generalPromptTemplate = `Eres un asistente de empresa amable y profesional. El usuario te ha enviado este mensaje:
"%s"

Genera una respuesta breve y útil, recordando que tu función principal es ayudar con gestión de clientes, productos, ventas y facturas.
Mantén tu respuesta en menos de 3 frases. Si no estás seguro de qué responder, sugiere acciones relacionadas con la gestión empresarial.`

// Responder resolves conversational messages.
type Responder struct {
	llm    classifier.Completer
	logger logger.Logger
}

func New(llm classifier.Completer, log logger.Logger) *Responder {
	return &Responder{
		llm:    llm,
		logger: log.WithFields(map[string]interface{}{"component": "responder"}),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Respond classifies the message into a fixed branch, or asks the model for
// a short reply. Model failure degrades to a static suggestion; the reply
// status is success either way.
func (r *Responder) Respond(ctx context.Context, message string) *models.TurnResponse {
	normalized := intent.Normalize(message)

	branches := []struct {
		keywords []string
		reply    string
		convType string
	}{
		{greetingKeywords, greetingReply, TypeGreeting},
		{goodbyeKeywords, goodbyeReply, TypeGoodbye},
		{thanksKeywords, thanksReply, TypeThanks},
		{identityKeywords, identityReply, TypeIdentity},
		{capabilityKeywords, capabilitiesReply, TypeCapabilities},
	}
	for _, b := range branches {
		if containsAny(normalized, b.keywords) {
			return &models.TurnResponse{
				Status:  models.StatusSuccess,
				Message: b.reply,
				Data:    map[string]interface{}{"conversation_type": b.convType},
			}
		}
	}

	start := time.Now()
	reply, err := r.llm.Complete(ctx, fmt.Sprintf(generalPromptTemplate, message))
	metrics.LLMCallDuration.WithLabelValues("converse").Observe(time.Since(start).Seconds())
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			metrics.LLMCalls.WithLabelValues("converse", "error").Inc()
			r.logger.WithError(err).Warn("conversational completion failed, using fallback reply", nil)
		}
		return &models.TurnResponse{
			Status:  models.StatusSuccess,
			Message: fallbackReply,
			Data:    map[string]interface{}{"conversation_type": TypeFallback},
		}
	}
	metrics.LLMCalls.WithLabelValues("converse", "success").Inc()

	return &models.TurnResponse{
		Status:  models.StatusSuccess,
		Message: strings.TrimSpace(reply),
		Data:    map[string]interface{}{"conversation_type": TypeGeneral},
	}
}
