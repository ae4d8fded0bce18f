package responder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-agent/internal/common/logger"
	"crm-agent/internal/models"
)

// stubCompleter returns a canned reply or error.
type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func conversationType(t *testing.T, resp *models.TurnResponse) string {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	return data["conversation_type"].(string)
}

func TestResponder_FixedBranches(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		convType string
	}{
		{name: "greeting", message: "hola", convType: TypeGreeting},
		{name: "greeting accented", message: "Buenos días", convType: TypeGreeting},
		{name: "goodbye", message: "adiós, hasta luego", convType: TypeGoodbye},
		{name: "thanks", message: "muchas gracias", convType: TypeThanks},
		{name: "identity", message: "¿quién eres?", convType: TypeIdentity},
		{name: "capabilities", message: "¿qué puedes hacer?", convType: TypeCapabilities},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{}
			r := New(stub, logger.NewNoOpLogger())

			resp := r.Respond(context.Background(), tt.message)
			assert.Equal(t, models.StatusSuccess, resp.Status)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, tt.convType, conversationType(t, resp))
			assert.Zero(t, stub.calls, "fixed branches must not call the model")
		})
	}
}

func TestResponder_BranchOrder(t *testing.T) {
	// "hola, gracias por todo" hits both greeting and thanks keywords; the
	// greeting branch is checked first.
	r := New(&stubCompleter{}, logger.NewNoOpLogger())
	resp := r.Respond(context.Background(), "hola, gracias por todo")
	assert.Equal(t, TypeGreeting, conversationType(t, resp))
}

func TestResponder_GeneralDelegatesToModel(t *testing.T) {
	stub := &stubCompleter{reply: "  Claro, puedo ayudarte con eso.  "}
	r := New(stub, logger.NewNoOpLogger())

	resp := r.Respond(context.Background(), "cuéntame un poco del clima de negocios")
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "Claro, puedo ayudarte con eso.", resp.Message)
	assert.Equal(t, TypeGeneral, conversationType(t, resp))
	assert.Equal(t, 1, stub.calls)
}

func TestResponder_ModelFailureFallsBack(t *testing.T) {
	stub := &stubCompleter{err: errors.New("model unavailable")}
	r := New(stub, logger.NewNoOpLogger())

	resp := r.Respond(context.Background(), "mensaje sin categoría fija")
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Contains(t, resp.Message, "¿Te interesa conocer información")
	assert.Equal(t, TypeFallback, conversationType(t, resp))
}

func TestResponder_EmptyModelReplyFallsBack(t *testing.T) {
	stub := &stubCompleter{reply: "   "}
	r := New(stub, logger.NewNoOpLogger())

	resp := r.Respond(context.Background(), "mensaje sin categoría fija")
	assert.Equal(t, TypeFallback, conversationType(t, resp))
}
