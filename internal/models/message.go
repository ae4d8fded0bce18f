// internal/models/message.go
package models

// Turn statuses returned to channels.
const (
	StatusSuccess              = "success"
	StatusError                = "error"
	StatusConfirmationRequired = "confirmation_required"
)

// InboundMessage is one user utterance arriving on any channel. The session
// id doubles as the conversation key.
type InboundMessage struct {
	SessionID string `json:"session_id"`
	Text      string `json:"message"`
}

// TurnResponse is the engine's reply for one turn.
type TurnResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
