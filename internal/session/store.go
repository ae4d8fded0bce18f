// Package session persists per-conversation dialog state in Redis. A stored
// pending action carries only the identifying triple of its intent; the full
// catalog entry is re-derived on load.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"crm-agent/internal/agent/intent"
	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
)

const keyPrefix = "session:"

// State is the dialog state of one conversation. A nil PendingIntent means
// the conversation is idle.
type State struct {
	PendingIntent  *intent.Intent
	PendingData    map[string]map[string]interface{}
	CurrentPurpose string
}

// Idle reports whether nothing is awaiting confirmation.
func (s *State) Idle() bool {
	return s == nil || s.PendingIntent == nil
}

// serialized is the wire format. The intent is reduced to its triple.
type serialized struct {
	PendingAction  *serializedAction                 `json:"pending_action"`
	PendingData    map[string]map[string]interface{} `json:"pending_data"`
	CurrentPurpose *string                           `json:"current_purpose"`
}

type serializedAction struct {
	Type     string   `json:"type"`
	Entities []string `json:"entities"`
	Action   string   `json:"action"`
}

// Store reads and writes conversation state.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "session"}),
	}
}

// Save persists the state for a conversation id. Idle states are stored
// too, so an executed action durably clears its pending record.
func (s *Store) Save(ctx context.Context, conversationID string, state *State) error {
	rec := serialized{
		PendingData: state.PendingData,
	}
	if state.PendingIntent != nil {
		labels := make([]string, len(state.PendingIntent.Entities))
		for i, e := range state.PendingIntent.Entities {
			labels[i] = string(e)
		}
		rec.PendingAction = &serializedAction{
			Type:     string(state.PendingIntent.Category),
			Entities: labels,
			Action:   string(state.PendingIntent.Action),
		}
	}
	if state.CurrentPurpose != "" {
		rec.CurrentPurpose = &state.CurrentPurpose
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return apperrors.NewSessionSaveFailedError(conversationID, err)
	}
	if err := s.client.Set(ctx, keyPrefix+conversationID, raw, s.ttl).Err(); err != nil {
		return apperrors.NewSessionSaveFailedError(conversationID, err)
	}
	return nil
}

// Load returns the stored state for a conversation id. A missing record is
// a valid idle state. A stored triple that no longer matches any catalog
// entry reconstructs to idle and is logged, never raised.
func (s *Store) Load(ctx context.Context, conversationID string) (*State, error) {
	raw, err := s.client.Get(ctx, keyPrefix+conversationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{}, nil
	}
	if err != nil {
		return nil, apperrors.NewSessionLoadFailedError(conversationID, err)
	}

	var rec serialized
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, apperrors.NewSessionLoadFailedError(conversationID, err)
	}

	state := &State{PendingData: rec.PendingData}
	if rec.CurrentPurpose != nil {
		state.CurrentPurpose = *rec.CurrentPurpose
	}
	if rec.PendingAction != nil {
		entities := make([]intent.Entity, len(rec.PendingAction.Entities))
		for i, label := range rec.PendingAction.Entities {
			entities[i] = intent.Entity(label)
		}
		state.PendingIntent = intent.FindByTriple(
			intent.Category(rec.PendingAction.Type),
			entities,
			intent.Action(rec.PendingAction.Action),
		)
		if state.PendingIntent == nil {
			s.logger.Warn("stored intent triple matches no catalog entry, resetting to idle", map[string]interface{}{
				"conversationId": conversationID,
				"type":           rec.PendingAction.Type,
				"action":         rec.PendingAction.Action,
			})
			state.PendingData = nil
			state.CurrentPurpose = ""
		}
	}
	return state, nil
}

// Delete removes the stored state for a conversation id.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, keyPrefix+conversationID).Err(); err != nil {
		return apperrors.NewSessionSaveFailedError(conversationID, err)
	}
	return nil
}
