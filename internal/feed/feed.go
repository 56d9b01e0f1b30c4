// Package feed defines the change notification exchanged between clients
// over the broker and the websocket stream.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entities
const (
	EntityGroup      = "group"
	EntityExpense    = "expense"
	EntitySettlement = "settlement"
	EntityVote       = "vote"
)

// Actions
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionConfirmed = "confirmed"
	ActionToggled   = "toggled"
	ActionClosed    = "closed"
)

var ErrInvalidMessage = errors.New("invalid feed message")

// Message tells other clients that an entity changed. Receivers refetch;
// the message carries identifiers only.
type Message struct {
	Type      string            `json:"type"`
	Entity    string            `json:"entity"`
	Action    string            `json:"action"`
	ID        string            `json:"id,omitempty"`
	GroupID   string            `json:"groupId,omitempty"`
	ExpenseID string            `json:"expenseId,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewMessage creates a Message with Type derived from entity and action.
func NewMessage(entity, action, id string) Message {
	return Message{
		Type:      fmt.Sprintf("%s_%s", entity, action),
		Entity:    entity,
		Action:    action,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// In sets the group and expense the change belongs to.
func (m Message) In(groupID, expenseID string) Message {
	m.GroupID = groupID
	m.ExpenseID = expenseID
	return m
}

func (m Message) Validate() error {
	switch m.Entity {
	case EntityGroup, EntityExpense, EntitySettlement, EntityVote:
	default:
		return fmt.Errorf("%w: unknown entity %q", ErrInvalidMessage, m.Entity)
	}
	if m.Action == "" {
		return fmt.Errorf("%w: missing action", ErrInvalidMessage)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes and validates a message.
func MessageFromJSON(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.Type == "" {
		m.Type = m.Entity + "_" + m.Action
	}
	return m, m.Validate()
}

// Publisher sends change notifications.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// Handler processes one received notification.
type Handler func(ctx context.Context, m Message) error

