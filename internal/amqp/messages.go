package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"uangku/internal/core"
)

// ErrMalformed marks a message that can never be processed.
var ErrMalformed = errors.New("malformed mirror message")

type Op string

const (
	OpSave   Op = "save"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// MirrorMessage carries one remote write. Transaction is nil for deletes.
type MirrorMessage struct {
	Op          Op                `json:"op"`
	ID          string            `json:"id"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewMirrorMessage(op Op, id string, tx *core.Transaction) *MirrorMessage {
	return &MirrorMessage{
		Op:          op,
		ID:          id,
		Transaction: tx,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *MirrorMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: empty id", ErrMalformed)
	}
	switch m.Op {
	case OpDelete:
		return nil
	case OpSave, OpUpdate:
		if m.Transaction == nil {
			return fmt.Errorf("%w: %s without transaction", ErrMalformed, m.Op)
		}
		if m.Transaction.ID != m.ID {
			return fmt.Errorf("%w: id %q does not match transaction %q", ErrMalformed, m.ID, m.Transaction.ID)
		}
		if err := m.Transaction.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", ErrMalformed, m.Op)
	}
}

func (m *MirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MirrorMessageFromJSON decodes and validates a message.
func MirrorMessageFromJSON(data []byte) (*MirrorMessage, error) {
	var msg MirrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
