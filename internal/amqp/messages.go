package amqp

import (
	"encoding/json"
	"time"
)

// Actions a queue message can carry.
const (
	ActionSync   = "sync"
	ActionDelete = "delete"
)

// TransactionMessage is the lightweight event published when a transaction
// changes. It carries only the id and action; the worker fetches the full
// record from storage, so a stale message can never overwrite newer data.
type TransactionMessage struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncMessage creates a message asking the worker to (re)sync a
// transaction to the ledger.
func NewSyncMessage(id int64) *TransactionMessage {
	return &TransactionMessage{ID: id, Action: ActionSync, Timestamp: time.Now()}
}

// NewDeleteMessage creates a message asking the worker to drop a
// transaction from the ledger.
func NewDeleteMessage(id int64) *TransactionMessage {
	return &TransactionMessage{ID: id, Action: ActionDelete, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func FromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
