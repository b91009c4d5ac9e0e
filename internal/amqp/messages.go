package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEvent is published after every successful state rewrite so other
// processes can follow the ledger without reading the state record.
type LedgerEvent struct {
	Action    string           `json:"action"`
	Month     string           `json:"month,omitempty"`
	Member    string           `json:"member,omitempty"`
	PerHead   int64            `json:"per_head"`
	Debts     map[string]int64 `json:"debts"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewLedgerEvent stamps an event with the current time.
func NewLedgerEvent(action string) *LedgerEvent {
	return &LedgerEvent{
		Action:    action,
		Debts:     map[string]int64{},
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON creates a message from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
