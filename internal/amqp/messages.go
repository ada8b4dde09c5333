package amqp

import (
	"encoding/json"
	"time"

	"bilancio/internal/core"
)

// Data change events.
const (
	EventChanged = "changed"
	EventReset   = "reset"
)

// DataChangedMessage announces a write to the store. Consumers drop any
// derived state; the message carries just enough to log what happened.
type DataChangedMessage struct {
	Event     string    `json:"event"`
	Entity    string    `json:"entity,omitempty"`
	Operation string    `json:"operation,omitempty"`
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDataChangedMessage(entity, operation string, id int64) *DataChangedMessage {
	return &DataChangedMessage{
		Event:     EventChanged,
		Entity:    entity,
		Operation: operation,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func NewDataResetMessage() *DataChangedMessage {
	return &DataChangedMessage{Event: EventReset, Timestamp: time.Now().UTC()}
}

func (m *DataChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DataChangedMessageFromJSON(data []byte) (*DataChangedMessage, error) {
	var msg DataChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// OccurrenceDueMessage announces that an entry has an occurrence today.
type OccurrenceDueMessage struct {
	Kind       core.Kind  `json:"kind"`
	EntryID    int64      `json:"entry_id"`
	Name       string     `json:"name"`
	Date       core.Date  `json:"date"`
	Amount     core.Money `json:"amount"`
	CategoryID *int64     `json:"expense_category_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func NewOccurrenceDueMessage(o core.Occurrence) *OccurrenceDueMessage {
	return &OccurrenceDueMessage{
		Kind:       o.Kind,
		EntryID:    o.EntryID,
		Name:       o.Name,
		Date:       o.Date,
		Amount:     o.Amount,
		CategoryID: o.CategoryID,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *OccurrenceDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func OccurrenceDueMessageFromJSON(data []byte) (*OccurrenceDueMessage, error) {
	var msg OccurrenceDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
