package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened to the ledger.
type EventKind string

const (
	TransactionRecorded EventKind = "transaction.recorded"
	TransactionEdited   EventKind = "transaction.edited"
	TransactionDeleted  EventKind = "transaction.deleted"
	PaycheckProcessed   EventKind = "paycheck.processed"
	WeekClosed          EventKind = "week.closed"
	LedgerRepaired      EventKind = "ledger.repaired"
)

// BucketRef points at an account ("savings") or bill whose balance moved.
type BucketRef struct {
	EntityType string `json:"entity_type"`
	ID         int64  `json:"id"`
}

// LedgerEvent is published after a ledger mutation commits. It carries
// references only; consumers read current state from the database.
type LedgerEvent struct {
	ID            string      `json:"id"`
	Kind          EventKind   `json:"kind"`
	TransactionID int64       `json:"transaction_id,omitempty"`
	WeekNumber    int64       `json:"week_number,omitempty"`
	AmountCents   int64       `json:"amount_cents"`
	Buckets       []BucketRef `json:"buckets,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh id and the current time.
func NewLedgerEvent(kind EventKind) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// Touch adds a bucket reference once.
func (e *LedgerEvent) Touch(entityType string, id int64) *LedgerEvent {
	if id == 0 {
		return e
	}
	for _, b := range e.Buckets {
		if b.EntityType == entityType && b.ID == id {
			return e
		}
	}
	e.Buckets = append(e.Buckets, BucketRef{EntityType: entityType, ID: id})
	return e
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Kind == "" {
		return nil, fmt.Errorf("ledger event %q has no kind", e.ID)
	}
	return &e, nil
}
