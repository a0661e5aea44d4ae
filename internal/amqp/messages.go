package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Event kinds published after ledger writes.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
	// KindRefresh asks the worker to recompute a month without a ledger change.
	KindRefresh = "refresh"
)

var errIncompleteEvent = errors.New("ledger event needs a year and a month between 1 and 12")

// LedgerEvent announces a change to a ledger collection. It carries only the
// identifiers; the worker reloads whatever it needs from the store.
type LedgerEvent struct {
	Kind       string    `json:"kind"`
	Collection string    `json:"collection"`
	RecordID   string    `json:"record_id"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(kind, collection, recordID string, year, month int) *LedgerEvent {
	return &LedgerEvent{
		Kind:       kind,
		Collection: collection,
		RecordID:   recordID,
		Year:       year,
		Month:      month,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects one without a usable
// period.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Year <= 0 || e.Month < 1 || e.Month > 12 {
		return nil, errIncompleteEvent
	}
	return &e, nil
}
