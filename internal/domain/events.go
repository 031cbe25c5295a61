package domain

import "time"

// EventType identifies an engine lifecycle or settlement event.
type EventType string

const (
	EventEntered   EventType = "entered"
	EventStatus    EventType = "status_changed"
	EventPriceSet  EventType = "price_set"
	EventFinalized EventType = "finalized"
	EventCancelled EventType = "cancelled"
	EventClaimed   EventType = "claimed"
	EventFeeSwept  EventType = "fee_swept"
	EventRefunded  EventType = "refunded"
	EventWhitelist EventType = "whitelist_changed"
	EventConfigSet EventType = "config_updated"
)

// Event is a broadcastable notification emitted after a transaction commits.
// Events are advisory: engine correctness never depends on their delivery.
type Event struct {
	Type      EventType   `json:"type"`
	ArenaID   int64       `json:"arena_id,omitempty"`
	SlotIndex int16       `json:"slot_index,omitempty"`
	Player    Identity    `json:"player,omitempty"`
	Status    ArenaStatus `json:"status,omitempty"`
	Amount    int64       `json:"amount,omitempty"`
	At        time.Time   `json:"at"`
}

// EventSink receives committed events. Implementations must not block.
type EventSink interface {
	Publish(ev Event)
}
