package ws

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity.
type EventType string

const (
	EventTypeApproved  EventType = "approved"
	EventTypeCompleted EventType = "completed"
	EventTypeRecorded  EventType = "recorded"
	EventTypeAccrued   EventType = "accrued"
)

// EntityType represents the kind of entity an event is about.
type EntityType string

const (
	EntityTypeLoan      EntityType = "loan"
	EntityTypeLoanShare EntityType = "loan_share"
	EntityTypeRepayment EntityType = "repayment"
	EntityTypePenalty   EntityType = "penalty"
)

// Event is a message broadcast to clients watching a loan.
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"` // combined, e.g. "repayment.recorded"
	Entity    EntityType  `json:"entity"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates an event with the given type, entity, and payload.
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LoanApproved creates a loan.approved event.
func LoanApproved(payload interface{}) Event {
	return NewEvent(EventTypeApproved, EntityTypeLoan, payload)
}

// LoanCompleted creates a loan.completed event.
func LoanCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypeLoan, payload)
}

// ShareCompleted creates a loan_share.completed event.
func ShareCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypeLoanShare, payload)
}

// RepaymentRecorded creates a repayment.recorded event.
func RepaymentRecorded(payload interface{}) Event {
	return NewEvent(EventTypeRecorded, EntityTypeRepayment, payload)
}

// PenaltyAccrued creates a penalty.accrued event.
func PenaltyAccrued(payload interface{}) Event {
	return NewEvent(EventTypeAccrued, EntityTypePenalty, payload)
}
