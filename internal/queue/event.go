// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// Registration lifecycle event types.
const (
	TypeRegistrationCreated       = "registration.created"
	TypeRegistrationStatusChanged = "registration.status_changed"
	TypeRegistrationDeleted       = "registration.deleted"
)

// RegistrationEvent is published after a registration change has been
// committed.  It carries enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary database.
type RegistrationEvent struct {
	Type                 string `json:"type"`
	RegistrationID       string `json:"registration_id"`
	EventID              string `json:"event_id"`
	Email                string `json:"email"`
	Name                 string `json:"name"`
	Status               string `json:"status"`
	PreviousStatus       string `json:"previous_status,omitempty"`
	CurrentRegistrations int    `json:"current_registrations"`
	Capacity             int    `json:"capacity"`
	OccurredAt           string `json:"occurred_at"`
}
