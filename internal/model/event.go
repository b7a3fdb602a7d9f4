package model

import "time"

// Event represents a capacity-limited gathering that people can register
// for (a retreat, a youth camp, a baptism class).  Events are created and
// edited from the admin back office.  This struct corresponds to a row in
// the `events` table.
//
// Fields:
//  ID                   – opaque primary key (UUID string).
//  Slug                 – unique human-readable identifier used in public URLs.
//  Title                – display title.
//  Description          – long-form description.
//  Date                 – calendar date of the event (YYYY-MM-DD).
//  Time                 – local start time as entered by staff (e.g. "18:30").
//  Location             – where the event takes place.
//  Capacity             – maximum number of occupying registrations.
//  CurrentRegistrations – occupying registrations counted against Capacity.
//  IsActive             – whether the event accepts registrations and is listed.
//  CreatedAt            – creation timestamp.
//  UpdatedAt            – last update timestamp.
type Event struct {
	ID                   string    `json:"id"`                    // events.id
	Slug                 string    `json:"slug"`                  // events.slug
	Title                string    `json:"title"`                 // events.title
	Description          string    `json:"description"`           // events.description
	Date                 string    `json:"date"`                  // events.event_date
	Time                 string    `json:"time"`                  // events.event_time
	Location             string    `json:"location"`              // events.location
	Capacity             int       `json:"capacity"`              // events.capacity
	CurrentRegistrations int       `json:"current_registrations"` // events.current_registrations
	IsActive             bool      `json:"is_active"`             // events.is_active
	CreatedAt            time.Time `json:"created_at"`            // events.created_at
	UpdatedAt            time.Time `json:"updated_at"`            // events.updated_at
}

// Remaining returns the number of seats still open.
func (e *Event) Remaining() int {
	if n := e.Capacity - e.CurrentRegistrations; n > 0 {
		return n
	}
	return 0
}

// IsFull reports whether no seats remain.
func (e *Event) IsFull() bool {
	return e.CurrentRegistrations >= e.Capacity
}
