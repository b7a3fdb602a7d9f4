package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration.  Values are
// always stored and serialized in upper case.
type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "PENDING"
	StatusConfirmed RegistrationStatus = "CONFIRMED"
	StatusCancelled RegistrationStatus = "CANCELLED"
	StatusWaitlist  RegistrationStatus = "WAITLIST"
)

// ErrUnknownStatus is returned when a status string is not one of the four
// known values.
var ErrUnknownStatus = errors.New("unknown registration status")

// Statuses lists every valid status in display order.
var Statuses = []RegistrationStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusWaitlist}

// ParseStatus normalizes s and returns the matching status.  Matching is
// case-insensitive so that "confirmed" and "CONFIRMED" are the same value.
func ParseStatus(s string) (RegistrationStatus, error) {
	v := RegistrationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", ErrUnknownStatus
	}
	return v, nil
}

// Valid reports whether st is one of the known statuses.
func (st RegistrationStatus) Valid() bool {
	switch st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusWaitlist:
		return true
	}
	return false
}

// Occupying reports whether a registration in this status holds a seat.
// WAITLIST is reserved and never counts against capacity.
func (st RegistrationStatus) Occupying() bool {
	return st == StatusPending || st == StatusConfirmed
}

func (st RegistrationStatus) String() string { return string(st) }

// UnmarshalJSON accepts any casing and rejects unknown values.
func (st *RegistrationStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*st = v
	return nil
}

// Registration records one person's sign-up for an event.  A registration
// belongs to exactly one event for its whole life.
//
// Fields:
//  ID                  – opaque primary key (UUID string).
//  EventID             – event this registration belongs to.
//  Name                – registrant's full name.
//  Email               – registrant's email, stored lower-cased.
//  Phone               – contact phone number.
//  Organization        – optional parish, ministry or group.
//  DietaryRestrictions – optional free text.
//  AccessibilityNeeds  – optional free text.
//  Status              – lifecycle state.
//  CreatedAt           – creation timestamp.
//  UpdatedAt           – last status change.
type Registration struct {
	ID                  string             `json:"id"`                             // registrations.id
	EventID             string             `json:"event_id"`                       // registrations.event_id
	Name                string             `json:"name"`                           // registrations.name
	Email               string             `json:"email"`                          // registrations.email
	Phone               string             `json:"phone"`                          // registrations.phone
	Organization        *string            `json:"organization,omitempty"`         // registrations.organization (nullable)
	DietaryRestrictions *string            `json:"dietary_restrictions,omitempty"` // registrations.dietary_restrictions (nullable)
	AccessibilityNeeds  *string            `json:"accessibility_needs,omitempty"`  // registrations.accessibility_needs (nullable)
	Status              RegistrationStatus `json:"status"`                         // registrations.status
	CreatedAt           time.Time          `json:"created_at"`                     // registrations.created_at
	UpdatedAt           time.Time          `json:"updated_at"`                     // registrations.updated_at
}

// RegistrationDetails carries the registrant-supplied fields of an
// admission request.
type RegistrationDetails struct {
	Name                string
	Email               string
	Phone               string
	Organization        *string
	DietaryRestrictions *string
	AccessibilityNeeds  *string
}
