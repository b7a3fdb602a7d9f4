// Package repository defines the data access layer and the sentinel errors
// shared by every layer above it.  Handlers translate these values into
// HTTP status codes with errors.Is, so wrapping must always use %w.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrEventNotFound is returned when an event id or slug does not
	// resolve, or when a public caller addresses an inactive event.
	ErrEventNotFound = errors.New("event not found")

	// ErrDuplicateRegistration is returned when the email already holds a
	// non-cancelled registration for the event.
	ErrDuplicateRegistration = errors.New("email already registered for this event")

	// ErrEventFull is returned when no seat remains at the moment of the
	// atomic capacity check.
	ErrEventFull = errors.New("event is full")

	// ErrRegistrationNotFound is returned when a registration id does not
	// resolve, including a second delete of the same id.
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrStoreUnavailable wraps driver and transaction failures.  The
	// operation that returned it made no partial change and may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidStatus is returned for a status outside the closed set.
	ErrInvalidStatus = errors.New("invalid registration status")

	// ErrCapacityBelowOccupancy is returned when an admin edit would set
	// capacity below the seats already taken.
	ErrCapacityBelowOccupancy = errors.New("capacity below current registrations")

	// ErrSlugExists is returned when another event already uses the slug.
	ErrSlugExists = errors.New("slug already exists")

	// ErrEmailExists is returned when a back-office account already uses
	// the email.
	ErrEmailExists = errors.New("email already exists")
)

// StoreError wraps err as ErrStoreUnavailable while keeping the original
// error in the chain for logging.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// isDuplicateKey reports whether err is a unique constraint violation from
// either supported driver.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
