package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/repository"
)

// Projector keeps events.current_registrations equal to the number of
// occupying registrations (PENDING or CONFIRMED) in the ledger.  Every
// method that takes a transaction expects the caller to commit or roll
// back; the counter and the ledger always move together.
type Projector struct {
	Events        *repository.EventRepo
	Registrations *repository.RegistrationRepo
}

// NewProjector returns a Projector over the given repositories.
func NewProjector(events *repository.EventRepo, regs *repository.RegistrationRepo) *Projector {
	return &Projector{Events: events, Registrations: regs}
}

// Occupy takes one seat on eventID, returning false when none is left.
func (p *Projector) Occupy(ctx context.Context, tx *sql.Tx, eventID string, requireActive bool) (bool, error) {
	ok, err := p.Events.TryOccupyTx(ctx, tx, eventID, requireActive)
	if err != nil {
		return false, repository.StoreError("occupy seat", err)
	}
	return ok, nil
}

// Release gives back one seat on eventID.
func (p *Projector) Release(ctx context.Context, tx *sql.Tx, eventID string) error {
	if err := p.Events.ReleaseTx(ctx, tx, eventID); err != nil {
		return repository.StoreError("release seat", err)
	}
	return nil
}

// Transition applies the occupancy side effect of moving reg from its
// current status to next.  Leaving CANCELLED re-checks the one
// non-cancelled registration per email rule, and entering an occupying
// status from a non-occupying one needs a free seat.  The caller must
// already hold the event row lock.
func (p *Projector) Transition(ctx context.Context, tx *sql.Tx, reg *model.Registration, next model.RegistrationStatus) error {
	from := reg.Status
	if from == next {
		return nil
	}
	if from == model.StatusCancelled {
		dup, err := p.Registrations.HasActiveTx(ctx, tx, reg.EventID, reg.Email, reg.ID)
		if err != nil {
			return repository.StoreError("check duplicate", err)
		}
		if dup {
			return repository.ErrDuplicateRegistration
		}
	}
	switch {
	case from.Occupying() && !next.Occupying():
		return p.Release(ctx, tx, reg.EventID)
	case !from.Occupying() && next.Occupying():
		ok, err := p.Occupy(ctx, tx, reg.EventID, false)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrEventFull
		}
	}
	return nil
}

// Recount derives the occupancy of eventID from the ledger.
func (p *Projector) Recount(ctx context.Context, eventID string) (int, error) {
	return p.Registrations.CountOccupying(ctx, eventID)
}

// ReconcileResult reports the counter before and after a reconcile.
type ReconcileResult struct {
	EventID  string `json:"event_id"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
	Capacity int    `json:"capacity"`
	Repaired bool   `json:"repaired"`
}

// Reconcile recounts eventID under its row lock and overwrites the
// counter when it has drifted from the ledger.
func (p *Projector) Reconcile(ctx context.Context, eventID string) (ReconcileResult, error) {
	var res ReconcileResult
	err := runInTx(ctx, p.Events.DB(), "reconcile occupancy", func(tx *sql.Tx) error {
		found, err := p.Events.LockTx(ctx, tx, eventID)
		if err != nil {
			return repository.StoreError("lock event", err)
		}
		if !found {
			return repository.ErrEventNotFound
		}
		ev, err := p.Events.GetByIDTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		n, err := p.Registrations.CountOccupyingTx(ctx, tx, eventID)
		if err != nil {
			return repository.StoreError("count registrations", err)
		}
		res = ReconcileResult{EventID: eventID, Before: ev.CurrentRegistrations, After: n, Capacity: ev.Capacity}
		if n == ev.CurrentRegistrations {
			return nil
		}
		if err := p.Events.SetOccupancyTx(ctx, tx, eventID, n); err != nil {
			if errors.Is(err, repository.ErrCapacityBelowOccupancy) {
				return err
			}
			return repository.StoreError("set occupancy", err)
		}
		res.Repaired = true
		return nil
	})
	return res, err
}

// runInTx runs fn inside a transaction and commits when fn returns nil.
// Any error from fn rolls back every statement fn issued.
func runInTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return repository.StoreError(op+": begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return repository.StoreError(op+": commit", err)
	}
	committed = true
	return nil
}
