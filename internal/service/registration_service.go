// Package service holds the registration workflows: admission against
// event capacity, admin status transitions, deletion and the occupancy
// projection that keeps events.current_registrations in step with the
// ledger.
package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/queue"
	"github.com/iliyamo/church-events/internal/repository"
)

const publishTimeout = 5 * time.Second

// RegistrationService implements admission, the admin state machine and
// the read paths over the ledger.
type RegistrationService struct {
	Events        *repository.EventRepo
	Registrations *repository.RegistrationRepo
	Projector     *Projector
	Publisher     Publisher

	now   func() time.Time
	newID func() string
}

// NewRegistrationService wires a RegistrationService.  A nil publisher is
// replaced by NopPublisher.
func NewRegistrationService(events *repository.EventRepo, regs *repository.RegistrationRepo, pub Publisher) *RegistrationService {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &RegistrationService{
		Events:        events,
		Registrations: regs,
		Projector:     NewProjector(events, regs),
		Publisher:     pub,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// Admit registers details for eventID.  Rejections are checked in order:
// ErrEventNotFound when the event is missing or inactive,
// ErrDuplicateRegistration when the email already holds a non-cancelled
// registration, then ErrEventFull.  A successful admission inserts a
// CONFIRMED registration and takes its seat in the same transaction.
//
// The first statement is the conditional seat increment, so concurrent
// admissions for one event queue on the event row and never overbook.
func (s *RegistrationService) Admit(ctx context.Context, eventID string, details model.RegistrationDetails) (*model.Registration, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, repository.ErrEventNotFound
	}
	d, err := normalizeDetails(details)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reg := &model.Registration{
		ID:                  s.newID(),
		EventID:             eventID,
		Name:                d.Name,
		Email:               d.Email,
		Phone:               d.Phone,
		Organization:        d.Organization,
		DietaryRestrictions: d.DietaryRestrictions,
		AccessibilityNeeds:  d.AccessibilityNeeds,
		Status:              model.StatusConfirmed,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var ev *model.Event
	err = runInTx(ctx, s.Events.DB(), "admit registration", func(tx *sql.Tx) error {
		ok, err := s.Projector.Occupy(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		if !ok {
			return s.classifyRejection(ctx, tx, eventID, d.Email)
		}
		dup, err := s.Registrations.HasActiveTx(ctx, tx, eventID, d.Email, "")
		if err != nil {
			return repository.StoreError("check duplicate", err)
		}
		if dup {
			return repository.ErrDuplicateRegistration
		}
		if err := s.Registrations.CreateTx(ctx, tx, reg); err != nil {
			return repository.StoreError("insert registration", err)
		}
		ev, err = s.Events.GetByIDTx(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(queue.TypeRegistrationCreated, reg, "", ev)
	return reg, nil
}

// classifyRejection explains why the conditional increment matched no row.
func (s *RegistrationService) classifyRejection(ctx context.Context, tx *sql.Tx, eventID, email string) error {
	ev, err := s.Events.GetByIDTx(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if !ev.IsActive {
		return repository.ErrEventNotFound
	}
	dup, err := s.Registrations.HasActiveTx(ctx, tx, eventID, email, "")
	if err != nil {
		return repository.StoreError("check duplicate", err)
	}
	if dup {
		return repository.ErrDuplicateRegistration
	}
	return repository.ErrEventFull
}

// SetStatus moves a registration to status.  Any transition is allowed;
// the occupancy counter follows the change of occupancy class in the same
// transaction.  Setting the current status again is a no-op.
func (s *RegistrationService) SetStatus(ctx context.Context, id string, status model.RegistrationStatus) (*model.Registration, error) {
	if !status.Valid() {
		return nil, repository.ErrInvalidStatus
	}
	cur, err := s.Registrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		reg  *model.Registration
		prev model.RegistrationStatus
		ev   *model.Event
	)
	err = runInTx(ctx, s.Events.DB(), "set registration status", func(tx *sql.Tx) error {
		// Event row first, then the registration: the same order admission uses.
		found, err := s.Events.LockTx(ctx, tx, cur.EventID)
		if err != nil {
			return repository.StoreError("lock event", err)
		}
		if !found {
			return repository.ErrRegistrationNotFound
		}
		reg, err = s.Registrations.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		prev = reg.Status
		if prev == status {
			return nil
		}
		if err := s.Projector.Transition(ctx, tx, reg, status); err != nil {
			return err
		}
		if err := s.Registrations.UpdateStatusTx(ctx, tx, id, status, now); err != nil {
			return repository.StoreError("update status", err)
		}
		reg.Status = status
		reg.UpdatedAt = now
		ev, err = s.Events.GetByIDTx(ctx, tx, reg.EventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if prev != status {
		s.publish(queue.TypeRegistrationStatusChanged, reg, prev, ev)
	}
	return reg, nil
}

// Delete removes a registration and frees its seat when it was occupying.
// Deleting an id that no longer exists returns ErrRegistrationNotFound.
func (s *RegistrationService) Delete(ctx context.Context, id string) error {
	cur, err := s.Registrations.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var (
		reg *model.Registration
		ev  *model.Event
	)
	err = runInTx(ctx, s.Events.DB(), "delete registration", func(tx *sql.Tx) error {
		found, err := s.Events.LockTx(ctx, tx, cur.EventID)
		if err != nil {
			return repository.StoreError("lock event", err)
		}
		if !found {
			return repository.ErrRegistrationNotFound
		}
		reg, err = s.Registrations.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		deleted, err := s.Registrations.DeleteTx(ctx, tx, id)
		if err != nil {
			return repository.StoreError("delete registration", err)
		}
		if !deleted {
			return repository.ErrRegistrationNotFound
		}
		if reg.Status.Occupying() {
			if err := s.Projector.Release(ctx, tx, reg.EventID); err != nil {
				return err
			}
		}
		ev, err = s.Events.GetByIDTx(ctx, tx, reg.EventID)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(queue.TypeRegistrationDeleted, reg, "", ev)
	return nil
}

// Get returns a registration with its event title.
func (s *RegistrationService) Get(ctx context.Context, id string) (*repository.ListItem, error) {
	reg, title, err := s.Registrations.GetWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &repository.ListItem{Registration: *reg, EventTitle: title}, nil
}

// Page is one page of a listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// List returns a filtered page of registrations, newest first.
func (s *RegistrationService) List(ctx context.Context, q repository.RegistrationQuery) (Page[repository.ListItem], error) {
	q.Page, q.PageSize = repository.PageBounds(q.Page, q.PageSize)
	items, total, err := s.Registrations.List(ctx, q)
	if err != nil {
		return Page[repository.ListItem]{}, err
	}
	if items == nil {
		items = []repository.ListItem{}
	}
	return Page[repository.ListItem]{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Export returns every registration matching q, newest first.
func (s *RegistrationService) Export(ctx context.Context, q repository.RegistrationQuery) ([]repository.ListItem, error) {
	return s.Registrations.Export(ctx, q)
}

// publish sends a lifecycle event after commit.  Failures are logged only.
func (s *RegistrationService) publish(typ string, reg *model.Registration, prev model.RegistrationStatus, ev *model.Event) {
	msg := queue.RegistrationEvent{
		Type:           typ,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		Email:          reg.Email,
		Name:           reg.Name,
		Status:         reg.Status.String(),
		PreviousStatus: prev.String(),
		OccurredAt:     s.now().Format(time.RFC3339),
	}
	if ev != nil {
		msg.CurrentRegistrations = ev.CurrentRegistrations
		msg.Capacity = ev.Capacity
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.Publisher.Publish(ctx, msg); err != nil {
		zap.L().Warn("publish registration event failed",
			zap.String("type", typ), zap.String("registration_id", reg.ID), zap.Error(err))
	}
}
