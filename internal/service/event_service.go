package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/repository"
)

// EventService manages event definitions for the back office and serves
// the public event pages.
type EventService struct {
	Events    *repository.EventRepo
	Projector *Projector

	now   func() time.Time
	newID func() string
}

func NewEventService(events *repository.EventRepo, projector *Projector) *EventService {
	return &EventService{
		Events:    events,
		Projector: projector,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Create validates in and stores a new event with zero occupancy.
func (s *EventService) Create(ctx context.Context, in EventInput) (*model.Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	e := &model.Event{
		ID:          s.newID(),
		Slug:        in.Slug,
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		Time:        in.Time,
		Location:    in.Location,
		Capacity:    in.Capacity,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Events.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update replaces the editable fields of event id.  A capacity below the
// seats already taken is rejected with ErrCapacityBelowOccupancy and
// leaves the event unchanged.
func (s *EventService) Update(ctx context.Context, id string, in EventInput) (*model.Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	e, err := s.Events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Slug = in.Slug
	e.Title = in.Title
	e.Description = in.Description
	e.Date = in.Date
	e.Time = in.Time
	e.Location = in.Location
	e.Capacity = in.Capacity
	e.IsActive = in.IsActive
	e.UpdatedAt = s.now()
	if err := s.Events.Update(ctx, e); err != nil {
		return nil, err
	}
	return s.Events.GetByID(ctx, id)
}

// Delete removes an event together with its registrations.
func (s *EventService) Delete(ctx context.Context, id string) error {
	return s.Events.Delete(ctx, id)
}

// Get returns any event by id.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	return s.Events.GetByID(ctx, id)
}

// GetPublic returns an active event by slug.  Inactive events are reported
// as not found.
func (s *EventService) GetPublic(ctx context.Context, slug string) (*model.Event, error) {
	e, err := s.Events.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, repository.ErrEventNotFound
	}
	return e, nil
}

// List returns a page of events.  Public callers pass activeOnly.
func (s *EventService) List(ctx context.Context, q repository.EventQuery) (Page[model.Event], error) {
	q.Page, q.PageSize = repository.PageBounds(q.Page, q.PageSize)
	items, total, err := s.Events.List(ctx, q)
	if err != nil {
		return Page[model.Event]{}, err
	}
	return Page[model.Event]{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Reconcile repairs the occupancy counter of event id from the ledger.
func (s *EventService) Reconcile(ctx context.Context, id string) (ReconcileResult, error) {
	return s.Projector.Reconcile(ctx, id)
}
