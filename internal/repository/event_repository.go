package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/church-events/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventRepo manages persistence for events.  The capacity and occupancy
// columns are only written through the guarded methods below; plain
// updates never touch current_registrations.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB so services can begin transactions
// spanning multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

// EventQuery defines filters and pagination for listing events.
type EventQuery struct {
	ActiveOnly bool
	Search     string
	Page       int
	PageSize   int
}

const eventColumns = `id, slug, title, description, event_date, event_time, location,
	capacity, current_registrations, is_active, created_at, updated_at`

func scanEvent(row interface{ Scan(dest ...any) error }) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Slug, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location,
		&e.Capacity, &e.CurrentRegistrations, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.  The caller supplies the ID and timestamps;
// occupancy always starts at zero.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	e.CurrentRegistrations = 0
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, slug, title, description, event_date, event_time, location,
			capacity, current_registrations, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		e.ID, e.Slug, e.Title, e.Description, e.Date, e.Time, e.Location,
		e.Capacity, e.IsActive, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrSlugExists
		}
		return StoreError("insert event", err)
	}
	return nil
}

// GetByID returns a single event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return r.getBy(ctx, r.db, "id", id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Event, error) {
	return r.getBy(ctx, tx, "id", id)
}

// GetBySlug returns a single event by its slug or ErrEventNotFound.
func (r *EventRepo) GetBySlug(ctx context.Context, slug string) (*model.Event, error) {
	return r.getBy(ctx, r.db, "slug", slug)
}

func (r *EventRepo) getBy(ctx context.Context, q querier, column, value string) (*model.Event, error) {
	e, err := scanEvent(q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE `+column+` = ?`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, StoreError("get event", err)
	}
	return e, nil
}

// List returns events ordered by date then title, plus the total number of
// rows matching the filter.
func (r *EventRepo) List(ctx context.Context, q EventQuery) ([]model.Event, int64, error) {
	where := []string{}
	args := []any{}
	if q.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(location) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, StoreError("count events", err)
	}

	page, size := PageBounds(q.Page, q.PageSize)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE `+cond+`
		 ORDER BY event_date ASC, title ASC
		 LIMIT ? OFFSET ?`,
		append(append([]any{}, args...), size, (page-1)*size)...)
	if err != nil {
		return nil, 0, StoreError("list events", err)
	}
	defer rows.Close()

	out := make([]model.Event, 0, size)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, StoreError("scan event", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, StoreError("list events", err)
	}
	return out, total, nil
}

// Update writes the editable fields of e.  Capacity is applied only when it
// does not drop below the seats already taken; otherwise
// ErrCapacityBelowOccupancy is returned and nothing changes.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events
		    SET slug = ?, title = ?, description = ?, event_date = ?, event_time = ?, location = ?,
		        capacity = ?, is_active = ?, updated_at = ?
		  WHERE id = ? AND current_registrations <= ?`,
		e.Slug, e.Title, e.Description, e.Date, e.Time, e.Location,
		e.Capacity, e.IsActive, e.UpdatedAt,
		e.ID, e.Capacity,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrSlugExists
		}
		return StoreError("update event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return StoreError("update event", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
		return ErrCapacityBelowOccupancy
	}
	return nil
}

// Delete removes an event; its registrations are removed by the foreign
// key cascade.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return StoreError("delete event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return StoreError("delete event", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// TryOccupyTx takes one seat with a single conditional write and reports
// whether a seat was available.  The write also locks the event row for the
// rest of tx, serializing every admission for the same event.  When
// requireActive is true an inactive event never admits.
func (r *EventRepo) TryOccupyTx(ctx context.Context, tx *sql.Tx, id string, requireActive bool) (bool, error) {
	q := `UPDATE events
	         SET current_registrations = current_registrations + 1
	       WHERE id = ? AND current_registrations < capacity`
	args := []any{id}
	if requireActive {
		q += ` AND is_active = ?`
		args = append(args, true)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseTx gives back one seat.  The decrement is clamped so occupancy can
// never go below zero.
func (r *EventRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE events
		    SET current_registrations = current_registrations - 1
		  WHERE id = ? AND current_registrations > 0`,
		id)
	return err
}

// LockTx takes the event row's write lock with a no-op write and reports
// whether the event exists.  No column changes, so updated_at keeps
// tracking admin edits only.  Mutations of existing registrations call it
// first so that every path locks the event before the ledger.  RowsAffected
// counts matched rows on MySQL only because the DSN sets clientFoundRows.
func (r *EventRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET current_registrations = current_registrations WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetOccupancyTx overwrites the projected counter.  It is used only by
// reconciliation after the ledger has been counted under the row lock.
func (r *EventRepo) SetOccupancyTx(ctx context.Context, tx *sql.Tx, id string, n int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET current_registrations = ? WHERE id = ? AND capacity >= ?`, n, id, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCapacityBelowOccupancy
	}
	return nil
}

// PageBounds clamps pagination input to page >= 1 and 1..100 rows, with
// 20 rows when size is unset.
func PageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
