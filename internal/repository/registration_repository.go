package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/church-events/internal/model"
)

// RegistrationRepo is the registration ledger.  Every write method takes
// the caller's transaction: a ledger change is never committed without the
// matching occupancy change on the event row.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo returns a RegistrationRepo bound to db.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// RegistrationQuery filters the admin listing and the CSV export.  Empty
// fields do not filter.  Search matches name, email or organization.
type RegistrationQuery struct {
	EventID  string
	Status   model.RegistrationStatus
	Search   string
	Page     int
	PageSize int
}

const registrationColumns = `r.id, r.event_id, r.name, r.email, r.phone, r.organization,
	r.dietary_restrictions, r.accessibility_needs, r.status, r.created_at, r.updated_at`

func scanRegistration(row interface{ Scan(dest ...any) error }, extra ...any) (*model.Registration, error) {
	var (
		reg                  model.Registration
		org, dietary, access sql.NullString
		status               string
	)
	dest := []any{
		&reg.ID, &reg.EventID, &reg.Name, &reg.Email, &reg.Phone, &org,
		&dietary, &access, &status, &reg.CreatedAt, &reg.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	reg.Organization = nullableString(org)
	reg.DietaryRestrictions = nullableString(dietary)
	reg.AccessibilityNeeds = nullableString(access)
	reg.Status = model.RegistrationStatus(status)
	return &reg, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// CreateTx inserts reg inside tx.
func (r *RegistrationRepo) CreateTx(ctx context.Context, tx *sql.Tx, reg *model.Registration) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, name, email, phone, organization,
			dietary_restrictions, accessibility_needs, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.EventID, reg.Name, reg.Email, reg.Phone, reg.Organization,
		reg.DietaryRestrictions, reg.AccessibilityNeeds, string(reg.Status), reg.CreatedAt, reg.UpdatedAt,
	)
	return err
}

// GetByID returns a registration or ErrRegistrationNotFound.
func (r *RegistrationRepo) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	return r.get(ctx, r.db, id)
}

// GetByIDTx is GetByID inside tx.  Callers hold the event row lock first.
func (r *RegistrationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Registration, error) {
	return r.get(ctx, tx, id)
}

func (r *RegistrationRepo) get(ctx context.Context, q querier, id string) (*model.Registration, error) {
	reg, err := scanRegistration(q.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations r WHERE r.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, StoreError("get registration", err)
	}
	return reg, nil
}

// GetWithEvent returns a registration together with its event title.
func (r *RegistrationRepo) GetWithEvent(ctx context.Context, id string) (*model.Registration, string, error) {
	var title string
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+`, e.title
		   FROM registrations r JOIN events e ON e.id = r.event_id
		  WHERE r.id = ?`, id), &title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrRegistrationNotFound
		}
		return nil, "", StoreError("get registration", err)
	}
	return reg, title, nil
}

// HasActiveTx reports whether email already holds a non-cancelled
// registration for eventID.  excludeID, when set, is ignored so a
// registration never conflicts with itself.
func (r *RegistrationRepo) HasActiveTx(ctx context.Context, tx *sql.Tx, eventID, email, excludeID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations
		  WHERE event_id = ? AND email = ? AND status <> ? AND id <> ?`,
		eventID, strings.ToLower(email), string(model.StatusCancelled), excludeID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateStatusTx sets the status of id inside tx.
func (r *RegistrationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id string, st model.RegistrationStatus, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE registrations SET status = ?, updated_at = ? WHERE id = ?`, string(st), now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

// DeleteTx removes id inside tx and reports whether a row was deleted.
func (r *RegistrationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountOccupyingTx counts the ledger rows of eventID that hold a seat.
func (r *RegistrationRepo) CountOccupyingTx(ctx context.Context, tx *sql.Tx, eventID string) (int, error) {
	return r.countOccupying(ctx, tx, eventID)
}

// CountOccupying is CountOccupyingTx outside a transaction.
func (r *RegistrationRepo) CountOccupying(ctx context.Context, eventID string) (int, error) {
	n, err := r.countOccupying(ctx, r.db, eventID)
	if err != nil {
		return 0, StoreError("count registrations", err)
	}
	return n, nil
}

func (r *RegistrationRepo) countOccupying(ctx context.Context, q querier, eventID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = ? AND status IN (?, ?)`,
		eventID, string(model.StatusPending), string(model.StatusConfirmed),
	).Scan(&n)
	return n, err
}

// ListItem is a registration row joined with its event title.
type ListItem struct {
	model.Registration
	EventTitle string `json:"event_title"`
}

func (q RegistrationQuery) where() (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	if q.EventID != "" {
		where = append(where, "r.event_id = ?")
		args = append(args, q.EventID)
	}
	if q.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(q.Status))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(r.name) LIKE ? OR LOWER(r.email) LIKE ? OR LOWER(COALESCE(r.organization, '')) LIKE ?)")
		args = append(args, like, like, like)
	}
	return strings.Join(where, " AND "), args
}

// List returns one page of registrations, newest first, and the total count
// matching the filter.
func (r *RegistrationRepo) List(ctx context.Context, q RegistrationQuery) ([]ListItem, int64, error) {
	cond, args := q.where()

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations r WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, StoreError("count registrations", err)
	}

	page, size := PageBounds(q.Page, q.PageSize)
	items, err := r.query(ctx, cond+` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Export returns every registration matching the filter, newest first.
// Pagination fields are ignored.
func (r *RegistrationRepo) Export(ctx context.Context, q RegistrationQuery) ([]ListItem, error) {
	cond, args := q.where()
	return r.query(ctx, cond+` ORDER BY r.created_at DESC, r.id DESC`, args...)
}

func (r *RegistrationRepo) query(ctx context.Context, tail string, args ...any) ([]ListItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+registrationColumns+`, e.title
		   FROM registrations r JOIN events e ON e.id = r.event_id
		  WHERE `+tail, args...)
	if err != nil {
		return nil, StoreError("list registrations", err)
	}
	defer rows.Close()

	var out []ListItem
	for rows.Next() {
		var title string
		reg, err := scanRegistration(rows, &title)
		if err != nil {
			return nil, StoreError("scan registration", err)
		}
		out = append(out, ListItem{Registration: *reg, EventTitle: title})
	}
	if err := rows.Err(); err != nil {
		return nil, StoreError("list registrations", err)
	}
	return out, nil
}
