package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/church-events/internal/model"
)

// ErrUserNotFound is returned when no account matches the lookup.
var ErrUserNotFound = errors.New("user not found")

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a back-office account with an already hashed password and
// returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, role string, now time.Time) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		email, passwordHash, role, true, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, StoreError("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, StoreError("insert user", err)
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "email", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepo) getOne(ctx context.Context, column string, value any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM users WHERE "+column+"=? LIMIT 1",
		value).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrUserNotFound
		}
		return u, StoreError("get user", err)
	}
	return u, nil
}
