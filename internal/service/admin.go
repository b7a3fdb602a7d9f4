package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/church-events/internal/model"
	"github.com/iliyamo/church-events/internal/repository"
	"github.com/iliyamo/church-events/internal/utils"
)

// EnsureAdmin creates the bootstrap admin account when it does not exist.
// An existing account keeps its password; only a missing one is created.
func EnsureAdmin(ctx context.Context, users *repository.UserRepo, email, password string, cost int) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role != model.RoleAdmin {
			zap.L().Warn("bootstrap account exists without admin role", zap.String("email", email))
		}
		return nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return err
	}

	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	if _, err := users.Create(ctx, email, hash, model.RoleAdmin, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil
		}
		return err
	}
	zap.L().Info("bootstrap admin created", zap.String("email", email))
	return nil
}
