package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/church-events/internal/config"
	"github.com/iliyamo/church-events/internal/database"
	"github.com/iliyamo/church-events/internal/model"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Connect(context.Background(), config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "church.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedEvent(t *testing.T, repo *EventRepo, slug string, capacity int) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:          uuid.NewString(),
		Slug:        slug,
		Title:       "Event " + slug,
		Description: "",
		Date:        "2026-04-10",
		Time:        "18:00",
		Location:    "Parish hall",
		Capacity:    capacity,
		IsActive:    true,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func insertRegistration(t *testing.T, db *sql.DB, regs *RegistrationRepo, eventID, email string, st model.RegistrationStatus, at time.Time) *model.Registration {
	t.Helper()
	reg := &model.Registration{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Name:      "Name " + email,
		Email:     email,
		Phone:     "555-0100",
		Status:    st,
		CreatedAt: at,
		UpdatedAt: at,
	}
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, regs.CreateTx(context.Background(), tx, reg))
	require.NoError(t, tx.Commit())
	return reg
}

func TestEventCreateRejectsDuplicateSlug(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	seedEvent(t, events, "retreat", 5)

	e := &model.Event{ID: uuid.NewString(), Slug: "retreat", Title: "Again", Capacity: 1, CreatedAt: testNow, UpdatedAt: testNow}
	err := events.Create(context.Background(), e)
	assert.ErrorIs(t, err, ErrSlugExists)
}

func TestLockTxKeepsEventUnchanged(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	e := seedEvent(t, events, "lock", 3)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	ok, err := events.TryOccupyTx(ctx, tx, e.ID, true)
	require.NoError(t, err)
	require.True(t, ok)
	found, err := events.LockTx(ctx, tx, e.ID)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = events.LockTx(ctx, tx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, tx.Commit())

	got, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentRegistrations)
	assert.True(t, testNow.Equal(got.UpdatedAt), "updated_at moved to %s", got.UpdatedAt)
}

func TestPageBounds(t *testing.T) {
	for _, tc := range []struct{ page, size, wantPage, wantSize int }{
		{0, 0, 1, 20},
		{-3, 5, 1, 5},
		{4, 500, 4, 100},
	} {
		p, s := PageBounds(tc.page, tc.size)
		assert.Equal(t, tc.wantPage, p)
		assert.Equal(t, tc.wantSize, s)
	}
}

func TestEventGetMissing(t *testing.T) {
	events := NewEventRepo(openTestDB(t))
	_, err := events.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = events.GetBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestTryOccupyStopsAtCapacity(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	e := seedEvent(t, events, "camp", 2)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		ok, err := events.TryOccupyTx(ctx, tx, e.ID, true)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, want, ok, "attempt %d", i)
	}

	got, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentRegistrations)
}

func TestTryOccupyInactiveEvent(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	e := seedEvent(t, events, "closed", 2)
	e.IsActive = false
	e.UpdatedAt = testNow
	require.NoError(t, events.Update(context.Background(), e))

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	ok, err := events.TryOccupyTx(context.Background(), tx, e.ID, true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = events.TryOccupyTx(context.Background(), tx, e.ID, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseClampsAtZero(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	e := seedEvent(t, events, "zero", 1)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, events.ReleaseTx(context.Background(), tx, e.ID))
	require.NoError(t, tx.Commit())

	got, err := events.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentRegistrations)
}

func TestUpdateRejectsCapacityBelowOccupancy(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	e := seedEvent(t, events, "shrink", 3)
	ctx := context.Background()

	tx, err := db.Begin()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		ok, err := events.TryOccupyTx(ctx, tx, e.ID, true)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, tx.Commit())

	e.Capacity = 1
	assert.ErrorIs(t, events.Update(ctx, e), ErrCapacityBelowOccupancy)

	e.Capacity = 2
	require.NoError(t, events.Update(ctx, e))

	missing := *e
	missing.ID = "missing"
	assert.ErrorIs(t, events.Update(ctx, &missing), ErrEventNotFound)
}

func TestEventListPaginatesAndFilters(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	ctx := context.Background()
	seedEvent(t, events, "a", 1)
	seedEvent(t, events, "b", 1)
	hidden := seedEvent(t, events, "c", 1)
	hidden.IsActive = false
	require.NoError(t, events.Update(ctx, hidden))

	all, total, err := events.List(ctx, EventQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 2)

	active, total, err := events.List(ctx, EventQuery{ActiveOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, e := range active {
		assert.True(t, e.IsActive)
	}
}

func TestEventDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	regs := NewRegistrationRepo(db)
	e := seedEvent(t, events, "gone", 2)
	r := insertRegistration(t, db, regs, e.ID, "a@example.org", model.StatusConfirmed, testNow)

	require.NoError(t, events.Delete(context.Background(), e.ID))
	_, err := regs.GetByID(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	assert.ErrorIs(t, events.Delete(context.Background(), e.ID), ErrEventNotFound)
}

func TestHasActiveIgnoresCancelledAndSelf(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	regs := NewRegistrationRepo(db)
	e := seedEvent(t, events, "dup", 5)
	insertRegistration(t, db, regs, e.ID, "old@example.org", model.StatusCancelled, testNow)
	live := insertRegistration(t, db, regs, e.ID, "live@example.org", model.StatusPending, testNow)
	ctx := context.Background()

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	has, err := regs.HasActiveTx(ctx, tx, e.ID, "OLD@example.org", "")
	require.NoError(t, err)
	assert.False(t, has, "cancelled rows do not count")

	has, err = regs.HasActiveTx(ctx, tx, e.ID, "live@example.org", "")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = regs.HasActiveTx(ctx, tx, e.ID, "live@example.org", live.ID)
	require.NoError(t, err)
	assert.False(t, has, "a registration never conflicts with itself")
}

func TestCountOccupying(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	regs := NewRegistrationRepo(db)
	e := seedEvent(t, events, "count", 10)
	insertRegistration(t, db, regs, e.ID, "a@example.org", model.StatusPending, testNow)
	insertRegistration(t, db, regs, e.ID, "b@example.org", model.StatusConfirmed, testNow)
	insertRegistration(t, db, regs, e.ID, "c@example.org", model.StatusCancelled, testNow)
	insertRegistration(t, db, regs, e.ID, "d@example.org", model.StatusWaitlist, testNow)

	n, err := regs.CountOccupying(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRegistrationListAndExportOrdering(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	regs := NewRegistrationRepo(db)
	e := seedEvent(t, events, "list", 10)
	other := seedEvent(t, events, "other", 10)
	first := insertRegistration(t, db, regs, e.ID, "first@example.org", model.StatusConfirmed, testNow)
	second := insertRegistration(t, db, regs, e.ID, "second@example.org", model.StatusCancelled, testNow.Add(time.Minute))
	insertRegistration(t, db, regs, other.ID, "third@example.org", model.StatusConfirmed, testNow.Add(2*time.Minute))
	ctx := context.Background()

	items, total, err := regs.List(ctx, RegistrationQuery{EventID: e.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
	assert.Equal(t, e.Title, items[0].EventTitle)

	items, total, err = regs.List(ctx, RegistrationQuery{Status: model.StatusConfirmed, Search: "FIRST"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)

	all, err := regs.Export(ctx, RegistrationQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third@example.org", all[0].Email)
	assert.Equal(t, first.ID, all[2].ID)
}

func TestDeleteTxReportsMissing(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepo(db)
	regs := NewRegistrationRepo(db)
	e := seedEvent(t, events, "del", 1)
	r := insertRegistration(t, db, regs, e.ID, "a@example.org", model.StatusPending, testNow)

	for _, want := range []bool{true, false} {
		tx, err := db.Begin()
		require.NoError(t, err)
		ok, err := regs.DeleteTx(context.Background(), tx, r.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, want, ok)
	}
}

func TestUserAndTokenRepos(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)
	ctx := context.Background()

	id, err := users.Create(ctx, " Admin@Example.org ", "hash", model.RoleAdmin, testNow)
	require.NoError(t, err)
	_, err = users.Create(ctx, "admin@example.org", "hash", model.RoleAdmin, testNow)
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := users.GetByEmail(ctx, "ADMIN@example.org")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "admin@example.org", u.Email)

	_, err = users.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, tokens.StoreRefresh(ctx, id, "h1", testNow.Add(time.Hour), testNow))
	got, err := tokens.ValidateRefresh(ctx, "h1", testNow)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = tokens.ValidateRefresh(ctx, "h1", testNow.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, tokens.RevokeByHash(ctx, "h1", testNow))
	_, err = tokens.ValidateRefresh(ctx, "h1", testNow)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.ErrorIs(t, tokens.RevokeByHash(ctx, "h1", testNow), ErrTokenInvalid)
	assert.ErrorIs(t, tokens.RevokeByHash(ctx, "unknown", testNow), ErrTokenInvalid)

	require.NoError(t, tokens.StoreRefresh(ctx, id, "old", testNow.Add(time.Minute), testNow))
	assert.ErrorIs(t, tokens.RevokeByHash(ctx, "old", testNow.Add(time.Hour)), ErrTokenInvalid)
}

func TestRevokeByHashSucceedsOnce(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)
	ctx := context.Background()

	id, err := users.Create(ctx, "office@example.org", "hash", model.RoleAdmin, testNow)
	require.NoError(t, err)
	require.NoError(t, tokens.StoreRefresh(ctx, id, "shared", testNow.Add(time.Hour), testNow))

	var (
		wg      sync.WaitGroup
		revoked atomic.Int32
		invalid atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := tokens.RevokeByHash(ctx, "shared", testNow); {
			case err == nil:
				revoked.Add(1)
			case errors.Is(err, ErrTokenInvalid):
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, revoked.Load())
	assert.EqualValues(t, 19, invalid.Load())
}
