package pgstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"github.com/tartampluch/go-lifegrid/internal/remote/pgstore"
	"github.com/tartampluch/go-lifegrid/internal/selection"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) (remote.Endpoints, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return pgstore.New(gdb).Endpoints(), mock
}

func TestProfiles_FetchAbsent(t *testing.T) {
	eps, mock := newStore(t)
	mock.ExpectQuery(`SELECT \* FROM "user_profiles" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name"}))

	_, ok, err := eps.Profiles.Fetch(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfiles_FetchPresent(t *testing.T) {
	eps, mock := newStore(t)
	updated := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "user_profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "name", "birth_day", "birth_month", "birth_year", "life_expectancy", "updated_at",
		}).AddRow("u1", "Ada", 10, 12, 1815, 90, updated))

	rec, ok, err := eps.Profiles.Fetch(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ada", *rec.Name)
	assert.Equal(t, 1815, *rec.BirthYear)
	assert.Equal(t, 90, *rec.LifeExpectancy)
	assert.True(t, updated.Equal(rec.UpdatedAt))

	p := rec.Profile()
	assert.Equal(t, 10, p.Birth.Day)
}

func TestProfiles_Upsert(t *testing.T) {
	eps, mock := newStore(t)
	mock.ExpectExec(`INSERT INTO "user_profiles" .* ON CONFLICT \("user_id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := remote.ProfileRecord{UserID: "u1", Name: annotation.Ptr("Ada"), LifeExpectancy: annotation.Ptr(80)}
	require.NoError(t, eps.Profiles.Upsert(context.Background(), rec))
}

func TestMilestones_RoundTripThroughJSONB(t *testing.T) {
	eps, mock := newStore(t)
	mock.ExpectQuery(`SELECT \* FROM "user_milestones"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "milestones_data", "updated_at"}).
			AddRow("u1", []byte(`{"milestones":{"15":{"weekNumber":"15","category":"happy"}},"customMoods":{},"customCategories":{}}`), time.Now()))

	rec, ok, err := eps.Milestones.Fetch(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "happy", *rec.Data.Milestones["15"].Category)

	mock.ExpectExec(`INSERT INTO "user_milestones" .*milestones_data.* ON CONFLICT \("user_id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, eps.Milestones.Upsert(context.Background(), rec))
}

func TestSelections_CorruptDocument(t *testing.T) {
	eps, mock := newStore(t)
	mock.ExpectQuery(`SELECT \* FROM "user_selections"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "selections_data", "updated_at"}).
			AddRow("u1", []byte(`{"selectedWeeks":"nope"}`), time.Now()))

	_, ok, err := eps.Selections.Fetch(context.Background(), "u1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSelections_DatabaseErrors(t *testing.T) {
	eps, mock := newStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`SELECT \* FROM "user_selections"`).WillReturnError(boom)
	_, _, err := eps.Selections.Fetch(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(`INSERT INTO "user_selections"`).WillReturnError(boom)
	err = eps.Selections.Upsert(context.Background(),
		remote.SelectionsRecord{UserID: "u1", Data: selection.Persisted{PinnedWeeks: []int{4}}})
	assert.ErrorIs(t, err, boom)
}

func TestEndpoints_RejectEmptyUser(t *testing.T) {
	eps, _ := newStore(t)

	_, _, err := eps.Profiles.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, remote.ErrUserIDEmpty)
	assert.ErrorIs(t, eps.Milestones.Upsert(context.Background(), remote.MilestonesRecord{}), remote.ErrUserIDEmpty)
}
