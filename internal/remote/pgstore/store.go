// Package pgstore keeps the three records in Postgres tables through gorm.
// Documents are stored in jsonb columns.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type profileRow struct {
	UserID         string    `gorm:"column:user_id;primaryKey"`
	Name           *string   `gorm:"column:name"`
	BirthDay       *int      `gorm:"column:birth_day"`
	BirthMonth     *int      `gorm:"column:birth_month"`
	BirthYear      *int      `gorm:"column:birth_year"`
	LifeExpectancy *int      `gorm:"column:life_expectancy"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (profileRow) TableName() string { return config.TableProfiles }

type milestonesRow struct {
	UserID    string         `gorm:"column:user_id;primaryKey"`
	Data      datatypes.JSON `gorm:"column:milestones_data;type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (milestonesRow) TableName() string { return config.TableMilestones }

type selectionsRow struct {
	UserID    string         `gorm:"column:user_id;primaryKey"`
	Data      datatypes.JSON `gorm:"column:selections_data;type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (selectionsRow) TableName() string { return config.TableSelections }

// Store owns the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the Postgres database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRemoteConfig, err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// Migrate creates or updates the three tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&profileRow{}, &milestonesRow{}, &selectionsRow{})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Endpoints returns the three resources backed by this database.
func (s *Store) Endpoints() remote.Endpoints {
	return remote.Endpoints{
		Profiles: &Endpoint[remote.ProfileRecord, profileRow]{
			db: s.db, toRow: profileToRow, fromRow: profileFromRow,
		},
		Milestones: &Endpoint[remote.MilestonesRecord, milestonesRow]{
			db: s.db, toRow: milestonesToRow, fromRow: milestonesFromRow,
		},
		Selections: &Endpoint[remote.SelectionsRecord, selectionsRow]{
			db: s.db, toRow: selectionsToRow, fromRow: selectionsFromRow,
		},
	}
}

// Endpoint maps record T onto table row R.
type Endpoint[T remote.Record, R any] struct {
	db      *gorm.DB
	toRow   func(T) (R, error)
	fromRow func(R) (T, error)
}

// Fetch loads the user's row, reporting ok=false when there is none.
func (e *Endpoint[T, R]) Fetch(ctx context.Context, userID string) (T, bool, error) {
	var zero T
	if userID == "" {
		return zero, false, remote.ErrUserIDEmpty
	}

	var rows []R
	err := e.db.WithContext(ctx).
		Where(config.ColumnUserID+" = ?", userID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return zero, false, fmt.Errorf("%s: %w", config.ErrRemoteFetch, err)
	}
	if len(rows) == 0 {
		return zero, false, nil
	}

	rec, err := e.fromRow(rows[0])
	if err != nil {
		return zero, false, fmt.Errorf("%s: %w", config.ErrRemoteDecode, err)
	}
	return rec, true, nil
}

// Upsert inserts rec or replaces every column of the existing row.
func (e *Endpoint[T, R]) Upsert(ctx context.Context, rec T) error {
	if rec.Owner() == "" {
		return remote.ErrUserIDEmpty
	}
	row, err := e.toRow(rec)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrRemoteUpsert, err)
	}

	err = e.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: config.ColumnUserID}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrRemoteUpsert, err)
	}
	return nil
}

func profileToRow(r remote.ProfileRecord) (profileRow, error) {
	return profileRow{
		UserID:         r.UserID,
		Name:           r.Name,
		BirthDay:       r.BirthDay,
		BirthMonth:     r.BirthMonth,
		BirthYear:      r.BirthYear,
		LifeExpectancy: r.LifeExpectancy,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func profileFromRow(r profileRow) (remote.ProfileRecord, error) {
	return remote.ProfileRecord{
		UserID:         r.UserID,
		Name:           r.Name,
		BirthDay:       r.BirthDay,
		BirthMonth:     r.BirthMonth,
		BirthYear:      r.BirthYear,
		LifeExpectancy: r.LifeExpectancy,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}, nil
}

func milestonesToRow(r remote.MilestonesRecord) (milestonesRow, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return milestonesRow{}, err
	}
	return milestonesRow{UserID: r.UserID, Data: datatypes.JSON(data), UpdatedAt: r.UpdatedAt}, nil
}

func milestonesFromRow(r milestonesRow) (remote.MilestonesRecord, error) {
	rec := remote.MilestonesRecord{UserID: r.UserID, UpdatedAt: r.UpdatedAt.UTC()}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &rec.Data); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func selectionsToRow(r remote.SelectionsRecord) (selectionsRow, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return selectionsRow{}, err
	}
	return selectionsRow{UserID: r.UserID, Data: datatypes.JSON(data), UpdatedAt: r.UpdatedAt}, nil
}

func selectionsFromRow(r selectionsRow) (remote.SelectionsRecord, error) {
	rec := remote.SelectionsRecord{UserID: r.UserID, UpdatedAt: r.UpdatedAt.UTC()}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &rec.Data); err != nil {
			return rec, err
		}
	}
	return rec, nil
}
