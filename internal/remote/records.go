// Package remote defines the three records mirrored to the user's account
// and the endpoint contract the sync coordinator talks to.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/selection"
	"github.com/tartampluch/go-lifegrid/internal/temporal"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

var ErrUserIDEmpty = errors.New(config.ErrUserIDEmpty)

// Record is implemented by every record type. Owner is the user id the
// record is keyed by.
type Record interface {
	ProfileRecord | MilestonesRecord | SelectionsRecord
	Owner() string
}

// Endpoint is one remote resource. Fetch reports ok=false when the user has
// no record; Upsert replaces any existing record for the same user.
type Endpoint[T Record] interface {
	Fetch(ctx context.Context, userID string) (rec T, ok bool, err error)
	Upsert(ctx context.Context, rec T) error
}

// Endpoints bundles the three resources of one remote backend.
type Endpoints struct {
	Profiles   Endpoint[ProfileRecord]
	Milestones Endpoint[MilestonesRecord]
	Selections Endpoint[SelectionsRecord]
}

// ProfileRecord is stored flat, one column per field.
type ProfileRecord struct {
	UserID         string    `json:"user_id"`
	Name           *string   `json:"name"`
	BirthDay       *int      `json:"birth_day"`
	BirthMonth     *int      `json:"birth_month"`
	BirthYear      *int      `json:"birth_year"`
	LifeExpectancy *int      `json:"life_expectancy"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Owner returns the user id the record belongs to.
func (r ProfileRecord) Owner() string { return r.UserID }

// NewProfileRecord captures p for userID.
func NewProfileRecord(userID string, p temporal.Profile, at time.Time) ProfileRecord {
	r := ProfileRecord{UserID: userID, UpdatedAt: at.UTC()}
	if p.UserName != nil {
		n := *p.UserName
		r.Name = &n
	}
	if p.Birth != nil {
		d, m, y := p.Birth.Day, int(p.Birth.Month), p.Birth.Year
		r.BirthDay, r.BirthMonth, r.BirthYear = &d, &m, &y
	}
	if p.HasLifeExpectancy() {
		le := p.LifeExpectancy
		r.LifeExpectancy = &le
	}
	return r
}

// Profile converts the record back. A birth date that is partial or not a
// real calendar day is dropped; a missing life expectancy becomes the default.
func (r ProfileRecord) Profile() temporal.Profile {
	p := temporal.Profile{LifeExpectancy: config.DefaultLifeExpectancy}
	if r.Name != nil {
		n := *r.Name
		p.UserName = &n
	}
	if r.LifeExpectancy != nil {
		p = p.WithLifeExpectancy(*r.LifeExpectancy)
	}
	if r.BirthDay != nil && r.BirthMonth != nil && r.BirthYear != nil {
		if d, err := weeks.NewDate(*r.BirthYear, time.Month(*r.BirthMonth), *r.BirthDay); err == nil {
			p.Birth = &d
		}
	}
	return p
}

// MilestonesRecord carries milestones and both custom catalogs as one document.
type MilestonesRecord struct {
	UserID    string              `json:"user_id"`
	Data      annotation.SyncData `json:"milestones_data"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Owner returns the user id the record belongs to.
func (r MilestonesRecord) Owner() string { return r.UserID }

// SelectionsRecord carries the persisted selection sets as one document.
type SelectionsRecord struct {
	UserID    string              `json:"user_id"`
	Data      selection.Persisted `json:"selections_data"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Owner returns the user id the record belongs to.
func (r SelectionsRecord) Owner() string { return r.UserID }
