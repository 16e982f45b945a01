package remote_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"github.com/tartampluch/go-lifegrid/internal/selection"
	"github.com/tartampluch/go-lifegrid/internal/temporal"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestProfileRecord_RoundTrip(t *testing.T) {
	birth, err := weeks.NewDate(1990, time.May, 17)
	require.NoError(t, err)
	p := temporal.Profile{Birth: &birth, UserName: annotation.Ptr("Ada")}.WithLifeExpectancy(90)

	rec := remote.NewProfileRecord("u1", p, at)
	assert.Equal(t, "u1", rec.Owner())
	assert.Equal(t, 17, *rec.BirthDay)
	assert.Equal(t, 5, *rec.BirthMonth)

	got := rec.Profile()
	assert.Equal(t, birth, *got.Birth)
	assert.Equal(t, 90, got.LifeExpectancy)
	assert.Equal(t, "Ada", *got.UserName)
}

func TestProfileRecord_WireColumns(t *testing.T) {
	rec := remote.NewProfileRecord("u1", temporal.Profile{}.WithLifeExpectancy(80), at)
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"user_id": "u1",
		"name": null,
		"birth_day": null,
		"birth_month": null,
		"birth_year": null,
		"life_expectancy": 80,
		"updated_at": "2026-03-01T12:00:00Z"
	}`, string(b))
}

func TestProfileRecord_DefaultLifeExpectancyIsNull(t *testing.T) {
	rec := remote.NewProfileRecord("u1", temporal.Profile{LifeExpectancy: 80}, at)
	assert.Nil(t, rec.LifeExpectancy)
	assert.False(t, rec.Profile().HasLifeExpectancy())
	assert.Equal(t, 80, rec.Profile().LifeExpectancy)
}

func TestProfileRecord_ProfileDegrades(t *testing.T) {
	tests := []struct {
		name      string
		rec       remote.ProfileRecord
		wantBirth bool
		wantLE    int
	}{
		{"Empty", remote.ProfileRecord{UserID: "u"}, false, 80},
		{"PartialBirth", remote.ProfileRecord{BirthDay: annotation.Ptr(1), BirthYear: annotation.Ptr(1990)}, false, 80},
		{"ImpossibleDate", remote.ProfileRecord{BirthDay: annotation.Ptr(31), BirthMonth: annotation.Ptr(2), BirthYear: annotation.Ptr(1990)}, false, 80},
		{"LifeExpectancyOutOfRange", remote.ProfileRecord{LifeExpectancy: annotation.Ptr(400)}, false, 80},
		{"Valid", remote.ProfileRecord{BirthDay: annotation.Ptr(1), BirthMonth: annotation.Ptr(1), BirthYear: annotation.Ptr(2000), LifeExpectancy: annotation.Ptr(70)}, true, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.rec.Profile()
			assert.Equal(t, tt.wantBirth, p.HasBirthDate())
			assert.Equal(t, tt.wantLE, p.LifeExpectancy)
			assert.Nil(t, p.UserName)
		})
	}
}

func TestDocumentRecords_WireKeys(t *testing.T) {
	m := remote.MilestonesRecord{
		UserID: "u1",
		Data: annotation.SyncData{
			Milestones: map[string]annotation.Milestone{"15": {WeekNumber: "15", Category: annotation.Ptr("happy")}},
		},
		UpdatedAt: at,
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Contains(t, raw, "milestones_data")
	assert.Contains(t, string(raw["milestones_data"]), `"category":"happy"`)

	s := remote.SelectionsRecord{UserID: "u1", Data: selection.Persisted{SelectedWeeks: []int{1, 2}, PinnedWeeks: []int{}}}
	b, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"selections_data":{"selectedWeeks":[1,2],"pinnedWeeks":[]}`)
}

func TestMemoryEndpoint(t *testing.T) {
	ctx := context.Background()
	ep := remote.NewMemoryEndpoint[remote.SelectionsRecord]()

	_, ok, err := ep.Fetch(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "absent record")

	rec := remote.SelectionsRecord{UserID: "u1", Data: selection.Persisted{SelectedWeeks: []int{3}}}
	require.NoError(t, ep.Upsert(ctx, rec))
	rec.Data.SelectedWeeks[0] = 99

	got, ok, err := ep.Fetch(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{3}, got.Data.SelectedWeeks, "stored copy is isolated")

	require.NoError(t, ep.Upsert(ctx, remote.SelectionsRecord{UserID: "u1", Data: selection.Persisted{SelectedWeeks: []int{4}}}))
	got, _ = ep.Stored("u1")
	assert.Equal(t, []int{4}, got.Data.SelectedWeeks, "upsert replaces")

	fetches, upserts := ep.Calls()
	assert.Equal(t, 2, fetches)
	assert.Equal(t, 2, upserts)
}

func TestMemoryEndpoint_Errors(t *testing.T) {
	ctx := context.Background()
	ep := remote.NewMemoryEndpoint[remote.ProfileRecord]()

	assert.ErrorIs(t, ep.Upsert(ctx, remote.ProfileRecord{}), remote.ErrUserIDEmpty)
	_, _, err := ep.Fetch(ctx, "")
	assert.ErrorIs(t, err, remote.ErrUserIDEmpty)

	ep.FailFetch(remote.ErrInjected)
	_, _, err = ep.Fetch(ctx, "u1")
	assert.ErrorIs(t, err, remote.ErrInjected)

	ep.FailUpsert(remote.ErrInjected)
	assert.ErrorIs(t, ep.Upsert(ctx, remote.ProfileRecord{UserID: "u1"}), remote.ErrInjected)
	_, ok := ep.Stored("u1")
	assert.False(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = ep.Fetch(cancelled, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
