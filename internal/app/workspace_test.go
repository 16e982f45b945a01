package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/app"
	"github.com/tartampluch/go-lifegrid/internal/auth"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/gateway"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
	"github.com/zalando/go-keyring"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newWorkspace(t *testing.T, opts ...app.Option) (*app.Workspace, *gateway.MemoryBackend) {
	t.Helper()
	backend := gateway.NewMemoryBackend()
	opts = append([]app.Option{app.WithClock(weeks.FixedClock{At: now}), app.WithLanguage("en")}, opts...)
	ws := app.New(backend, opts...)
	t.Cleanup(func() { _ = ws.Close(context.Background()) })
	return ws, backend
}

func TestTapWeek_WithoutPaintToggles(t *testing.T) {
	ws, _ := newWorkspace(t)

	ws.TapWeek(12)
	assert.True(t, ws.Selection.IsWeekSelected(12))
	ws.TapWeek(12)
	assert.False(t, ws.Selection.IsWeekSelected(12))
	assert.Zero(t, ws.Notes.MilestoneCount())

	ws.TapWeek(0)
	assert.Zero(t, ws.Selection.SelectionCount())
}

func TestTapWeek_PaintsActiveCategory(t *testing.T) {
	ws, _ := newWorkspace(t)
	ws.Notes.SetMilestone(12, annotation.Milestone{Title: annotation.Ptr("Graduation")})
	ws.Selection.SetSelectedColor("happy")

	ws.TapWeek(12)
	ws.TapWeek(12)

	m, ok := ws.Notes.Milestone(12)
	require.True(t, ok)
	assert.Equal(t, "happy", *m.Category)
	assert.Equal(t, "bg-green-400", *m.Color)
	assert.Equal(t, "Graduation", *m.Title, "painting keeps existing fields")
	assert.True(t, ws.Selection.IsWeekSelected(12), "painting never deselects")
}

func TestTapWeek_UnknownCategoryHasNoColor(t *testing.T) {
	ws, _ := newWorkspace(t)
	ws.Selection.SetSelectedColor("mystery")

	ws.TapWeek(3)
	m, ok := ws.Notes.Milestone(3)
	require.True(t, ok)
	assert.Equal(t, "mystery", *m.Category)
	assert.Nil(t, m.Color)
}

func TestCommitDrag(t *testing.T) {
	ws, backend := newWorkspace(t)
	ws.Selection.SetSelectedColor("calm")

	ws.Selection.BeginDrag(5)
	ws.Selection.DragOver(6)
	ws.Selection.DragOver(7)
	committed := ws.CommitDrag()

	assert.Equal(t, []int{5, 6, 7}, committed)
	for _, w := range committed {
		m, ok := ws.Notes.Milestone(w)
		require.True(t, ok)
		assert.Equal(t, "calm", *m.Category)
		assert.True(t, ws.Selection.IsWeekSelected(w))
	}

	require.NoError(t, ws.Gateway.Flush(context.Background()))
	assert.Equal(t, 1, backend.Writes(config.ScopeMilestones), "a drag is committed in one write")

	assert.Nil(t, ws.CommitDrag(), "no drag in progress")
}

func TestCommitDrag_WithoutPaintOnlySelects(t *testing.T) {
	ws, _ := newWorkspace(t)
	ws.Selection.BeginDrag(9)
	ws.Selection.DragOver(10)

	assert.Equal(t, []int{9, 10}, ws.CommitDrag())
	assert.Zero(t, ws.Notes.MilestoneCount())
	assert.Equal(t, 2, ws.Selection.SelectionCount())
}

func TestPaintRange(t *testing.T) {
	ws, _ := newWorkspace(t)
	assert.False(t, ws.PaintRange(1, 3), "no active paint")

	ws.Selection.SetSelectedColor("growth")
	assert.True(t, ws.PaintRange(4, -2))
	assert.Equal(t, []int{1, 2, 3, 4}, ws.Notes.SortedWeeks())
}

func TestCompleteProfile_LocalOnly(t *testing.T) {
	ws, _ := newWorkspace(t)

	err := ws.CompleteProfile(context.Background(), "Ada", weeks.Date{Year: 1990, Month: time.March, Day: 3}, 85)
	require.NoError(t, err)
	p := ws.Profile.Snapshot()
	assert.Equal(t, "Ada", *p.UserName)
	assert.Equal(t, 85, p.LifeExpectancy)
	assert.Positive(t, p.CurrentWeek)

	err = ws.CompleteProfile(context.Background(), "Ada", weeks.Date{Year: 1990, Month: time.February, Day: 30}, 85)
	assert.Error(t, err)
}

func TestCompleteProfile_PushesWhenSignedIn(t *testing.T) {
	eps, profiles, _, _ := remote.NewMemoryEndpoints()
	session := auth.New("", auth.WithoutKeyring())
	ws, _ := newWorkspace(t, app.WithRemote(eps), app.WithSession(session))
	require.NotNil(t, ws.Sync)

	birth := weeks.Date{Year: 1990, Month: time.March, Day: 3}
	require.NoError(t, ws.CompleteProfile(context.Background(), "Ada", birth, 85))
	_, ok := profiles.Stored("u1")
	assert.False(t, ok, "signed out: nothing leaves the device")

	require.NoError(t, session.SignInAs("u1"))
	require.NoError(t, ws.CompleteProfile(context.Background(), "Ada L.", birth, 85))
	rec, ok := profiles.Stored("u1")
	require.True(t, ok)
	assert.Equal(t, "Ada L.", *rec.Name)
	assert.Equal(t, 1990, *rec.BirthYear)
}

func TestStart_PullsForExistingSession(t *testing.T) {
	eps, profiles, _, _ := remote.NewMemoryEndpoints()
	profiles.Seed(remote.ProfileRecord{UserID: "u1", Name: annotation.Ptr("Remote"), LifeExpectancy: annotation.Ptr(90)})
	session := auth.New("", auth.WithoutKeyring())
	require.NoError(t, session.SignInAs("u1"))

	ws, _ := newWorkspace(t, app.WithRemote(eps), app.WithSession(session))
	ws.Start(context.Background())
	ws.Sync.Wait()

	assert.Equal(t, "Remote", *ws.Profile.Snapshot().UserName)
	assert.Equal(t, 90, ws.Profile.LifeExpectancy())
}

func TestStatusLine(t *testing.T) {
	ws, _ := newWorkspace(t)
	require.NoError(t, ws.Profile.SetBirthData(1, time.January, 2000))

	st := ws.Stats()
	assert.Equal(t, weeks.CurrentWeek(&weeks.Date{Year: 2000, Month: time.January, Day: 1}, now), st.CurrentWeek)
	line := ws.StatusLine()
	assert.Contains(t, line, "Week ")
	assert.Contains(t, line, "of 4160")
	assert.NotContains(t, line, config.TKeyStatusLine)
}

func TestCalendar(t *testing.T) {
	ws, _ := newWorkspace(t)
	_, n, err := ws.Calendar()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, ws.Profile.SetBirthData(1, time.January, 2000))
	ws.Notes.SetMilestone(2, annotation.Milestone{Category: annotation.Ptr("happy")})
	ws.Notes.AddGoal(annotation.Goal{Title: "Marathon", TargetWeek: annotation.Ptr(1500)})

	data, n, err := ws.Calendar()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, string(data), "Goal: Marathon")
}

type recorder struct {
	mu      sync.Mutex
	updates [][]byte
}

func (r *recorder) Update(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, data)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func TestPublish_RerendersOnChange(t *testing.T) {
	ws, _ := newWorkspace(t)
	rec := &recorder{}

	cancel, err := ws.Publish(rec)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count())

	require.NoError(t, ws.Profile.SetBirthData(1, time.January, 2000))
	ws.Notes.SetMilestone(3, annotation.Milestone{Title: annotation.Ptr("First steps")})
	assert.Equal(t, 3, rec.count())
	assert.Contains(t, string(rec.updates[2]), "First steps")

	ws.Selection.ToggleWeek(3)
	assert.Equal(t, 3, rec.count(), "selection changes do not affect the calendar")

	cancel()
	ws.Notes.DeleteMilestone(3)
	assert.Equal(t, 3, rec.count())
}

func TestClose_DrainsWrites(t *testing.T) {
	backend := gateway.NewMemoryBackend()
	ws := app.New(backend, app.WithClock(weeks.FixedClock{At: now}))
	ws.Selection.ToggleWeek(1)
	ws.Prefs.SetDarkMode(true)

	require.NoError(t, ws.Close(context.Background()))
	assert.Equal(t, 1, backend.Writes(config.ScopeSelections))
	assert.Equal(t, 1, backend.Writes(config.ScopeUI))

	reopened := app.New(backend)
	t.Cleanup(func() { _ = reopened.Close(context.Background()) })
	assert.True(t, reopened.Selection.IsWeekSelected(1))
	assert.True(t, reopened.Prefs.DarkMode())
}

func TestOpenBackend(t *testing.T) {
	s := config.Defaults()

	s.Backend = config.BackendMemory
	b, closeFn, err := app.OpenBackend(s, nil)
	require.NoError(t, err)
	assert.IsType(t, &gateway.MemoryBackend{}, b)
	assert.NoError(t, closeFn())

	s.Backend = config.BackendSQLite
	s.StoragePath = ":memory:"
	b, closeFn, err = app.OpenBackend(s, nil)
	require.NoError(t, err)
	assert.IsType(t, &gateway.SQLiteBackend{}, b)
	assert.NoError(t, closeFn())

	s.Backend = config.BackendFyne
	_, _, err = app.OpenBackend(s, nil)
	assert.ErrorIs(t, err, app.ErrFynePrefsMissing)

	a := test.NewApp()
	defer a.Quit()
	b, _, err = app.OpenBackend(s, a.Preferences())
	require.NoError(t, err)
	assert.IsType(t, &gateway.PreferencesBackend{}, b)

	s.Backend = "floppy"
	_, closeFn, err = app.OpenBackend(s, nil)
	assert.ErrorContains(t, err, config.ErrUnknownBackend)
	assert.NotNil(t, closeFn)
}

func TestOpenRemote(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	s := config.Defaults()

	r, err := app.OpenRemote(ctx, s, nil)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, r.Close())

	s.RemoteBackend = config.RemoteREST
	s.RemoteURL = "ftp://example.com"
	_, err = app.OpenRemote(ctx, s, nil)
	assert.Error(t, err)

	require.NoError(t, keyring.Set(config.KeyringService, config.KeyringAPIKey, "from-keyring"))
	s.RemoteURL = "https://project.supabase.co"
	r, err = app.OpenRemote(ctx, s, func() string { return "" })
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.NotNil(t, r.Endpoints.Profiles)
	assert.NotNil(t, r.Endpoints.Milestones)
	assert.NotNil(t, r.Endpoints.Selections)
	assert.NoError(t, r.Close())

	s.RemoteBackend = "carrier-pigeon"
	_, err = app.OpenRemote(ctx, s, nil)
	assert.ErrorContains(t, err, config.ErrUnknownRemote)
}
