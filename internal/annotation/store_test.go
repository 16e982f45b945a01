package annotation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/gateway"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

// fakeTranslator answers from a fixed table.
type fakeTranslator map[string]string

func (f fakeTranslator) Lookup(id string) (string, bool) {
	v, ok := f[id]
	return v, ok
}

var createdAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*annotation.Store, *gateway.Gateway, *gateway.MemoryBackend) {
	t.Helper()
	mem := gateway.NewMemoryBackend()
	g := gateway.New(mem)
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return annotation.New(g, annotation.WithClock(weeks.FixedClock{At: createdAt})), g, mem
}

func writes(t *testing.T, g *gateway.Gateway, mem *gateway.MemoryBackend) int {
	t.Helper()
	require.NoError(t, g.Flush(context.Background()))
	return mem.Writes(config.ScopeMilestones)
}

func TestSetMilestone(t *testing.T) {
	s, g, mem := newStore(t)

	s.SetMilestone(12, annotation.Milestone{Title: annotation.Ptr("First job")})
	m, ok := s.Milestone(12)
	require.True(t, ok)
	assert.Equal(t, "12", m.WeekNumber)
	assert.Equal(t, "First job", *m.Title)

	// Identical content is not a change.
	s.SetMilestone(12, annotation.Milestone{Title: annotation.Ptr("First job")})
	assert.Equal(t, 1, writes(t, g, mem))
}

func TestSetMilestone_EmptyRemoves(t *testing.T) {
	s, g, mem := newStore(t)
	s.SetMilestone(3, annotation.Milestone{Category: annotation.Ptr("happy")})

	s.SetMilestone(3, annotation.Milestone{})
	_, ok := s.Milestone(3)
	assert.False(t, ok, "an all-empty milestone is the same as none")

	s.SetMilestone(4, annotation.Milestone{})
	assert.Equal(t, 0, s.MilestoneCount())
	assert.Equal(t, 2, writes(t, g, mem))
}

func TestDeleteMilestone_MissingIsNoop(t *testing.T) {
	s, g, mem := newStore(t)
	s.SetMilestone(1, annotation.Milestone{Title: annotation.Ptr("a")})
	before := s.Milestones()

	s.DeleteMilestone(999)
	assert.Equal(t, before, s.Milestones())
	assert.Equal(t, 1, writes(t, g, mem))

	s.DeleteMilestone(1)
	assert.Empty(t, s.Milestones())
	assert.Equal(t, 2, writes(t, g, mem))
}

func TestSetMilestones_BatchSingleWrite(t *testing.T) {
	s, g, mem := newStore(t)
	s.SetMilestone(5, annotation.Milestone{Title: annotation.Ptr("old")})

	s.SetMilestones(map[int]annotation.Milestone{
		5:  {},
		6:  {Category: annotation.Ptr("love"), Color: annotation.Ptr("love")},
		7:  {Category: annotation.Ptr("love"), Color: annotation.Ptr("love")},
		-1: {Title: annotation.Ptr("ignored")},
	})

	assert.Equal(t, []int{6, 7}, s.SortedWeeks())
	assert.Equal(t, 2, writes(t, g, mem))
}

func TestMilestonesInRange(t *testing.T) {
	mem := gateway.NewMemoryBackend()
	require.NoError(t, mem.Write(config.ScopeMilestones, []byte(`{
		"milestones": {
			"15": {"weekNumber": "15", "title": "in"},
			"25": {"weekNumber": "25", "title": "out"},
			"10": {"weekNumber": "10", "title": "edge"},
			"abc": {"weekNumber": "abc", "title": "bad key"}
		}
	}`)))
	g := gateway.New(mem)
	defer func() { _ = g.Close(context.Background()) }()

	s := annotation.New(g)
	got := s.MilestonesInRange(10, 20)

	assert.Contains(t, got, "15")
	assert.Contains(t, got, "10")
	assert.NotContains(t, got, "25")
	assert.NotContains(t, got, "abc")
	assert.Equal(t, []int{10, 15, 25}, s.SortedWeeks())
}

func TestMilestonesByCategory(t *testing.T) {
	s, _, _ := newStore(t)
	s.SetMilestone(1, annotation.Milestone{Category: annotation.Ptr("happy")})
	s.SetMilestone(2, annotation.Milestone{Category: annotation.Ptr("happy-ish")})
	s.SetMilestone(3, annotation.Milestone{Title: annotation.Ptr("no category")})

	got := s.MilestonesByCategory("happy")
	assert.Len(t, got, 1)
	assert.Contains(t, got, "1")
}

func TestCategories_CustomWins(t *testing.T) {
	s, g, mem := newStore(t)
	builtin := annotation.BuiltinCategories()
	require.Len(t, builtin, 15)
	require.True(t, annotation.IsBuiltin("happy"))

	custom := annotation.MoodCategory{Color: "bg-black", Label: "Custom Happy"}
	s.AddCustomCategory("happy", custom)
	s.AddCustomCategory("work", annotation.MoodCategory{Color: "bg-slate-500", Label: "Work"})

	eff := s.EffectiveCategories()
	assert.Equal(t, custom, eff["happy"], "built-in definition must not be observable")
	assert.Contains(t, eff, "work")
	assert.Len(t, eff, 16)
	assert.Equal(t, "bg-green-400", annotation.BuiltinCategories()["happy"].Color, "built-ins are immutable")

	s.RemoveCustomCategory("happy")
	assert.Equal(t, builtin["happy"], s.EffectiveCategories()["happy"])

	s.RemoveCustomCategory("missing")
	assert.Equal(t, 3, writes(t, g, mem))

	c, ok := s.Category("work")
	assert.True(t, ok)
	assert.Equal(t, "Work", c.Label)
	_, ok = s.Category("nope")
	assert.False(t, ok)
}

func TestLocalizedCategories(t *testing.T) {
	s, _, _ := newStore(t)
	s.AddCustomCategory("sad", annotation.MoodCategory{Color: "bg-blue-900", Label: "Blue"})

	got := s.LocalizedCategories(fakeTranslator{
		"category_happy": "Heureux",
		"category_sad":   "Triste",
	})

	assert.Equal(t, "Heureux", got["happy"].Label)
	assert.Equal(t, "Blue", got["sad"].Label, "custom labels are never translated")
	assert.Equal(t, "Calm", got["calm"].Label, "missing translations keep the built-in label")
}

func TestCustomMoods(t *testing.T) {
	s, g, mem := newStore(t)
	moods := map[string]annotation.MoodCategory{"meh": {Color: "bg-gray-200", Label: "Meh"}}

	s.SetCustomMoods(moods)
	s.SetCustomMoods(moods)
	assert.Equal(t, moods, s.CustomMoods())
	assert.Equal(t, 1, writes(t, g, mem))
}

func TestGoals_OrderAndIndexErrors(t *testing.T) {
	s, g, mem := newStore(t)

	a := s.AddGoal(annotation.Goal{Title: "Run a marathon", TargetWeek: annotation.Ptr(2000)})
	b := s.AddGoal(annotation.Goal{Title: "Learn Go"})
	c := s.AddGoal(annotation.Goal{Title: "Write a book"})

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, createdAt, a.CreatedAt)

	require.NoError(t, s.UpdateGoal(1, annotation.Goal{Title: "Master Go"}))
	updated := s.Goals()[1]
	assert.Equal(t, "Master Go", updated.Title)
	assert.Equal(t, b.ID, updated.ID, "update keeps the id when none is given")

	assert.ErrorIs(t, s.UpdateGoal(3, annotation.Goal{Title: "x"}), annotation.ErrGoalNotFound)
	assert.ErrorIs(t, s.UpdateGoal(-1, annotation.Goal{Title: "x"}), annotation.ErrGoalNotFound)
	assert.ErrorIs(t, s.DeleteGoal(7), annotation.ErrGoalNotFound)
	assert.Equal(t, 4, writes(t, g, mem), "out-of-range calls do not write")

	require.NoError(t, s.DeleteGoal(0))
	goals := s.Goals()
	require.Len(t, goals, 2)
	assert.Equal(t, b.ID, goals[0].ID)
	assert.Equal(t, c.ID, goals[1].ID)
}

func TestGoals_ByID(t *testing.T) {
	s, _, _ := newStore(t)
	g := s.AddGoal(annotation.Goal{Title: "Travel", TargetWeek: annotation.Ptr(100)})

	require.NoError(t, s.CompleteGoal(g.ID, true))
	found, ok := s.GoalByID(g.ID)
	require.True(t, ok)
	assert.True(t, found.Completed)

	assert.ErrorIs(t, s.CompleteGoal(uuid.New(), true), annotation.ErrGoalIDNotFound)
	_, ok = s.GoalByID(uuid.New())
	assert.False(t, ok)
}

func TestGoalsDueBy(t *testing.T) {
	s, _, _ := newStore(t)
	s.AddGoal(annotation.Goal{Title: "due", TargetWeek: annotation.Ptr(10)})
	s.AddGoal(annotation.Goal{Title: "later", TargetWeek: annotation.Ptr(50)})
	s.AddGoal(annotation.Goal{Title: "open"})
	done := s.AddGoal(annotation.Goal{Title: "done", TargetWeek: annotation.Ptr(5)})
	require.NoError(t, s.CompleteGoal(done.ID, true))

	due := s.GoalsDueBy(20)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].Title)
}

func TestRoundTrip(t *testing.T) {
	s, g, _ := newStore(t)
	date := time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)

	s.SetMilestone(520, annotation.Milestone{
		Category: annotation.Ptr("growth"),
		Title:    annotation.Ptr("Graduation"),
		Date:     &date,
	})
	s.AddCustomCategory("work", annotation.MoodCategory{Color: "bg-slate-500", Label: "Work"})
	s.AddGoal(annotation.Goal{Title: "One", Description: annotation.Ptr("first")})
	s.AddGoal(annotation.Goal{Title: "Two"})
	require.NoError(t, g.Flush(context.Background()))

	reloaded := annotation.New(g)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())

	m, ok := reloaded.Milestone(520)
	require.True(t, ok)
	assert.Nil(t, m.Description, "absent stays absent")
	assert.Nil(t, m.Color)
	assert.Nil(t, reloaded.CustomCategories()["work"].Icon)
	assert.Nil(t, reloaded.Goals()[1].TargetWeek)
	assert.Equal(t, "Two", reloaded.Goals()[1].Title, "goal order survives reload")
}

func TestReplaceKeepsGoals(t *testing.T) {
	s, _, _ := newStore(t)
	s.SetMilestone(1, annotation.Milestone{Title: annotation.Ptr("local")})
	s.AddGoal(annotation.Goal{Title: "keep me"})

	remote := annotation.SyncData{
		Milestones: map[string]annotation.Milestone{
			"9": {Title: annotation.Ptr("remote")},
		},
	}
	s.Replace(remote)

	assert.Equal(t, []int{9}, s.SortedWeeks())
	m, _ := s.Milestone(9)
	assert.Equal(t, "9", m.WeekNumber, "week number is derived from the key")
	assert.Empty(t, remote.Milestones["9"].WeekNumber, "caller map is not modified")
	assert.Len(t, s.Goals(), 1)
	assert.NotNil(t, s.CustomCategories())
}

func TestSubscribersGetCopies(t *testing.T) {
	s, _, _ := newStore(t)
	var got annotation.Data
	s.Subscribe(func(d annotation.Data) { got = d })

	s.SetMilestone(2, annotation.Milestone{Title: annotation.Ptr("x")})
	require.Contains(t, got.Milestones, "2")

	*got.Milestones["2"].Title = "tampered"
	m, _ := s.Milestone(2)
	assert.Equal(t, "x", *m.Title)
}
