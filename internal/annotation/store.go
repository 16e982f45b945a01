// Package annotation owns milestones, mood categories and goals.
package annotation

import (
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/observe"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

var (
	// ErrGoalNotFound is returned for a goal index outside the list.
	ErrGoalNotFound = errors.New(config.ErrGoalNotFound)
	// ErrGoalIDNotFound is returned when no goal has the requested id.
	ErrGoalIDNotFound = errors.New(config.ErrGoalIDNotFound)
)

// Persister is the subset of the persistence gateway the store needs.
type Persister interface {
	Save(scope string, snapshot any)
	Load(scope string, dst any) (bool, error)
}

// Data is the persisted blob.
type Data struct {
	Milestones       map[string]Milestone    `json:"milestones"`
	CustomCategories map[string]MoodCategory `json:"customCategories"`
	CustomMoods      map[string]MoodCategory `json:"customMoods"`
	Goals            []Goal                  `json:"goals"`
}

// SyncData is the part of the blob mirrored to the remote milestones record.
type SyncData struct {
	Milestones       map[string]Milestone    `json:"milestones"`
	CustomMoods      map[string]MoodCategory `json:"customMoods"`
	CustomCategories map[string]MoodCategory `json:"customCategories"`
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics counts mutations on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// WithClock sets the clock used to stamp new goals.
func WithClock(c weeks.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Store is safe for concurrent use.
type Store struct {
	persist Persister
	metrics *metrics.Collector
	clock   weeks.Clock
	changes observe.Topic[Data]

	mu   sync.RWMutex
	data Data
}

// New loads the persisted blob, if any.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		persist: p,
		clock:   weeks.RealClock{},
		data:    emptyData(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var blob Data
	ok, err := p.Load(config.ScopeMilestones, &blob)
	if err != nil {
		slog.Warn(config.MsgLoadFailed,
			config.LogKeyComponent, config.CompAnnotation,
			config.LogKeyError, err)
	}
	if ok {
		s.data = normalize(blob)
	}
	return s
}

func emptyData() Data {
	return Data{
		Milestones:       map[string]Milestone{},
		CustomCategories: map[string]MoodCategory{},
		CustomMoods:      map[string]MoodCategory{},
		Goals:            []Goal{},
	}
}

// normalize replaces nil collections so snapshots compare equal after a round trip.
func normalize(d Data) Data {
	if d.Milestones == nil {
		d.Milestones = map[string]Milestone{}
	}
	for k, m := range d.Milestones {
		m.WeekNumber = k
		d.Milestones[k] = m
	}
	if d.CustomCategories == nil {
		d.CustomCategories = map[string]MoodCategory{}
	}
	if d.CustomMoods == nil {
		d.CustomMoods = map[string]MoodCategory{}
	}
	if d.Goals == nil {
		d.Goals = []Goal{}
	}
	return d
}

func (d Data) clone() Data {
	out := Data{
		Milestones:       make(map[string]Milestone, len(d.Milestones)),
		CustomCategories: cloneCategories(d.CustomCategories),
		CustomMoods:      cloneCategories(d.CustomMoods),
		Goals:            make([]Goal, len(d.Goals)),
	}
	for k, m := range d.Milestones {
		out.Milestones[k] = m.clone()
	}
	for i, g := range d.Goals {
		out.Goals[i] = g.clone()
	}
	return out
}

// Subscribe registers fn for every change.
func (s *Store) Subscribe(fn func(Data)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

// Snapshot returns a deep copy of the whole blob.
func (s *Store) Snapshot() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.clone()
}

// Shared returns the fields mirrored to the remote record.
func (s *Store) Shared() SyncData {
	d := s.Snapshot()
	return SyncData{
		Milestones:       d.Milestones,
		CustomMoods:      d.CustomMoods,
		CustomCategories: d.CustomCategories,
	}
}

// Replace overwrites milestones and both custom catalogs with a remote record.
// Goals are local only and stay untouched.
func (s *Store) Replace(sd SyncData) {
	next := normalize(Data{
		Milestones:       sd.Milestones,
		CustomCategories: sd.CustomCategories,
		CustomMoods:      sd.CustomMoods,
	}.clone())

	s.mutate(func(d *Data) bool {
		d.Milestones = next.Milestones
		d.CustomCategories = next.CustomCategories
		d.CustomMoods = next.CustomMoods
		return true
	})
}

// -----------------------------------------------------------------------------
// Milestones
// -----------------------------------------------------------------------------

// SetMilestone stores m for week w. An empty milestone deletes the entry.
func (s *Store) SetMilestone(w int, m Milestone) {
	s.SetMilestones(map[int]Milestone{w: m})
}

// SetMilestones applies several milestones in one change and one write.
// Empty milestones delete their week; non-positive weeks are ignored.
func (s *Store) SetMilestones(batch map[int]Milestone) {
	entries := make(map[string]Milestone, len(batch))
	for w, m := range batch {
		if w < 1 {
			continue
		}
		m = m.clone()
		m.WeekNumber = Key(w)
		entries[m.WeekNumber] = m
	}

	s.mutate(func(d *Data) bool {
		changed := false
		for k, m := range entries {
			old, exists := d.Milestones[k]
			switch {
			case m.IsEmpty() && exists:
				delete(d.Milestones, k)
				changed = true
			case m.IsEmpty():
			case !exists || !old.Equal(m):
				d.Milestones[k] = m
				changed = true
			}
		}
		return changed
	})
}

// DeleteMilestone removes the milestone of week w. A missing week is a no-op.
func (s *Store) DeleteMilestone(w int) {
	k := Key(w)
	s.mutate(func(d *Data) bool {
		if _, ok := d.Milestones[k]; !ok {
			return false
		}
		delete(d.Milestones, k)
		return true
	})
}

// ClearMilestones removes every milestone.
func (s *Store) ClearMilestones() {
	s.mutate(func(d *Data) bool {
		if len(d.Milestones) == 0 {
			return false
		}
		d.Milestones = map[string]Milestone{}
		return true
	})
}

// Milestone returns the milestone of week w.
func (s *Store) Milestone(w int) (Milestone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data.Milestones[Key(w)]
	return m.clone(), ok
}

// Milestones returns a copy of every milestone keyed by week string.
func (s *Store) Milestones() map[string]Milestone {
	return s.filter(func(string, Milestone) bool { return true })
}

// MilestoneCount returns the number of annotated weeks.
func (s *Store) MilestoneCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Milestones)
}

// MilestonesInRange returns milestones whose key parses to a week within
// [start, end]. Keys that are not integers are skipped.
func (s *Store) MilestonesInRange(start, end int) map[string]Milestone {
	return s.filter(func(k string, _ Milestone) bool {
		w, err := strconv.Atoi(k)
		return err == nil && w >= start && w <= end
	})
}

// MilestonesByCategory returns milestones whose category equals key exactly.
func (s *Store) MilestonesByCategory(key string) map[string]Milestone {
	return s.filter(func(_ string, m Milestone) bool {
		return m.Category != nil && *m.Category == key
	})
}

// SortedWeeks returns the annotated weeks in ascending order, skipping bad keys.
func (s *Store) SortedWeeks() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.data.Milestones))
	for _, m := range s.data.Milestones {
		if w, ok := m.Week(); ok {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Store) filter(keep func(string, Milestone) bool) map[string]Milestone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Milestone)
	for k, m := range s.data.Milestones {
		if keep(k, m) {
			out[k] = m.clone()
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Categories
// -----------------------------------------------------------------------------

// EffectiveCategories merges the built-in catalog with the custom one; custom wins.
func (s *Store) EffectiveCategories() map[string]MoodCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mergeCategories(builtins, s.data.CustomCategories)
}

// LocalizedCategories is EffectiveCategories with built-in labels translated.
func (s *Store) LocalizedCategories(tr Translator) map[string]MoodCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return localize(mergeCategories(builtins, s.data.CustomCategories), s.data.CustomCategories, tr)
}

// Category resolves key against the effective catalog.
func (s *Store) Category(key string) (MoodCategory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.data.CustomCategories[key]; ok {
		return c.clone(), true
	}
	c, ok := builtins[key]
	return c.clone(), ok
}

// CustomCategories returns a copy of the user-defined catalog.
func (s *Store) CustomCategories() map[string]MoodCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCategories(s.data.CustomCategories)
}

// AddCustomCategory adds or overrides a category.
func (s *Store) AddCustomCategory(key string, c MoodCategory) {
	c = c.clone()
	s.mutate(func(d *Data) bool {
		if old, ok := d.CustomCategories[key]; ok && old.equal(c) {
			return false
		}
		d.CustomCategories[key] = c
		return true
	})
}

// RemoveCustomCategory removes a custom category. A built-in with the same key
// becomes visible again.
func (s *Store) RemoveCustomCategory(key string) {
	s.mutate(func(d *Data) bool {
		if _, ok := d.CustomCategories[key]; !ok {
			return false
		}
		delete(d.CustomCategories, key)
		return true
	})
}

// SetCustomCategories replaces the custom catalog.
func (s *Store) SetCustomCategories(cats map[string]MoodCategory) {
	next := cloneCategories(cats)
	s.mutate(func(d *Data) bool {
		if equalCategories(d.CustomCategories, next) {
			return false
		}
		d.CustomCategories = next
		return true
	})
}

// CustomMoods returns a copy of the custom mood collection.
func (s *Store) CustomMoods() map[string]MoodCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCategories(s.data.CustomMoods)
}

// SetCustomMoods replaces the custom mood collection.
func (s *Store) SetCustomMoods(moods map[string]MoodCategory) {
	next := cloneCategories(moods)
	s.mutate(func(d *Data) bool {
		if equalCategories(d.CustomMoods, next) {
			return false
		}
		d.CustomMoods = next
		return true
	})
}

// -----------------------------------------------------------------------------
// Goals
// -----------------------------------------------------------------------------

// Goals returns the goals in insertion order.
func (s *Store) Goals() []Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Goal, len(s.data.Goals))
	for i, g := range s.data.Goals {
		out[i] = g.clone()
	}
	return out
}

// AddGoal appends g, assigning an id and creation time when missing.
func (s *Store) AddGoal(g Goal) Goal {
	g = g.clone()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.clock.Now().UTC()
	}
	s.mutate(func(d *Data) bool {
		d.Goals = append(d.Goals, g)
		return true
	})
	return g.clone()
}

// UpdateGoal replaces the goal at index. The id and creation time of the
// existing goal are kept when g leaves them zero.
// An index outside the list returns ErrGoalNotFound and changes nothing.
func (s *Store) UpdateGoal(index int, g Goal) error {
	g = g.clone()
	var err error
	s.mutate(func(d *Data) bool {
		if index < 0 || index >= len(d.Goals) {
			err = ErrGoalNotFound
			return false
		}
		old := d.Goals[index]
		if g.ID == uuid.Nil {
			g.ID = old.ID
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = old.CreatedAt
		}
		d.Goals[index] = g
		return true
	})
	if err != nil {
		slog.Warn(config.MsgGoalOutOfRange,
			config.LogKeyComponent, config.CompAnnotation,
			config.LogKeyIndex, index)
	}
	return err
}

// DeleteGoal removes the goal at index, keeping the order of the rest.
// An index outside the list returns ErrGoalNotFound and changes nothing.
func (s *Store) DeleteGoal(index int) error {
	var err error
	s.mutate(func(d *Data) bool {
		if index < 0 || index >= len(d.Goals) {
			err = ErrGoalNotFound
			return false
		}
		d.Goals = slices.Delete(d.Goals, index, index+1)
		return true
	})
	if err != nil {
		slog.Warn(config.MsgGoalOutOfRange,
			config.LogKeyComponent, config.CompAnnotation,
			config.LogKeyIndex, index)
	}
	return err
}

// GoalByID finds a goal by id.
func (s *Store) GoalByID(id uuid.UUID) (Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.data.Goals {
		if g.ID == id {
			return g.clone(), true
		}
	}
	return Goal{}, false
}

// CompleteGoal sets the completed flag of the goal with the given id.
func (s *Store) CompleteGoal(id uuid.UUID, done bool) error {
	err := ErrGoalIDNotFound
	s.mutate(func(d *Data) bool {
		for i := range d.Goals {
			if d.Goals[i].ID != id {
				continue
			}
			err = nil
			if d.Goals[i].Completed == done {
				return false
			}
			d.Goals[i].Completed = done
			return true
		}
		return false
	})
	return err
}

// SetGoals replaces the whole list.
func (s *Store) SetGoals(goals []Goal) {
	next := make([]Goal, len(goals))
	for i, g := range goals {
		next[i] = g.clone()
	}
	s.mutate(func(d *Data) bool {
		d.Goals = next
		return true
	})
}

// GoalsDueBy returns incomplete goals targeting a week at or before w.
func (s *Store) GoalsDueBy(w int) []Goal {
	return slices.DeleteFunc(s.Goals(), func(g Goal) bool {
		return g.Completed || g.TargetWeek == nil || *g.TargetWeek > w
	})
}

// mutate applies fn under the write lock and, on change, persists and
// publishes a deep copy.
func (s *Store) mutate(fn func(d *Data) bool) {
	s.mu.Lock()
	if !fn(&s.data) {
		s.mu.Unlock()
		return
	}
	snap := s.data.clone()
	s.persist.Save(config.ScopeMilestones, snap)
	s.mu.Unlock()

	s.metrics.RecordMutation(config.CompAnnotation)
	// Subscribers get their own copy so they cannot reach the persisted one.
	s.changes.Publish(snap.clone())
}
