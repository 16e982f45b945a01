// Package temporal owns the birth profile and the derived current week.
package temporal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/observe"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

// ErrInvalidDate is returned by SetBirthData when the date does not exist.
var ErrInvalidDate = weeks.ErrInvalidDate

// Persister is the subset of the persistence gateway the store needs.
type Persister interface {
	Save(scope string, snapshot any)
	Load(scope string, dst any) (bool, error)
}

// Profile is an immutable copy of the store state.
type Profile struct {
	Birth          *weeks.Date // nil when no birth date was entered
	LifeExpectancy int         // effective value, the default until set
	UserName       *string     // nil when never set; "" is a deliberate empty name
	CurrentWeek    int

	lifeExpSet bool
}

// HasLifeExpectancy reports whether a life expectancy was chosen rather than
// defaulted.
func (p Profile) HasLifeExpectancy() bool { return p.lifeExpSet }

// WithLifeExpectancy returns p with an explicitly chosen life expectancy,
// normalized into range.
func (p Profile) WithLifeExpectancy(years int) Profile {
	p.LifeExpectancy = weeks.NormalizeLifeExpectancy(years)
	p.lifeExpSet = true
	return p
}

// HasBirthDate reports whether a birth date is set.
func (p Profile) HasBirthDate() bool { return p.Birth != nil }

// TotalWeeks returns the size of the grid.
func (p Profile) TotalWeeks() int { return weeks.TotalWeeks(p.LifeExpectancy) }

func (p Profile) clone() Profile {
	out := p
	if p.Birth != nil {
		b := *p.Birth
		out.Birth = &b
	}
	if p.UserName != nil {
		n := *p.UserName
		out.UserName = &n
	}
	return out
}

// lifeBlob is the persisted form. Pointers keep "absent" distinct from zero.
type lifeBlob struct {
	BirthDay       *int    `json:"birthDay,omitempty"`
	BirthMonth     *int    `json:"birthMonth,omitempty"`
	BirthYear      *int    `json:"birthYear,omitempty"`
	LifeExpectancy *int    `json:"lifeExpectancy,omitempty"`
	UserName       *string `json:"userName,omitempty"`
	CurrentWeek    *int    `json:"currentWeek,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics counts mutations on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// Store holds the birth profile. All methods are safe for concurrent use.
type Store struct {
	persist Persister
	clock   weeks.Clock
	metrics *metrics.Collector
	changes observe.Topic[Profile]

	mu      sync.RWMutex
	profile Profile
}

// New loads the persisted profile, if any, and recomputes the current week
// against clock.
func New(p Persister, clock weeks.Clock, opts ...Option) *Store {
	if clock == nil {
		clock = weeks.RealClock{}
	}
	s := &Store{
		persist: p,
		clock:   clock,
		profile: Profile{LifeExpectancy: config.DefaultLifeExpectancy, CurrentWeek: config.FirstWeek},
	}
	for _, opt := range opts {
		opt(s)
	}

	var blob lifeBlob
	ok, err := p.Load(config.ScopeLife, &blob)
	if err != nil {
		slog.Warn(config.MsgLoadFailed,
			config.LogKeyComponent, config.CompTemporal,
			config.LogKeyError, err)
	}
	if ok {
		s.profile = fromBlob(blob)
	}

	stored := s.profile.CurrentWeek
	s.profile.CurrentWeek = weeks.CurrentWeek(s.profile.Birth, s.clock.Now())
	if ok && stored != s.profile.CurrentWeek {
		s.persist.Save(config.ScopeLife, toBlob(s.profile))
	}
	return s
}

// Snapshot returns a copy of the current profile.
func (s *Store) Snapshot() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.clone()
}

// CurrentWeek returns the derived week index, 1 when no birth date is set.
func (s *Store) CurrentWeek() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.CurrentWeek
}

// LifeExpectancy returns the normalized life expectancy in years.
func (s *Store) LifeExpectancy() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.LifeExpectancy
}

// TotalWeeks returns the number of weeks in the grid.
func (s *Store) TotalWeeks() int {
	return weeks.TotalWeeks(s.LifeExpectancy())
}

// Stats summarizes the grid given how many weeks carry a milestone.
func (s *Store) Stats(milestones int) weeks.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return weeks.ComputeStats(s.profile.CurrentWeek, s.profile.LifeExpectancy, milestones)
}

// Subscribe registers fn for every profile change.
func (s *Store) Subscribe(fn func(Profile)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

// SetBirthData validates and stores the birth date. An invalid date returns
// ErrInvalidDate and leaves the profile untouched.
func (s *Store) SetBirthData(day int, month time.Month, year int) error {
	date, err := weeks.NewDate(year, month, day)
	if err != nil {
		slog.Warn(config.MsgBirthRejected,
			config.LogKeyComponent, config.CompTemporal,
			config.LogKeyValue, []int{day, int(month), year})
		return err
	}

	s.update(func(p *Profile) bool {
		if p.Birth != nil && *p.Birth == date {
			return false
		}
		p.Birth = &date
		p.CurrentWeek = weeks.CurrentWeek(p.Birth, s.clock.Now())
		return true
	})
	return nil
}

// ClearBirthData removes the birth date; the current week falls back to 1.
func (s *Store) ClearBirthData() {
	s.update(func(p *Profile) bool {
		if p.Birth == nil {
			return false
		}
		p.Birth = nil
		p.CurrentWeek = config.FirstWeek
		return true
	})
}

// SetLifeExpectancy stores years, substituting the default when out of range.
func (s *Store) SetLifeExpectancy(years int) {
	normalized := weeks.NormalizeLifeExpectancy(years)
	s.update(func(p *Profile) bool {
		p.LifeExpectancy = normalized
		p.lifeExpSet = true
		return true
	})
}

// SetUserName stores the display name.
func (s *Store) SetUserName(name string) {
	s.update(func(p *Profile) bool {
		p.UserName = &name
		return true
	})
}

// Refresh recomputes the current week against the clock, typically when the
// application resumes. It persists only when the week changed.
func (s *Store) Refresh() int {
	var week int
	s.update(func(p *Profile) bool {
		week = weeks.CurrentWeek(p.Birth, s.clock.Now())
		if week == p.CurrentWeek {
			return false
		}
		slog.Debug(config.MsgWeekRecomputed,
			config.LogKeyComponent, config.CompTemporal,
			config.LogKeyWeek, week)
		p.CurrentWeek = week
		return true
	})
	return week
}

// Replace overwrites every field with next, as done when a remote profile is
// applied. Invalid birth dates are dropped and life expectancy normalized.
func (s *Store) Replace(next Profile) {
	next = next.clone()
	if next.Birth != nil {
		if _, err := weeks.NewDate(next.Birth.Year, next.Birth.Month, next.Birth.Day); err != nil {
			next.Birth = nil
		}
	}
	if next.lifeExpSet {
		next.LifeExpectancy = weeks.NormalizeLifeExpectancy(next.LifeExpectancy)
	} else {
		next.LifeExpectancy = config.DefaultLifeExpectancy
	}

	s.update(func(p *Profile) bool {
		next.CurrentWeek = weeks.CurrentWeek(next.Birth, s.clock.Now())
		*p = next
		return true
	})
}

// update applies fn under the lock; when fn reports a change the new state is
// persisted and published after the lock is released.
func (s *Store) update(fn func(p *Profile) bool) {
	s.mu.Lock()
	if !fn(&s.profile) {
		s.mu.Unlock()
		return
	}
	snap := s.profile.clone()
	s.persist.Save(config.ScopeLife, toBlob(snap))
	s.mu.Unlock()

	s.metrics.RecordMutation(config.CompTemporal)
	s.changes.Publish(snap)
}

func toBlob(p Profile) lifeBlob {
	b := lifeBlob{
		UserName:    p.UserName,
		CurrentWeek: &p.CurrentWeek,
	}
	if p.lifeExpSet {
		le := p.LifeExpectancy
		b.LifeExpectancy = &le
	}
	if p.Birth != nil {
		day, month, year := p.Birth.Day, int(p.Birth.Month), p.Birth.Year
		b.BirthDay, b.BirthMonth, b.BirthYear = &day, &month, &year
	}
	return b
}

func fromBlob(b lifeBlob) Profile {
	p := Profile{
		LifeExpectancy: config.DefaultLifeExpectancy,
		UserName:       b.UserName,
		CurrentWeek:    config.FirstWeek,
	}
	if b.LifeExpectancy != nil {
		p = p.WithLifeExpectancy(*b.LifeExpectancy)
	}
	if b.CurrentWeek != nil {
		p.CurrentWeek = *b.CurrentWeek
	}
	// A partial birth date is treated as absent.
	if b.BirthDay != nil && b.BirthMonth != nil && b.BirthYear != nil {
		if d, err := weeks.NewDate(*b.BirthYear, time.Month(*b.BirthMonth), *b.BirthDay); err == nil {
			p.Birth = &d
		}
	}
	return p
}
