// Package preference holds display, theme and layout settings.
package preference

import (
	"encoding/json"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/observe"
)

// Persister is the subset of the persistence gateway the store needs.
type Persister interface {
	Save(scope string, snapshot any)
	Load(scope string, dst any) (bool, error)
}

// SystemTheme reports the operating system appearance.
type SystemTheme interface {
	IsDark() bool
}

// FyneSystemTheme reads the appearance from a Fyne application.
type FyneSystemTheme struct {
	App fyne.App
}

// IsDark reports whether the application runs with the dark variant.
func (f FyneSystemTheme) IsDark() bool {
	if f.App == nil {
		return false
	}
	return f.App.Settings().ThemeVariant() == theme.VariantDark
}

// StaticTheme is a fixed SystemTheme.
type StaticTheme bool

// IsDark returns the fixed value.
func (s StaticTheme) IsDark() bool { return bool(s) }

// Preferences is the persisted blob. It is always written whole.
type Preferences struct {
	DarkMode                 bool          `json:"darkMode"`
	CurrentTab               string        `json:"currentTab"`
	CurrentPage              string        `json:"currentPage"`
	ShowWeeks                bool          `json:"showWeeks"`
	EnableAnimations         bool          `json:"enableAnimations"`
	EnableVirtualization     bool          `json:"enableVirtualization"`
	GridLayout               GridLayout    `json:"gridLayout"`
	PastWeekStyle            PastWeekStyle `json:"pastWeekStyle"`
	ThemePreset              ThemePreset   `json:"themePreset"`
	ShowCurrentWeekIndicator bool          `json:"showCurrentWeekIndicator"`
	ShowMilestoneIndicators  bool          `json:"showMilestoneIndicators"`
	ShowAgeLabels            bool          `json:"showAgeLabels"`
}

// Defaults returns the documented default preferences.
func Defaults() Preferences {
	return Preferences{
		DarkMode:                 false,
		CurrentTab:               config.DefaultTab,
		CurrentPage:              config.DefaultPage,
		ShowWeeks:                true,
		EnableAnimations:         true,
		EnableVirtualization:     true,
		GridLayout:               LayoutStandard,
		PastWeekStyle:            PastHatch,
		ThemePreset:              PresetEmerald,
		ShowCurrentWeekIndicator: true,
		ShowMilestoneIndicators:  true,
		ShowAgeLabels:            true,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics counts mutations on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// Store is safe for concurrent use.
type Store struct {
	persist Persister
	metrics *metrics.Collector
	changes observe.Topic[Preferences]

	mu    sync.RWMutex
	prefs Preferences
}

// New loads the persisted preferences. The system theme is consulted only
// when nothing was ever persisted; it may be nil.
func New(p Persister, system SystemTheme, opts ...Option) *Store {
	s := &Store{persist: p, prefs: Defaults()}
	for _, opt := range opts {
		opt(s)
	}

	var raw map[string]json.RawMessage
	ok, err := p.Load(config.ScopeUI, &raw)
	if err != nil {
		slog.Warn(config.MsgLoadFailed,
			config.LogKeyComponent, config.CompPreference,
			config.LogKeyError, err)
	}
	switch {
	case ok:
		s.prefs = decode(raw)
	case err == nil && system != nil:
		s.prefs.DarkMode = system.IsDark()
	}
	return s
}

// decode applies each recognized key on top of the defaults. A key with the
// wrong type is ignored like a missing one.
func decode(raw map[string]json.RawMessage) Preferences {
	p := Defaults()

	boolField := func(key string, dst *bool) {
		if v, ok := raw[key]; ok {
			var b bool
			if json.Unmarshal(v, &b) == nil {
				*dst = b
			}
		}
	}
	stringField := func(key string, apply func(string)) {
		if v, ok := raw[key]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				apply(s)
			}
		}
	}

	boolField("darkMode", &p.DarkMode)
	boolField("showWeeks", &p.ShowWeeks)
	boolField("enableAnimations", &p.EnableAnimations)
	boolField("enableVirtualization", &p.EnableVirtualization)
	boolField("showCurrentWeekIndicator", &p.ShowCurrentWeekIndicator)
	boolField("showMilestoneIndicators", &p.ShowMilestoneIndicators)
	boolField("showAgeLabels", &p.ShowAgeLabels)

	stringField("currentTab", func(s string) { p.CurrentTab = s })
	stringField("currentPage", func(s string) { p.CurrentPage = s })
	stringField("gridLayout", func(s string) { p.GridLayout = ParseGridLayout(s) })
	stringField("pastWeekStyle", func(s string) { p.PastWeekStyle = ParsePastWeekStyle(s) })
	stringField("themePreset", func(s string) { p.ThemePreset = ParseThemePreset(s) })
	return p
}

// Subscribe registers fn for every change.
func (s *Store) Subscribe(fn func(Preferences)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

// Snapshot returns a copy of the preferences.
func (s *Store) Snapshot() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// DarkMode reports the explicit dark theme flag.
func (s *Store) DarkMode() bool { return s.Snapshot().DarkMode }

// CurrentTab returns the active tab key.
func (s *Store) CurrentTab() string { return s.Snapshot().CurrentTab }

// CurrentPage returns the active page key.
func (s *Store) CurrentPage() string { return s.Snapshot().CurrentPage }

// ShowWeeks reports whether week numbers are drawn.
func (s *Store) ShowWeeks() bool { return s.Snapshot().ShowWeeks }

// EnableAnimations reports whether transitions are animated.
func (s *Store) EnableAnimations() bool { return s.Snapshot().EnableAnimations }

// EnableVirtualization reports whether off-screen rows are skipped.
func (s *Store) EnableVirtualization() bool { return s.Snapshot().EnableVirtualization }

// GridLayout returns the grid arrangement.
func (s *Store) GridLayout() GridLayout { return s.Snapshot().GridLayout }

// PastWeekStyle returns how elapsed weeks are drawn.
func (s *Store) PastWeekStyle() PastWeekStyle { return s.Snapshot().PastWeekStyle }

// ThemePreset returns the color preset.
func (s *Store) ThemePreset() ThemePreset { return s.Snapshot().ThemePreset }

// ShowCurrentWeekIndicator reports whether the current week is highlighted.
func (s *Store) ShowCurrentWeekIndicator() bool { return s.Snapshot().ShowCurrentWeekIndicator }

// ShowMilestoneIndicators reports whether milestone markers are drawn.
func (s *Store) ShowMilestoneIndicators() bool { return s.Snapshot().ShowMilestoneIndicators }

// ShowAgeLabels reports whether rows carry age labels.
func (s *Store) ShowAgeLabels() bool { return s.Snapshot().ShowAgeLabels }

// SetDarkMode sets the dark theme flag.
func (s *Store) SetDarkMode(v bool) { s.set(func(p *Preferences) { p.DarkMode = v }) }

// ToggleDarkMode flips the theme flag.
func (s *Store) ToggleDarkMode() { s.set(func(p *Preferences) { p.DarkMode = !p.DarkMode }) }

// SetCurrentTab records the active tab.
func (s *Store) SetCurrentTab(v string) { s.set(func(p *Preferences) { p.CurrentTab = v }) }

// SetCurrentPage records the active page.
func (s *Store) SetCurrentPage(v string) { s.set(func(p *Preferences) { p.CurrentPage = v }) }

// SetShowWeeks toggles week numbers.
func (s *Store) SetShowWeeks(v bool) { s.set(func(p *Preferences) { p.ShowWeeks = v }) }

// SetEnableAnimations toggles transitions.
func (s *Store) SetEnableAnimations(v bool) {
	s.set(func(p *Preferences) { p.EnableAnimations = v })
}

// SetEnableVirtualization toggles row virtualization.
func (s *Store) SetEnableVirtualization(v bool) {
	s.set(func(p *Preferences) { p.EnableVirtualization = v })
}

// SetGridLayout stores l; unknown layouts become LayoutStandard.
func (s *Store) SetGridLayout(l GridLayout) {
	l = ParseGridLayout(string(l))
	s.set(func(p *Preferences) { p.GridLayout = l })
}

// SetPastWeekStyle stores st; unknown styles become PastHatch.
func (s *Store) SetPastWeekStyle(st PastWeekStyle) {
	st = ParsePastWeekStyle(string(st))
	s.set(func(p *Preferences) { p.PastWeekStyle = st })
}

// SetThemePreset stores t; unknown presets become PresetEmerald.
func (s *Store) SetThemePreset(t ThemePreset) {
	t = ParseThemePreset(string(t))
	s.set(func(p *Preferences) { p.ThemePreset = t })
}

// SetShowCurrentWeekIndicator toggles the current week highlight.
func (s *Store) SetShowCurrentWeekIndicator(v bool) {
	s.set(func(p *Preferences) { p.ShowCurrentWeekIndicator = v })
}

// SetShowMilestoneIndicators toggles milestone markers.
func (s *Store) SetShowMilestoneIndicators(v bool) {
	s.set(func(p *Preferences) { p.ShowMilestoneIndicators = v })
}

// SetShowAgeLabels toggles row age labels.
func (s *Store) SetShowAgeLabels(v bool) {
	s.set(func(p *Preferences) { p.ShowAgeLabels = v })
}

// set applies fn and writes the whole blob when anything changed.
func (s *Store) set(fn func(p *Preferences)) {
	s.mu.Lock()
	before := s.prefs
	fn(&s.prefs)
	if s.prefs == before {
		s.mu.Unlock()
		return
	}
	snap := s.prefs
	s.persist.Save(config.ScopeUI, snap)
	s.mu.Unlock()

	s.metrics.RecordMutation(config.CompPreference)
	s.changes.Publish(snap)
}
