// Package app assembles the stores, the persistence gateway and the sync
// coordinator into one Workspace, and holds the glue that spans several
// stores (painting, profile completion, calendar publishing).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/auth"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/feed"
	"github.com/tartampluch/go-lifegrid/internal/gateway"
	"github.com/tartampluch/go-lifegrid/internal/i18n"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/preference"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"github.com/tartampluch/go-lifegrid/internal/selection"
	"github.com/tartampluch/go-lifegrid/internal/syncer"
	"github.com/tartampluch/go-lifegrid/internal/temporal"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

type options struct {
	clock     weeks.Clock
	metrics   *metrics.Collector
	system    preference.SystemTheme
	session   *auth.Session
	endpoints *remote.Endpoints
	language  string
	timeout   time.Duration
}

// Option configures New.
type Option func(*options)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c weeks.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics instruments every component with c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithSystemTheme provides the dark-mode signal used on first launch.
func WithSystemTheme(t preference.SystemTheme) Option {
	return func(o *options) { o.system = t }
}

// WithSession shares an existing session. By default the workspace gets a
// fresh session that does not touch the keyring.
func WithSession(s *auth.Session) Option {
	return func(o *options) { o.session = s }
}

// WithRemote enables synchronization against eps.
func WithRemote(eps remote.Endpoints) Option {
	return func(o *options) { o.endpoints = &eps }
}

// WithLanguage selects the translator language. Empty selects the default.
func WithLanguage(lang string) Option {
	return func(o *options) { o.language = lang }
}

// WithSyncTimeout bounds each remote operation.
func WithSyncTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Workspace bundles every store of one local user.
type Workspace struct {
	Gateway    *gateway.Gateway
	Profile    *temporal.Store
	Notes      *annotation.Store
	Selection  *selection.Engine
	Prefs      *preference.Store
	Session    *auth.Session
	Translator *i18n.Translator
	Metrics    *metrics.Collector

	// Sync is nil when no remote is configured.
	Sync *syncer.Coordinator

	clock weeks.Clock
}

// New loads every store from backend. Nothing runs in the background until
// Start.
func New(backend gateway.Backend, opts ...Option) *Workspace {
	o := options{clock: weeks.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.session == nil {
		o.session = auth.New("", auth.WithoutKeyring())
	}

	g := gateway.New(backend, gateway.WithMetrics(o.metrics))
	ws := &Workspace{
		Gateway:    g,
		Profile:    temporal.New(g, o.clock, temporal.WithMetrics(o.metrics)),
		Notes:      annotation.New(g, annotation.WithClock(o.clock), annotation.WithMetrics(o.metrics)),
		Selection:  selection.New(g, selection.WithMetrics(o.metrics)),
		Prefs:      preference.New(g, o.system, preference.WithMetrics(o.metrics)),
		Session:    o.session,
		Translator: i18n.New(o.language),
		Metrics:    o.metrics,
		clock:      o.clock,
	}

	if o.endpoints != nil {
		syncOpts := []syncer.Option{syncer.WithClock(o.clock), syncer.WithMetrics(o.metrics)}
		if o.timeout > 0 {
			syncOpts = append(syncOpts, syncer.WithTimeout(o.timeout))
		}
		ws.Sync = syncer.New(ws.Session, *o.endpoints, ws.Profile, ws.Notes, ws.Selection, syncOpts...)
	}
	return ws
}

// Start begins synchronization. It is a no-op without a remote.
func (ws *Workspace) Start(ctx context.Context) {
	if ws.Sync != nil {
		ws.Sync.Start(ctx)
	}
}

// TapWeek applies a tap on week w. With an active paint the week takes that
// category and joins the selection; otherwise its selection is toggled.
func (ws *Workspace) TapWeek(w int) {
	if w < config.FirstWeek {
		return
	}
	if key, ok := ws.Selection.SelectedColor(); ok {
		ws.paint(key, w)
		ws.Selection.AddSelectedWeeks(w)
		return
	}
	ws.Selection.ToggleWeek(w)
}

// CommitDrag ends the current drag and commits the dragged weeks: they are
// painted with the active category, if any, and added to the selection.
func (ws *Workspace) CommitDrag() []int {
	dragged := ws.Selection.EndDrag()
	if len(dragged) == 0 {
		return nil
	}
	if key, ok := ws.Selection.SelectedColor(); ok {
		ws.paint(key, dragged...)
	}
	ws.Selection.AddSelectedWeeks(dragged...)
	return dragged
}

// PaintRange paints every week of [start, end] with the active category.
// It returns false when no paint is active.
func (ws *Workspace) PaintRange(start, end int) bool {
	key, ok := ws.Selection.SelectedColor()
	if !ok {
		return false
	}
	if start > end {
		start, end = end, start
	}
	start = max(start, config.FirstWeek)
	batch := make([]int, 0, end-start+1)
	for w := start; w <= end; w++ {
		batch = append(batch, w)
	}
	ws.paint(key, batch...)
	return true
}

func (ws *Workspace) paint(key string, targets ...int) {
	var color *string
	if c, ok := ws.Notes.Category(key); ok {
		color = annotation.Ptr(c.Color)
	}

	batch := make(map[int]annotation.Milestone, len(targets))
	for _, w := range targets {
		m, _ := ws.Notes.Milestone(w)
		m.Category = annotation.Ptr(key)
		m.Color = color
		batch[w] = m
	}
	ws.Notes.SetMilestones(batch)
}

// CompleteProfile saves the profile form and, when signed in, waits for the
// profile upsert so callers can show a saving indicator.
func (ws *Workspace) CompleteProfile(ctx context.Context, name string, birth weeks.Date, lifeExpectancy int) error {
	if err := ws.Profile.SetBirthData(birth.Day, birth.Month, birth.Year); err != nil {
		return err
	}
	ws.Profile.SetUserName(name)
	ws.Profile.SetLifeExpectancy(lifeExpectancy)

	if ws.Sync == nil || !ws.Session.IsAuthenticated() {
		return nil
	}
	return ws.Sync.PushProfile(ctx)
}

// Stats summarizes the grid.
func (ws *Workspace) Stats() weeks.Stats {
	return ws.Profile.Stats(ws.Notes.MilestoneCount())
}

// StatusLine renders Stats in the current language.
func (ws *Workspace) StatusLine() string {
	st := ws.Stats()
	return ws.Translator.Format(config.TKeyStatusLine, map[string]any{
		"Current":  st.CurrentWeek,
		"Total":    st.TotalWeeks,
		"Progress": fmt.Sprintf("%.1f", st.Progress),
	})
}

// Calendar renders milestones and goals as iCalendar data.
func (ws *Workspace) Calendar() ([]byte, int, error) {
	src := feed.Source{
		Birth:      ws.Profile.Snapshot().Birth,
		Milestones: ws.Notes.Milestones(),
		Categories: ws.Notes.LocalizedCategories(ws.Translator),
		Goals:      ws.Notes.Goals(),
	}
	return feed.Build(src, ws.Translator, ws.clock.Now())
}

// Publisher receives rendered calendars. *feed.Server satisfies it.
type Publisher interface {
	Update(data []byte)
}

// Publish renders the calendar into p now and again after every profile or
// annotation change, until the returned cancel is called.
func (ws *Workspace) Publish(p Publisher) (cancel func(), err error) {
	render := func() error {
		data, _, err := ws.Calendar()
		if err != nil {
			slog.Error(config.MsgFeedFailed,
				config.LogKeyComponent, config.CompFeed,
				config.LogKeyError, err)
			return err
		}
		p.Update(data)
		return nil
	}
	if err := render(); err != nil {
		return nil, err
	}

	stopProfile := ws.Profile.Subscribe(func(temporal.Profile) { _ = render() })
	stopNotes := ws.Notes.Subscribe(func(annotation.Data) { _ = render() })
	return func() {
		stopProfile()
		stopNotes()
	}, nil
}

// Close stops synchronization and drains pending local writes.
func (ws *Workspace) Close(ctx context.Context) error {
	if ws.Sync != nil {
		ws.Sync.Stop()
	}
	return ws.Gateway.Close(ctx)
}
