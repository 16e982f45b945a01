// Package syncer mirrors the local stores to the remote record endpoints.
// Local state is always the source of truth for the interactive flow;
// remote failures are logged and reported, never raised to it.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/auth"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/observe"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"github.com/tartampluch/go-lifegrid/internal/selection"
	"github.com/tartampluch/go-lifegrid/internal/temporal"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
	"golang.org/x/sync/errgroup"
)

// AuthSource is the authentication signal.
type AuthSource interface {
	CurrentUserID() (string, bool)
	Subscribe(fn func(auth.Event)) (cancel func())
}

// ProfileStore is the part of temporal.Store the coordinator uses.
type ProfileStore interface {
	Snapshot() temporal.Profile
	Replace(temporal.Profile)
	Subscribe(fn func(temporal.Profile)) (cancel func())
}

// AnnotationStore is the part of annotation.Store the coordinator uses.
type AnnotationStore interface {
	Shared() annotation.SyncData
	Replace(annotation.SyncData)
	Subscribe(fn func(annotation.Data)) (cancel func())
}

// SelectionStore is the part of selection.Engine the coordinator uses.
type SelectionStore interface {
	Persisted() selection.Persisted
	Replace(selection.Persisted)
	Subscribe(fn func(selection.State)) (cancel func())
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records every remote call on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(co *Coordinator) { co.metrics = c }
}

// WithClock sets the clock used to stamp updated_at.
func WithClock(c weeks.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithTimeout bounds each pull and push. The default is config.SyncTimeout.
func WithTimeout(d time.Duration) Option {
	return func(co *Coordinator) { co.timeout = d }
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	auth       AuthSource
	endpoints  remote.Endpoints
	profile    ProfileStore
	notes      AnnotationStore
	selections SelectionStore
	metrics    *metrics.Collector
	clock      weeks.Clock
	timeout    time.Duration
	errs       observe.Topic[error]
	pulls      sync.WaitGroup

	mu      sync.Mutex
	lastErr error
	dirty   map[string]bool
	// pending counts store notifications still expected from Replace calls
	// made by apply; each one is absorbed instead of marking the record dirty.
	pending map[string]int
	started bool
	cancels []func()
}

// New wires the coordinator. It does nothing until Start is called.
func New(a AuthSource, eps remote.Endpoints, p ProfileStore, n AnnotationStore, s SelectionStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		auth:       a,
		endpoints:  eps,
		profile:    p,
		notes:      n,
		selections: s,
		clock:      weeks.RealClock{},
		timeout:    config.SyncTimeout,
		dirty:      make(map[string]bool),
		pending:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to authentication and store changes. A sign-in, or a
// session already present, triggers a background pull bound to ctx.
// Calling Start again before Stop does nothing.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	cancels := []func(){
		c.auth.Subscribe(func(e auth.Event) {
			if e.Authenticated {
				c.pullAsync(ctx)
				return
			}
			c.mu.Lock()
			clear(c.dirty)
			c.mu.Unlock()
		}),
		c.profile.Subscribe(func(temporal.Profile) { c.markDirty(config.RecordProfile) }),
		c.notes.Subscribe(func(annotation.Data) { c.markDirty(config.RecordMilestones) }),
		c.selections.Subscribe(func(selection.State) { c.markDirty(config.RecordSelections) }),
	}

	c.mu.Lock()
	c.cancels = append(c.cancels, cancels...)
	c.mu.Unlock()

	if _, ok := c.auth.CurrentUserID(); ok {
		c.pullAsync(ctx)
	}
}

// Stop removes the subscriptions and waits for background pulls.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.started = false
	clear(c.pending)
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	c.pulls.Wait()
}

// Wait blocks until every background pull started so far has finished.
func (c *Coordinator) Wait() {
	c.pulls.Wait()
}

// LastError returns the most recent remote failure, or nil.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SubscribeErrors registers fn for every remote failure.
func (c *Coordinator) SubscribeErrors(fn func(error)) (cancel func()) {
	return c.errs.Subscribe(fn)
}

// Dirty reports whether record has local changes not yet pushed.
func (c *Coordinator) Dirty(record string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[record]
}

func (c *Coordinator) pullAsync(ctx context.Context) {
	c.pulls.Add(1)
	go func() {
		defer c.pulls.Done()
		_ = c.Pull(ctx)
	}()
}

// Pull fetches the three records in parallel and overwrites the local store
// of every record that exists remotely. Records the remote lacks keep their
// local value and are marked dirty for the next Flush. Failed fetches leave
// their store untouched and are reported.
func (c *Coordinator) Pull(ctx context.Context) error {
	userID, ok := c.auth.CurrentUserID()
	if !ok {
		return auth.ErrNotAuthenticated
	}
	log := slog.With(config.LogKeyComponent, config.CompSync, config.LogKeyUser, userID)
	log.Info(config.MsgSyncStarted)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		prof  remote.ProfileRecord
		notes remote.MilestonesRecord
		sel   remote.SelectionsRecord
		found [3]bool
		errs  [3]error
		g     errgroup.Group
	)
	g.Go(func() error {
		prof, found[0], errs[0] = fetch(ctx, c, config.RecordProfile, c.endpoints.Profiles, userID)
		return nil
	})
	g.Go(func() error {
		notes, found[1], errs[1] = fetch(ctx, c, config.RecordMilestones, c.endpoints.Milestones, userID)
		return nil
	})
	g.Go(func() error {
		sel, found[2], errs[2] = fetch(ctx, c, config.RecordSelections, c.endpoints.Selections, userID)
		return nil
	})
	_ = g.Wait()

	if found[0] {
		c.apply(config.RecordProfile, func() { c.profile.Replace(prof.Profile()) })
	}
	if found[1] {
		c.apply(config.RecordMilestones, func() { c.notes.Replace(notes.Data) })
	}
	if found[2] {
		c.apply(config.RecordSelections, func() { c.selections.Replace(sel.Data) })
	}

	c.mu.Lock()
	for i, record := range []string{config.RecordProfile, config.RecordMilestones, config.RecordSelections} {
		if !found[i] && errs[i] == nil {
			c.dirty[record] = true
		}
	}
	c.mu.Unlock()
	return errors.Join(errs[:]...)
}

func fetch[T remote.Record](ctx context.Context, c *Coordinator, record string, ep remote.Endpoint[T], userID string) (T, bool, error) {
	start := time.Now()
	rec, ok, err := ep.Fetch(ctx, userID)
	c.metrics.RecordSync(record, config.OpFetch, time.Since(start), err)
	if err != nil {
		c.report(record, err)
		return rec, false, err
	}
	if !ok {
		slog.Debug(config.MsgSyncAbsent,
			config.LogKeyComponent, config.CompSync,
			config.LogKeyRecord, record)
	}
	return rec, ok, nil
}

// apply replaces a store's content with remote data. Replace notifies
// exactly once, and that notification is absorbed, so only local mutations
// racing with it leave the record dirty.
func (c *Coordinator) apply(record string, replace func()) {
	c.mu.Lock()
	c.dirty[record] = false
	if c.started {
		c.pending[record]++
	}
	c.mu.Unlock()

	replace()

	slog.Info(config.MsgSyncApplied,
		config.LogKeyComponent, config.CompSync,
		config.LogKeyRecord, record)
}

func (c *Coordinator) markDirty(record string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[record] > 0 {
		c.pending[record]--
		return
	}
	c.dirty[record] = true
}

// PushProfile upserts the current profile. It is a no-op returning nil when
// nobody is signed in.
func (c *Coordinator) PushProfile(ctx context.Context) error {
	return push(ctx, c, config.RecordProfile, c.endpoints.Profiles, func(userID string, at time.Time) remote.ProfileRecord {
		return remote.NewProfileRecord(userID, c.profile.Snapshot(), at)
	})
}

// PushMilestones upserts milestones and custom catalogs.
func (c *Coordinator) PushMilestones(ctx context.Context) error {
	return push(ctx, c, config.RecordMilestones, c.endpoints.Milestones, func(userID string, at time.Time) remote.MilestonesRecord {
		return remote.MilestonesRecord{UserID: userID, Data: c.notes.Shared(), UpdatedAt: at}
	})
}

// PushSelections upserts the persisted selection sets.
func (c *Coordinator) PushSelections(ctx context.Context) error {
	return push(ctx, c, config.RecordSelections, c.endpoints.Selections, func(userID string, at time.Time) remote.SelectionsRecord {
		return remote.SelectionsRecord{UserID: userID, Data: c.selections.Persisted(), UpdatedAt: at}
	})
}

// PushAll upserts the three records concurrently.
func (c *Coordinator) PushAll(ctx context.Context) error {
	return c.pushEach(ctx, []string{config.RecordProfile, config.RecordMilestones, config.RecordSelections})
}

// Flush upserts only the records changed locally since their last push or pull.
func (c *Coordinator) Flush(ctx context.Context) error {
	if _, ok := c.auth.CurrentUserID(); !ok {
		return nil
	}
	c.mu.Lock()
	var records []string
	for _, r := range []string{config.RecordProfile, config.RecordMilestones, config.RecordSelections} {
		if c.dirty[r] {
			records = append(records, r)
		}
	}
	c.mu.Unlock()
	if len(records) == 0 {
		return nil
	}
	slog.Debug(config.MsgSyncDirty,
		config.LogKeyComponent, config.CompSync,
		config.LogKeyCount, len(records))
	return c.pushEach(ctx, records)
}

func (c *Coordinator) pushEach(ctx context.Context, records []string) error {
	pushers := map[string]func(context.Context) error{
		config.RecordProfile:    c.PushProfile,
		config.RecordMilestones: c.PushMilestones,
		config.RecordSelections: c.PushSelections,
	}
	errs := make([]error, len(records))
	var g errgroup.Group
	for i, r := range records {
		g.Go(func() error {
			errs[i] = pushers[r](ctx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func push[T remote.Record](ctx context.Context, c *Coordinator, record string, ep remote.Endpoint[T], build func(userID string, at time.Time) T) error {
	userID, ok := c.auth.CurrentUserID()
	if !ok {
		slog.Debug(config.MsgSyncSkipped,
			config.LogKeyComponent, config.CompSync,
			config.LogKeyRecord, record)
		return nil
	}

	c.mu.Lock()
	c.dirty[record] = false
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rec := build(userID, c.clock.Now())
	start := time.Now()
	err := ep.Upsert(ctx, rec)
	c.metrics.RecordSync(record, config.OpUpsert, time.Since(start), err)
	if err != nil {
		c.mu.Lock()
		c.dirty[record] = true
		c.mu.Unlock()
		c.report(record, err)
		return err
	}

	slog.Debug(config.MsgPushDone,
		config.LogKeyComponent, config.CompSync,
		config.LogKeyRecord, record,
		config.LogKeyUser, userID)
	return nil
}

func (c *Coordinator) report(record string, err error) {
	slog.Warn(config.MsgSyncFailed,
		config.LogKeyComponent, config.CompSync,
		config.LogKeyRecord, record,
		config.LogKeyError, err)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.errs.Publish(err)
}
