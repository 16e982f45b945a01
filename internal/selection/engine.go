// Package selection implements interactive multi-week selection: single taps,
// anchored ranges and drag gestures over the week grid.
//
// Only selectedWeeks, pinnedWeeks and selectedColor are persisted. Focus,
// mode, range anchor, drag and preview state live for the session only.
package selection

import (
	"log/slog"
	"sync"

	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/observe"
)

// Persister is the subset of the persistence gateway the engine needs.
type Persister interface {
	Save(scope string, snapshot any)
	Load(scope string, dst any) (bool, error)
}

// Mode selects how a gesture on the grid is interpreted.
type Mode int

const (
	ModeSingle      Mode = iota // each tap toggles one week
	ModeRange                   // two taps select every week between them
	ModeRectangular             // two taps select the row/column block between them
)

// String returns the lowercase mode name used in logs.
func (m Mode) String() string {
	switch m {
	case ModeRange:
		return "range"
	case ModeRectangular:
		return "rectangular"
	default:
		return "single"
	}
}

// State is an immutable copy of the engine. Week slices are sorted ascending.
type State struct {
	SelectedWeeks []int
	PinnedWeeks   []int
	SelectedColor *string

	FocusedWeek  *int
	Mode         Mode
	RangeMode    bool
	RangeAnchor  *int
	Dragging     bool
	DragAnchor   *int
	DraggedWeeks []int
	PreviewWeeks []int
}

// Persisted is the wire form of the persisted fields, shared with remote sync.
type Persisted struct {
	SelectedWeeks []int   `json:"selectedWeeks"`
	PinnedWeeks   []int   `json:"pinnedWeeks"`
	SelectedColor *string `json:"selectedColor,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics counts mutations on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// Engine is safe for concurrent use. Every mutation is visible to readers and
// subscribers before the call returns.
type Engine struct {
	persist Persister
	metrics *metrics.Collector
	changes observe.Topic[State]

	mu       sync.RWMutex
	selected weekSet
	pinned   weekSet
	color    *string

	focused     *int
	mode        Mode
	rangeMode   bool
	rangeAnchor *int
	dragging    bool
	dragAnchor  *int
	dragged     weekSet
	preview     weekSet
}

// New loads persisted selection state, if any.
func New(p Persister, opts ...Option) *Engine {
	e := &Engine{
		persist:  p,
		selected: newWeekSet(),
		pinned:   newWeekSet(),
		dragged:  newWeekSet(),
		preview:  newWeekSet(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var blob Persisted
	ok, err := p.Load(config.ScopeSelections, &blob)
	if err != nil {
		slog.Warn(config.MsgLoadFailed,
			config.LogKeyComponent, config.CompSelection,
			config.LogKeyError, err)
	}
	if ok {
		e.selected = newWeekSet(blob.SelectedWeeks...)
		e.pinned = newWeekSet(blob.PinnedWeeks...)
		e.color = cloneString(blob.SelectedColor)
	}
	return e
}

// Subscribe registers fn for every state change, transient ones included.
func (e *Engine) Subscribe(fn func(State)) (cancel func()) {
	return e.changes.Subscribe(fn)
}

// Snapshot returns a copy of the full state.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked()
}

// Persisted returns a copy of the persisted fields only.
func (e *Engine) Persisted() Persisted {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.persistedLocked()
}

// IsWeekSelected reports whether w is selected or pinned.
func (e *Engine) IsWeekSelected(w int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selected.has(w) || e.pinned.has(w)
}

// SelectionCount returns the size of selected ∪ pinned.
func (e *Engine) SelectionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.selected)
	for w := range e.pinned {
		if !e.selected.has(w) {
			n++
		}
	}
	return n
}

// SelectedColor returns the active paint category.
func (e *Engine) SelectedColor() (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.color == nil {
		return "", false
	}
	return *e.color, true
}

// -----------------------------------------------------------------------------
// Selected weeks
// -----------------------------------------------------------------------------

// ToggleWeek flips membership of w in the selected set.
func (e *Engine) ToggleWeek(w int) {
	if w < 1 {
		return
	}
	e.mutate(true, func() bool {
		if !e.selected.remove(w) {
			e.selected.add(w)
		}
		return true
	})
}

// SetSelectedWeeks replaces the selected set.
func (e *Engine) SetSelectedWeeks(ws []int) {
	next := newWeekSet(ws...)
	e.mutate(true, func() bool {
		if e.selected.equal(next) {
			return false
		}
		e.selected = next
		return true
	})
}

// AddSelectedWeeks inserts ws into the selected set.
func (e *Engine) AddSelectedWeeks(ws ...int) {
	e.mutate(true, func() bool { return e.selected.add(ws...) })
}

// RemoveSelectedWeek removes w from the selected set.
func (e *Engine) RemoveSelectedWeek(w int) {
	e.mutate(true, func() bool { return e.selected.remove(w) })
}

// ClearSelectedWeeks empties the selected set.
func (e *Engine) ClearSelectedWeeks() {
	e.SetSelectedWeeks(nil)
}

// -----------------------------------------------------------------------------
// Pinned weeks
// -----------------------------------------------------------------------------

// SetPinnedWeeks replaces the pinned set.
func (e *Engine) SetPinnedWeeks(ws []int) {
	next := newWeekSet(ws...)
	e.mutate(true, func() bool {
		if e.pinned.equal(next) {
			return false
		}
		e.pinned = next
		return true
	})
}

// AddPinnedWeeks inserts ws into the pinned set.
func (e *Engine) AddPinnedWeeks(ws ...int) {
	e.mutate(true, func() bool { return e.pinned.add(ws...) })
}

// RemovePinnedWeek removes w from the pinned set.
func (e *Engine) RemovePinnedWeek(w int) {
	e.mutate(true, func() bool { return e.pinned.remove(w) })
}

// ClearPinnedWeeks empties the pinned set.
func (e *Engine) ClearPinnedWeeks() {
	e.SetPinnedWeeks(nil)
}

// -----------------------------------------------------------------------------
// Active paint
// -----------------------------------------------------------------------------

// SetSelectedColor sets the active paint category.
func (e *Engine) SetSelectedColor(category string) {
	e.mutate(true, func() bool {
		if e.color != nil && *e.color == category {
			return false
		}
		e.color = &category
		return true
	})
}

// ClearSelectedColor removes the active paint category.
func (e *Engine) ClearSelectedColor() {
	e.mutate(true, func() bool {
		if e.color == nil {
			return false
		}
		e.color = nil
		return true
	})
}

// -----------------------------------------------------------------------------
// Transient state
// -----------------------------------------------------------------------------

// SetMode switches gesture interpretation.
func (e *Engine) SetMode(m Mode) {
	e.mutate(false, func() bool {
		if e.mode == m {
			return false
		}
		e.mode = m
		return true
	})
}

// SetFocusedWeek marks w as the week under inspection; w < 1 clears focus.
func (e *Engine) SetFocusedWeek(w int) {
	e.mutate(false, func() bool {
		if w < 1 {
			if e.focused == nil {
				return false
			}
			e.focused = nil
			return true
		}
		if e.focused != nil && *e.focused == w {
			return false
		}
		e.focused = &w
		return true
	})
}

// SetPreview replaces the live preview set.
func (e *Engine) SetPreview(ws []int) {
	next := newWeekSet(ws...)
	e.mutate(false, func() bool {
		if e.preview.equal(next) {
			return false
		}
		e.preview = next
		return true
	})
}

// -----------------------------------------------------------------------------
// Range selection
// -----------------------------------------------------------------------------

// StartRange anchors a range at w and seeds the selected set with it.
func (e *Engine) StartRange(w int) {
	if w < 1 {
		return
	}
	e.mutate(true, func() bool {
		e.rangeAnchor = &w
		e.rangeMode = true
		e.selected = newWeekSet(w)
		return true
	})
}

// PreviewRangeTo shows the interval from the anchor to w without committing it.
// Without an anchor it does nothing.
func (e *Engine) PreviewRangeTo(w int) {
	e.mutate(false, func() bool {
		if e.rangeAnchor == nil || w < 1 {
			return false
		}
		next := interval(*e.rangeAnchor, w)
		if e.preview.equal(next) {
			return false
		}
		e.preview = next
		return true
	})
}

// CompleteRange replaces both the selected and pinned sets with the inclusive
// interval between the anchor and end, then leaves range mode.
// Without a prior StartRange it does nothing.
func (e *Engine) CompleteRange(end int) {
	e.mutate(true, func() bool {
		if e.rangeAnchor == nil || end < 1 {
			return false
		}
		span := interval(*e.rangeAnchor, end)
		e.selected = span
		e.pinned = span.clone()
		e.rangeAnchor = nil
		e.rangeMode = false
		e.preview = newWeekSet()
		return true
	})
}

// ResetRange drops the anchor and empties the selected set. Pinned weeks stay.
func (e *Engine) ResetRange() {
	e.mutate(true, func() bool {
		if e.rangeAnchor == nil && !e.rangeMode && len(e.selected) == 0 && len(e.preview) == 0 {
			return false
		}
		e.rangeAnchor = nil
		e.rangeMode = false
		e.preview = newWeekSet()
		e.selected = newWeekSet()
		return true
	})
}

// -----------------------------------------------------------------------------
// Drag gestures
// -----------------------------------------------------------------------------

// BeginDrag starts accumulating weeks from w.
func (e *Engine) BeginDrag(w int) {
	if w < 1 {
		return
	}
	e.mutate(false, func() bool {
		e.dragging = true
		e.dragAnchor = &w
		e.dragged = newWeekSet(w)
		return true
	})
}

// DragOver extends the drag to w. In rectangular mode the accumulation is the
// block of the grid spanned by the anchor and w, one row per year of life;
// otherwise every week passed over is collected.
func (e *Engine) DragOver(w int) {
	if w < 1 {
		return
	}
	e.mutate(false, func() bool {
		if !e.dragging || e.dragAnchor == nil {
			return false
		}
		if e.mode == ModeRectangular {
			next := rectangle(*e.dragAnchor, w)
			if e.dragged.equal(next) {
				return false
			}
			e.dragged = next
			return true
		}
		return e.dragged.add(w)
	})
}

// EndDrag finishes the gesture and returns the accumulated weeks, sorted.
// Committing them is left to the caller.
func (e *Engine) EndDrag() []int {
	var out []int
	e.mutate(false, func() bool {
		if !e.dragging {
			out = []int{}
			return false
		}
		out = e.dragged.sorted()
		e.dragging = false
		e.dragAnchor = nil
		e.dragged = newWeekSet()
		return true
	})
	return out
}

// CancelDrag discards the gesture.
func (e *Engine) CancelDrag() {
	_ = e.EndDrag()
}

// -----------------------------------------------------------------------------
// Bulk
// -----------------------------------------------------------------------------

// ClearAll resets every field to its default and persists once.
func (e *Engine) ClearAll() {
	e.mutate(true, func() bool {
		e.selected = newWeekSet()
		e.pinned = newWeekSet()
		e.color = nil
		e.focused = nil
		e.mode = ModeSingle
		e.rangeMode = false
		e.rangeAnchor = nil
		e.dragging = false
		e.dragAnchor = nil
		e.dragged = newWeekSet()
		e.preview = newWeekSet()
		return true
	})
}

// Replace overwrites the persisted fields, as done when a remote record is
// applied. Transient state is left alone.
func (e *Engine) Replace(p Persisted) {
	selected := newWeekSet(p.SelectedWeeks...)
	pinned := newWeekSet(p.PinnedWeeks...)
	color := cloneString(p.SelectedColor)
	e.mutate(true, func() bool {
		e.selected = selected
		e.pinned = pinned
		e.color = color
		return true
	})
}

// mutate runs fn under the write lock. When fn reports a change, persisted
// changes are saved while still holding the lock, which keeps the per-scope
// write order identical to the mutation order. Subscribers run after unlock.
func (e *Engine) mutate(persisted bool, fn func() bool) {
	e.mu.Lock()
	if !fn() {
		e.mu.Unlock()
		return
	}
	if persisted {
		e.persist.Save(config.ScopeSelections, e.persistedLocked())
	}
	state := e.stateLocked()
	e.mu.Unlock()

	e.metrics.RecordMutation(config.CompSelection)
	e.changes.Publish(state)
}

func (e *Engine) persistedLocked() Persisted {
	return Persisted{
		SelectedWeeks: e.selected.sorted(),
		PinnedWeeks:   e.pinned.sorted(),
		SelectedColor: cloneString(e.color),
	}
}

func (e *Engine) stateLocked() State {
	return State{
		SelectedWeeks: e.selected.sorted(),
		PinnedWeeks:   e.pinned.sorted(),
		SelectedColor: cloneString(e.color),
		FocusedWeek:   cloneInt(e.focused),
		Mode:          e.mode,
		RangeMode:     e.rangeMode,
		RangeAnchor:   cloneInt(e.rangeAnchor),
		Dragging:      e.dragging,
		DragAnchor:    cloneInt(e.dragAnchor),
		DraggedWeeks:  e.dragged.sorted(),
		PreviewWeeks:  e.preview.sorted(),
	}
}

// rectangle returns the weeks inside the grid block with corners a and b.
func rectangle(a, b int) weekSet {
	rowA, colA := (a-1)/config.WeeksPerYear, (a-1)%config.WeeksPerYear
	rowB, colB := (b-1)/config.WeeksPerYear, (b-1)%config.WeeksPerYear

	s := newWeekSet()
	for row := min(rowA, rowB); row <= max(rowA, rowB); row++ {
		for col := min(colA, colB); col <= max(colA, colB); col++ {
			s[row*config.WeeksPerYear+col+1] = struct{}{}
		}
	}
	return s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
