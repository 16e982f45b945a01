// Package feed renders milestones and goals as an iCalendar feed and serves
// it over HTTP.
package feed

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-lifegrid/internal/annotation"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

// Formatter renders a localized template. *i18n.Translator satisfies it.
type Formatter interface {
	Format(id string, data map[string]any) string
}

// Source is everything needed to place annotations on the calendar.
type Source struct {
	Birth      *weeks.Date
	Milestones map[string]annotation.Milestone
	Categories map[string]annotation.MoodCategory
	Goals      []annotation.Goal
}

// Build returns the encoded calendar and the number of events it holds.
// Weeks are placed relative to Birth; without it only milestones carrying
// an explicit date can be published.
func Build(src Source, f Formatter, now time.Time) ([]byte, int, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refresh := ical.NewProp(config.PropRefresh)
	refresh.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refresh)

	stamp := ical.NewProp(config.PropDTStamp)
	stamp.SetDateTime(now.UTC())

	events := milestoneEvents(src, f)
	events = append(events, goalEvents(src, f)...)
	for _, e := range events {
		e.Props.Set(stamp)
		cal.Children = append(cal.Children, e.Component)
	}

	slog.Info(config.MsgGenSuccess,
		config.LogKeyComponent, config.CompFeed,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyCount, len(src.Milestones)),
			slog.Int(config.LogKeyGoals, len(src.Goals)),
			slog.Int(config.LogKeyEvents, len(events)),
		),
	)

	if len(events) == 0 {
		return []byte(config.StubVCalendar), 0, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), len(events), nil
}

func milestoneEvents(src Source, f Formatter) []*ical.Event {
	keys := make([]int, 0, len(src.Milestones))
	byWeek := make(map[int]annotation.Milestone, len(src.Milestones))
	for _, m := range src.Milestones {
		w, ok := m.Week()
		if !ok || m.IsEmpty() {
			continue
		}
		keys = append(keys, w)
		byWeek[w] = m
	}
	slices.Sort(keys)

	out := make([]*ical.Event, 0, len(keys))
	for _, w := range keys {
		m := byWeek[w]

		var start time.Time
		switch {
		case m.Date != nil:
			start = *m.Date
		case src.Birth != nil:
			start = weeks.WeekStart(*src.Birth, w)
		default:
			continue
		}

		var label string
		if m.Category != nil {
			if c, ok := src.Categories[*m.Category]; ok {
				label = c.Label
			}
		}

		var summary string
		switch {
		case m.Title != nil && *m.Title != "":
			summary = *m.Title
		case label != "":
			summary = format(f, config.TKeyEvtMilestoneCat, map[string]any{"Label": label, "Week": w})
		default:
			summary = format(f, config.TKeyEvtMilestone, map[string]any{"Week": w})
		}

		e := newEvent(uid(config.KindMilestone, strconv.Itoa(w)), summary, start)
		if m.Description != nil && *m.Description != "" {
			e.Props.SetText(config.PropDescription, *m.Description)
		}
		if label != "" {
			e.Props.SetText(config.PropCategories, label)
		}
		out = append(out, e)
	}
	return out
}

func goalEvents(src Source, f Formatter) []*ical.Event {
	if src.Birth == nil {
		return nil
	}
	out := make([]*ical.Event, 0, len(src.Goals))
	for _, g := range src.Goals {
		if g.TargetWeek == nil {
			slog.Debug(config.MsgFeedSkipGoal,
				config.LogKeyComponent, config.CompFeed,
				config.LogKeyKey, g.ID.String())
			continue
		}
		summary := format(f, config.TKeyEvtGoal, map[string]any{"Title": g.Title})
		e := newEvent(uid(config.KindGoal, g.ID.String()), summary, weeks.WeekStart(*src.Birth, *g.TargetWeek))
		if g.Description != nil && *g.Description != "" {
			e.Props.SetText(config.PropDescription, *g.Description)
		}
		out = append(out, e)
	}
	return out
}

func newEvent(id, summary string, start time.Time) *ical.Event {
	e := ical.NewEvent()
	e.Props.SetText(config.PropUID, id)
	e.Props.SetText(config.PropSummary, summary)

	// All-day event.
	dt := ical.NewProp(config.PropDTStart)
	dt.SetDate(time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC))
	e.Props.Set(dt)
	return e
}

// uid is stable across rebuilds so calendar clients update events in place.
func uid(kind, key string) string {
	input := fmt.Sprintf(config.FormatHashInput, kind, key, config.UIDSalt)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf(config.FormatUID, fmt.Sprintf("%x", hash[:config.UIDHashLength]), config.ICalDomain)
}

func format(f Formatter, id string, data map[string]any) string {
	if f == nil {
		return id
	}
	return f.Format(id, data)
}
