package annotation

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Milestone annotates one week. Every field is optional; a milestone with
// nothing set is the same as no milestone. WeekNumber is filled by the store.
type Milestone struct {
	WeekNumber  string     `json:"weekNumber"`
	Category    *string    `json:"category,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

// IsEmpty reports whether no optional field is set.
func (m Milestone) IsEmpty() bool {
	return m.Category == nil && m.Color == nil && m.Title == nil && m.Description == nil && m.Date == nil
}

// Week parses WeekNumber. ok is false for keys that are not positive integers.
func (m Milestone) Week() (int, bool) {
	w, err := strconv.Atoi(m.WeekNumber)
	return w, err == nil && w > 0
}

// Equal compares field values rather than pointers.
func (m Milestone) Equal(o Milestone) bool {
	return m.WeekNumber == o.WeekNumber &&
		equalString(m.Category, o.Category) &&
		equalString(m.Color, o.Color) &&
		equalString(m.Title, o.Title) &&
		equalString(m.Description, o.Description) &&
		equalTime(m.Date, o.Date)
}

func (m Milestone) clone() Milestone {
	m.Category = cloneString(m.Category)
	m.Color = cloneString(m.Color)
	m.Title = cloneString(m.Title)
	m.Description = cloneString(m.Description)
	if m.Date != nil {
		d := *m.Date
		m.Date = &d
	}
	return m
}

// Goal is one entry of the ordered goal list.
type Goal struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	TargetWeek  *int      `json:"targetWeek,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (g Goal) clone() Goal {
	g.Description = cloneString(g.Description)
	if g.TargetWeek != nil {
		w := *g.TargetWeek
		g.TargetWeek = &w
	}
	return g
}

// Key returns the map key used for week w.
func Key(w int) string {
	return strconv.Itoa(w)
}

// Ptr returns a pointer to v. It keeps milestone literals short.
func Ptr[T any](v T) *T {
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
