// Package weeks maps birth dates and instants onto the 1-based week grid.
//
// Every function here is total: malformed input degrades to a documented
// default instead of returning an error.
package weeks

import (
	"errors"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/config"
)

// ErrInvalidDate is returned when day, month and year do not form a real calendar date.
var ErrInvalidDate = errors.New(config.ErrInvalidDate)

const secondsPerDay = 24 * 60 * 60

// Date is a calendar date without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates the triple by round-tripping it through time.Date,
// which normalizes overflow (Feb 30 becomes Mar 2).
func NewDate(year int, month time.Month, day int) (Date, error) {
	if year < 1 || month < time.January || month > time.December || day < 1 {
		return Date{}, ErrInvalidDate
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, ErrInvalidDate
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(config.DateFormatFullDash)
}

// CurrentWeek returns floor(weeks elapsed since birth)+1, never below 1.
// A nil birth date, or one in the future, yields 1.
func CurrentWeek(birth *Date, now time.Time) int {
	if birth == nil {
		return config.FirstWeek
	}
	if _, err := NewDate(birth.Year, birth.Month, birth.Day); err != nil {
		return config.FirstWeek
	}

	// Both sides are compared as calendar dates: the local day of "now"
	// decides the week, not the UTC instant. Unix seconds avoid the
	// ~292 year range of time.Duration.
	days := int((DateOf(now).Time().Unix() - birth.Time().Unix()) / secondsPerDay)
	if days < 0 {
		return config.FirstWeek
	}
	return days/config.DaysPerWeek + 1
}

// NormalizeLifeExpectancy substitutes the default for values outside the accepted range.
func NormalizeLifeExpectancy(years int) int {
	if years < config.MinLifeExpectancy || years > config.MaxLifeExpectancy {
		return config.DefaultLifeExpectancy
	}
	return years
}

// TotalWeeks returns the number of grid cells for a life expectancy in years.
func TotalWeeks(years int) int {
	return NormalizeLifeExpectancy(years) * config.WeeksPerYear
}

// AgeFromWeek returns the age in whole years during week w.
func AgeFromWeek(w int) int {
	if w < config.FirstWeek {
		return 0
	}
	return (w - 1) / config.WeeksPerYear
}

// QuarterFromWeek returns the quarter (1..4) of w within its 52-week year of life.
func QuarterFromWeek(w int) int {
	if w < config.FirstWeek {
		w = config.FirstWeek
	}
	weekOfYear := (w-1)%config.WeeksPerYear + 1
	return (weekOfYear + config.WeeksPerQuarter - 1) / config.WeeksPerQuarter
}

// WeekStart returns the first day of week w counted from birth.
func WeekStart(birth Date, w int) time.Time {
	if w < config.FirstWeek {
		w = config.FirstWeek
	}
	return birth.Time().AddDate(0, 0, (w-1)*config.DaysPerWeek)
}

// CalendarYear returns the Gregorian year in which week w starts.
func CalendarYear(birth Date, w int) int {
	return WeekStart(birth, w).Year()
}
