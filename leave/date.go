package leave

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Civil date (UTC midnight), the granularity this engine works at
// =============================================================================

// Date is a calendar day. All engine arithmetic is day-granular: leave is
// requested, counted and renewed in whole days.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a wall-clock time to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses the wire format "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }

// Arithmetic
func (d Date) AddDays(n int) Date  { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.normalize().Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// lastDayOfMonth returns the day count of the given month, leap-aware.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SameMonthDay reports whether two dates share month and day-of-month,
// regardless of year. Used for anniversary matching.
func (d Date) SameMonthDay(other Date) bool {
	return d.Month() == other.Month() && d.Day() == other.Day()
}

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysInclusive counts calendar days in [from, to], both ends included.
// Returns 0 when to precedes from.
func DaysInclusive(from, to Date) int {
	if to.Before(from) {
		return 0
	}
	return int(to.normalize().Sub(from.normalize()).Hours()/24) + 1
}

// =============================================================================
// HOLIDAY CALENDAR - External collaborator for workday computation
// =============================================================================

// Holiday is a configured public holiday. Recurring holidays match the same
// month/day every year.
type Holiday struct {
	ID        string
	Name      string
	Date      Date
	Recurring bool
}

// HolidayCalendar answers "is this date a public holiday?". The engine only
// consumes the interface; administration lives elsewhere.
type HolidayCalendar interface {
	IsHoliday(date Date) bool
	Holidays(year int) []Holiday
}

// NoHolidays is the calendar used when no holidays are configured.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date) bool    { return false }
func (NoHolidays) Holidays(int) []Holiday { return nil }

// WorkDaysBetween counts days in [from, to] that are neither weekend days
// nor holidays per the calendar. A nil calendar only excludes weekends.
func WorkDaysBetween(from, to Date, calendar HolidayCalendar) int {
	if to.Before(from) {
		return 0
	}
	count := 0
	for d := from; !d.After(to); d = d.AddDays(1) {
		if d.IsWeekend() {
			continue
		}
		if calendar != nil && calendar.IsHoliday(d) {
			continue
		}
		count++
	}
	return count
}
