// Package timeutil provides the clock abstraction and calendar arithmetic used by
// the progress engine: calendar days, ISO weeks and calendar months in a fixed
// zone. All helpers operate in the location of the time value they receive, so
// callers get consistent boundaries by asking a Clock for "now".
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// AlmatyTZ is the default engine timezone (UTC+5, no DST).
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// Common date layouts.
const (
	DateLayout     = "2006-01-02"
	MonthLayout    = "2006-01"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// FixedZone builds a zone from a whole-hour offset (e.g. 5 for UTC+5).
func FixedZone(offsetHours int) *time.Location {
	if offsetHours == 5 {
		return AlmatyTZ
	}
	if offsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*60*60)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock is the single source of "now" for every component.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads wall-clock time and converts it to a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a SystemClock. A nil location defaults to AlmatyTZ.
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = AlmatyTZ
	}
	return &SystemClock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// ManualClock is a settable clock for tests and replays.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock creates a ManualClock frozen at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the frozen time.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Location returns the location of the frozen time.
func (c *ManualClock) Location() *time.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now.Location()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// AdvanceDays moves the clock forward by n calendar days.
func (c *ManualClock) AdvanceDays(n int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, n)
	c.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// DAYS
// ══════════════════════════════════════════════════════════════════════════════

// Date creates midnight of the given date in loc.
func Date(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the first midnight strictly after t's calendar day start.
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// IsSameDay checks if two times fall on the same calendar day of t1's location.
func IsSameDay(t1, t2 time.Time) bool {
	t2 = t2.In(t1.Location())
	return t1.Year() == t2.Year() && t1.YearDay() == t2.YearDay()
}

// DaysBetween returns the signed number of calendar days from t1 to t2,
// measured in t1's location. DST shifts do not affect the result.
func DaysBetween(t1, t2 time.Time) int {
	t2 = t2.In(t1.Location())
	a := time.Date(t1.Year(), t1.Month(), t1.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(t2.Year(), t2.Month(), t2.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD into midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, loc)
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKS
// ══════════════════════════════════════════════════════════════════════════════

// ISOWeek returns the ISO 8601 year and week number of t.
func ISOWeek(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// StartOfWeek returns Monday 00:00 of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return StartOfDay(t.AddDate(0, 0, -(weekday - 1)))
}

// StartOfISOWeek returns Monday 00:00 of the given ISO week in loc.
func StartOfISOWeek(year, week int, loc *time.Location) time.Time {
	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	return StartOfWeek(jan4).AddDate(0, 0, (week-1)*7)
}

// NextISOWeek returns the ISO year/week that follows the given one.
func NextISOWeek(year, week int, loc *time.Location) (int, int) {
	return StartOfISOWeek(year, week, loc).AddDate(0, 0, 7).ISOWeek()
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHS
// ══════════════════════════════════════════════════════════════════════════════

// StartOfMonth returns the first day of t's month at midnight.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// StartOfNextMonth returns the first day of the month after t's month.
func StartOfNextMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0)
}

// MonthNameRu returns the Russian name for a month.
func MonthNameRu(m time.Month) string {
	names := []string{
		"", "Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
		"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
	}
	if int(m) >= 1 && int(m) <= 12 {
		return names[m]
	}
	return ""
}
