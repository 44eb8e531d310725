package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron schedule:
//
//	minute hour day-of-month month day-of-week
//
// Fields accept *, n, n-m, */s, n-m/s and comma lists of those.
// Day-of-week 0 and 7 both mean Sunday. Next is evaluated in the location of
// the time passed to it, so the engine clock decides what "midnight" is.
type CronExpression struct {
	raw      string
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64

	// Standard cron: when both day fields are restricted, either may match.
	domStar bool
	dowStar bool
}

// Schedules used by the maintenance jobs.
const (
	// WeeklyReset fires on Monday at 00:00, the first minute of an ISO week.
	WeeklyReset = "0 0 * * 1"

	// DailyStreakSweep fires shortly after midnight, once the previous day is closed.
	DailyStreakSweep = "5 0 * * *"

	// HourlyQuestExpiry fires at the top of every hour.
	HourlyQuestExpiry = "0 * * * *"
)

// ParseCronExpression parses expr.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{
		raw:     strings.Join(fields, " "),
		domStar: fields[2] == "*",
		dowStar: fields[4] == "*",
	}

	specs := []struct {
		name     string
		dst      *uint64
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day-of-month", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"day-of-week", &ce.weekdays, 0, 7},
	}
	for i, spec := range specs {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = set
	}

	// Fold 7 onto Sunday.
	if ce.weekdays&(1<<7) != 0 {
		ce.weekdays = ce.weekdays&^(1<<7) | 1
	}
	return ce, nil
}

// ParseSchedule accepts either a 5-field cron expression or "@every <duration>"
// (e.g. "@every 15m"), which runs on aligned interval boundaries.
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid interval %q", rest)
		}
		return &IntervalSchedule{Interval: d, Aligned: true}, nil
	}
	return ParseCronExpression(expr)
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

// parseField turns one field into a bit set of allowed values.
func parseField(field string, min, max int) (uint64, error) {
	var set uint64
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty list element in %q", field)
		}

		rng, stepStr, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			s, err := strconv.Atoi(stepStr)
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("invalid step %q", stepStr)
			}
			step = s
		}

		lo, hi := min, max
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if lo, err = atoiInRange(a, min, max); err != nil {
				return 0, err
			}
			if hi, err = atoiInRange(b, min, max); err != nil {
				return 0, err
			}
			if lo > hi {
				return 0, fmt.Errorf("range %q is reversed", rng)
			}
		default:
			v, err := atoiInRange(rng, min, max)
			if err != nil {
				return 0, err
			}
			lo = v
			if !hasStep {
				hi = v
			}
		}

		for v := lo; v <= hi; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

func atoiInRange(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of range [%d-%d]", v, min, max)
	}
	return v, nil
}

// String returns the normalized expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after t, or the zero time
// if nothing matches within five years (e.g. "0 0 30 2 *").
func (ce *CronExpression) Next(t time.Time) time.Time {
	loc := t.Location()
	t = t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !has(ce.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !ce.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !has(ce.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !has(ce.minutes, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (ce *CronExpression) dayMatches(t time.Time) bool {
	dom := has(ce.days, t.Day())
	dow := has(ce.weekdays, int(t.Weekday()))
	if ce.domStar || ce.dowStar {
		return dom && dow
	}
	return dom || dow
}

func has(set uint64, v int) bool {
	return set&(1<<uint(v)) != 0
}

