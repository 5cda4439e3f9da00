package schedule

import (
	"fmt"
	"sync"
	"time"
)

const dayMs = 24 * 60 * 60 * 1000

// CalendarParts is the wall-clock reading of an instant inside a named
// timezone. Derived on demand, never stored.
type CalendarParts struct {
	Year   int
	Month  int // 1-12
	Day    int
	Hour   int
	Minute int
	Second int
}

// RecurrenceKind selects which fields of a RecurrenceRule apply.
type RecurrenceKind int

const (
	MonthlyByDay RecurrenceKind = iota
	IntervalDays
)

// RecurrenceRule describes when a bill, loan or income recurs.
// MonthlyByDay uses Day/Hour/Minute; IntervalDays uses Days/AnchorMs.
type RecurrenceRule struct {
	Kind     RecurrenceKind
	Day      int // 1-31, clamped to month length
	Hour     int
	Minute   int
	Days     int // interval length, >= 1
	AnchorMs int64
}

// Monthly builds a MonthlyByDay rule.
func Monthly(day, hour, minute int) RecurrenceRule {
	return RecurrenceRule{Kind: MonthlyByDay, Day: day, Hour: hour, Minute: minute}
}

// Interval builds an IntervalDays rule anchored at anchorMs.
func Interval(days int, anchorMs int64) RecurrenceRule {
	if days < 1 {
		days = 1
	}
	return RecurrenceRule{Kind: IntervalDays, Days: days, AnchorMs: anchorMs}
}

// NormalizeCadence maps a stored cadence string plus schedule fields onto a
// closed RecurrenceRule. Unknown cadences default to monthly.
func NormalizeCadence(cadence string, dueDay, hour, minute, intervalDays int, anchorMs int64) RecurrenceRule {
	switch cadence {
	case "weekly":
		return Interval(7, anchorMs)
	case "biweekly":
		return Interval(14, anchorMs)
	case "custom":
		return Interval(intervalDays, anchorMs)
	default:
		return Monthly(dueDay, hour, minute)
	}
}

// Clock converts between absolute instants (milliseconds since epoch) and
// wall-clock calendar parts in IANA timezones. The zone lookup cache is an
// explicit field owned by the instance, not process-wide state.
type Clock struct {
	defaultLoc *time.Location

	mu   sync.Mutex
	locs map[string]*time.Location
}

// NewClock builds a Clock whose fallback zone is defaultTZ. An unresolvable
// defaultTZ falls back to UTC.
func NewClock(defaultTZ string) *Clock {
	loc, err := time.LoadLocation(defaultTZ)
	if err != nil {
		loc = time.UTC
	}
	return &Clock{defaultLoc: loc, locs: make(map[string]*time.Location)}
}

// location resolves a zone name, falling back to the default zone. Alerts
// need a consistent zone, not strict validation, so this never errors.
func (c *Clock) location(name string) *time.Location {
	if name == "" {
		return c.defaultLoc
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if loc, ok := c.locs[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = c.defaultLoc
	}
	c.locs[name] = loc
	return loc
}

// ResolveCalendar reads the wall-clock fields of instantMs in the given zone.
func (c *Clock) ResolveCalendar(instantMs int64, tz string) CalendarParts {
	t := time.UnixMilli(instantMs).In(c.location(tz))
	return CalendarParts{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// ZonedToInstant maps calendar parts in a zone back to an absolute instant.
// A civil time can map to zero, one or two instants across a DST transition,
// so the offset is resolved in two passes: read the offset at the UTC
// estimate, subtract it, then re-read at the candidate and redo the
// subtraction once if the offset moved. Real-world offsets change by whole
// multiples of 15 minutes, so one extra pass always converges. In the
// spring-forward gap the result is whichever instant the passes land on.
func (c *Clock) ZonedToInstant(parts CalendarParts, tz string) int64 {
	loc := c.location(tz)
	estimate := time.Date(parts.Year, time.Month(parts.Month), parts.Day,
		parts.Hour, parts.Minute, parts.Second, 0, time.UTC).UnixMilli()

	_, offset1 := time.UnixMilli(estimate).In(loc).Zone()
	candidate := estimate - int64(offset1)*1000

	_, offset2 := time.UnixMilli(candidate).In(loc).Zone()
	if offset2 != offset1 {
		candidate = estimate - int64(offset2)*1000
	}
	return candidate
}

// ClampDayForMonth clamps a day-of-month to the month's length, so a bill
// due on the 31st degrades to the 30th, 29th or 28th as needed.
func ClampDayForMonth(year, month, day int) int {
	if n := daysInMonth(year, month); day > n {
		return n
	}
	if day < 1 {
		return 1
	}
	return day
}

func daysInMonth(year, month int) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextOccurrence returns the first scheduled instant at or after nowMs.
func (c *Clock) NextOccurrence(nowMs int64, rule RecurrenceRule, tz string) int64 {
	switch rule.Kind {
	case IntervalDays:
		return nextInterval(nowMs, rule)
	default:
		return c.nextMonthly(nowMs, rule, tz)
	}
}

func (c *Clock) nextMonthly(nowMs int64, rule RecurrenceRule, tz string) int64 {
	parts := c.ResolveCalendar(nowMs, tz)

	year, month := parts.Year, parts.Month
	scheduled := c.ZonedToInstant(CalendarParts{
		Year:   year,
		Month:  month,
		Day:    ClampDayForMonth(year, month, rule.Day),
		Hour:   rule.Hour,
		Minute: rule.Minute,
	}, tz)
	if scheduled >= nowMs {
		return scheduled
	}

	month++
	if month > 12 {
		month = 1
		year++
	}
	return c.ZonedToInstant(CalendarParts{
		Year:   year,
		Month:  month,
		Day:    ClampDayForMonth(year, month, rule.Day),
		Hour:   rule.Hour,
		Minute: rule.Minute,
	}, tz)
}

func nextInterval(nowMs int64, rule RecurrenceRule) int64 {
	if rule.AnchorMs >= nowMs {
		return rule.AnchorMs
	}
	intervalMs := int64(rule.Days) * dayMs
	elapsed := nowMs - rule.AnchorMs
	intervals := elapsed / intervalMs
	if elapsed%intervalMs != 0 {
		intervals++
	}
	return rule.AnchorMs + intervals*intervalMs
}

// CycleKey returns the "YYYY-MM" bucket of an instant in the zone's local
// calendar, the canonical monthly identifier for cycle runs and alerts.
func (c *Clock) CycleKey(instantMs int64, tz string) string {
	parts := c.ResolveCalendar(instantMs, tz)
	return fmt.Sprintf("%04d-%02d", parts.Year, parts.Month)
}
