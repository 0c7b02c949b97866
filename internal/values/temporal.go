package values

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date without time-of-day or offset.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	if c := cmp.Compare(d.Year, o.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Month, o.Month); c != 0 {
		return c
	}
	return cmp.Compare(d.Day, o.Day)
}

// StartOfDay returns midnight UTC of d.
func (d Date) StartOfDay() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// TimeOfDay is the offset from midnight UTC.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from clock components.
func NewTimeOfDay(hour, minute, second, nsec int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second +
		time.Duration(nsec))
}

func clockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return NewTimeOfDay(h, m, s, t.Nanosecond())
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	if d == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, d)
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

const dateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

var timeLayouts = []string{
	"15:04:05.999999999Z07:00",
	"15:04Z07:00",
	"15:04:05.999999999",
	"15:04",
}

// parseDateTime parses s as a date-time. dateOnly is true when s carried
// no time-of-day. Values without an offset are taken as UTC.
func parseDateTime(s string) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, true
		}
	}
	return time.Time{}, false, false
}

// ToDate coerces v to a calendar date. Date-times keep their literal date:
// the offset is not applied before truncation.
func ToDate(v any) (Date, bool) {
	switch val := v.(type) {
	case Date:
		return val, true
	case time.Time:
		return DateOf(val), true
	case *time.Time:
		if val == nil {
			return Date{}, false
		}
		return DateOf(*val), true
	case string:
		t, _, ok := parseDateTime(val)
		if !ok {
			return Date{}, false
		}
		return DateOf(t), true
	default:
		return Date{}, false
	}
}

// ToDateTime coerces v to an instant. Date-only values become start of day UTC.
func ToDateTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, true
	case Date:
		return val.StartOfDay(), true
	case string:
		t, _, ok := parseDateTime(val)
		return t, ok
	default:
		return time.Time{}, false
	}
}

// ToTimeOfDay coerces v to a time-of-day normalized to UTC.
func ToTimeOfDay(v any) (TimeOfDay, bool) {
	switch val := v.(type) {
	case TimeOfDay:
		return val, true
	case time.Time:
		return clockOf(val.UTC()), true
	case *time.Time:
		if val == nil {
			return 0, false
		}
		return clockOf(val.UTC()), true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return clockOf(t.UTC()), true
			}
		}
		if t, dateOnly, ok := parseDateTime(s); ok && !dateOnly {
			return clockOf(t.UTC()), true
		}
		return 0, false
	default:
		return 0, false
	}
}
