// Package slots holds the clinic's fixed slot catalog and the clock math for
// its 12-hour style labels.
package slots

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ClinicZone is the clinic's fixed UTC+05:30 offset.
var ClinicZone = time.FixedZone("IST", 5*60*60+30*60)

// ErrInvalidCatalog is returned by ValidateCatalog.
var ErrInvalidCatalog = errors.New("slots: invalid catalog")

// Catalog is an ordered list of bookable slot labels for one business day.
type Catalog struct {
	labels []string
	index  map[string]int
}

// NewCatalog builds a catalog preserving the given order.
func NewCatalog(labels ...string) Catalog {
	c := Catalog{labels: append([]string(nil), labels...), index: make(map[string]int, len(labels))}
	for i, label := range c.labels {
		c.index[label] = i
	}
	return c
}

// DefaultCatalog is the morning (10:00-14:00) and evening (18:00-21:00) block.
var DefaultCatalog = NewCatalog(
	"10:00-10:30", "10:30-11:00", "11:00-11:30", "11:30-12:00",
	"12:00-12:30", "12:30-01:00", "01:00-01:30", "01:30-02:00",
	"06:00-06:30", "06:30-07:00", "07:00-07:30", "07:30-08:00",
	"08:00-08:30", "08:30-09:00",
)

// Labels returns a copy of the catalog labels in order.
func (c Catalog) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Contains reports whether label is a catalog entry.
func (c Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}

// Index returns the position of label, or -1.
func (c Catalog) Index(label string) int {
	if i, ok := c.index[label]; ok {
		return i
	}
	return -1
}

// Len returns the number of slots.
func (c Catalog) Len() int {
	return len(c.labels)
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)

// EndClock returns the 24-hour end time of a slot label. Unparsable labels end at 23:59.
func EndClock(label string) (hour, minute int) {
	_, end, ok := strings.Cut(label, "-")
	if !ok {
		return 23, 59
	}
	return clock(end)
}

// StartClock returns the 24-hour start time of a slot label. Unparsable labels map to 23:59.
func StartClock(label string) (hour, minute int) {
	start, _, _ := strings.Cut(label, "-")
	return clock(start)
}

// clock applies the clinic convention: hours 1-9 are afternoon or evening.
func clock(part string) (hour, minute int) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(part))
	if m == nil {
		return 23, 59
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 23, 59
	}
	if hour >= 1 && hour <= 9 {
		hour += 12
	}
	return hour, minute
}

// EndInstant is the clinic-local instant at which the slot on date ends.
func EndInstant(date time.Time, label string) time.Time {
	h, m := EndClock(label)
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, ClinicZone)
}

// StartInstant is the clinic-local instant at which the slot on date starts.
func StartInstant(date time.Time, label string) time.Time {
	h, m := StartClock(label)
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, ClinicZone)
}

// Ended reports whether the slot on date has ended at now.
func Ended(date time.Time, label string, now time.Time) bool {
	return !EndInstant(date, label).After(now)
}

// Today returns the clinic-local calendar date of now, at midnight UTC.
func Today(now time.Time) time.Time {
	return DateOnly(now.In(ClinicZone))
}

// DateOnly strips the clock from t, keeping its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("slots: invalid date %q", value)
	}
	return t, nil
}

// ValidateCatalog checks every label parses under the clinic convention, ends
// after it starts, and that catalog order is chronological.
func ValidateCatalog(c Catalog) error {
	if c.Len() == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidCatalog)
	}
	prevEnd := -1
	for _, label := range c.labels {
		if !clockPattern.MatchString(label) || !strings.Contains(label, "-") {
			return fmt.Errorf("%w: %q is not HH:MM-HH:MM", ErrInvalidCatalog, label)
		}
		_, end, _ := strings.Cut(label, "-")
		if !clockPattern.MatchString(strings.TrimSpace(end)) {
			return fmt.Errorf("%w: %q is not HH:MM-HH:MM", ErrInvalidCatalog, label)
		}
		sh, sm := StartClock(label)
		eh, em := EndClock(label)
		start, finish := sh*60+sm, eh*60+em
		if finish <= start {
			return fmt.Errorf("%w: %q ends before it starts", ErrInvalidCatalog, label)
		}
		if start < prevEnd {
			return fmt.Errorf("%w: %q is out of order", ErrInvalidCatalog, label)
		}
		prevEnd = finish
	}
	return nil
}
