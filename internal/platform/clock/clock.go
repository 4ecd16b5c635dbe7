// Package clock supplies the current instant and the current calendar day in
// the ward's reference timezone. Everything that depends on "now" or "today"
// receives a Clock instead of reading the wall clock directly.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock is the source of "now" and "today".
type Clock interface {
	Now() time.Time
	Today() Date
}

// Date is a calendar day with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a day in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t, time.UTC), nil
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// Time returns midnight UTC of the day. It is the value bound to DATE columns.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// System is the wall clock. Today is computed in the configured location so
// the day boundary follows the ward, not the server.
type System struct {
	loc *time.Location
}

func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

func (s *System) Now() time.Time { return time.Now() }

func (s *System) Today() Date { return DateOf(time.Now(), s.loc) }

func (s *System) Location() *time.Location { return s.loc }

// Fixed is a settable clock for tests and one-shot CLI evaluations.
type Fixed struct {
	mu  sync.RWMutex
	now time.Time
	loc *time.Location
}

func NewFixed(now time.Time, loc *time.Location) *Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return &Fixed{now: now, loc: loc}
}

func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

func (f *Fixed) Today() Date {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return DateOf(f.now, f.loc)
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
