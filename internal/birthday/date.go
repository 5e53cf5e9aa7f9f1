package birthday

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate reports a birth date that does not exist on the calendar or cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar date without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates the components and returns the date.
func NewDate(year int, month time.Month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if !d.Valid() {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, int(month), day)
	}
	return d, nil
}

// MustDate is NewDate for literals known to be valid. It panics otherwise.
func MustDate(year int, month time.Month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp. Only the calendar
// date written in the string is kept; the offset is not applied.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Valid reports whether the date exists on the proleptic Gregorian calendar.
func (d Date) Valid() bool {
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Day >= 1 && d.Day <= daysIn(d.Year, d.Month)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is an earlier calendar day than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// SameDay reports whether month and day match, ignoring the year.
func (d Date) SameDay(o Date) bool {
	return d.Month == o.Month && d.Day == o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes YYYY-MM-DD or RFC 3339 input.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
