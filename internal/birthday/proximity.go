// Package birthday computes when a birth date next comes around and orders
// people by how close that is. Everything here is pure: callers pass "today"
// explicitly and results are recomputed on every request, never stored.
package birthday

import (
	"fmt"
	"sort"
	"time"
)

// Record is the input to the calculator: an identifier and a birth date.
type Record struct {
	ID        string
	BirthDate Date
}

// Proximity is a Record annotated relative to a reference day.
type Proximity struct {
	ID             string   `json:"id"`
	BirthDate      Date     `json:"birth_date"`
	NextOccurrence Date     `json:"next_occurrence"`
	DaysUntil      int      `json:"days_until"`
	IsToday        bool     `json:"is_today"`
	Category       Category `json:"category"`
}

// ObservedDate returns the day a birthday falls on in the given year.
// Feb 29 birthdays are observed on Mar 1 in non-leap years.
func ObservedDate(birth Date, year int) Date {
	if birth.Month == time.February && birth.Day == 29 && !isLeap(year) {
		return Date{Year: year, Month: time.March, Day: 1}
	}
	return Date{Year: year, Month: birth.Month, Day: birth.Day}
}

// NextOccurrence returns the first observed birthday on or after today.
func NextOccurrence(birth, today Date) Date {
	candidate := ObservedDate(birth, today.Year)
	if candidate.Before(today) {
		candidate = ObservedDate(birth, today.Year+1)
	}
	return candidate
}

// DaysUntil counts calendar days from today to the next occurrence; 0 means today.
func DaysUntil(birth, today Date) int {
	next := NextOccurrence(birth, today)
	return int(next.Time().Sub(today.Time()) / (24 * time.Hour))
}

// IsToday reports whether the birthday is observed on today. A Feb 29 birthday is
// therefore today on Mar 1 of a non-leap year, keeping IsToday equivalent to DaysUntil == 0.
func IsToday(birth, today Date) bool {
	return ObservedDate(birth, today.Year) == today
}

// Compute annotates a single record. The Category is left empty; use a
// Classifier to fill it.
func Compute(rec Record, today Date) Proximity {
	next := NextOccurrence(rec.BirthDate, today)
	days := int(next.Time().Sub(today.Time()) / (24 * time.Hour))
	return Proximity{
		ID:             rec.ID,
		BirthDate:      rec.BirthDate,
		NextOccurrence: next,
		DaysUntil:      days,
		IsToday:        days == 0,
	}
}

// SortByProximity orders birthdays today first, then by ascending days until
// the next occurrence, then by ID.
func SortByProximity(list []Proximity) {
	sort.SliceStable(list, func(i, j int) bool {
		return less(list[i], list[j])
	})
}

func less(a, b Proximity) bool {
	if a.IsToday != b.IsToday {
		return a.IsToday
	}
	if a.DaysUntil != b.DaysUntil {
		return a.DaysUntil < b.DaysUntil
	}
	return a.ID < b.ID
}

// ClassifyAndSort annotates every record with DefaultClassifier and returns
// them in proximity order. The input slice is not modified.
func ClassifyAndSort(records []Record, today Date) ([]Proximity, error) {
	return DefaultClassifier.ClassifyAndSort(records, today)
}

// Within keeps birthdays strictly after today and at most days away,
// preserving order.
func Within(list []Proximity, days int) []Proximity {
	out := make([]Proximity, 0, len(list))
	for _, p := range list {
		if !p.IsToday && p.DaysUntil > 0 && p.DaysUntil <= days {
			out = append(out, p)
		}
	}
	return out
}

// TodayOnly keeps birthdays observed today.
func TodayOnly(list []Proximity) []Proximity {
	out := make([]Proximity, 0)
	for _, p := range list {
		if p.IsToday {
			out = append(out, p)
		}
	}
	return out
}

func validate(records []Record) error {
	for _, rec := range records {
		if !rec.BirthDate.Valid() {
			return fmt.Errorf("record %s: %w: %s", rec.ID, ErrInvalidDate, rec.BirthDate)
		}
	}
	return nil
}
