package models

import (
	"sort"
	"time"
)

// DateLayout is the calendar date format used by sources, config and transport.
const DateLayout = "2006-01-02"

// Record holds one day of values for a single domain.
type Record struct {
	Date   time.Time
	Values map[string]float64
}

// DomainRecords is a date-keyed collection of records for exactly one domain.
type DomainRecords struct {
	Domain  Domain
	Records []Record
}

// Sorted returns the records ordered by date. Later duplicates of a date win.
func (d DomainRecords) Sorted() []Record {
	byDate := make(map[time.Time]Record, len(d.Records))
	for _, r := range d.Records {
		byDate[TruncateDay(r.Date)] = r
	}
	out := make([]Record, 0, len(byDate))
	for day, r := range byDate {
		r.Date = day
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// TruncateDay normalises t to midnight UTC of its calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CorrelationMatrix maps field key to field key to a Pearson coefficient in [-1, 1].
type CorrelationMatrix map[string]map[string]float64

// Get returns the coefficient between two fields.
func (m CorrelationMatrix) Get(a, b Field) (float64, bool) {
	row, ok := m[a.Key()]
	if !ok {
		return 0, false
	}
	v, ok := row[b.Key()]
	return v, ok
}

// Set stores the coefficient symmetrically.
func (m CorrelationMatrix) Set(a, b Field, v float64) {
	for _, pair := range [][2]Field{{a, b}, {b, a}} {
		row, ok := m[pair[0].Key()]
		if !ok {
			row = make(map[string]float64)
			m[pair[0].Key()] = row
		}
		row[pair[1].Key()] = v
	}
}

// SeriesView is a date-bounded slice of selected fields for display.
type SeriesView struct {
	Fields []Field
	Dates  []time.Time
	Values map[string][]float64
}
