package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/epicast/casecast/internal/models"
)

// Timeline aligns the three domains onto one sorted date axis. It is the only place that
// reconciles independently keyed records.
type Timeline struct {
	dates  []time.Time
	index  map[time.Time]int
	values map[string][]float64
}

// NewTimeline merges domain records. Every collection must carry a distinct domain.
func NewTimeline(collections ...models.DomainRecords) (*Timeline, error) {
	seenDomain := make(map[models.Domain]struct{}, len(collections))
	daySet := make(map[time.Time]struct{})
	for _, c := range collections {
		if _, dup := seenDomain[c.Domain]; dup {
			return nil, fmt.Errorf("duplicate domain %q", c.Domain)
		}
		seenDomain[c.Domain] = struct{}{}
		for _, r := range c.Records {
			daySet[models.TruncateDay(r.Date)] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	tl := &Timeline{
		dates:  dates,
		index:  make(map[time.Time]int, len(dates)),
		values: make(map[string][]float64),
	}
	for i, d := range dates {
		tl.index[d] = i
	}

	for _, c := range collections {
		for _, f := range models.Catalog(c.Domain) {
			tl.values[f.Key()] = nanSeries(len(dates))
		}
		for _, r := range c.Sorted() {
			i := tl.index[r.Date]
			for name, v := range r.Values {
				f, ok := models.LookupColumn(c.Domain, name)
				if !ok {
					continue
				}
				tl.values[f.Key()][i] = v
			}
		}
	}
	return tl, nil
}

// Len returns the number of dates on the axis.
func (t *Timeline) Len() int { return len(t.dates) }

// Dates returns a copy of the date axis.
func (t *Timeline) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Date returns the date at index i.
func (t *Timeline) Date(i int) time.Time { return t.dates[i] }

// First and Last bound the axis. Both are zero for an empty timeline.
func (t *Timeline) First() time.Time {
	if len(t.dates) == 0 {
		return time.Time{}
	}
	return t.dates[0]
}

func (t *Timeline) Last() time.Time {
	if len(t.dates) == 0 {
		return time.Time{}
	}
	return t.dates[len(t.dates)-1]
}

// IndexOf returns the index of the given calendar date.
func (t *Timeline) IndexOf(day time.Time) (int, bool) {
	i, ok := t.index[models.TruncateDay(day)]
	return i, ok
}

// Has reports whether the field's domain was loaded.
func (t *Timeline) Has(f models.Field) bool {
	_, ok := t.values[f.Key()]
	return ok
}

// Column returns the raw series for f; dates absent from its domain are NaN.
func (t *Timeline) Column(f models.Field) ([]float64, bool) {
	col, ok := t.values[f.Key()]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), col...), true
}

// Filled returns the series for f with gaps carried forward from the last observation.
// Leading gaps stay NaN.
func (t *Timeline) Filled(f models.Field) ([]float64, bool) {
	col, ok := t.Column(f)
	if !ok {
		return nil, false
	}
	last := math.NaN()
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = last
			continue
		}
		last = v
	}
	return col, true
}

// Between returns the indices of dates in [from, to], inclusive on both ends.
func (t *Timeline) Between(from, to time.Time) models.Range {
	from, to = models.TruncateDay(from), models.TruncateDay(to)
	start := sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(from) })
	end := sort.Search(len(t.dates), func(i int) bool { return t.dates[i].After(to) })
	if end < start {
		end = start
	}
	return models.Range{Start: start, End: end}
}

// View extracts the given fields over [from, to].
func (t *Timeline) View(fields []models.Field, from, to time.Time) (models.SeriesView, error) {
	r := t.Between(from, to)
	view := models.SeriesView{
		Fields: append([]models.Field(nil), fields...),
		Dates:  append([]time.Time(nil), t.dates[r.Start:r.End]...),
		Values: make(map[string][]float64, len(fields)),
	}
	for _, f := range fields {
		col, ok := t.values[f.Key()]
		if !ok {
			return models.SeriesView{}, fmt.Errorf("field %s not loaded", f)
		}
		view.Values[f.Key()] = append([]float64(nil), col[r.Start:r.End]...)
	}
	return view, nil
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
