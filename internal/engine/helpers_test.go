package engine

import (
	"context"
	"errors"
	"time"

	"github.com/epicast/casecast/internal/dataset"
	"github.com/epicast/casecast/internal/models"
)

var baseDay = time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)

// matrixWith returns a matrix covering every catalog field against the target, defaulting
// to zero correlation.
func matrixWith(overrides map[models.Field]float64) models.CorrelationMatrix {
	m := models.CorrelationMatrix{}
	for _, f := range models.AllFields() {
		m.Set(models.NewDailyCases, f, overrides[f])
	}
	m.Set(models.NewDailyCases, models.NewDailyCases, 1)
	return m
}

// columns builds domain records from per-field series sharing one date axis.
func columns(days int, series map[models.Field][]float64) []models.DomainRecords {
	out := make([]models.DomainRecords, 0, len(models.Domains))
	for _, d := range models.Domains {
		recs := models.DomainRecords{Domain: d}
		for i := 0; i < days; i++ {
			values := make(map[string]float64)
			for f, s := range series {
				if f.Domain == d {
					values[f.Name] = s[i]
				}
			}
			recs.Records = append(recs.Records, models.Record{Date: baseDay.AddDate(0, 0, i), Values: values})
		}
		out = append(out, recs)
	}
	return out
}

func timelineOf(days int, series map[models.Field][]float64) *dataset.Timeline {
	tl, err := dataset.NewTimeline(columns(days, series)...)
	if err != nil {
		panic(err)
	}
	return tl
}

type fakeSource struct {
	domains []models.DomainRecords
	corr    models.CorrelationMatrix
	err     error
}

func (f *fakeSource) domain(d models.Domain) (models.DomainRecords, error) {
	if f.err != nil {
		return models.DomainRecords{}, f.err
	}
	for _, r := range f.domains {
		if r.Domain == d {
			return r, nil
		}
	}
	return models.DomainRecords{Domain: d}, nil
}

func (f *fakeSource) Vaccinations(context.Context) (models.DomainRecords, error) {
	return f.domain(models.DomainVaccinations)
}

func (f *fakeSource) Tests(context.Context) (models.DomainRecords, error) {
	return f.domain(models.DomainTests)
}

func (f *fakeSource) CaseGrowth(context.Context) (models.DomainRecords, error) {
	return f.domain(models.DomainCaseGrowth)
}

func (f *fakeSource) Correlations(context.Context) (models.CorrelationMatrix, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.corr, nil
}

type recordingSink struct {
	forecasts []models.ForecastReport
	views     []models.SeriesView
	fail      bool
}

func (r *recordingSink) RenderForecast(_ context.Context, rep models.ForecastReport) error {
	r.forecasts = append(r.forecasts, rep)
	if r.fail {
		return errors.New("sink offline")
	}
	return nil
}

func (r *recordingSink) RenderSeries(_ context.Context, view models.SeriesView) error {
	r.views = append(r.views, view)
	if r.fail {
		return errors.New("sink offline")
	}
	return nil
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
