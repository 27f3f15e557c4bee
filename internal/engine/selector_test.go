package engine

import (
	"errors"
	"testing"

	"github.com/epicast/casecast/internal/models"
)

func TestFeatureSelectorUniformPredicate(t *testing.T) {
	tl := timelineOf(5, map[models.Field][]float64{
		models.PeopleVaccinated:  ramp(5, 1, 1),
		models.DailyVaccinations: ramp(5, 2, 1),
		models.NewDailyCases:     ramp(5, 3, 1),
		models.DailyTests:        ramp(5, 4, 1),
		models.PositiveRate:      ramp(5, 5, 1),
	})
	corr := matrixWith(map[models.Field]float64{
		models.PeopleVaccinated:  -0.9,
		models.DailyVaccinations: 0.2,
		models.DailyTests:        0.76,
		models.PositiveRate:      0.75,
	})

	set, err := NewFeatureSelector().Select(models.NewDailyCases, corr, tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []models.Field{models.PeopleVaccinated, models.NewDailyCases, models.DailyTests}
	if len(set.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %v", len(want), set.Fields)
	}
	for i, f := range want {
		if set.Fields[i] != f {
			t.Fatalf("position %d: expected %s, got %s", i, f, set.Fields[i])
		}
		if len(set.Series[i]) != tl.Len() {
			t.Fatalf("series %s has %d entries", f, len(set.Series[i]))
		}
	}
	if set.Series[1][4] != 7 {
		t.Fatalf("expected target series to be carried, got %v", set.Series[1])
	}
}

func TestFeatureSelectorDeterministic(t *testing.T) {
	tl := timelineOf(3, map[models.Field][]float64{
		models.NewDailyCases: ramp(3, 1, 1),
		models.TotalTests:    ramp(3, 1, 2),
	})
	corr := matrixWith(map[models.Field]float64{models.TotalTests: 0.95, models.TotalCases: -0.8})
	selector := NewFeatureSelector()

	first, err := selector.Select(models.NewDailyCases, corr, tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := selector.Select(models.NewDailyCases, corr, tl)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for j := range first.Fields {
			if again.Fields[j] != first.Fields[j] {
				t.Fatalf("selection order changed on run %d", i)
			}
		}
	}
	for _, f := range first.Fields {
		if !models.Known(f) {
			t.Fatalf("selected field %s outside catalog", f)
		}
	}
}

func TestFeatureSelectorMissingField(t *testing.T) {
	tl := timelineOf(3, map[models.Field][]float64{models.NewDailyCases: ramp(3, 1, 1)})

	t.Run("target row absent", func(t *testing.T) {
		_, err := NewFeatureSelector().Select(models.NewDailyCases, models.CorrelationMatrix{}, tl)
		var mfe *MissingFieldError
		if !errors.As(err, &mfe) || mfe.Field != models.NewDailyCases.Key() {
			t.Fatalf("expected missing target error, got %v", err)
		}
	})

	t.Run("catalog field absent", func(t *testing.T) {
		corr := matrixWith(nil)
		delete(corr[models.NewDailyCases.Key()], models.TestsPerCase.Key())
		_, err := NewFeatureSelector().Select(models.NewDailyCases, corr, tl)
		if !errors.Is(err, ErrMissingField) {
			t.Fatalf("expected ErrMissingField, got %v", err)
		}
	})
}

func TestFeatureSelectorNothingClears(t *testing.T) {
	tl := timelineOf(3, map[models.Field][]float64{models.NewDailyCases: ramp(3, 1, 1)})
	corr := matrixWith(nil)
	corr.Set(models.NewDailyCases, models.NewDailyCases, 0.5)

	set, err := NewFeatureSelector().Select(models.NewDailyCases, corr, tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("expected empty feature set, got %v", set.Fields)
	}
}
