package engine

import (
	"math"

	"github.com/epicast/casecast/internal/dataset"
	"github.com/epicast/casecast/internal/models"
)

// HighCorrelation is the absolute coefficient a field must exceed to become a feature.
const HighCorrelation = 0.75

// FeatureSelector picks fields whose correlation with the target clears HighCorrelation.
type FeatureSelector struct {
	threshold float64
}

// NewFeatureSelector returns a selector using HighCorrelation.
func NewFeatureSelector() *FeatureSelector {
	return &FeatureSelector{threshold: HighCorrelation}
}

// Select walks every catalog field, vaccinations first, then case growth, then tests, and
// keeps those with |corr(target, f)| > threshold. The same predicate applies to all domains.
func (s *FeatureSelector) Select(target models.Field, corr models.CorrelationMatrix, tl *dataset.Timeline) (models.FeatureSet, error) {
	if _, ok := corr[target.Key()]; !ok {
		return models.FeatureSet{}, &MissingFieldError{Field: target.Key(), Where: "correlation matrix"}
	}

	var set models.FeatureSet
	for _, f := range models.AllFields() {
		c, ok := corr.Get(target, f)
		if !ok {
			return models.FeatureSet{}, &MissingFieldError{Field: f.Key(), Where: "correlation matrix"}
		}
		if !(math.Abs(c) > s.threshold) {
			continue
		}
		series, ok := tl.Filled(f)
		if !ok {
			return models.FeatureSet{}, &MissingFieldError{Field: f.Key(), Where: "timeline"}
		}
		set.Fields = append(set.Fields, f)
		set.Series = append(set.Series, series)
	}
	return set, nil
}
