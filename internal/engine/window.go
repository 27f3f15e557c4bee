package engine

import (
	"math"
	"time"

	"github.com/epicast/casecast/internal/models"
)

// BuildWindow computes train and test ranges over a series of length entries.
//
// The start offset is the number of days between anchor and start. A zero offset uses the
// whole history; otherwise training begins offset entries before the end of the series.
// The test range is the last daysToPredict entries and training targets run up to it.
// Features lag their targets by daysToPredict, so the newest training feature is
// daysToPredict entries older than the first test target.
func BuildWindow(anchor time.Time, length int, start time.Time, daysToPredict int) (models.Window, error) {
	if daysToPredict <= 0 {
		return models.Window{}, invalidf("days to predict must be positive, got %d", daysToPredict)
	}

	offset := daysBetween(anchor, start)
	begin := 0
	if offset > 0 {
		begin = length - offset
	}
	stop := length - daysToPredict
	if begin < 0 || begin+daysToPredict >= stop {
		return models.Window{}, &InsufficientHistoryError{Offset: offset, Horizon: daysToPredict, Length: length}
	}

	return models.Window{
		Train: models.Range{Start: begin + daysToPredict, End: stop},
		Test:  models.Range{Start: stop, End: length},
		Lag:   daysToPredict,
	}, nil
}

func daysBetween(a, b time.Time) int {
	d := models.TruncateDay(a).Sub(models.TruncateDay(b)).Hours() / 24
	return int(math.Abs(math.Round(d)))
}
