package api

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/epicast/casecast/internal/models"
	"github.com/epicast/casecast/internal/utils"
)

// SeriesRequest is the decoded Series call.
type SeriesRequest struct {
	Fields []models.Field
	From   time.Time
	To     time.Time
}

// AutocorrelationRequest is the decoded Autocorrelation call.
type AutocorrelationRequest struct {
	Field  models.Field
	MaxLag int
}

// FromStructForecastRequest decodes {start_date: "YYYY-MM-DD", days_to_predict: number}.
// An absent days_to_predict decodes as zero.
func FromStructForecastRequest(req *structpb.Struct) (models.ForecastRequest, error) {
	if req == nil {
		return models.ForecastRequest{}, fmt.Errorf("request is nil")
	}
	start, err := dateField(req, "start_date")
	if err != nil {
		return models.ForecastRequest{}, err
	}
	days, err := intField(req, "days_to_predict")
	if err != nil {
		return models.ForecastRequest{}, err
	}
	return models.ForecastRequest{StartDate: start, DaysToPredict: days}, nil
}

// ToStructForecastReport encodes a report. Missing values are encoded as null.
func ToStructForecastReport(rep models.ForecastReport) *structpb.Struct {
	fields := make([]*structpb.Value, len(rep.SelectedFields))
	for i, f := range rep.SelectedFields {
		fields[i] = structpb.NewStringValue(f.Key())
	}
	summary := &structpb.Struct{Fields: map[string]*structpb.Value{
		"mae":              numberValue(rep.Summary.MAE),
		"mape":             numberValue(rep.Summary.MAPE),
		"weekly_predicted": numberList(rep.Summary.WeeklyPredicted),
		"weekly_actual":    numberList(rep.Summary.WeeklyActual),
	}}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":              structpb.NewStringValue(rep.ID),
		"start_date":      structpb.NewStringValue(utils.FormatDate(rep.StartDate)),
		"anchor_date":     structpb.NewStringValue(utils.FormatDate(rep.AnchorDate)),
		"selected_fields": structpb.NewListValue(&structpb.ListValue{Values: fields}),
		"dates":           dateList(rep.Dates),
		"predicted":       numberList(rep.Predicted),
		"actual":          numberList(rep.Actual),
		"train_actual":    numberList(rep.TrainActual),
		"summary":         structpb.NewStructValue(summary),
		"created_at":      structpb.NewStringValue(rep.CreatedAt.UTC().Format(time.RFC3339)),
	}}
}

// FromStructSeriesRequest decodes {fields: [key...], from: date, to: date}.
func FromStructSeriesRequest(req *structpb.Struct) (SeriesRequest, error) {
	if req == nil {
		return SeriesRequest{}, fmt.Errorf("request is nil")
	}
	raw, ok := req.GetFields()["fields"]
	if !ok || raw.GetListValue() == nil {
		return SeriesRequest{}, fmt.Errorf("fields must be a list of field keys")
	}
	out := SeriesRequest{}
	for _, v := range raw.GetListValue().GetValues() {
		key, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return SeriesRequest{}, fmt.Errorf("fields must contain strings")
		}
		f, err := models.LookupField(key.StringValue)
		if err != nil {
			return SeriesRequest{}, err
		}
		out.Fields = append(out.Fields, f)
	}
	var err error
	if out.From, err = dateField(req, "from"); err != nil {
		return SeriesRequest{}, err
	}
	if out.To, err = dateField(req, "to"); err != nil {
		return SeriesRequest{}, err
	}
	return out, nil
}

// ToStructSeriesView encodes {dates: [...], series: {key: [values...]}}.
func ToStructSeriesView(view models.SeriesView) *structpb.Struct {
	series := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(view.Fields))}
	for _, f := range view.Fields {
		series.Fields[f.Key()] = numberList(view.Values[f.Key()])
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"dates":  dateList(view.Dates),
		"series": structpb.NewStructValue(series),
	}}
}

// FromStructAutocorrelationRequest decodes {field: key, max_lag: number}.
func FromStructAutocorrelationRequest(req *structpb.Struct) (AutocorrelationRequest, error) {
	if req == nil {
		return AutocorrelationRequest{}, fmt.Errorf("request is nil")
	}
	key, ok := req.GetFields()["field"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return AutocorrelationRequest{}, fmt.Errorf("field is required")
	}
	f, err := models.LookupField(key.StringValue)
	if err != nil {
		return AutocorrelationRequest{}, err
	}
	lag, err := intField(req, "max_lag")
	if err != nil {
		return AutocorrelationRequest{}, err
	}
	return AutocorrelationRequest{Field: f, MaxLag: lag}, nil
}

// ToStructAutocorrelation encodes {field: key, lags: {"1": r1, ...}}.
func ToStructAutocorrelation(field models.Field, lags map[int]float64) *structpb.Struct {
	keys := make([]int, 0, len(lags))
	for lag := range lags {
		keys = append(keys, lag)
	}
	sort.Ints(keys)
	values := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(lags))}
	for _, lag := range keys {
		values.Fields[strconv.Itoa(lag)] = numberValue(lags[lag])
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"field": structpb.NewStringValue(field.Key()),
		"lags":  structpb.NewStructValue(values),
	}}
}

func dateField(req *structpb.Struct, name string) (time.Time, error) {
	v, ok := req.GetFields()[name]
	if !ok || v.GetKind() == nil {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("%s must be a YYYY-MM-DD string", name)
	}
	t, err := utils.ParseDate(s.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func intField(req *structpb.Struct, name string) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%s must be an integer, got %v", name, n)
		}
		return int(n), nil
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(kind.StringValue)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer: %w", name, err)
		}
		return n, nil
	case *structpb.Value_NullValue:
		return 0, nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}

func numberValue(v float64) *structpb.Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return structpb.NewNullValue()
	}
	return structpb.NewNumberValue(v)
}

func numberList(values []float64) *structpb.Value {
	list := make([]*structpb.Value, len(values))
	for i, v := range values {
		list[i] = numberValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}

func dateList(days []time.Time) *structpb.Value {
	list := make([]*structpb.Value, len(days))
	for i, d := range days {
		list[i] = structpb.NewStringValue(utils.FormatDate(d))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}
