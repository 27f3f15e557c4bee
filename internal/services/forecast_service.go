package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/epicast/casecast/internal/api"
	"github.com/epicast/casecast/internal/engine"
	"github.com/epicast/casecast/internal/metrics"
	"github.com/epicast/casecast/internal/models"
	"github.com/epicast/casecast/internal/utils"
)

// Forecaster is the engine surface the service drives.
type Forecaster interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (models.ForecastReport, error)
	Series(ctx context.Context, fields []models.Field, from, to time.Time) (models.SeriesView, error)
	Autocorrelation(ctx context.Context, field models.Field, maxLag int) (map[int]float64, error)
}

// ForecastService implements the gRPC ForecastEngine service.
type ForecastService struct {
	logger      *slog.Logger
	forecaster  Forecaster
	defaultDays int
	latencies   *utils.LatencyTracker
}

var _ api.ForecastEngineServer = (*ForecastService)(nil)

// NewForecastService constructs the service facade. defaultDays fills requests that omit
// days_to_predict.
func NewForecastService(logger *slog.Logger, forecaster Forecaster, defaultDays int) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastService{
		logger:      logger,
		forecaster:  forecaster,
		defaultDays: defaultDays,
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// Forecast runs one prediction.
func (s *ForecastService) Forecast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.forecaster == nil {
		return nil, status.Error(codes.FailedPrecondition, "forecaster not configured")
	}

	domainReq, err := api.FromStructForecastRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, set := req.GetFields()["days_to_predict"]; !set {
		domainReq.DaysToPredict = s.defaultDays
	}

	s.logger.Debug("Forecast called",
		slog.String("start_date", utils.FormatDate(domainReq.StartDate)),
		slog.Int("days_to_predict", domainReq.DaysToPredict),
	)

	start := time.Now()
	rep, err := s.forecaster.Forecast(ctx, domainReq)
	duration := time.Since(start)
	if err != nil {
		st := statusFor(err)
		outcome := metrics.OutcomeError
		if st.Code() == codes.InvalidArgument || st.Code() == codes.FailedPrecondition {
			outcome = metrics.OutcomeRejected
			s.logger.Info("forecast rejected", slog.Any("error", err))
		} else {
			s.logger.Error("forecast failed", slog.Any("error", err))
		}
		metrics.ObserveForecast(duration, outcome)
		return nil, st.Err()
	}

	s.latencies.Observe(duration)
	metrics.ObserveForecast(duration, metrics.OutcomeSuccess)
	metrics.SetSelectedFeatures(len(rep.SelectedFields))
	if snap := s.latencies.Snapshot(); snap.Count >= 20 && snap.Count%20 == 0 {
		s.logger.Info("forecast latency",
			slog.Duration("p50", snap.P50),
			slog.Duration("p95", snap.P95),
			slog.Int("samples", snap.Count),
		)
	}

	return api.ToStructForecastReport(rep), nil
}

// Series returns historical values for the requested fields.
func (s *ForecastService) Series(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.forecaster == nil {
		return nil, status.Error(codes.FailedPrecondition, "forecaster not configured")
	}
	domainReq, err := api.FromStructSeriesRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	view, err := s.forecaster.Series(ctx, domainReq.Fields, domainReq.From, domainReq.To)
	if err != nil {
		s.logger.Warn("series lookup failed", slog.Any("error", err))
		return nil, statusFor(err).Err()
	}
	return api.ToStructSeriesView(view), nil
}

// Autocorrelation returns lagged autocorrelation for one field.
func (s *ForecastService) Autocorrelation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.forecaster == nil {
		return nil, status.Error(codes.FailedPrecondition, "forecaster not configured")
	}
	domainReq, err := api.FromStructAutocorrelationRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	lags, err := s.forecaster.Autocorrelation(ctx, domainReq.Field, domainReq.MaxLag)
	if err != nil {
		s.logger.Warn("autocorrelation failed", slog.Any("error", err))
		return nil, statusFor(err).Err()
	}
	return api.ToStructAutocorrelation(domainReq.Field, lags), nil
}

// statusFor maps engine failures onto gRPC status codes.
func statusFor(err error) *status.Status {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrInsufficientHistory),
		errors.Is(err, engine.ErrMissingField),
		errors.Is(err, engine.ErrFit):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	default:
		if op := utils.OpOf(err); op != "" {
			return status.New(codes.Unavailable, "data source failure in "+op)
		}
		return status.New(codes.Internal, "forecast failed")
	}
}
