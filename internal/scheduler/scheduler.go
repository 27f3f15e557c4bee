package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/epicast/casecast/internal/models"
)

// Runner produces a forecast report.
type Runner interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (models.ForecastReport, error)
}

// ReportWriter receives every scheduled report.
type ReportWriter interface {
	RenderForecast(ctx context.Context, rep models.ForecastReport) error
}

// Job is the forecast run on every tick.
type Job struct {
	Spec     string
	Request  models.ForecastRequest
	Timeout  time.Duration
	Location *time.Location
}

// Scheduler runs a forecast on a standard five-field cron schedule.
type Scheduler struct {
	logger *slog.Logger
	runner Runner
	writer ReportWriter
	job    Job
	cron   *cron.Cron
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates the job spec and prepares a stopped scheduler.
func New(logger *slog.Logger, runner Runner, writer ReportWriter, job Job) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	spec := strings.TrimSpace(job.Spec)
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if job.Request.DaysToPredict <= 0 {
		return nil, fmt.Errorf("scheduled horizon must be positive, got %d", job.Request.DaysToPredict)
	}
	if job.Location == nil {
		job.Location = time.UTC
	}

	s := &Scheduler{logger: logger, runner: runner, writer: writer, job: job}
	adapter := cronLogger{logger: logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(job.Location),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("register schedule: %w", err)
	}
	return s, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("forecast scheduled", slog.String("spec", s.job.Spec), slog.Time("next", e.Next))
	}
}

// Stop halts the schedule and waits for a running forecast or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce executes the job immediately and hands the report to the writer.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.job.Timeout)
		defer cancel()
	}
	rep, err := s.runner.Forecast(ctx, s.job.Request)
	if err != nil {
		s.logger.Error("scheduled forecast failed", slog.Any("error", err))
		return err
	}
	s.logger.Info("scheduled forecast complete",
		slog.String("forecast_id", rep.ID),
		slog.Float64("mae", rep.Summary.MAE),
		slog.Int("features", len(rep.SelectedFields)),
	)
	if s.writer == nil {
		return nil
	}
	if err := s.writer.RenderForecast(ctx, rep); err != nil {
		s.logger.Warn("failed to write scheduled report", slog.String("forecast_id", rep.ID), slog.Any("error", err))
		return err
	}
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
