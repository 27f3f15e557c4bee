package repo

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/epicast/casecast/internal/cache"
	"github.com/epicast/casecast/internal/metrics"
	"github.com/epicast/casecast/internal/models"
	"github.com/epicast/casecast/internal/utils"
)

const dateColumn = "date"

// CSVPaths locates the three domain files and an optional precomputed correlation matrix.
type CSVPaths struct {
	Vaccinations string
	Tests        string
	CaseGrowth   string
	Correlations string
}

// CSVSource reads domain collections from CSV files with a date column followed by
// catalog columns. Unknown columns are ignored and empty cells are treated as missing.
type CSVSource struct {
	paths   CSVPaths
	cache   cache.Provider
	corrTTL time.Duration
	logger  *slog.Logger
}

// NewCSVSource constructs a file-backed data source. Derived correlation matrices are cached
// for corrTTL.
func NewCSVSource(paths CSVPaths, cacheProvider cache.Provider, corrTTL time.Duration, logger *slog.Logger) *CSVSource {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSource{paths: paths, cache: cacheProvider, corrTTL: corrTTL, logger: logger}
}

// Vaccinations reads the vaccination file.
func (s *CSVSource) Vaccinations(ctx context.Context) (models.DomainRecords, error) {
	return s.load(ctx, models.DomainVaccinations, s.paths.Vaccinations)
}

// Tests reads the testing file.
func (s *CSVSource) Tests(ctx context.Context) (models.DomainRecords, error) {
	return s.load(ctx, models.DomainTests, s.paths.Tests)
}

// CaseGrowth reads the case-growth file.
func (s *CSVSource) CaseGrowth(ctx context.Context) (models.DomainRecords, error) {
	return s.load(ctx, models.DomainCaseGrowth, s.paths.CaseGrowth)
}

// Correlations reads the precomputed matrix when configured and derives it otherwise.
func (s *CSVSource) Correlations(ctx context.Context) (models.CorrelationMatrix, error) {
	if s.paths.Correlations != "" {
		f, err := os.Open(s.paths.Correlations)
		if err != nil {
			metrics.ObserveSourceLoad(metrics.SourceCSV, metrics.OutcomeError)
			return nil, utils.NewAppError("csv.Correlations", "open correlation file", err)
		}
		defer f.Close()
		matrix, err := ReadCorrelationCSV(f)
		if err != nil {
			metrics.ObserveSourceLoad(metrics.SourceCSV, metrics.OutcomeError)
			return nil, utils.NewAppError("csv.Correlations", s.paths.Correlations, err)
		}
		metrics.ObserveSourceLoad(metrics.SourceCSV, metrics.OutcomeSuccess)
		return matrix, nil
	}
	return deriveCorrelations(ctx, s, s.cache, s.correlationKey(), s.corrTTL, s.logger)
}

func (s *CSVSource) load(ctx context.Context, domain models.Domain, path string) (models.DomainRecords, error) {
	if err := ctx.Err(); err != nil {
		return models.DomainRecords{}, err
	}
	if path == "" {
		return models.DomainRecords{}, utils.NewAppError("csv.load", fmt.Sprintf("no file configured for %s", domain), nil)
	}
	f, err := os.Open(path)
	if err != nil {
		metrics.ObserveSourceLoad(metrics.SourceCSV, metrics.OutcomeError)
		return models.DomainRecords{}, utils.NewAppError("csv.load", "open "+string(domain)+" file", err)
	}
	defer f.Close()

	recs, err := ReadDomainCSV(f, domain)
	if err != nil {
		metrics.ObserveSourceLoad(metrics.SourceCSV, metrics.OutcomeError)
		return models.DomainRecords{}, utils.NewAppError("csv.load", path, err)
	}
	metrics.ObserveSourceLoad(metrics.SourceCSV, metrics.OutcomeSuccess)
	s.logger.Debug("loaded domain file", slog.String("domain", string(domain)), slog.Int("records", len(recs.Records)))
	return recs, nil
}

// correlationKey changes whenever one of the domain files is rewritten.
func (s *CSVSource) correlationKey() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.paths.Vaccinations, s.paths.CaseGrowth, s.paths.Tests} {
		stamp := int64(0)
		if info, err := os.Stat(p); err == nil {
			stamp = info.ModTime().UnixNano()
		}
		parts = append(parts, fmt.Sprintf("%s@%d", p, stamp))
	}
	return "casecast:correlations:csv:" + strings.Join(parts, "|")
}

// ReadDomainCSV parses one domain file. The header must contain a date column in
// YYYY-MM-DD form.
func ReadDomainCSV(r io.Reader, domain models.Domain) (models.DomainRecords, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.DomainRecords{}, fmt.Errorf("empty file")
		}
		return models.DomainRecords{}, fmt.Errorf("read header: %w", err)
	}

	dateIdx := -1
	columns := make(map[int]models.Field)
	for i, name := range header {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, dateColumn) {
			dateIdx = i
			continue
		}
		if f, ok := models.LookupColumn(domain, name); ok {
			columns[i] = f
		}
	}
	if dateIdx < 0 {
		return models.DomainRecords{}, fmt.Errorf("missing %q column", dateColumn)
	}

	out := models.DomainRecords{Domain: domain}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.DomainRecords{}, fmt.Errorf("line %d: %w", line, err)
		}
		day, err := utils.ParseDate(row[dateIdx])
		if err != nil {
			return models.DomainRecords{}, fmt.Errorf("line %d: %w", line, err)
		}
		values := make(map[string]float64, len(columns))
		for idx, f := range columns {
			cell := strings.TrimSpace(row[idx])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return models.DomainRecords{}, fmt.Errorf("line %d column %s: %w", line, f.Name, err)
			}
			values[f.Name] = v
		}
		out.Records = append(out.Records, models.Record{Date: day, Values: values})
	}
	return out, nil
}

// ReadCorrelationCSV parses a square matrix whose header and first column carry
// domain-qualified field keys.
func ReadCorrelationCSV(r io.Reader) (models.CorrelationMatrix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("correlation header has no fields")
	}
	cols := make([]models.Field, len(header))
	for i, key := range header[1:] {
		f, err := models.LookupField(strings.TrimSpace(key))
		if err != nil {
			return nil, err
		}
		cols[i+1] = f
	}

	matrix := models.CorrelationMatrix{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rowField, err := models.LookupField(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i := 1; i < len(row); i++ {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, cols[i], err)
			}
			if v < -1 || v > 1 {
				return nil, fmt.Errorf("line %d column %s: coefficient %v outside [-1, 1]", line, cols[i], v)
			}
			matrix.Set(rowField, cols[i], v)
		}
	}
	return matrix, nil
}
