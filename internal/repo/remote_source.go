package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/epicast/casecast/internal/cache"
	"github.com/epicast/casecast/internal/metrics"
	"github.com/epicast/casecast/internal/models"
	"github.com/epicast/casecast/internal/utils"
)

// RemotePaths are the endpoint paths relative to the base URL. An empty Correlations path
// makes the source derive the matrix from the fetched domains.
type RemotePaths struct {
	Vaccinations string
	Tests        string
	CaseGrowth   string
	Correlations string
}

// RemoteSource fetches domain collections from an HTTP JSON API.
type RemoteSource struct {
	baseURL    string
	paths      RemotePaths
	httpClient *http.Client
	cache      cache.Provider
	sourceTTL  time.Duration
	corrTTL    time.Duration
	logger     *slog.Logger
}

// NewRemoteSource constructs a client targeting baseURL. Responses are cached for sourceTTL
// and derived correlation matrices for corrTTL.
func NewRemoteSource(baseURL string, paths RemotePaths, timeout time.Duration, cacheProvider cache.Provider, sourceTTL, corrTTL time.Duration, logger *slog.Logger) *RemoteSource {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		paths:      paths,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		sourceTTL:  sourceTTL,
		corrTTL:    corrTTL,
		logger:     logger,
	}
}

// Vaccinations fetches the vaccination collection.
func (c *RemoteSource) Vaccinations(ctx context.Context) (models.DomainRecords, error) {
	return c.fetchDomain(ctx, models.DomainVaccinations, c.paths.Vaccinations)
}

// Tests fetches the testing collection.
func (c *RemoteSource) Tests(ctx context.Context) (models.DomainRecords, error) {
	return c.fetchDomain(ctx, models.DomainTests, c.paths.Tests)
}

// CaseGrowth fetches the case-growth collection.
func (c *RemoteSource) CaseGrowth(ctx context.Context) (models.DomainRecords, error) {
	return c.fetchDomain(ctx, models.DomainCaseGrowth, c.paths.CaseGrowth)
}

// Correlations fetches the precomputed matrix, or derives it when no path is configured.
func (c *RemoteSource) Correlations(ctx context.Context) (models.CorrelationMatrix, error) {
	if c == nil {
		return nil, fmt.Errorf("remote source not initialised")
	}
	if c.paths.Correlations == "" {
		return deriveCorrelations(ctx, c, c.cache, "casecast:correlations:remote:"+c.baseURL, c.corrTTL, c.logger)
	}

	var response struct {
		Matrix map[string]map[string]float64 `json:"matrix"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.paths.Correlations), map[string]any{}, &response); err != nil {
		metrics.ObserveSourceLoad(metrics.SourceHTTP, metrics.OutcomeError)
		return nil, utils.NewAppError("remote.Correlations", "correlation request failed", err)
	}

	matrix := models.CorrelationMatrix{}
	for rowKey, row := range response.Matrix {
		a, err := models.LookupField(rowKey)
		if err != nil {
			metrics.ObserveSourceLoad(metrics.SourceHTTP, metrics.OutcomeError)
			return nil, utils.NewAppError("remote.Correlations", "bad matrix row", err)
		}
		for colKey, v := range row {
			b, err := models.LookupField(colKey)
			if err != nil {
				metrics.ObserveSourceLoad(metrics.SourceHTTP, metrics.OutcomeError)
				return nil, utils.NewAppError("remote.Correlations", "bad matrix column", err)
			}
			matrix.Set(a, b, v)
		}
	}
	metrics.ObserveSourceLoad(metrics.SourceHTTP, metrics.OutcomeSuccess)
	return matrix, nil
}

func (c *RemoteSource) fetchDomain(ctx context.Context, domain models.Domain, p string) (models.DomainRecords, error) {
	if c == nil {
		return models.DomainRecords{}, fmt.Errorf("remote source not initialised")
	}
	if c.baseURL == "" {
		return models.DomainRecords{}, fmt.Errorf("remote source base URL not configured")
	}

	cacheKey := cacheDomainKey(c.baseURL, domain)
	if c.sourceTTL > 0 {
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached models.DomainRecords
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var response struct {
		Records []struct {
			Date   string             `json:"date"`
			Values map[string]float64 `json:"values"`
		} `json:"records"`
	}
	if err := c.postJSON(ctx, c.resolvePath(p), map[string]any{"domain": string(domain)}, &response); err != nil {
		metrics.ObserveSourceLoad(metrics.SourceHTTP, metrics.OutcomeError)
		return models.DomainRecords{}, utils.NewAppError("remote.fetchDomain", string(domain)+" request failed", err)
	}

	out := models.DomainRecords{Domain: domain, Records: make([]models.Record, 0, len(response.Records))}
	for _, r := range response.Records {
		day, err := utils.ParseDate(r.Date)
		if err != nil {
			metrics.ObserveSourceLoad(metrics.SourceHTTP, metrics.OutcomeError)
			return models.DomainRecords{}, utils.NewAppError("remote.fetchDomain", string(domain)+" record", err)
		}
		values := make(map[string]float64, len(r.Values))
		for name, v := range r.Values {
			if f, ok := models.LookupColumn(domain, name); ok {
				values[f.Name] = v
			}
		}
		out.Records = append(out.Records, models.Record{Date: day, Values: values})
	}
	metrics.ObserveSourceLoad(metrics.SourceHTTP, metrics.OutcomeSuccess)

	if c.sourceTTL > 0 && len(out.Records) > 0 {
		if payload, err := json.Marshal(out); err == nil {
			_ = c.cache.Set(ctx, cacheKey, payload, c.sourceTTL)
		}
	}
	return out, nil
}

func cacheDomainKey(baseURL string, domain models.Domain) string {
	return fmt.Sprintf("casecast:remote:%s:%s", baseURL, domain)
}

func (c *RemoteSource) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *RemoteSource) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("data source returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
