package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/epicast/casecast/internal/cache"
	"github.com/epicast/casecast/internal/dataset"
	"github.com/epicast/casecast/internal/models"
)

type domainLoader interface {
	Vaccinations(ctx context.Context) (models.DomainRecords, error)
	Tests(ctx context.Context) (models.DomainRecords, error)
	CaseGrowth(ctx context.Context) (models.DomainRecords, error)
}

// loadDomains fetches the three collections concurrently, returned in selection order.
func loadDomains(ctx context.Context, src domainLoader) ([]models.DomainRecords, error) {
	out := make([]models.DomainRecords, len(models.Domains))
	loaders := map[models.Domain]func(context.Context) (models.DomainRecords, error){
		models.DomainVaccinations: src.Vaccinations,
		models.DomainCaseGrowth:   src.CaseGrowth,
		models.DomainTests:        src.Tests,
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, domain := range models.Domains {
		load := loaders[domain]
		g.Go(func() error {
			recs, err := load(gctx)
			if err != nil {
				return err
			}
			out[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// deriveCorrelations computes the matrix over all catalog fields and caches it under key.
func deriveCorrelations(ctx context.Context, src domainLoader, provider cache.Provider, key string, ttl time.Duration, logger *slog.Logger) (models.CorrelationMatrix, error) {
	if ttl > 0 {
		if data, err := provider.Get(ctx, key); err == nil {
			var cached models.CorrelationMatrix
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	domains, err := loadDomains(ctx, src)
	if err != nil {
		return nil, err
	}
	tl, err := dataset.NewTimeline(domains...)
	if err != nil {
		return nil, fmt.Errorf("align domains: %w", err)
	}
	matrix := dataset.Correlate(tl)
	logger.Debug("derived correlation matrix", slog.Int("entries", tl.Len()), slog.Int("fields", len(matrix)))

	if ttl > 0 {
		if payload, err := json.Marshal(matrix); err == nil {
			if err := provider.Set(ctx, key, payload, ttl); err != nil {
				logger.Warn("failed to cache correlation matrix", slog.Any("error", err))
			}
		}
	}
	return matrix, nil
}
