// Package scheduler drives the periodic refresh of the cached job
// listings so GET /api/offres-cached can answer without hitting the
// upstream providers.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/cache"
	"github.com/capapp/cap-backend/internal/jobs"
	"github.com/capapp/cap-backend/internal/store"
)

// defaultKeywords are the searches warmed when no explicit list is set.
// They cover the most requested roles on the platform.
var defaultKeywords = []string{
	"développeur",
	"assistant administratif",
	"vendeur",
	"agent d'entretien",
	"aide à domicile",
}

// Scheduler runs the aggregator on a fixed interval and upserts the
// results into the listings table.
type Scheduler struct {
	aggregator *jobs.Aggregator
	store      *store.Store
	cache      *cache.Cache
	logger     *zap.Logger

	location string
	keywords []string
	interval time.Duration

	cron *cron.Cron
}

// New builds a scheduler refreshing every intervalHours hours. A zero or
// negative interval defaults to one hour.
func New(agg *jobs.Aggregator, st *store.Store, ca *cache.Cache, logger *zap.Logger, location string, intervalHours int) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = 1
	}
	return &Scheduler{
		aggregator: agg,
		store:      st,
		cache:      ca,
		logger:     logger,
		location:   location,
		keywords:   defaultKeywords,
		interval:   time.Duration(intervalHours) * time.Hour,
	}
}

// WithKeywords overrides the warmed search terms.
func (s *Scheduler) WithKeywords(keywords []string) *Scheduler {
	if len(keywords) > 0 {
		s.keywords = keywords
	}
	return s
}

// Start registers the cron entry and kicks off an immediate first run in
// the background so the cache is warm shortly after boot.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.Refresh(ctx) }); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	s.cron.Start()
	s.logger.Info("listings refresh scheduled", zap.Duration("interval", s.interval))

	go s.Refresh(ctx)
	return nil
}

// Stop halts the cron loop and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Refresh runs one aggregation pass over every warmed keyword. Provider
// failures are logged and skipped, never fatal.
func (s *Scheduler) Refresh(ctx context.Context) {
	started := time.Now()
	total := 0
	for _, keyword := range s.keywords {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		listings, failures := s.aggregator.Search(runCtx, keyword, s.location)
		for _, f := range failures {
			s.logger.Warn("refresh provider failed",
				zap.String("provider", f.Provider),
				zap.String("keyword", keyword),
				zap.Error(f.Err))
		}
		stored, err := s.store.UpsertListings(runCtx, listings)
		cancel()
		if err != nil {
			s.logger.Error("refresh upsert failed",
				zap.String("keyword", keyword),
				zap.Error(err))
			continue
		}
		total += stored
	}

	s.cache.MarkRefreshed(ctx, time.Now())
	s.logger.Info("listings refresh complete",
		zap.Int("stored", total),
		zap.Duration("took", time.Since(started)))
}
