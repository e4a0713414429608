package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/cache"
	"github.com/capapp/cap-backend/internal/classify"
	"github.com/capapp/cap-backend/internal/config"
	"github.com/capapp/cap-backend/internal/extraction"
	"github.com/capapp/cap-backend/internal/jobs"
	"github.com/capapp/cap-backend/internal/llm"
	"github.com/capapp/cap-backend/internal/logger"
	"github.com/capapp/cap-backend/internal/mailbox"
	"github.com/capapp/cap-backend/internal/ocr"
	"github.com/capapp/cap-backend/internal/pipeline"
	"github.com/capapp/cap-backend/internal/profile"
	"github.com/capapp/cap-backend/internal/ranking"
	"github.com/capapp/cap-backend/internal/scheduler"
	"github.com/capapp/cap-backend/internal/server"
	"github.com/capapp/cap-backend/internal/store"
)

// app holds every wired collaborator for the lifetime of one command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store         *store.Store
	cache         *cache.Cache
	llm           llm.Client
	adzuna        *jobs.Adzuna
	franceTravail *jobs.FranceTravail
	aggregator    *jobs.Aggregator
	texts         *extraction.Extractor
	profiles      *profile.Extractor
	ranker        *ranking.Ranker
	classifier    *classify.Classifier

	cvJobs    *pipeline.CVJobs
	documents *pipeline.Documents
	scheduler *scheduler.Scheduler
}

// buildApp loads configuration and connects every collaborator. Redis
// and the mailbox provider are optional; everything else is required.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.JSONLogs, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: log}

	a.store, err = store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := a.store.EnsureSchema(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.cache, err = cache.Connect(ctx, cfg.RedisAddr, log)
	if err != nil {
		// Degraded but serviceable: tokens are re-exchanged per search.
		log.Warn("redis unavailable, running without cache", zap.Error(err))
		a.cache = nil
	}

	a.llm, err = llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init reasoning client: %w", err)
	}

	var recognizer extraction.Recognizer
	if cfg.OCREndpoint != "" {
		recognizer = ocr.NewClient(cfg.OCREndpoint)
	}
	a.texts = extraction.NewExtractor(recognizer, cfg.OCRLanguage)

	// Registration order fixes the concatenation (and ranking tie-break)
	// order of the aggregate.
	a.franceTravail = jobs.NewFranceTravail(cfg.FTClientID, cfg.FTClientSecret, tokenCache(a.cache))
	a.adzuna = jobs.NewAdzuna(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry)
	a.aggregator = jobs.NewAggregator(a.franceTravail, a.adzuna)

	a.profiles = profile.NewExtractor(a.llm)
	a.ranker = ranking.NewRanker(a.llm)
	a.classifier = classify.New(a.llm, cfg.ClassifyRetryOther)

	var scanner pipeline.MailScanner
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		scanner = mailbox.NewScanner(cfg.GoogleClientID, cfg.GoogleClientSecret, a.store, log)
	}

	a.cvJobs = pipeline.NewCVJobs(a.texts, a.profiles, a.aggregator, a.ranker, a.store, log, cfg.DefaultLocation)
	a.documents = pipeline.NewDocuments(a.texts, a.classifier, a.store, scanner, log)
	a.scheduler = scheduler.New(a.aggregator, a.store, a.cache, log, cfg.DefaultLocation, cfg.RefreshIntervalHours)

	return a, nil
}

// tokenCache keeps the typed-nil trap out of the provider wiring: a nil
// *cache.Cache must become a nil interface, not an interface holding nil.
func tokenCache(c *cache.Cache) jobs.TokenCache {
	if c == nil {
		return nil
	}
	return c
}

func (a *app) healthProbes() []server.HealthProbe {
	probes := []server.HealthProbe{
		{Name: "postgres", Check: a.store.Ping},
		{Name: "france_travail", Check: a.franceTravail.Healthcheck},
		{Name: "adzuna", Check: a.adzuna.Healthcheck},
	}
	if a.cache != nil {
		probes = append(probes, server.HealthProbe{Name: "redis", Check: a.cache.Ping})
	}
	return probes
}

func (a *app) close() {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}
