// Package server exposes the HTTP API. All pipeline degradations are
// reported inside 200 responses; 4xx is reserved for malformed requests
// and 5xx for the service itself being broken.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/jobs"
	"github.com/capapp/cap-backend/internal/pipeline"
	"github.com/capapp/cap-backend/internal/store"
)

// maxUploadBytes bounds multipart bodies. CVs and scanned letters are
// small; anything larger is rejected before buffering.
const maxUploadBytes = 15 << 20

// SmartJobsFlow runs the CV-to-ranked-jobs pipeline.
type SmartJobsFlow interface {
	Run(ctx context.Context, req pipeline.CVJobsRequest) (*pipeline.CVJobsResult, error)
}

// DocumentFlow runs the archival pipeline.
type DocumentFlow interface {
	Ingest(ctx context.Context, req pipeline.DocumentRequest) (*pipeline.DocumentResult, error)
	ScanMailbox(ctx context.Context, ownerID uuid.UUID) (*pipeline.ScanResult, error)
}

// Archive reads back what the pipelines persisted.
type Archive interface {
	ListDocumentsByOwner(ctx context.Context, owner uuid.UUID) ([]store.AdminDocument, error)
	SearchCachedListings(ctx context.Context, keyword, city string, limit int) ([]jobs.Listing, error)
}

// HealthProbe checks one collaborator.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server routes the public API.
type Server struct {
	smartJobs SmartJobsFlow
	documents DocumentFlow
	texts     pipeline.TextExtractor
	profiles  pipeline.ProfileExtractor
	archive   Archive
	probes    []HealthProbe
	logger    *zap.Logger
	validate  *validator.Validate

	http *http.Server
}

// New wires the routes. texts and profiles back the standalone
// /api/cv-upload endpoint, which stops after profile extraction.
func New(smartJobs SmartJobsFlow, documents DocumentFlow, texts pipeline.TextExtractor, profiles pipeline.ProfileExtractor, archive Archive, probes []HealthProbe, logger *zap.Logger) *Server {
	return &Server{
		smartJobs: smartJobs,
		documents: documents,
		texts:     texts,
		profiles:  profiles,
		archive:   archive,
		probes:    probes,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/smart-jobs", s.handleSmartJobs)
	mux.HandleFunc("POST /api/cv-upload", s.handleCVUpload)
	mux.HandleFunc("POST /api/documents", s.handleDocumentUpload)
	mux.HandleFunc("GET /api/documents", s.handleDocumentList)
	mux.HandleFunc("POST /api/mailbox/scan", s.handleMailboxScan)
	mux.HandleFunc("GET /api/offres-cached", s.handleCachedListings)
	return s.logRequests(mux)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", zap.Int("port", port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(started)))
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "cap-backend",
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.probes))
	healthy := true
	for _, probe := range s.probes {
		if err := probe.Check(ctx); err != nil {
			checks[probe.Name] = err.Error()
			healthy = false
			continue
		}
		checks[probe.Name] = "ok"
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}
