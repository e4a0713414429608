package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/extraction"
	"github.com/capapp/cap-backend/internal/jobs"
	"github.com/capapp/cap-backend/internal/llm"
	"github.com/capapp/cap-backend/internal/mailbox"
	"github.com/capapp/cap-backend/internal/pipeline"
	"github.com/capapp/cap-backend/internal/profile"
	"github.com/capapp/cap-backend/internal/ranking"
	"github.com/capapp/cap-backend/internal/store"
)

type mockSmartJobs struct {
	runFunc func(ctx context.Context, req pipeline.CVJobsRequest) (*pipeline.CVJobsResult, error)
}

func (m *mockSmartJobs) Run(ctx context.Context, req pipeline.CVJobsRequest) (*pipeline.CVJobsResult, error) {
	return m.runFunc(ctx, req)
}

type mockDocumentFlow struct {
	ingestFunc func(ctx context.Context, req pipeline.DocumentRequest) (*pipeline.DocumentResult, error)
	scanFunc   func(ctx context.Context, ownerID uuid.UUID) (*pipeline.ScanResult, error)
}

func (m *mockDocumentFlow) Ingest(ctx context.Context, req pipeline.DocumentRequest) (*pipeline.DocumentResult, error) {
	return m.ingestFunc(ctx, req)
}

func (m *mockDocumentFlow) ScanMailbox(ctx context.Context, ownerID uuid.UUID) (*pipeline.ScanResult, error) {
	return m.scanFunc(ctx, ownerID)
}

type mockArchive struct {
	docs     []store.AdminDocument
	listings []jobs.Listing
	err      error
}

func (m *mockArchive) ListDocumentsByOwner(context.Context, uuid.UUID) ([]store.AdminDocument, error) {
	return m.docs, m.err
}

func (m *mockArchive) SearchCachedListings(context.Context, string, string, int) ([]jobs.Listing, error) {
	return m.listings, m.err
}

type mockTexts struct {
	extractFunc func(ctx context.Context, doc extraction.RawDocument) (*extraction.ExtractedText, error)
}

func (m *mockTexts) Extract(ctx context.Context, doc extraction.RawDocument) (*extraction.ExtractedText, error) {
	return m.extractFunc(ctx, doc)
}

type mockProfiles struct {
	extractFunc func(ctx context.Context, cvText string, fallback profile.CandidateProfile) (*profile.CandidateProfile, error)
}

func (m *mockProfiles) Extract(ctx context.Context, cvText string, fallback profile.CandidateProfile) (*profile.CandidateProfile, error) {
	return m.extractFunc(ctx, cvText, fallback)
}

func newTestServer(t *testing.T, opts func(*Server)) *Server {
	t.Helper()
	srv := New(nil, nil, nil, nil, &mockArchive{}, nil, zap.NewNop())
	if opts != nil {
		opts(srv)
	}
	return srv
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSmartJobs_JSONRequest(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.smartJobs = &mockSmartJobs{
			runFunc: func(_ context.Context, req pipeline.CVJobsRequest) (*pipeline.CVJobsResult, error) {
				assert.Equal(t, "développeur web", req.Form.TargetRole)
				assert.True(t, req.Broaden)
				assert.Nil(t, req.CV)
				return &pipeline.CVJobsResult{
					Keyword: "développeur web",
					Ranked:  []ranking.RankedListing{{Listing: jobs.Listing{Title: "Dev", URL: "https://a.example/1"}, Score: 0.8}},
				}, nil
			},
		}
	})

	body := `{"poste":"développeur web","competences":["Go","SQL"],"elargir":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/smart-jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "développeur web", got["recherche"])
	assert.Len(t, got["offres_classees"], 1)
}

func TestSmartJobs_MultipartWithCV(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.smartJobs = &mockSmartJobs{
			runFunc: func(_ context.Context, req pipeline.CVJobsRequest) (*pipeline.CVJobsResult, error) {
				require.NotNil(t, req.CV)
				assert.Equal(t, "cv.pdf", req.CV.Filename)
				assert.Equal(t, []string{"Go", "SQL"}, req.Form.Skills)
				return &pipeline.CVJobsResult{}, nil
			},
		}
	})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("poste", "développeur"))
	require.NoError(t, form.WriteField("competences", "Go, SQL"))
	part, err := form.CreateFormFile("cvFile", "cv.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/smart-jobs", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSmartJobs_MalformedReasoningReplyDegrades(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.smartJobs = &mockSmartJobs{
			runFunc: func(context.Context, pipeline.CVJobsRequest) (*pipeline.CVJobsResult, error) {
				return nil, &llm.MalformedOutputError{Raw: "Désolé, je ne peux pas répondre en JSON."}
			},
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/smart-jobs", strings.NewReader(`{"poste":"vendeur"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "pipeline failures are not transport errors")
	got := decodeBody(t, rec)
	assert.Equal(t, "reasoning_failed", got["degradation"])
	assert.Contains(t, got["brut"], "Désolé")
}

func TestSmartJobs_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/smart-jobs", strings.NewReader(`{{{`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCVUpload_RequiresFile(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/cv-upload", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCVUpload_ReturnsProfile(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.texts = &mockTexts{
			extractFunc: func(_ context.Context, doc extraction.RawDocument) (*extraction.ExtractedText, error) {
				return &extraction.ExtractedText{Text: "Marie Curie, chimiste", Provenance: extraction.ProvenanceNative}, nil
			},
		}
		s.profiles = &mockProfiles{
			extractFunc: func(_ context.Context, cvText string, _ profile.CandidateProfile) (*profile.CandidateProfile, error) {
				assert.Contains(t, cvText, "chimiste")
				return &profile.CandidateProfile{TargetRole: "chimiste"}, nil
			},
		}
	})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("cvFile", "cv.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/cv-upload", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "native", got["texte_source"])
}

func documentUploadRequest(t *testing.T) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("owner_id", uuid.NewString()))
	part, err := form.CreateFormFile("document", "quittance.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

func TestDocumentUpload_UnreadableDocumentDegrades(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.documents = &mockDocumentFlow{
			ingestFunc: func(context.Context, pipeline.DocumentRequest) (*pipeline.DocumentResult, error) {
				return nil, fmt.Errorf("extract document text: %w", &extraction.ExtractionFailedError{})
			},
		}
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, documentUploadRequest(t))

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "unreadable_document", got["degradation"])
}

func TestDocumentUpload_PersistenceFaultIsServerError(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.documents = &mockDocumentFlow{
			ingestFunc: func(context.Context, pipeline.DocumentRequest) (*pipeline.DocumentResult, error) {
				return nil, errors.New("archive document: connection refused")
			},
		}
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, documentUploadRequest(t))

	require.Equal(t, http.StatusInternalServerError, rec.Code,
		"a database fault must not tell the user to resupply the file")
	got := decodeBody(t, rec)
	assert.NotContains(t, got, "degradation")
}

func TestDocumentList_RejectsBadOwner(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/documents?owner_id=pas-un-uuid", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMailboxScan_NotConnected(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.documents = &mockDocumentFlow{
			scanFunc: func(_ context.Context, ownerID uuid.UUID) (*pipeline.ScanResult, error) {
				return nil, &mailbox.NotConnectedError{OwnerID: ownerID}
			},
		}
	})

	body := `{"owner_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/mailbox/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "mailbox_not_connected", got["degradation"])
}

func TestMailboxScan_RejectsMissingOwner(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/mailbox/scan", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCachedListings(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.archive = &mockArchive{
			listings: []jobs.Listing{{Title: "Serveur", URL: "https://a.example/5", Source: "Adzuna"}},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/offres-cached?motCle=serveur&ville=Paris", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Len(t, got["offres"], 1)
}

func TestCachedListings_RejectsBadLimit(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/offres-cached?limit=zero", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_ReportsDegradedCollaborators(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.probes = []HealthProbe{
			{Name: "postgres", Check: func(context.Context) error { return nil }},
			{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "degraded", got["status"])
	checks := got["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Contains(t, checks["redis"], "connection refused")
}
