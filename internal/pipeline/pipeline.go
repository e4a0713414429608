// Package pipeline orchestrates the two request flows: CV-to-ranked-jobs
// and administrative document archival. It owns the degraded-result
// policy; collaborator failures end a run early with an explanation, not
// a transport error.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/capapp/cap-backend/internal/classify"
	"github.com/capapp/cap-backend/internal/extraction"
	"github.com/capapp/cap-backend/internal/jobs"
	"github.com/capapp/cap-backend/internal/mailbox"
	"github.com/capapp/cap-backend/internal/profile"
	"github.com/capapp/cap-backend/internal/ranking"
	"github.com/capapp/cap-backend/internal/store"
)

// TextExtractor produces plain text from an uploaded binary.
type TextExtractor interface {
	Extract(ctx context.Context, doc extraction.RawDocument) (*extraction.ExtractedText, error)
}

// ProfileExtractor builds a candidate profile from CV text and the form
// fallback.
type ProfileExtractor interface {
	Extract(ctx context.Context, cvText string, fallback profile.CandidateProfile) (*profile.CandidateProfile, error)
}

// ListingSearcher fans a search out to the registered providers.
type ListingSearcher interface {
	Search(ctx context.Context, keyword, location string) ([]jobs.Listing, []jobs.ProviderFailure)
}

// ListingRanker orders listings by fit against a profile.
type ListingRanker interface {
	Rank(ctx context.Context, candidate *profile.CandidateProfile, listings []jobs.Listing) ([]ranking.RankedListing, error)
}

// DocumentClassifier labels an administrative document.
type DocumentClassifier interface {
	Classify(ctx context.Context, documentText string) (classify.Classification, error)
}

// ListingStore caches aggregated listings between refreshes.
type ListingStore interface {
	UpsertListings(ctx context.Context, listings []jobs.Listing) (int, error)
}

// DocumentStore archives classified documents.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc *store.AdminDocument) (*store.AdminDocument, error)
}

// MailScanner pulls recent messages with PDF attachments from a linked
// mailbox.
type MailScanner interface {
	Scan(ctx context.Context, ownerID uuid.UUID) ([]mailbox.Message, error)
}
