package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/extraction"
	"github.com/capapp/cap-backend/internal/jobs"
	"github.com/capapp/cap-backend/internal/profile"
	"github.com/capapp/cap-backend/internal/ranking"
)

// CVJobsRequest carries one smart-jobs invocation: an optional CV file
// plus the form fields, which double as the fallback profile.
type CVJobsRequest struct {
	CV      *extraction.RawDocument
	Form    profile.CandidateProfile
	Broaden bool
}

// CVJobsResult is the terminal state of a run. Reason is empty on a full
// success; otherwise it names the degradation and Message explains it.
type CVJobsResult struct {
	Profile    *profile.CandidateProfile `json:"profil"`
	Provenance extraction.Provenance     `json:"texte_source,omitempty"`
	Keyword    string                    `json:"recherche,omitempty"`
	Location   string                    `json:"ville,omitempty"`
	Listings   []jobs.Listing            `json:"offres"`
	Ranked     []ranking.RankedListing   `json:"offres_classees"`
	Reason     string                    `json:"degradation,omitempty"`
	Message    string                    `json:"message,omitempty"`
}

// CVJobs runs CV upload through text extraction, profile building,
// listing aggregation and relevance ranking.
type CVJobs struct {
	texts           TextExtractor
	profiles        ProfileExtractor
	searcher        ListingSearcher
	ranker          ListingRanker
	listings        ListingStore
	logger          *zap.Logger
	defaultLocation string
}

// NewCVJobs wires the flow. listings may be nil when no persistence is
// configured; aggregated listings are then not cached.
func NewCVJobs(texts TextExtractor, profiles ProfileExtractor, searcher ListingSearcher, ranker ListingRanker, listings ListingStore, logger *zap.Logger, defaultLocation string) *CVJobs {
	return &CVJobs{
		texts:           texts,
		profiles:        profiles,
		searcher:        searcher,
		ranker:          ranker,
		listings:        listings,
		logger:          logger,
		defaultLocation: defaultLocation,
	}
}

// Run executes the flow to its terminal state. An error return means the
// profile step itself failed hard (unreachable or unparseable reasoning
// service); every other failure degrades into the result.
func (c *CVJobs) Run(ctx context.Context, req CVJobsRequest) (*CVJobsResult, error) {
	// Both result slices always encode, as [] rather than null, so the
	// client can distinguish "no offers" from "field absent".
	result := &CVJobsResult{
		Listings: []jobs.Listing{},
		Ranked:   []ranking.RankedListing{},
	}

	cvText := ""
	if req.CV != nil && len(req.CV.Data) > 0 {
		extracted, err := c.texts.Extract(ctx, *req.CV)
		if err != nil {
			// A dead scan is not fatal: the form fields may still
			// carry a usable profile.
			c.logger.Warn("cv text extraction failed, using form only",
				zap.String("filename", req.CV.Filename),
				zap.Error(err))
		} else {
			cvText = extracted.Text
			result.Provenance = extracted.Provenance
		}
	}

	candidate, err := c.profiles.Extract(ctx, cvText, req.Form)
	if err != nil {
		return nil, fmt.Errorf("extract profile: %w", err)
	}
	result.Profile = candidate

	if !candidate.Usable() {
		result.Reason = ReasonUnusableProfile
		result.Message = DegradedMessage(ReasonUnusableProfile)
		return result, nil
	}

	result.Keyword = candidate.SearchKeyword(req.Broaden)
	result.Location = candidate.MergeLocation(c.defaultLocation)

	listings, failures := c.searcher.Search(ctx, result.Keyword, result.Location)
	for _, f := range failures {
		c.logger.Warn("listing provider failed",
			zap.String("provider", f.Provider),
			zap.Error(f.Err))
	}
	result.Listings = append(result.Listings, listings...)

	if c.listings != nil && len(listings) > 0 {
		if _, err := c.listings.UpsertListings(ctx, listings); err != nil {
			c.logger.Warn("caching listings failed", zap.Error(err))
		}
	}

	if len(listings) == 0 {
		result.Reason = ReasonNoListings
		result.Message = DegradedMessage(ReasonNoListings)
		return result, nil
	}

	ranked, err := c.ranker.Rank(ctx, candidate, listings)
	if err != nil {
		c.logger.Warn("ranking failed, returning unranked listings", zap.Error(err))
		result.Reason = ReasonUnranked
		result.Message = DegradedMessage(ReasonUnranked)
		return result, nil
	}
	if len(ranked) == 0 {
		// The model selected nothing it could tie back to a real URL.
		// For the client that is the same as ranking being unavailable.
		c.logger.Warn("ranking matched no listings", zap.Int("listings", len(listings)))
		result.Reason = ReasonUnranked
		result.Message = DegradedMessage(ReasonUnranked)
		return result, nil
	}
	result.Ranked = append(result.Ranked, ranked...)
	return result, nil
}
