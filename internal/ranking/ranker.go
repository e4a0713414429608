// Package ranking delegates listing relevance to the reasoning service.
// Relevance depends on fuzzy semantic matching (skills phrasing,
// seniority inference) that a local keyword match would handle poorly.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/capapp/cap-backend/internal/jobs"
	"github.com/capapp/cap-backend/internal/llm"
	"github.com/capapp/cap-backend/internal/profile"
	"github.com/capapp/cap-backend/internal/prompts"
)

// MaxResults bounds every ranking invocation.
const MaxResults = 5

// RankedListing is a listing augmented with a relevance score in [0,1]
// and a short justification.
type RankedListing struct {
	jobs.Listing
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// Ranker wraps the shared reasoning-service client.
type Ranker struct {
	client llm.Client
}

// NewRanker builds a Ranker.
func NewRanker(client llm.Client) *Ranker {
	return &Ranker{client: client}
}

// rankedReply is one element of the model's reply array.
type rankedReply struct {
	Title         string  `json:"title"`
	Company       string  `json:"company"`
	URL           string  `json:"url"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// Rank returns at most MaxResults listings ordered by descending score.
// Ties keep provider-concatenation order. Entries whose URL does not
// match any input listing are dropped: the model must select, not invent.
// Empty input returns empty output without a service call.
func (r *Ranker) Rank(ctx context.Context, candidate *profile.CandidateProfile, listings []jobs.Listing) ([]RankedListing, error) {
	if len(listings) == 0 {
		return nil, nil
	}

	profileJSON, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	listingsJSON, err := json.Marshal(listings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listings: %w", err)
	}

	template := prompts.MustGet("ranking.json", "rank-offers")
	prompt := prompts.Format(template, map[string]string{
		"Profile":  string(profileJSON),
		"Listings": string(listingsJSON),
		"Limit":    fmt.Sprintf("%d", MaxResults),
	})

	reply, err := r.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("ranking call failed: %w", err)
	}

	var ranked []rankedReply
	if err := llm.DecodeArray(reply, &ranked); err != nil {
		return nil, err
	}

	return matchAndOrder(ranked, listings), nil
}

// matchAndOrder joins the model's selection back onto the input listings
// by URL, clamps scores, sorts and truncates.
func matchAndOrder(ranked []rankedReply, listings []jobs.Listing) []RankedListing {
	scoreByURL := make(map[string]rankedReply, len(ranked))
	for _, entry := range ranked {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			continue
		}
		if _, exists := scoreByURL[url]; !exists {
			scoreByURL[url] = entry
		}
	}

	// Walk the input in provider order so equal scores stay stable.
	results := make([]RankedListing, 0, len(scoreByURL))
	for _, listing := range listings {
		entry, ok := scoreByURL[listing.URL]
		if !ok {
			continue
		}
		delete(scoreByURL, listing.URL) // duplicate URLs collapse to one
		results = append(results, RankedListing{
			Listing:       listing,
			Score:         clamp01(entry.Score),
			Justification: entry.Justification,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
