package profile

import (
	"context"
	"strings"

	"github.com/capapp/cap-backend/internal/llm"
	"github.com/capapp/cap-backend/internal/prompts"
)

// Extractor pulls a CandidateProfile out of raw CV text.
type Extractor struct {
	client llm.Client
}

// NewExtractor wraps the shared reasoning-service client.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract asks the reasoning service for the structured profile. Empty
// text skips the call entirely and returns the caller-held fallback
// unchanged — form fields already cover that case.
//
// A reply that cannot be decoded is a hard failure here: job search must
// not proceed on fabricated defaults. The returned error wraps
// llm.MalformedOutputError so callers can surface the raw reply.
func (e *Extractor) Extract(ctx context.Context, cvText string, fallback CandidateProfile) (*CandidateProfile, error) {
	if strings.TrimSpace(cvText) == "" {
		fallback.normalize()
		return &fallback, nil
	}

	template := prompts.MustGet("extraction.json", "extract-cv-profile")
	prompt := prompts.Format(template, map[string]string{"CVText": cvText})

	reply, err := e.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, &APICallError{Message: "cv extraction call failed", Cause: err}
	}

	var extracted CandidateProfile
	if err := llm.DecodeObject(reply, &extracted); err != nil {
		return nil, err
	}

	// Fields the model does not fill fall back to the form-supplied values.
	if extracted.TargetRole == "" {
		extracted.TargetRole = fallback.TargetRole
	}
	if len(extracted.Skills) == 0 {
		extracted.Skills = fallback.Skills
	}
	if len(extracted.SoftSkills) == 0 {
		extracted.SoftSkills = fallback.SoftSkills
	}
	extracted.KnowHow = fallback.KnowHow
	if extracted.Location == "" {
		extracted.Location = fallback.Location
	}
	if len(extracted.Experience) == 0 {
		extracted.Experience = fallback.Experience
	}

	extracted.normalize()
	return &extracted, nil
}
