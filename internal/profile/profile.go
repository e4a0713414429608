// Package profile defines the normalized candidate profile and extracts
// it from raw CV text via the reasoning service.
package profile

import (
	"strings"
)

// Experience is one entry of the candidate's work history. All fields are
// free text and may be empty.
type Experience struct {
	Start    string `json:"debut"`
	End      string `json:"fin"`
	Role     string `json:"poste"`
	Employer string `json:"entreprise"`
}

// CandidateProfile is the normalized record describing a job seeker.
// It is produced by Extract or supplied directly by the client's form;
// either way the same JSON field names apply.
type CandidateProfile struct {
	TargetRole string       `json:"poste"`
	Skills     []string     `json:"competences"`
	SoftSkills []string     `json:"savoir_etre"`
	KnowHow    []string     `json:"savoir_faire,omitempty"`
	Experience []Experience `json:"experiences"`
	Location   string       `json:"ville"`
}

// Usable reports whether the profile carries enough signal to search
// with. A profile with neither a target role nor skills must never reach
// the listing providers.
func (p *CandidateProfile) Usable() bool {
	return strings.TrimSpace(p.TargetRole) != "" || len(p.Skills) > 0
}

// SearchKeyword builds the keyword string for the listing providers.
// With broaden unset the target role alone is used; broaden (or a missing
// target role) joins role, skills and soft skills into one wide query.
func (p *CandidateProfile) SearchKeyword(broaden bool) string {
	if !broaden && strings.TrimSpace(p.TargetRole) != "" {
		return strings.TrimSpace(p.TargetRole)
	}

	parts := make([]string, 0, 1+len(p.Skills)+len(p.SoftSkills)+len(p.KnowHow))
	for _, s := range append(append(append([]string{p.TargetRole}, p.Skills...), p.SoftSkills...), p.KnowHow...) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// MergeLocation picks the search location: extracted city first, then the
// caller-supplied fallbacks, then the deployment default.
func (p *CandidateProfile) MergeLocation(fallbacks ...string) string {
	if loc := strings.TrimSpace(p.Location); loc != "" {
		return loc
	}
	for _, f := range fallbacks {
		if f = strings.TrimSpace(f); f != "" {
			return f
		}
	}
	return ""
}

// normalize trims and deduplicates list fields in place.
func (p *CandidateProfile) normalize() {
	p.TargetRole = strings.TrimSpace(p.TargetRole)
	p.Location = strings.TrimSpace(p.Location)
	p.Skills = dedupe(p.Skills)
	p.SoftSkills = dedupe(p.SoftSkills)
	p.KnowHow = dedupe(p.KnowHow)
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
