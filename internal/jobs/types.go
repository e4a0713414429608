// Package jobs queries external job-listing providers and merges their
// heterogeneous responses into one listing shape.
package jobs

import "context"

// Listing is a normalized external job listing. The canonical URL is its
// natural identifier: two listings with the same URL are the same listing
// and the persistence layer upserts on it.
type Listing struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Source   string `json:"source"`
}

// Provider is one external job-board search API. Implementations
// normalize their response field-by-field into Listing; missing fields
// become empty strings, never nulls.
type Provider interface {
	Name() string
	Search(ctx context.Context, keyword, location string) ([]Listing, error)
}
