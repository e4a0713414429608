package store

import (
	"context"
	"fmt"

	"github.com/capapp/cap-backend/internal/jobs"
)

// UpsertListing inserts or refreshes one cached listing, keyed by its
// canonical URL. The latest write wins on every field.
func (s *Store) UpsertListing(ctx context.Context, l jobs.Listing) error {
	if l.URL == "" {
		return fmt.Errorf("listing has no URL")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO listings (url, title, company, location, source, refreshed_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (url) DO UPDATE
		 SET title = $2, company = $3, location = $4, source = $5, refreshed_at = NOW()`,
		l.URL, l.Title, l.Company, l.Location, l.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}
	return nil
}

// UpsertListings upserts a batch and returns how many rows were written.
// Listings without a URL are skipped: no natural key, no upsert.
func (s *Store) UpsertListings(ctx context.Context, listings []jobs.Listing) (int, error) {
	written := 0
	for _, l := range listings {
		if l.URL == "" {
			continue
		}
		if err := s.UpsertListing(ctx, l); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// SearchCachedListings serves the persisted snapshot with optional
// keyword and city filters.
func (s *Store) SearchCachedListings(ctx context.Context, keyword, city string, limit int) ([]jobs.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT url, title, company, location, source
		 FROM listings
		 WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')
		   AND ($2 = '' OR location ILIKE '%' || $2 || '%')
		 ORDER BY refreshed_at DESC
		 LIMIT $3`,
		keyword, city, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached listings: %w", err)
	}
	defer rows.Close()

	var listings []jobs.Listing
	for rows.Next() {
		var l jobs.Listing
		if err := rows.Scan(&l.URL, &l.Title, &l.Company, &l.Location, &l.Source); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
