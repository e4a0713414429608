package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	httpTimeout    = 15 * time.Second
)

// Adzuna fetches job offers from the Adzuna public API.
type Adzuna struct {
	appID   string
	appKey  string
	country string // "fr", "gb", "us", ...
	baseURL string
	client  *http.Client
}

// NewAdzuna constructs a provider with a shared HTTP client.
func NewAdzuna(appID, appKey, country string) *Adzuna {
	return &Adzuna{
		appID:   appID,
		appKey:  appKey,
		country: country,
		baseURL: adzunaBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (a *Adzuna) WithBaseURL(base string) *Adzuna {
	a.baseURL = base
	return a
}

// Name implements Provider.
func (a *Adzuna) Name() string { return "Adzuna" }

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
}

type adzunaResult struct {
	Title       string         `json:"title"`
	Company     adzunaCompany  `json:"company"`
	Location    adzunaLocation `json:"location"`
	RedirectURL string         `json:"redirect_url"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Search implements Provider against the first page of Adzuna results.
func (a *Adzuna) Search(ctx context.Context, keyword, location string) ([]Listing, error) {
	return a.search(ctx, keyword, location, adzunaPageSize)
}

// Healthcheck asks for a single result to verify credentials and
// reachability.
func (a *Adzuna) Healthcheck(ctx context.Context) error {
	_, err := a.search(ctx, "", "", 1)
	return err
}

func (a *Adzuna) search(ctx context.Context, keyword, location string, perPage int) ([]Listing, error) {
	if a.appID == "" || a.appKey == "" {
		return nil, fmt.Errorf("adzuna credentials missing")
	}

	q := url.Values{}
	q.Set("app_id", a.appID)
	q.Set("app_key", a.appKey)
	q.Set("results_per_page", fmt.Sprintf("%d", perPage))
	q.Set("what", keyword)
	q.Set("where", location)

	endpoint := fmt.Sprintf("%s/%s/search/1?%s", a.baseURL, a.country, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("adzuna request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adzuna call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("adzuna returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("adzuna decode failed: %w", err)
	}

	listings := make([]Listing, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		listings = append(listings, Listing{
			Title:    r.Title,
			Company:  r.Company.DisplayName,
			Location: r.Location.DisplayName,
			URL:      r.RedirectURL,
			Source:   a.Name(),
		})
	}
	return listings, nil
}
