package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ftTokenURL  = "https://entreprise.francetravail.fr/connexion/oauth2/access_token?realm=%2Fpartenaire"
	ftSearchURL = "https://api.francetravail.io/partenaire/offresdemploi/v2/offres/search"
	ftScope     = "api_offresdemploiv2 o2dsoffre"

	// tokenTimeout bounds the credential exchange. A slow auth dependency
	// degrades to skipping this provider, it never stalls the aggregate.
	tokenTimeout = 5 * time.Second

	// tokenTTLMargin is shaved off the provider-reported token lifetime
	// before caching so we never present an expiring token.
	tokenTTLMargin = 60 * time.Second

	defaultRadiusKm = 20
)

// TokenCache stores the France Travail bearer token between calls.
// A nil cache means every search performs its own exchange.
type TokenCache interface {
	GetToken(ctx context.Context) (string, bool)
	SetToken(ctx context.Context, token string, ttl time.Duration)
}

// FranceTravail fetches job offers from the France Travail (ex Pôle
// Emploi) partner API. It requires a client-credentials token exchange.
type FranceTravail struct {
	clientID     string
	clientSecret string
	tokenURL     string
	searchURL    string
	tokens       TokenCache
	client       *http.Client
}

// NewFranceTravail constructs a provider with a shared HTTP client.
func NewFranceTravail(clientID, clientSecret string, tokens TokenCache) *FranceTravail {
	return &FranceTravail{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     ftTokenURL,
		searchURL:    ftSearchURL,
		tokens:       tokens,
		client:       &http.Client{Timeout: httpTimeout},
	}
}

// WithEndpoints overrides the API endpoints. Used by tests.
func (f *FranceTravail) WithEndpoints(tokenURL, searchURL string) *FranceTravail {
	f.tokenURL = tokenURL
	f.searchURL = searchURL
	return f
}

// Name implements Provider.
func (f *FranceTravail) Name() string { return "France Travail" }

type ftTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type ftSearchResponse struct {
	Resultats []ftOffer `json:"resultats"`
}

type ftOffer struct {
	Intitule   string `json:"intitule"`
	Entreprise struct {
		Nom string `json:"nom"`
	} `json:"entreprise"`
	LieuTravail struct {
		Libelle string `json:"libelle"`
	} `json:"lieuTravail"`
	OrigineOffre struct {
		URLOrigine string `json:"urlOrigine"`
	} `json:"origineOffre"`
}

// Search implements Provider. Token acquisition failures count as a
// provider failure; the aggregator skips us and carries on.
func (f *FranceTravail) Search(ctx context.Context, keyword, location string) ([]Listing, error) {
	token, err := f.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("motsCles", keyword)
	q.Set("commune", location)
	q.Set("distance", fmt.Sprintf("%d", defaultRadiusKm))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("france travail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("france travail call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 204 means no offers matched; 206 is a partial range, both carry results.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("france travail returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed ftSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("france travail decode failed: %w", err)
	}

	listings := make([]Listing, 0, len(parsed.Resultats))
	for _, o := range parsed.Resultats {
		listings = append(listings, Listing{
			Title:    o.Intitule,
			Company:  o.Entreprise.Nom,
			Location: o.LieuTravail.Libelle,
			URL:      o.OrigineOffre.URLOrigine,
			Source:   "Pole Emploi",
		})
	}
	return listings, nil
}

// Healthcheck verifies the token exchange works, which exercises both
// credentials and reachability.
func (f *FranceTravail) Healthcheck(ctx context.Context) error {
	_, err := f.bearerToken(ctx)
	return err
}

// bearerToken returns a cached token or performs the bounded exchange.
func (f *FranceTravail) bearerToken(ctx context.Context) (string, error) {
	if f.tokens != nil {
		if token, ok := f.tokens.GetToken(ctx); ok {
			return token, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", f.clientID)
	form.Set("client_secret", f.clientSecret)
	form.Set("scope", ftScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("france travail token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("france travail token exchange failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("france travail token exchange returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed ftTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("france travail token decode failed: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("france travail token missing from response")
	}

	if f.tokens != nil && parsed.ExpiresIn > 0 {
		ttl := time.Duration(parsed.ExpiresIn)*time.Second - tokenTTLMargin
		if ttl > 0 {
			f.tokens.SetToken(ctx, parsed.AccessToken, ttl)
		}
	}
	return parsed.AccessToken, nil
}
