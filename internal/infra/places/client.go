// Package places implements the PlaceSearcher collaborator against an HTTP
// point-of-interest provider.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
)

const defaultRequestTimeout = 6 * time.Second

// Config holds the provider endpoint and credentials.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// Client talks to the place provider over HTTP. Both search shapes POST a
// JSON body and decode a JSON candidate list.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient builds a provider client. A zero RequestTimeout gets the default.
func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		log:  logging.Component("places"),
	}
}

// ─── Wire Types ─────────────────────────────────────────────────────────────

type nearbyRequest struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	RadiusMeters float64  `json:"radius_meters"`
	Categories   []string `json:"categories,omitempty"`
	MaxResults   int      `json:"max_results,omitempty"`
}

type routePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type routeRequest struct {
	Route      []routePoint `json:"route"`
	Categories []string     `json:"categories,omitempty"`
	MaxResults int          `json:"max_results,omitempty"`
}

type placeResult struct {
	PlaceID     string   `json:"place_id"`
	DisplayName string   `json:"display_name"`
	Categories  []string `json:"categories"`
	Rating      float64  `json:"rating"`
	RatingCount int      `json:"rating_count"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Address     string   `json:"address"`
}

type searchResponse struct {
	Results []placeResult `json:"results"`
}

// ─── PlaceSearcher ──────────────────────────────────────────────────────────

// SearchNearby implements domain.PlaceSearcher.
func (c *Client) SearchNearby(ctx context.Context, lat, lon, radiusMeters float64, prefs domain.SearchPreferences) ([]domain.DiscoveryCandidate, error) {
	body := nearbyRequest{
		Latitude:     lat,
		Longitude:    lon,
		RadiusMeters: radiusMeters,
		Categories:   prefs.Categories,
		MaxResults:   prefs.MaxResults,
	}
	return c.search(ctx, "/v1/places/nearby", body)
}

// SearchAlongRoute implements domain.PlaceSearcher.
func (c *Client) SearchAlongRoute(ctx context.Context, route []domain.LocationSample, prefs domain.SearchPreferences) ([]domain.DiscoveryCandidate, error) {
	points := make([]routePoint, 0, len(route))
	for _, s := range route {
		points = append(points, routePoint{Latitude: s.Latitude, Longitude: s.Longitude})
	}
	body := routeRequest{
		Route:      points,
		Categories: prefs.Categories,
		MaxResults: prefs.MaxResults,
	}
	return c.search(ctx, "/v1/places/along-route", body)
}

func (c *Client) search(ctx context.Context, path string, body any) ([]domain.DiscoveryCandidate, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("place search request failed")
		return nil, fmt.Errorf("place search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the log without trusting its size.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(snippet)).
			Msg("place search returned non-200")
		return nil, fmt.Errorf("place search: provider returned %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.DiscoveryCandidate, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.PlaceID == "" {
			continue
		}
		out = append(out, domain.DiscoveryCandidate{
			PlaceID:     r.PlaceID,
			DisplayName: r.DisplayName,
			Categories:  r.Categories,
			Rating:      r.Rating,
			RatingCount: r.RatingCount,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Address:     r.Address,
		})
	}

	c.log.Debug().
		Str("path", path).
		Int("results", len(out)).
		Dur("duration", time.Since(start)).
		Msg("place search completed")
	return out, nil
}
