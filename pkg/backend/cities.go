package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// City is one destination the assistant knows about.
type City struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Region string   `json:"region"`
	Tags   []string `json:"tags"`
}

// Attraction is a sight within a city.
type Attraction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ListCities returns cities, optionally filtered by region and tags.
func (c *Client) ListCities(ctx context.Context, region string, tags []string) ([]City, error) {
	var out struct {
		envelope
		Cities []City `json:"cities"`
	}
	query := url.Values{}
	if region != "" {
		query.Set("region", region)
	}
	if len(tags) > 0 {
		query.Set("tags", strings.Join(tags, ","))
	}
	if err := c.do(ctx, http.MethodGet, "/api/cities", query, nil, &out); err != nil {
		return nil, fmt.Errorf("listing cities: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return out.Cities, nil
}

// City returns the extended details of one city.
func (c *Client) City(ctx context.Context, cityID string) (*City, error) {
	var out struct {
		envelope
		City
	}
	if err := c.do(ctx, http.MethodGet, "/api/cities/"+url.PathEscape(cityID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("getting city: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return &out.City, nil
}

// Attractions returns the attractions of a city.
func (c *Client) Attractions(ctx context.Context, cityID string) ([]Attraction, error) {
	var out struct {
		envelope
		Attractions []Attraction `json:"attractions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/cities/"+url.PathEscape(cityID)+"/attractions", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing attractions: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return out.Attractions, nil
}

// Regions lists the distinct regions cities belong to.
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	var out struct {
		envelope
		Regions []string `json:"regions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/regions", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return out.Regions, nil
}

// Tags lists the distinct travel tags across all cities.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	var out struct {
		envelope
		Tags []string `json:"tags"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return out.Tags, nil
}
