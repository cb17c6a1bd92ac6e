package places_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

type Location struct {
	Address1       string   `json:"address1"`
	City           string   `json:"city"`
	DisplayAddress []string `json:"display_address"`
}

type Business struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ImageURL   string     `json:"image_url"`
	URL        string     `json:"url"`
	Rating     float64    `json:"rating"`
	Price      string     `json:"price"`
	Distance   float64    `json:"distance"`
	IsClosed   bool       `json:"is_closed"`
	Categories []Category `json:"categories"`
	Location   Location   `json:"location"`
}

type SearchResponse struct {
	Total      int        `json:"total"`
	Businesses []Business `json:"businesses"`
}

// SearchParams narrows a business search.
type SearchParams struct {
	Location string
	Term     string
	Limit    int
}

func (c *PlacesClient) SearchBusinesses(ctx context.Context, params SearchParams) ([]Business, error) {
	if params.Location == "" {
		return nil, fmt.Errorf("location is required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	query := url.Values{}
	query.Set("location", params.Location)
	query.Set("categories", DefaultCategory)
	query.Set("limit", strconv.Itoa(limit))
	if params.Term != "" {
		query.Set("term", params.Term)
	}

	body, err := c.Get(ctx, BusinessSearchEndpoint+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to search businesses: %w", err)
	}

	var response SearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return response.Businesses, nil
}
