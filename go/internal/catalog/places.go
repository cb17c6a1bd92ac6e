package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcdev12/dinnerpick/go/clients/places_client"
	"github.com/mcdev12/dinnerpick/go/internal/models"
)

// BusinessSearcher is what PlacesProvider needs from the places client.
type BusinessSearcher interface {
	SearchBusinesses(ctx context.Context, params places_client.SearchParams) ([]places_client.Business, error)
}

// PlacesProvider fetches options from the places search API.
type PlacesProvider struct {
	client          BusinessSearcher
	defaultLocation string
}

// NewPlacesProvider creates a PlacesProvider. defaultLocation is used when a
// query carries none.
func NewPlacesProvider(client BusinessSearcher, defaultLocation string) *PlacesProvider {
	return &PlacesProvider{
		client:          client,
		defaultLocation: defaultLocation,
	}
}

func (p *PlacesProvider) Fetch(ctx context.Context, query Query) ([]models.Option, error) {
	location := query.Location
	if location == "" {
		location = p.defaultLocation
	}

	businesses, err := p.client.SearchBusinesses(ctx, places_client.SearchParams{
		Location: location,
		Term:     query.Term,
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch options: %w", err)
	}

	options := make([]models.Option, 0, len(businesses))
	for _, b := range businesses {
		if b.IsClosed {
			continue
		}
		options = append(options, toOption(b))
	}
	if len(options) == 0 {
		return nil, ErrEmptyCatalog
	}
	return options, nil
}

func toOption(b places_client.Business) models.Option {
	categories := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		categories = append(categories, c.Title)
	}
	var cuisine string
	if len(categories) > 0 {
		cuisine = categories[0]
	}
	address := b.Location.Address1
	if len(b.Location.DisplayAddress) > 0 {
		address = strings.Join(b.Location.DisplayAddress, ", ")
	}

	return models.Option{
		ID:          b.ID,
		Name:        b.Name,
		Cuisine:     cuisine,
		PriceLevel:  b.Price,
		Rating:      b.Rating,
		Address:     address,
		ImageURL:    b.ImageURL,
		URL:         b.URL,
		Categories:  categories,
		DistanceMtr: b.Distance,
	}
}
