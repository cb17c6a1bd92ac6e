package catalog

import (
	"context"
	"errors"

	"github.com/mcdev12/dinnerpick/go/internal/models"
)

var (
	// ErrCatalogNotFound is returned when no catalog is cached for a session.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrEmptyCatalog is returned when a provider yields no options.
	ErrEmptyCatalog = errors.New("catalog provider returned no options")
)

// Query describes what options a session should be offered.
type Query struct {
	Location string `json:"location"`
	Term     string `json:"term"`
	Limit    int    `json:"limit"`
}

// Provider fetches the candidate options for a new session.
type Provider interface {
	Fetch(ctx context.Context, query Query) ([]models.Option, error)
}

// Index maps option ids to options for quick lookups.
func Index(options []models.Option) map[string]models.Option {
	index := make(map[string]models.Option, len(options))
	for _, option := range options {
		index[option.ID] = option
	}
	return index
}
