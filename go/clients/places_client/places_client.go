package places_client

import (
	"github.com/mcdev12/dinnerpick/go/clients"
)

type PlacesClient struct {
	*clients.BaseClient
}

// NewPlacesClient creates a client for the places search API. An empty
// baseURL uses BaseURL.
func NewPlacesClient(apiKey, baseURL string) *PlacesClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	client := &PlacesClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(AuthorizationHeader, "Bearer "+apiKey)
	client.SetHeader(AcceptHeader, "application/json")

	return client
}
