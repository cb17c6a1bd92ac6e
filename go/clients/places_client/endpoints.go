package places_client

const (
	// Base URL
	BaseURL = "https://api.yelp.com/v3"

	// API Endpoints
	BusinessSearchEndpoint = "/businesses/search"

	// Search defaults
	DefaultCategory = "restaurants"
	DefaultLimit    = 20
	MaxLimit        = 50

	// Headers
	AuthorizationHeader = "Authorization"
	AcceptHeader        = "Accept"
)
