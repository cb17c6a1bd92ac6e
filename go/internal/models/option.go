package models

// Option is a restaurant candidate offered by the catalog provider.
type Option struct {
	ID          string   `json:"optionId" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Cuisine     string   `json:"cuisine,omitempty" yaml:"cuisine"`
	PriceLevel  string   `json:"priceLevel,omitempty" yaml:"price_level"`
	Rating      float64  `json:"rating,omitempty" yaml:"rating"`
	Address     string   `json:"address,omitempty" yaml:"address"`
	ImageURL    string   `json:"imageUrl,omitempty" yaml:"image_url"`
	URL         string   `json:"url,omitempty" yaml:"url"`
	Categories  []string `json:"categories,omitempty" yaml:"categories"`
	DistanceMtr float64  `json:"distanceMeters,omitempty" yaml:"distance_meters"`
}

// Result is the overlap of every participant's selection for a session.
type Result struct {
	OverlappingIDs             []string            `json:"overlappingOptionIds"`
	OverlappingOptions         []Option            `json:"overlappingOptions"`
	AllSelectionsByDisplayName map[string][]string `json:"allSelectionsByDisplayName"`
	HasOverlap                 bool                `json:"hasOverlap"`
}
