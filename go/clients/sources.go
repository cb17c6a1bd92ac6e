package clients

// CatalogSource identifies where a session's restaurant options come from.
type CatalogSource string

const (
	// CatalogSourcePlaces is the HTTP places search API.
	CatalogSourcePlaces CatalogSource = "places"

	// CatalogSourceStatic is a catalog file shipped with the deployment.
	CatalogSourceStatic CatalogSource = "static"
)

// CatalogSourceConfig holds configuration for a catalog source
type CatalogSourceConfig struct {
	Source      CatalogSource `json:"source"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Priority    int           `json:"priority"` // Higher priority sources are tried first
}

// GetCatalogSources returns all known catalog sources
func GetCatalogSources() map[CatalogSource]CatalogSourceConfig {
	return map[CatalogSource]CatalogSourceConfig{
		CatalogSourcePlaces: {
			Source:      CatalogSourcePlaces,
			Name:        "Places API",
			Description: "Restaurant search over HTTP",
			Priority:    100,
		},
		CatalogSourceStatic: {
			Source:      CatalogSourceStatic,
			Name:        "Static catalog",
			Description: "Options loaded from a YAML file",
			Priority:    10,
		},
	}
}

// ValidateCatalogSource checks if the source is known
func ValidateCatalogSource(source CatalogSource) bool {
	_, exists := GetCatalogSources()[source]
	return exists
}

// SelectCatalogSource returns the highest priority source among the enabled ones.
func SelectCatalogSource(enabled ...CatalogSource) (CatalogSource, bool) {
	sources := GetCatalogSources()
	var highest CatalogSource
	highestPriority := -1

	for _, source := range enabled {
		config, ok := sources[source]
		if !ok {
			continue
		}
		if config.Priority > highestPriority {
			highest = source
			highestPriority = config.Priority
		}
	}

	return highest, highestPriority >= 0
}
