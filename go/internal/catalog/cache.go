package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/store"
)

// Cache keeps the options a session was created with as a JSON list in the
// store, next to the other keys of the session.
type Cache struct {
	store store.Store
	keys  store.Keyspace
}

func NewCache(s store.Store, keys store.Keyspace) *Cache {
	return &Cache{store: s, keys: keys}
}

func (c *Cache) Save(ctx context.Context, code string, options []models.Option, ttl time.Duration) error {
	raw, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := c.store.Set(ctx, c.keys.Catalog(code), string(raw), ttl); err != nil {
		return fmt.Errorf("failed to cache catalog for session %s: %w", code, err)
	}
	return nil
}

func (c *Cache) Load(ctx context.Context, code string) ([]models.Option, error) {
	raw, err := c.store.Get(ctx, c.keys.Catalog(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCatalogNotFound
		}
		return nil, fmt.Errorf("failed to load catalog for session %s: %w", code, err)
	}

	var options []models.Option
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, fmt.Errorf("failed to decode catalog for session %s: %w", code, err)
	}
	return options, nil
}
