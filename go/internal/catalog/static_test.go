package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
options:
  - id: taco
    name: Taco Joint
    cuisine: Mexican
    price_level: "$"
    rating: 4.5
  - id: ramen
    name: Noodle Bar
    cuisine: Japanese
    categories: [ramen, noodles]
  - id: pizza
    name: Slice House
    cuisine: Italian
`

func TestParseStaticCatalog(t *testing.T) {
	provider, err := ParseStaticCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	options, err := provider.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, options, 3)
	assert.Equal(t, "taco", options[0].ID)
	assert.Equal(t, "$", options[0].PriceLevel)
	assert.Equal(t, 4.5, options[0].Rating)
}

func TestParseStaticCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing id", doc: "options:\n  - name: x\n"},
		{name: "duplicate id", doc: "options:\n  - {id: a, name: x}\n  - {id: a, name: y}\n"},
		{name: "empty", doc: "options: []\n"},
		{name: "not yaml", doc: "options: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStaticCatalog([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestStaticProvider_FetchFiltersAndLimits(t *testing.T) {
	provider, err := ParseStaticCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	options, err := provider.Fetch(context.Background(), Query{Term: "noodles"})
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "ramen", options[0].ID)

	options, err = provider.Fetch(context.Background(), Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, options, 2)

	_, err = provider.Fetch(context.Background(), Query{Term: "sushi"})
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestLoadStaticProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	provider, err := LoadStaticProvider(path)
	require.NoError(t, err)
	options, err := provider.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, options, 3)

	_, err = LoadStaticProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
