package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/mcdev12/dinnerpick/go/clients/places_client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) SearchBusinesses(ctx context.Context, params places_client.SearchParams) ([]places_client.Business, error) {
	args := m.Called(ctx, params)
	businesses, _ := args.Get(0).([]places_client.Business)
	return businesses, args.Error(1)
}

func TestPlacesProvider_Fetch(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("SearchBusinesses", mock.Anything, places_client.SearchParams{Location: "Denver", Limit: 10}).
		Return([]places_client.Business{
			{ID: "a", Name: "Open", Price: "$$", Categories: []places_client.Category{{Title: "Thai"}},
				Location: places_client.Location{DisplayAddress: []string{"1 Main St", "Denver"}}},
			{ID: "b", Name: "Closed", IsClosed: true},
		}, nil)

	provider := NewPlacesProvider(searcher, "Denver")
	options, err := provider.Fetch(context.Background(), Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "a", options[0].ID)
	assert.Equal(t, "Thai", options[0].Cuisine)
	assert.Equal(t, "1 Main St, Denver", options[0].Address)
	searcher.AssertExpectations(t)
}

func TestPlacesProvider_FetchError(t *testing.T) {
	searcher := &mockSearcher{}
	searcher.On("SearchBusinesses", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := NewPlacesProvider(searcher, "Denver").Fetch(context.Background(), Query{})
	assert.Error(t, err)
}
