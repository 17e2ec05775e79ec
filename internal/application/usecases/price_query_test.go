package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidpet/product-price-service/internal/domain/models"
)

func TestLowestPrice_UnknownProductIsAbsentNotError(t *testing.T) {
	_, query, _, _ := newTestUseCases(t)

	got, err := query.LowestPrice(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLowestPrice_MissFillsCache(t *testing.T) {
	uc, query, _, cache := newTestUseCases(t)

	record(t, uc, "p", "a", 10)

	cached, err := cache.Retrieve(context.Background(), "p")
	require.NoError(t, err)
	require.Nil(t, cached)

	got, err := query.LowestPrice(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.PriceRecord{ProductID: "p", SellerID: "a", Price: 10}, *got)

	cached, err = cache.Retrieve(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, *got, *cached)
}

func TestLowestPrice_HitServesFromCache(t *testing.T) {
	uc, query, _, cache := newTestUseCases(t)

	record(t, uc, "p", "a", 10)

	// Plant a sentinel record; a hit must return it without touching
	// storage.
	sentinel := models.PriceRecord{ProductID: "p", SellerID: "cached", Price: 1}
	require.NoError(t, cache.Update(context.Background(), "p", sentinel))

	got, err := query.LowestPrice(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sentinel, *got)
}

func TestLatestForSeller(t *testing.T) {
	uc, query, _, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)
	record(t, uc, "p", "b", 8)
	record(t, uc, "p", "a", 12)

	got, err := query.LatestForSeller(context.Background(), "p", "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 12.0, got.Price)

	got, err = query.LatestForSeller(context.Background(), "p", "c")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDebugInfo(t *testing.T) {
	uc, query, _, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)

	// Fill the cache so the dump shows both sides.
	_, err := query.LowestPrice(context.Background(), "p")
	require.NoError(t, err)

	info, err := query.DebugInfo(context.Background())
	require.NoError(t, err)

	snapshot, ok := info["storage"].(*models.DebugSnapshot)
	require.True(t, ok)
	assert.Len(t, snapshot.History, 1)
	assert.Len(t, snapshot.Latest, 1)
	assert.Len(t, snapshot.Lowest, 1)

	cacheDump, ok := info["cache"].(map[string]models.PriceRecord)
	require.True(t, ok)
	assert.Contains(t, cacheDump, "p")
}
