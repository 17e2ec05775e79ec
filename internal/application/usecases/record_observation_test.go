package usecases

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachememory "github.com/davidpet/product-price-service/internal/adapters/cache/memory"
	storagememory "github.com/davidpet/product-price-service/internal/adapters/storage/memory"
	"github.com/davidpet/product-price-service/internal/domain/models"
	"github.com/davidpet/product-price-service/internal/logger"
)

func newTestUseCases(t *testing.T) (*RecordObservationUseCase, *PriceQueryUseCase, *storagememory.Adapter, *cachememory.Adapter) {
	t.Helper()

	storage := storagememory.New()
	cache := cachememory.New()
	log := logger.New()

	return NewRecordObservationUseCase(storage, cache, log),
		NewPriceQueryUseCase(storage, cache, log),
		storage, cache
}

func record(t *testing.T, uc *RecordObservationUseCase, product, seller string, price float64) {
	t.Helper()

	err := uc.Record(context.Background(), models.Observation{
		ProductID: product,
		SellerID:  seller,
		Price:     price,
	})
	require.NoError(t, err)
}

func lowestEntry(t *testing.T, storage *storagememory.Adapter, product string) *models.LowestPriceEntry {
	t.Helper()

	entry, err := storage.LowestPrice(context.Background(), product)
	require.NoError(t, err)
	return entry
}

func TestRecord_NewProductCreatesLatestAndLowest(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "widget", "acme", 9.99)

	latest, err := storage.LatestForSeller(context.Background(), "widget", "acme")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 9.99, latest.Price)

	lowest := lowestEntry(t, storage, "widget")
	require.NotNil(t, lowest)
	assert.Equal(t, "acme", lowest.SellerID)
	assert.Equal(t, 9.99, lowest.Price)
}

func TestRecord_DecreasingPricesTrackMinimum(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)
	record(t, uc, "p", "b", 8)
	record(t, uc, "p", "a", 5)

	lowest := lowestEntry(t, storage, "p")
	require.NotNil(t, lowest)
	assert.Equal(t, "a", lowest.SellerID)
	assert.Equal(t, 5.0, lowest.Price)
}

func TestRecord_CheapestSellerRaisingPriceTriggersRescan(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)
	record(t, uc, "p", "b", 8)
	record(t, uc, "p", "a", 12)

	// a's increase cannot win, so the rescan must find b's 8.
	lowest := lowestEntry(t, storage, "p")
	require.NotNil(t, lowest)
	assert.Equal(t, "b", lowest.SellerID)
	assert.Equal(t, 8.0, lowest.Price)
}

func TestRecord_RescanSequence(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)
	record(t, uc, "p", "b", 12)

	// The cheapest seller raises their price: rescan hands the minimum to b.
	record(t, uc, "p", "a", 15)
	lowest := lowestEntry(t, storage, "p")
	require.NotNil(t, lowest)
	assert.Equal(t, "b", lowest.SellerID)
	assert.Equal(t, 12.0, lowest.Price)

	// Now b holds the minimum and raises too: another rescan, back to a.
	record(t, uc, "p", "b", 20)
	lowest = lowestEntry(t, storage, "p")
	require.NotNil(t, lowest)
	assert.Equal(t, "a", lowest.SellerID)
	assert.Equal(t, 15.0, lowest.Price)

	// An increase by a seller not holding the minimum changes nothing.
	record(t, uc, "p", "b", 30)
	lowest = lowestEntry(t, storage, "p")
	require.NotNil(t, lowest)
	assert.Equal(t, "a", lowest.SellerID)
	assert.Equal(t, 15.0, lowest.Price)
}

func TestRecord_TieLatestWriterWins(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)
	record(t, uc, "p", "b", 10)

	lowest := lowestEntry(t, storage, "p")
	require.NotNil(t, lowest)
	assert.Equal(t, "b", lowest.SellerID)
	assert.Equal(t, 10.0, lowest.Price)
}

func TestRecord_Idempotence(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)
	record(t, uc, "p", "b", 8)

	before := lowestEntry(t, storage, "p")
	require.NotNil(t, before)

	record(t, uc, "p", "b", 8)

	after := lowestEntry(t, storage, "p")
	require.NotNil(t, after)
	assert.Equal(t, before.SellerID, after.SellerID)
	assert.Equal(t, before.Price, after.Price)
}

func TestRecord_WindowedObservationLogsHistoryOnly(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)

	from := time.Now().Add(24 * time.Hour)
	err := uc.Record(context.Background(), models.Observation{
		ProductID:     "p",
		SellerID:      "b",
		Price:         1,
		EffectiveFrom: &from,
	})
	require.NoError(t, err)

	// The windowed price is in the log but must not touch the live tables.
	snapshot, err := storage.DebugInfo(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.History, 2)
	assert.Len(t, snapshot.Latest, 1)

	latest, err := storage.LatestForSeller(context.Background(), "p", "b")
	require.NoError(t, err)
	assert.Nil(t, latest)

	lowest := lowestEntry(t, storage, "p")
	require.NotNil(t, lowest)
	assert.Equal(t, "a", lowest.SellerID)
	assert.Equal(t, 10.0, lowest.Price)
}

func TestRecord_InvalidatesCacheAfterCommit(t *testing.T) {
	uc, query, _, cache := newTestUseCases(t)

	record(t, uc, "p", "a", 10)

	// Fill the cache through the read path.
	got, err := query.LowestPrice(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, got)

	cached, err := cache.Retrieve(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, cached)

	record(t, uc, "p", "b", 5)

	// The committed write must leave the cache empty until the next
	// successful read refills it.
	cached, err = cache.Retrieve(context.Background(), "p")
	require.NoError(t, err)
	assert.Nil(t, cached)

	got, err = query.LowestPrice(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.SellerID)
	assert.Equal(t, 5.0, got.Price)
}

func TestRecord_ProductsDoNotInterfere(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	record(t, uc, "p", "a", 10)
	record(t, uc, "q", "a", 3)
	record(t, uc, "p", "a", 20)

	lowestP := lowestEntry(t, storage, "p")
	require.NotNil(t, lowestP)
	assert.Equal(t, 20.0, lowestP.Price)

	lowestQ := lowestEntry(t, storage, "q")
	require.NotNil(t, lowestQ)
	assert.Equal(t, 3.0, lowestQ.Price)
}

func TestRecord_InvariantHoldsUnderConcurrentWrites(t *testing.T) {
	uc, _, storage, _ := newTestUseCases(t)

	const sellers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for s := 0; s < sellers; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				// Prices rise and fall so every reconcile branch,
				// including the rescan, gets exercised.
				price := float64((s*rounds+r)%17 + 1)
				err := uc.Record(context.Background(), models.Observation{
					ProductID: "p",
					SellerID:  fmt.Sprintf("s%d", s),
					Price:     price,
				})
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	snapshot, err := storage.DebugInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Latest, sellers)
	require.Len(t, snapshot.Lowest, 1)

	min := snapshot.Latest[0].Price
	for _, entry := range snapshot.Latest[1:] {
		if entry.Price < min {
			min = entry.Price
		}
	}
	assert.Equal(t, min, snapshot.Lowest[0].Price,
		"index must equal the minimum over the latest table once writes settle")
}
