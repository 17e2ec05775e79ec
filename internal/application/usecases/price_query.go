package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davidpet/product-price-service/internal/application/ports"
	"github.com/davidpet/product-price-service/internal/domain/models"
	"github.com/davidpet/product-price-service/internal/metrics"
)

// PriceQueryUseCase handles the read paths: cache-first lowest-price lookups,
// the auxiliary latest-for-seller lookup, and the diagnostic dump.
type PriceQueryUseCase struct {
	storage ports.StoragePort
	cache   ports.CachePort
	logger  *slog.Logger
}

// NewPriceQueryUseCase creates a new PriceQueryUseCase.
func NewPriceQueryUseCase(storage ports.StoragePort, cache ports.CachePort, logger *slog.Logger) *PriceQueryUseCase {
	return &PriceQueryUseCase{
		storage: storage,
		cache:   cache,
		logger:  logger,
	}
}

// LowestPrice returns the cheapest current price for a product, or nil when
// the product is unknown. Cache miss falls through to the O(1) index lookup
// and refills the cache.
func (uc *PriceQueryUseCase) LowestPrice(ctx context.Context, productID string) (*models.PriceRecord, error) {
	cached, err := uc.cache.Retrieve(ctx, productID)
	if err != nil {
		// A broken cache must not break reads; fall through to storage.
		uc.logger.Error("Cache retrieve failed", "product_id", productID, "error", err)
	}
	if cached != nil {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	entry, err := uc.storage.LowestPrice(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lowest price lookup: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	record := models.RecordFromLowest(*entry)
	if err := uc.cache.Update(ctx, productID, record); err != nil {
		uc.logger.Error("Cache update failed", "product_id", productID, "error", err)
	}

	return &record, nil
}

// LatestForSeller returns the most recent price one seller reported for a
// product, or nil when the pair is unknown. Off the hot path; not cached.
func (uc *PriceQueryUseCase) LatestForSeller(ctx context.Context, productID, sellerID string) (*models.PriceRecord, error) {
	entry, err := uc.storage.LatestForSeller(ctx, productID, sellerID)
	if err != nil {
		return nil, fmt.Errorf("latest for seller lookup: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	record := models.RecordFromLatest(*entry)
	return &record, nil
}

// DebugInfo collects the storage and cache snapshots. Operational inspection
// only, never used for correctness.
func (uc *PriceQueryUseCase) DebugInfo(ctx context.Context) (map[string]any, error) {
	snapshot, err := uc.storage.DebugInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage debug info: %w", err)
	}

	cacheDump, err := uc.cache.DebugInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache debug info: %w", err)
	}

	return map[string]any{
		"storage": snapshot,
		"cache":   cacheDump,
	}, nil
}
