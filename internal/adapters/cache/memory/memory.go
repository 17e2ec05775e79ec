// Package memory implements the cache port with a process-local map, for
// local development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/davidpet/product-price-service/internal/domain/models"
)

// Adapter implements the CachePort interface with an in-memory map.
type Adapter struct {
	mu      sync.RWMutex
	records map[string]models.PriceRecord
}

// New creates an empty in-memory cache.
func New() *Adapter {
	return &Adapter{
		records: make(map[string]models.PriceRecord),
	}
}

// Invalidate removes the record for a product, if any.
func (a *Adapter) Invalidate(ctx context.Context, productID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.records, productID)
	return nil
}

// Retrieve returns the cached record, or nil on a miss.
func (a *Adapter) Retrieve(ctx context.Context, productID string) (*models.PriceRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	record, ok := a.records[productID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Update stores the record for a product.
func (a *Adapter) Update(ctx context.Context, productID string, record models.PriceRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records[productID] = record
	return nil
}

// DebugInfo returns a copy of the cache contents.
func (a *Adapter) DebugInfo(ctx context.Context) (map[string]models.PriceRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	dump := make(map[string]models.PriceRecord, len(a.records))
	for productID, record := range a.records {
		dump[productID] = record
	}
	return dump, nil
}

// Close releases nothing; the cache is process-local.
func (a *Adapter) Close() error {
	return nil
}
