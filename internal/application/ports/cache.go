package ports

import (
	"context"

	"github.com/davidpet/product-price-service/internal/domain/models"
)

// CachePort is the read-through cache contract for lowest-price lookups.
// The cache is an optimization only: its absence changes latency, never
// correctness.
type CachePort interface {
	// Invalidate removes any cached record for the product. The writer
	// calls it exactly once per committed observation, after commit.
	Invalidate(ctx context.Context, productID string) error

	// Retrieve returns the cached record, or nil on a miss. Pure lookup;
	// never triggers recomputation.
	Retrieve(ctx context.Context, productID string) (*models.PriceRecord, error)

	// Update populates the cache after a miss followed by a successful
	// storage read.
	Update(ctx context.Context, productID string, record models.PriceRecord) error

	// DebugInfo dumps the cache contents for operational inspection.
	DebugInfo(ctx context.Context) (map[string]models.PriceRecord, error)

	// Close closes the cache connection.
	Close() error
}
