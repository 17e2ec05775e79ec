package ports

import (
	"context"
	"errors"

	"github.com/davidpet/product-price-service/internal/domain/models"
)

// ErrUnavailable is returned by a backend that cannot fulfill a capability
// (for example a replica that is down, or a deployment option that is not
// wired up). Callers can distinguish it from "no data", which is a nil entry.
var ErrUnavailable = errors.New("storage backend unavailable")

// StoragePort is the capability surface a storage technology implements to
// host the three price tables. Reads are served outside any transaction;
// writes happen through a Tx obtained from Begin.
type StoragePort interface {
	// Begin opens a write transaction scoped to one product. The backend
	// must serialize transactions for the same product id: the
	// read-modify-write sequence in index reconciliation is not safe under
	// concurrent execution for one product.
	Begin(ctx context.Context, productID string) (Tx, error)

	// LowestPrice returns the index entry for a product, or nil when the
	// product is unknown. O(1); never recomputes.
	LowestPrice(ctx context.Context, productID string) (*models.LowestPriceEntry, error)

	// LatestForSeller returns the latest entry for a (product, seller)
	// pair, or nil when the pair is unknown.
	LatestForSeller(ctx context.Context, productID, sellerID string) (*models.LatestPriceEntry, error)

	// DebugInfo dumps the three tables for operational inspection.
	DebugInfo(ctx context.Context) (*models.DebugSnapshot, error)

	// Close closes the storage connection.
	Close() error
}

// Tx is one atomic unit of work covering a single observation: history
// append, latest upsert, and index reconciliation. Methods see the Tx's own
// staged writes; readers outside the Tx see nothing until Commit.
type Tx interface {
	// AppendHistory logs the observation and assigns its sequence id.
	// Sequence ids are unique and strictly increasing, not dense.
	AppendHistory(ctx context.Context, obs models.Observation) (models.HistoryEntry, error)

	// UpsertLatest replaces the (product, seller) entry and returns the
	// previous entry, or nil if the key was new.
	UpsertLatest(ctx context.Context, entry models.LatestPriceEntry) (*models.LatestPriceEntry, error)

	// GetLowest returns the current index entry for the Tx's product, or
	// nil when absent.
	GetLowest(ctx context.Context) (*models.LowestPriceEntry, error)

	// PutLowest creates or overwrites the index entry for the Tx's product.
	PutLowest(ctx context.Context, entry models.LowestPriceEntry) error

	// ScanLatest returns every latest entry for the Tx's product,
	// including rows staged by this Tx. Rare path; not required to be O(1).
	ScanLatest(ctx context.Context) ([]models.LatestPriceEntry, error)

	// Commit publishes all staged writes atomically.
	Commit(ctx context.Context) error

	// Rollback discards staged writes. Safe to call after Commit.
	Rollback(ctx context.Context) error
}
