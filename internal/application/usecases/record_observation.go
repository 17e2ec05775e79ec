package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidpet/product-price-service/internal/application/ports"
	"github.com/davidpet/product-price-service/internal/domain/models"
	"github.com/davidpet/product-price-service/internal/metrics"
)

// RecordObservationUseCase handles the write path: one observation becomes a
// history append, a latest-table upsert, and a lowest-price index
// reconciliation, all inside a single storage transaction. The cache is
// invalidated after the transaction commits, never before.
type RecordObservationUseCase struct {
	storage ports.StoragePort
	cache   ports.CachePort
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecordObservationUseCase creates a new RecordObservationUseCase.
func NewRecordObservationUseCase(storage ports.StoragePort, cache ports.CachePort, logger *slog.Logger) *RecordObservationUseCase {
	return &RecordObservationUseCase{
		storage: storage,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Record accepts one validated observation. On any error no partial state is
// visible and the caller retries the whole operation.
func (uc *RecordObservationUseCase) Record(ctx context.Context, obs models.Observation) error {
	if obs.ReceivedAt.IsZero() {
		obs.ReceivedAt = uc.now().UTC()
	}

	tx, err := uc.storage.Begin(ctx, obs.ProductID)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := tx.AppendHistory(ctx, obs)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	outcome := metrics.OutcomeWindowed
	if obs.Windowed() {
		// Windowed prices live in history only until an external
		// scheduler activates them.
		uc.logger.Debug("Windowed observation logged",
			"product_id", obs.ProductID, "seller_id", obs.SellerID, "seq", entry.Seq)
	} else {
		if _, err := tx.UpsertLatest(ctx, models.LatestPriceEntry{
			ProductID:  obs.ProductID,
			SellerID:   obs.SellerID,
			Price:      obs.Price,
			URL:        obs.URL,
			ReceivedAt: obs.ReceivedAt,
		}); err != nil {
			return fmt.Errorf("upsert latest price: %w", err)
		}

		outcome, err = uc.reconcile(ctx, tx, obs)
		if err != nil {
			return fmt.Errorf("reconcile lowest price: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.ObservationsTotal.WithLabelValues(outcome).Inc()

	// Invalidation must follow the commit so a racing reader can never
	// refill the cache from pre-commit state and keep it forever.
	if err := uc.cache.Invalidate(ctx, obs.ProductID); err != nil {
		// The write is durable; a failed invalidation only extends
		// staleness until the cache entry expires.
		uc.logger.Error("Cache invalidation failed",
			"product_id", obs.ProductID, "error", err)
	}

	uc.logger.Debug("Observation recorded",
		"product_id", obs.ProductID, "seller_id", obs.SellerID,
		"price", obs.Price, "seq", entry.Seq, "outcome", outcome)
	return nil
}

// reconcile keeps the lowest-price index consistent with the latest table
// without recomputing the minimum on every write. Only one branch scans: a
// price increase by the seller currently holding the minimum, because only
// that seller's increase can raise the true minimum.
func (uc *RecordObservationUseCase) reconcile(ctx context.Context, tx ports.Tx, obs models.Observation) (string, error) {
	current, err := tx.GetLowest(ctx)
	if err != nil {
		return "", err
	}

	candidate := models.LowestPriceEntry{
		ProductID:  obs.ProductID,
		SellerID:   obs.SellerID,
		Price:      obs.Price,
		URL:        obs.URL,
		ReceivedAt: obs.ReceivedAt,
	}

	switch {
	case current == nil:
		// First seller for this product.
		return metrics.OutcomeCreated, tx.PutLowest(ctx, candidate)

	case obs.Price <= current.Price:
		// New or tied minimum. Ties go to the latest writer.
		return metrics.OutcomeNewMin, tx.PutLowest(ctx, candidate)

	case obs.SellerID == current.SellerID:
		// The cheapest seller raised their price, so the recorded
		// minimum may no longer hold. The only path that scans.
		entries, err := tx.ScanLatest(ctx)
		if err != nil {
			return "", err
		}
		metrics.RescansTotal.Inc()
		uc.logger.Info("Lowest-price rescan",
			"product_id", obs.ProductID, "sellers", len(entries))

		// The upsert already ran, so the scan is never empty here.
		min := entries[0]
		for _, e := range entries[1:] {
			if e.Price < min.Price {
				min = e
			}
		}
		return metrics.OutcomeRescanned, tx.PutLowest(ctx, models.LowestPriceEntry{
			ProductID:  min.ProductID,
			SellerID:   min.SellerID,
			Price:      min.Price,
			URL:        min.URL,
			ReceivedAt: min.ReceivedAt,
		})

	default:
		// A non-cheapest seller went further above the minimum; the
		// index is unaffected.
		return metrics.OutcomeUnchanged, nil
	}
}
