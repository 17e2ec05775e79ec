// Package memory implements the storage port with process-local tables. It
// backs local development and tests; the data does not survive a restart.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/davidpet/product-price-service/internal/application/ports"
	"github.com/davidpet/product-price-service/internal/concurrency"
	"github.com/davidpet/product-price-service/internal/domain/models"
)

var errTxDone = errors.New("transaction already finished")

type latestKey struct {
	product string
	seller  string
}

// Adapter implements the StoragePort interface with in-memory tables.
// Transactions stage their writes and publish them atomically on Commit;
// transactions for the same product are serialized with a keyed mutex.
type Adapter struct {
	mu      sync.RWMutex
	keyed   *concurrency.KeyedMutex
	nextSeq atomic.Int64
	history []models.HistoryEntry
	latest  map[latestKey]models.LatestPriceEntry
	lowest  map[string]models.LowestPriceEntry
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{
		keyed:  concurrency.NewKeyedMutex(),
		latest: make(map[latestKey]models.LatestPriceEntry),
		lowest: make(map[string]models.LowestPriceEntry),
	}
}

// Begin opens a write transaction for one product, blocking until no other
// transaction for that product is open.
func (a *Adapter) Begin(ctx context.Context, productID string) (ports.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := a.keyed.Lock(productID)
	return &tx{
		store:   a,
		product: productID,
		unlock:  unlock,
		latest:  make(map[latestKey]models.LatestPriceEntry),
	}, nil
}

// LowestPrice returns the index entry for a product, or nil when absent.
func (a *Adapter) LowestPrice(ctx context.Context, productID string) (*models.LowestPriceEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entry, ok := a.lowest[productID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// LatestForSeller returns the latest entry for a (product, seller) pair, or
// nil when absent.
func (a *Adapter) LatestForSeller(ctx context.Context, productID, sellerID string) (*models.LatestPriceEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entry, ok := a.latest[latestKey{productID, sellerID}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// DebugInfo dumps the three tables in a stable order.
func (a *Adapter) DebugInfo(ctx context.Context) (*models.DebugSnapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snapshot := &models.DebugSnapshot{
		History: append([]models.HistoryEntry(nil), a.history...),
		Latest:  make([]models.LatestPriceEntry, 0, len(a.latest)),
		Lowest:  make([]models.LowestPriceEntry, 0, len(a.lowest)),
	}
	for _, entry := range a.latest {
		snapshot.Latest = append(snapshot.Latest, entry)
	}
	for _, entry := range a.lowest {
		snapshot.Lowest = append(snapshot.Lowest, entry)
	}

	sort.Slice(snapshot.Latest, func(i, j int) bool {
		if snapshot.Latest[i].ProductID != snapshot.Latest[j].ProductID {
			return snapshot.Latest[i].ProductID < snapshot.Latest[j].ProductID
		}
		return snapshot.Latest[i].SellerID < snapshot.Latest[j].SellerID
	})
	sort.Slice(snapshot.Lowest, func(i, j int) bool {
		return snapshot.Lowest[i].ProductID < snapshot.Lowest[j].ProductID
	})

	return snapshot, nil
}

// Close releases nothing; the adapter is process-local.
func (a *Adapter) Close() error {
	return nil
}

// tx stages writes for one product. Reads consult the staged overlay first so
// the transaction sees its own writes; nothing is visible to other readers
// until Commit swaps the staged state in under the store's write lock.
type tx struct {
	store   *Adapter
	product string
	unlock  func()
	done    bool

	history []models.HistoryEntry
	latest  map[latestKey]models.LatestPriceEntry
	lowest  *models.LowestPriceEntry
}

func (t *tx) AppendHistory(ctx context.Context, obs models.Observation) (models.HistoryEntry, error) {
	if t.done {
		return models.HistoryEntry{}, errTxDone
	}

	// A rolled-back transaction burns its id: ids stay strictly
	// increasing but are not dense.
	entry := models.HistoryEntry{
		Seq:         t.store.nextSeq.Add(1),
		Observation: obs,
	}
	t.history = append(t.history, entry)
	return entry, nil
}

func (t *tx) UpsertLatest(ctx context.Context, entry models.LatestPriceEntry) (*models.LatestPriceEntry, error) {
	if t.done {
		return nil, errTxDone
	}

	key := latestKey{entry.ProductID, entry.SellerID}
	prev := t.readLatest(key)
	t.latest[key] = entry
	return prev, nil
}

func (t *tx) readLatest(key latestKey) *models.LatestPriceEntry {
	if entry, ok := t.latest[key]; ok {
		e := entry
		return &e
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if entry, ok := t.store.latest[key]; ok {
		e := entry
		return &e
	}
	return nil
}

func (t *tx) GetLowest(ctx context.Context) (*models.LowestPriceEntry, error) {
	if t.done {
		return nil, errTxDone
	}

	if t.lowest != nil {
		entry := *t.lowest
		return &entry, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	entry, ok := t.store.lowest[t.product]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (t *tx) PutLowest(ctx context.Context, entry models.LowestPriceEntry) error {
	if t.done {
		return errTxDone
	}

	t.lowest = &entry
	return nil
}

func (t *tx) ScanLatest(ctx context.Context) ([]models.LatestPriceEntry, error) {
	if t.done {
		return nil, errTxDone
	}

	merged := make(map[latestKey]models.LatestPriceEntry)

	t.store.mu.RLock()
	for key, entry := range t.store.latest {
		if key.product == t.product {
			merged[key] = entry
		}
	}
	t.store.mu.RUnlock()

	for key, entry := range t.latest {
		if key.product == t.product {
			merged[key] = entry
		}
	}

	entries := make([]models.LatestPriceEntry, 0, len(merged))
	for _, entry := range merged {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SellerID < entries[j].SellerID
	})
	return entries, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}

	t.store.mu.Lock()
	t.store.history = append(t.store.history, t.history...)
	for key, entry := range t.latest {
		t.store.latest[key] = entry
	}
	if t.lowest != nil {
		t.store.lowest[t.product] = *t.lowest
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}

	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.history = nil
	t.latest = nil
	t.lowest = nil
	t.unlock()
}
