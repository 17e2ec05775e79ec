// Package postgresql implements the storage port on PostgreSQL. An optional
// read replica serves the query paths (the mirrored deployment); writes
// always go to the primary.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/davidpet/product-price-service/internal/application/ports"
	"github.com/davidpet/product-price-service/internal/config"
	"github.com/davidpet/product-price-service/internal/domain/models"
)

// debugRowLimit caps how many rows per table the diagnostic dump returns.
const debugRowLimit = 20

// Adapter implements the StoragePort interface for PostgreSQL
type Adapter struct {
	primary *sql.DB
	replica *sql.DB
}

// New creates a new PostgreSQL adapter and verifies connectivity to the
// primary and, when configured, the replica.
func New(cfg config.PostgresConfig) (*Adapter, error) {
	primary, err := open(cfg.Host, cfg.Port, cfg)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}

	a := &Adapter{primary: primary}

	if cfg.ReplicaHost != "" {
		replica, err := open(cfg.ReplicaHost, cfg.ReplicaPort, cfg)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("replica: %w", err)
		}
		a.replica = replica
	}

	return a, nil
}

func open(host string, port int, cfg config.PostgresConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// reader is the connection query paths use. With a replica configured the
// lowest-price read never competes with writer locks on the primary.
func (a *Adapter) reader() *sql.DB {
	if a.replica != nil {
		return a.replica
	}
	return a.primary
}

// Begin opens a write transaction for one product. A transaction-scoped
// advisory lock on the product id serializes the read-modify-write sequence
// across concurrent writers, including the first write for a product where
// there is no row to lock yet.
func (a *Adapter) Begin(ctx context.Context, productID string) (ports.Tx, error) {
	sqlTx, err := a.primary.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	if _, err := sqlTx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, productID); err != nil {
		sqlTx.Rollback()
		return nil, fmt.Errorf("failed to acquire product lock: %w", err)
	}

	return &tx{sqlTx: sqlTx, product: productID}, nil
}

// LowestPrice returns the index entry for a product, or nil when absent.
func (a *Adapter) LowestPrice(ctx context.Context, productID string) (*models.LowestPriceEntry, error) {
	query := `SELECT product_id, seller_id, price, url, received_at
			  FROM lowest_prices
			  WHERE product_id = $1`

	var entry models.LowestPriceEntry
	err := a.reader().QueryRowContext(ctx, query, productID).Scan(
		&entry.ProductID, &entry.SellerID, &entry.Price, &entry.URL, &entry.ReceivedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, a.readErr(err)
	}

	return &entry, nil
}

// LatestForSeller returns the latest entry for a (product, seller) pair, or
// nil when absent.
func (a *Adapter) LatestForSeller(ctx context.Context, productID, sellerID string) (*models.LatestPriceEntry, error) {
	query := `SELECT product_id, seller_id, price, url, received_at
			  FROM latest_prices
			  WHERE product_id = $1 AND seller_id = $2`

	var entry models.LatestPriceEntry
	err := a.reader().QueryRowContext(ctx, query, productID, sellerID).Scan(
		&entry.ProductID, &entry.SellerID, &entry.Price, &entry.URL, &entry.ReceivedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, a.readErr(err)
	}

	return &entry, nil
}

// DebugInfo returns the first rows of each table, enough to watch the index
// behave without dumping a production data set.
func (a *Adapter) DebugInfo(ctx context.Context) (*models.DebugSnapshot, error) {
	snapshot := &models.DebugSnapshot{}

	rows, err := a.reader().QueryContext(ctx,
		`SELECT id, product_id, seller_id, price, url, effective_from, effective_to, received_at
		 FROM price_history ORDER BY id DESC LIMIT $1`, debugRowLimit)
	if err != nil {
		return nil, a.readErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.HistoryEntry
		var url sql.NullString
		if err := rows.Scan(&entry.Seq, &entry.ProductID, &entry.SellerID, &entry.Price,
			&url, &entry.EffectiveFrom, &entry.EffectiveTo, &entry.ReceivedAt); err != nil {
			return nil, err
		}
		entry.URL = url.String
		snapshot.History = append(snapshot.History, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	latestRows, err := a.reader().QueryContext(ctx,
		`SELECT product_id, seller_id, price, url, received_at
		 FROM latest_prices ORDER BY product_id, seller_id LIMIT $1`, debugRowLimit)
	if err != nil {
		return nil, a.readErr(err)
	}
	defer latestRows.Close()

	for latestRows.Next() {
		var entry models.LatestPriceEntry
		if err := latestRows.Scan(&entry.ProductID, &entry.SellerID, &entry.Price,
			&entry.URL, &entry.ReceivedAt); err != nil {
			return nil, err
		}
		snapshot.Latest = append(snapshot.Latest, entry)
	}
	if err := latestRows.Err(); err != nil {
		return nil, err
	}

	lowestRows, err := a.reader().QueryContext(ctx,
		`SELECT product_id, seller_id, price, url, received_at
		 FROM lowest_prices ORDER BY product_id LIMIT $1`, debugRowLimit)
	if err != nil {
		return nil, a.readErr(err)
	}
	defer lowestRows.Close()

	for lowestRows.Next() {
		var entry models.LowestPriceEntry
		if err := lowestRows.Scan(&entry.ProductID, &entry.SellerID, &entry.Price,
			&entry.URL, &entry.ReceivedAt); err != nil {
			return nil, err
		}
		snapshot.Lowest = append(snapshot.Lowest, entry)
	}
	if err := lowestRows.Err(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// readErr marks replica failures as unavailable so callers can tell a broken
// backend apart from missing data.
func (a *Adapter) readErr(err error) error {
	if a.replica != nil {
		return fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
	}
	return err
}

// Close closes the storage connections
func (a *Adapter) Close() error {
	if a.replica != nil {
		a.replica.Close()
	}
	return a.primary.Close()
}

type tx struct {
	sqlTx   *sql.Tx
	product string
}

func (t *tx) AppendHistory(ctx context.Context, obs models.Observation) (models.HistoryEntry, error) {
	query := `INSERT INTO price_history (product_id, seller_id, price, url, effective_from, effective_to, received_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`

	var url sql.NullString
	if obs.URL != "" {
		url = sql.NullString{String: obs.URL, Valid: true}
	}

	entry := models.HistoryEntry{Observation: obs}
	err := t.sqlTx.QueryRowContext(ctx, query, obs.ProductID, obs.SellerID, obs.Price,
		url, obs.EffectiveFrom, obs.EffectiveTo, obs.ReceivedAt).Scan(&entry.Seq)
	if err != nil {
		return models.HistoryEntry{}, err
	}

	return entry, nil
}

func (t *tx) UpsertLatest(ctx context.Context, entry models.LatestPriceEntry) (*models.LatestPriceEntry, error) {
	var prev models.LatestPriceEntry
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT product_id, seller_id, price, url, received_at
		 FROM latest_prices
		 WHERE product_id = $1 AND seller_id = $2
		 FOR UPDATE`, entry.ProductID, entry.SellerID).Scan(
		&prev.ProductID, &prev.SellerID, &prev.Price, &prev.URL, &prev.ReceivedAt)

	hadPrev := true
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		hadPrev = false
	}

	_, err = t.sqlTx.ExecContext(ctx,
		`INSERT INTO latest_prices (product_id, seller_id, price, url, received_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (product_id, seller_id)
		 DO UPDATE SET price = EXCLUDED.price, url = EXCLUDED.url, received_at = EXCLUDED.received_at`,
		entry.ProductID, entry.SellerID, entry.Price, entry.URL, entry.ReceivedAt)
	if err != nil {
		return nil, err
	}

	if !hadPrev {
		return nil, nil
	}
	return &prev, nil
}

func (t *tx) GetLowest(ctx context.Context) (*models.LowestPriceEntry, error) {
	var entry models.LowestPriceEntry
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT product_id, seller_id, price, url, received_at
		 FROM lowest_prices
		 WHERE product_id = $1`, t.product).Scan(
		&entry.ProductID, &entry.SellerID, &entry.Price, &entry.URL, &entry.ReceivedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

func (t *tx) PutLowest(ctx context.Context, entry models.LowestPriceEntry) error {
	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO lowest_prices (product_id, seller_id, price, url, received_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (product_id)
		 DO UPDATE SET seller_id = EXCLUDED.seller_id, price = EXCLUDED.price,
		               url = EXCLUDED.url, received_at = EXCLUDED.received_at`,
		entry.ProductID, entry.SellerID, entry.Price, entry.URL, entry.ReceivedAt)
	return err
}

func (t *tx) ScanLatest(ctx context.Context) ([]models.LatestPriceEntry, error) {
	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT product_id, seller_id, price, url, received_at
		 FROM latest_prices
		 WHERE product_id = $1
		 ORDER BY price, seller_id`, t.product)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LatestPriceEntry
	for rows.Next() {
		var entry models.LatestPriceEntry
		if err := rows.Scan(&entry.ProductID, &entry.SellerID, &entry.Price,
			&entry.URL, &entry.ReceivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (t *tx) Commit(ctx context.Context) error {
	return t.sqlTx.Commit()
}

func (t *tx) Rollback(ctx context.Context) error {
	if err := t.sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
