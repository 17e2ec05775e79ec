package models

import "time"

// Observation represents one reported price for a (product, seller) pair.
// Identifiers are normalized (trimmed, lower-cased) before construction.
type Observation struct {
	ProductID     string     `json:"product_id"`
	SellerID      string     `json:"seller_id"`
	Price         float64    `json:"price"`
	URL           string     `json:"url,omitempty"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	ReceivedAt    time.Time  `json:"received_at"`
}

// Windowed reports whether the observation carries an effective-from/to range.
// Windowed observations are logged to history only; they never touch the
// latest or lowest tables until an external scheduler activates them.
func (o Observation) Windowed() bool {
	return o.EffectiveFrom != nil || o.EffectiveTo != nil
}

// HistoryEntry is an Observation plus the sequence id assigned at append time.
// History entries are append-only and never mutated or deleted.
type HistoryEntry struct {
	Seq int64 `json:"seq" db:"id"`
	Observation
}

// LatestPriceEntry is the most recent price reported by one seller for one
// product. Exactly one entry exists per (product, seller) key.
type LatestPriceEntry struct {
	ProductID  string    `json:"product_id" db:"product_id"`
	SellerID   string    `json:"seller_id" db:"seller_id"`
	Price      float64   `json:"price" db:"price"`
	URL        string    `json:"url,omitempty" db:"url"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}

// LowestPriceEntry is the cheapest current latest price for a product across
// all sellers. At most one entry exists per product.
type LowestPriceEntry struct {
	ProductID  string    `json:"product_id" db:"product_id"`
	SellerID   string    `json:"seller_id" db:"seller_id"`
	Price      float64   `json:"price" db:"price"`
	URL        string    `json:"url,omitempty" db:"url"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}

// PriceRecord is the API shape served to clients and stored in the read cache.
type PriceRecord struct {
	ProductID string  `json:"product_id"`
	SellerID  string  `json:"seller_id"`
	Price     float64 `json:"price"`
	URL       string  `json:"url,omitempty"`
}

// RecordFromLowest converts an index entry to the API shape.
func RecordFromLowest(e LowestPriceEntry) PriceRecord {
	return PriceRecord{
		ProductID: e.ProductID,
		SellerID:  e.SellerID,
		Price:     e.Price,
		URL:       e.URL,
	}
}

// RecordFromLatest converts a latest-price entry to the API shape.
func RecordFromLatest(e LatestPriceEntry) PriceRecord {
	return PriceRecord{
		ProductID: e.ProductID,
		SellerID:  e.SellerID,
		Price:     e.Price,
		URL:       e.URL,
	}
}

// DebugSnapshot is an implementation-defined dump of the three tables, for
// operational inspection only.
type DebugSnapshot struct {
	History []HistoryEntry     `json:"history"`
	Latest  []LatestPriceEntry `json:"latest"`
	Lowest  []LowestPriceEntry `json:"lowest"`
}
