package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/davidpet/product-price-service/internal/application/usecases"
)

// PricesHandler handles price lookup requests
type PricesHandler struct {
	query  *usecases.PriceQueryUseCase
	logger *slog.Logger
}

// NewPricesHandler creates a new prices handler
func NewPricesHandler(query *usecases.PriceQueryUseCase, logger *slog.Logger) *PricesHandler {
	return &PricesHandler{
		query:  query,
		logger: logger,
	}
}

// HandleFindPrice serves GET /find-price/{product}: the cheapest current
// price across all sellers.
func (h *PricesHandler) HandleFindPrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	productID := strings.ToLower(strings.TrimPrefix(r.URL.Path, "/find-price/"))
	if productID == "" || strings.Contains(productID, "/") {
		http.NotFound(w, r)
		return
	}

	record, err := h.query.LowestPrice(r.Context(), productID)
	if err != nil {
		h.logger.Error("Failed to look up lowest price", "product_id", productID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(record)
}

// HandleLatest serves GET /latest/{product}/{seller}: the most recent price
// one seller reported for a product.
func (h *PricesHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/latest/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	productID := strings.ToLower(parts[0])
	sellerID := strings.ToLower(parts[1])

	record, err := h.query.LatestForSeller(r.Context(), productID, sellerID)
	if err != nil {
		h.logger.Error("Failed to look up latest price",
			"product_id", productID, "seller_id", sellerID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		writeMessage(w, http.StatusNotFound, "Price not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(record)
}
