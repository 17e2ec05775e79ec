package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/davidpet/product-price-service/internal/application/usecases"
	"github.com/davidpet/product-price-service/internal/domain/models"
)

// receiveRequest is the ingestion payload. Price is a pointer so a missing
// field can be told apart from a free item.
type receiveRequest struct {
	ProductID     string     `json:"product_id"`
	SellerID      string     `json:"seller_id"`
	Price         *float64   `json:"price"`
	URL           string     `json:"url"`
	EffectiveFrom *time.Time `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
}

// ReceiveHandler handles price observation ingestion
type ReceiveHandler struct {
	record *usecases.RecordObservationUseCase
	logger *slog.Logger
}

// NewReceiveHandler creates a new receive handler
func NewReceiveHandler(record *usecases.RecordObservationUseCase, logger *slog.Logger) *ReceiveHandler {
	return &ReceiveHandler{
		record: record,
		logger: logger,
	}
}

// Handle accepts one price observation via PUT. Validation and identifier
// normalization happen here; the core assumes validated input.
func (h *ReceiveHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.Header().Set("Allow", "PUT")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req receiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.ProductID = strings.ToLower(strings.TrimSpace(req.ProductID))
	req.SellerID = strings.ToLower(strings.TrimSpace(req.SellerID))

	if req.ProductID == "" {
		writeMessage(w, http.StatusBadRequest, "missing product_id")
		return
	}
	if req.SellerID == "" {
		writeMessage(w, http.StatusBadRequest, "missing seller_id")
		return
	}
	if req.Price == nil {
		writeMessage(w, http.StatusBadRequest, "missing price")
		return
	}
	if *req.Price < 0 {
		writeMessage(w, http.StatusBadRequest, "price cannot be negative")
		return
	}

	obs := models.Observation{
		ProductID:     req.ProductID,
		SellerID:      req.SellerID,
		Price:         *req.Price,
		URL:           req.URL,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
	}

	if err := h.record.Record(r.Context(), obs); err != nil {
		h.logger.Error("Failed to record observation",
			"product_id", obs.ProductID, "seller_id", obs.SellerID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// The caller never learns the history sequence id.
	w.WriteHeader(http.StatusNoContent)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
