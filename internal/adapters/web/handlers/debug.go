package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/davidpet/product-price-service/internal/application/usecases"
)

// DebugHandler dumps the storage tables and cache contents. Registered only
// when the server's debug flag is set; not meant to be reachable in
// production.
type DebugHandler struct {
	query  *usecases.PriceQueryUseCase
	logger *slog.Logger
}

// NewDebugHandler creates a new debug handler
func NewDebugHandler(query *usecases.PriceQueryUseCase, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{
		query:  query,
		logger: logger,
	}
}

// Handle handles debug requests
func (h *DebugHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info, err := h.query.DebugInfo(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect debug info", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}
