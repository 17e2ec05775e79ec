package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidpet/product-price-service/internal/adapters/web/handlers"
	"github.com/davidpet/product-price-service/internal/application/usecases"
)

// Server represents the HTTP server
type Server struct {
	port   int
	debug  bool
	record *usecases.RecordObservationUseCase
	query  *usecases.PriceQueryUseCase
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(port int, debug bool, record *usecases.RecordObservationUseCase, query *usecases.PriceQueryUseCase, logger *slog.Logger) *Server {
	return &Server{
		port:   port,
		debug:  debug,
		record: record,
		query:  query,
		logger: logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.withRequestID(s.routes()),
	}

	s.logger.Info("Starting HTTP server", "port", s.port, "debug", s.debug)
	return s.server.ListenAndServe()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	receiveHandler := handlers.NewReceiveHandler(s.record, s.logger)
	pricesHandler := handlers.NewPricesHandler(s.query, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)

	mux.HandleFunc("/receive", receiveHandler.Handle)
	mux.HandleFunc("/find-price/", pricesHandler.HandleFindPrice)
	mux.HandleFunc("/latest/", pricesHandler.HandleLatest)
	mux.HandleFunc("/health", healthHandler.Handle)
	mux.Handle("/metrics", promhttp.Handler())

	// The table dump is opt-in; the route does not even exist otherwise.
	if s.debug {
		debugHandler := handlers.NewDebugHandler(s.query, s.logger)
		mux.HandleFunc("/debug", debugHandler.Handle)
	}

	return mux
}

// withRequestID tags every request with an id so concurrent request logs can
// be told apart.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		s.logger.Debug("Request received",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
