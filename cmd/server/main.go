package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/bookhive/pricing/internal/logger"
	"github.com/bookhive/pricing/pricing"
	"github.com/bookhive/pricing/quotes"

	_ "github.com/lib/pq"
)

type Server struct {
	catalog    pricing.Catalog
	evaluator  *pricing.Evaluator
	quotes     quotes.Store
	feePercent decimal.Decimal
	router     *chi.Mux
}

// NewServer wires the catalog, the evaluator with its snapshot cache,
// and the quote request store behind a chi router. feePercent is the
// platform fee as a percentage of (base price + adjustment).
func NewServer(catalog pricing.Catalog, quoteStore quotes.Store, feePercent decimal.Decimal) *Server {
	s := &Server{
		catalog:    catalog,
		evaluator:  pricing.NewEvaluator(catalog),
		quotes:     quoteStore,
		feePercent: feePercent,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	// Booking flow
	r.Post("/api/v1/price", s.handlePrice)
	r.Post("/api/v1/evaluate", s.handleEvaluate)

	// Admin catalog surface
	r.Route("/api/v1/services", func(r chi.Router) {
		r.Get("/", s.handleListServices)
		r.Post("/", s.handleCreateService)

		r.Route("/{serviceId}", func(r chi.Router) {
			r.Get("/", s.handleGetService)
			r.Put("/", s.handleUpdateService)
			r.Delete("/", s.handleDeleteService)

			r.Get("/groups", s.handleListGroups)
			r.Post("/groups", s.handleCreateGroup)
		})
	})

	r.Route("/api/v1/groups/{groupId}", func(r chi.Router) {
		r.Get("/", s.handleGetGroup)
		r.Put("/", s.handleUpdateGroup)
		r.Delete("/", s.handleDeleteGroup)

		r.Get("/rules", s.handleListRules)
		r.Post("/rules", s.handleCreateRule)
	})

	r.Route("/api/v1/rules/{ruleId}", func(r chi.Router) {
		r.Get("/", s.handleGetRule)
		r.Put("/", s.handleUpdateRule)
		r.Delete("/", s.handleDeleteRule)
	})

	r.Route("/api/v1/quote-requests", func(r chi.Router) {
		r.Get("/", s.handleListQuoteRequests)
		r.Post("/", s.handleCreateQuoteRequest)

		r.Route("/{requestId}", func(r chi.Router) {
			r.Get("/", s.handleGetQuoteRequest)
			r.Delete("/", s.handleDeleteQuoteRequest)
			r.Post("/status", s.handleQuoteRequestStatus)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.catalog.ListServices(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger.Setup("pricing-engine")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Fatal("failed to open database", "error", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	feePercent := decimal.NewFromInt(10)
	if raw := os.Getenv("PLATFORM_FEE_PERCENT"); raw != "" {
		feePercent, err = decimal.NewFromString(raw)
		if err != nil {
			logger.Fatal("invalid PLATFORM_FEE_PERCENT", "value", raw, "error", err)
		}
	}

	server := NewServer(pricing.NewPostgresCatalog(db), quotes.NewPostgresStore(db), feePercent)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port, "platformFeePercent", feePercent.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}

	logger.Info("server stopped")
}
