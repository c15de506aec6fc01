// Package main provides the reconciliation service: an HTTP API over the
// incremental engine plus the batch rebuild/verify path, backed by
// PostgreSQL or in-memory storage.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invest-ledger/internal/domain"
	"invest-ledger/internal/ledger"
	"invest-ledger/internal/observability"
	"invest-ledger/internal/reconcile"
	"invest-ledger/internal/storage"
	"invest-ledger/internal/storage/memory"
	"invest-ledger/internal/storage/migrations"
	pgstore "invest-ledger/internal/storage/postgres"
	"invest-ledger/internal/validate"
)

// Server holds the engine components and request-serving state.
type Server struct {
	processor *ledger.Processor
	rebuilder *reconcile.Rebuilder
	stores    *allStores
	log       zerolog.Logger

	mu           sync.Mutex
	started      time.Time
	submitted    int
	rebuilds     int
	lastRebuild  time.Time
	verifyRuns   int
	lastVerified time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	transactions storage.TransactionStore
	holdings     storage.HoldingStore
	ledger       storage.LedgerStore
	platforms    storage.PlatformStore
	securities   storage.SecurityStore
}

func main() {
	// Load .env if present; system env vars win.
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	addr := flag.String("addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if !*useMemory && *postgresDSN == "" {
		log.Fatal().Msg("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stores")
	}
	defer cleanup()

	processor := ledger.NewProcessor(ledger.Options{
		Holdings:  stores.holdings,
		Platforms: stores.platforms,
		Ledger:    stores.ledger,
		Logger:    log,
	})
	rebuilder := reconcile.NewRebuilder(reconcile.RebuilderOptions{
		Transactions: stores.transactions,
		Holdings:     stores.holdings,
		Ledger:       stores.ledger,
		Locks:        processor.Locks(),
		Logger:       log,
	})

	server := &Server{
		processor: processor,
		rebuilder: rebuilder,
		stores:    stores,
		log:       log.With().Str("component", "server").Logger(),
		started:   time.Now(),
	}

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.routes(),
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
		cancel()

		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-done:
		}
	}()

	log.Info().Str("addr", *addr).Bool("memory", *useMemory).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server error")
	}
	close(done)
	log.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// createStores creates all required stores and applies migrations when
// running against PostgreSQL.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		transactions := memory.NewTransactionStore()
		holdings := memory.NewHoldingStore()
		return &allStores{
			transactions: transactions,
			holdings:     holdings,
			ledger:       memory.NewLedgerStore(transactions, holdings),
			platforms:    memory.NewPlatformStore(),
			securities:   memory.NewSecurityStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	return &allStores{
		transactions: pgstore.NewTransactionStore(pool),
		holdings:     pgstore.NewHoldingStore(pool),
		ledger:       pgstore.NewLedgerStore(pool),
		platforms:    pgstore.NewPlatformStore(pool),
		securities:   pgstore.NewSecurityStore(pool),
	}, pool.Close, nil
}

// routes wires up the HTTP API.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/transactions", s.handleSubmit)
	mux.HandleFunc("GET /api/accounts/{account}/holdings", s.handleHoldings)
	mux.HandleFunc("GET /api/accounts/{account}/summary", s.handleSummary)
	mux.HandleFunc("POST /api/accounts/{account}/rebuild", s.handleRebuild)
	mux.HandleFunc("GET /api/accounts/{account}/verify", s.handleVerify)
	mux.HandleFunc("PUT /api/holdings/{account}/{platform}/{security}/price", s.handlePriceUpdate)

	mux.HandleFunc("POST /api/platforms", s.handleCreatePlatform)
	mux.HandleFunc("GET /api/platforms", s.handleListPlatforms)
	mux.HandleFunc("POST /api/securities", s.handleCreateSecurity)
	mux.HandleFunc("GET /api/securities", s.handleListSecurities)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// submitRequest is the JSON body for POST /api/transactions.
type submitRequest struct {
	AccountID    string           `json:"account_id"`
	PlatformID   string           `json:"platform_id"`
	SecurityID   string           `json:"security_id"`
	Type         string           `json:"type"`
	TradeDate    string           `json:"trade_date"` // YYYY-MM-DD
	Quantity     decimal.Decimal  `json:"quantity"`
	PricePerUnit decimal.Decimal  `json:"price_per_unit"`
	Currency     string           `json:"currency"`
	FXRate       decimal.Decimal  `json:"fx_rate"`
	TradingFee   *decimal.Decimal `json:"trading_fee,omitempty"`
	StampDuty    *decimal.Decimal `json:"stamp_duty,omitempty"`
	FXFee        *decimal.Decimal `json:"fx_fee,omitempty"`
	Notes        string           `json:"notes"`
}

// submitResponse is the JSON result of an applied transaction.
type submitResponse struct {
	TransactionID int64           `json:"transaction_id"`
	Holding       *holdingJSON    `json:"holding,omitempty"`
	Closed        bool            `json:"closed"`
	RealizedGain  decimal.Decimal `json:"realized_gain"`
}

type holdingJSON struct {
	AccountID         string              `json:"account_id"`
	PlatformID        string              `json:"platform_id"`
	SecurityID        string              `json:"security_id"`
	Quantity          decimal.Decimal     `json:"quantity"`
	AverageCost       decimal.Decimal     `json:"average_cost"`
	TotalCost         decimal.Decimal     `json:"total_cost"`
	Currency          string              `json:"currency"`
	CurrentPrice      decimal.NullDecimal `json:"current_price"`
	CurrentValue      decimal.NullDecimal `json:"current_value"`
	UnrealizedGain    decimal.NullDecimal `json:"unrealized_gain"`
	UnrealizedGainPct decimal.NullDecimal `json:"unrealized_gain_pct"`
	LastUpdated       int64               `json:"last_updated"`
}

func toHoldingJSON(h *domain.Holding) *holdingJSON {
	if h == nil {
		return nil
	}
	return &holdingJSON{
		AccountID:         h.AccountID,
		PlatformID:        h.PlatformID,
		SecurityID:        h.SecurityID,
		Quantity:          h.Quantity,
		AverageCost:       h.AverageCost,
		TotalCost:         h.TotalCost,
		Currency:          h.Currency,
		CurrentPrice:      h.CurrentPrice,
		CurrentValue:      h.CurrentValue,
		UnrealizedGain:    h.UnrealizedGain,
		UnrealizedGainPct: h.UnrealizedGainPct,
		LastUpdated:       h.LastUpdated,
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	tradeDate, err := time.Parse("2006-01-02", req.TradeDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "trade_date must be YYYY-MM-DD")
		return
	}

	result, err := s.processor.Submit(r.Context(), ledger.SubmitRequest{
		AccountID:    req.AccountID,
		PlatformID:   req.PlatformID,
		SecurityID:   req.SecurityID,
		Type:         domain.TransactionType(req.Type),
		TradeDate:    tradeDate,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		Currency:     req.Currency,
		FXRate:       req.FXRate,
		TradingFee:   req.TradingFee,
		StampDuty:    req.StampDuty,
		FXFee:        req.FXFee,
		Notes:        req.Notes,
	})
	if err != nil {
		s.writeSubmitError(w, err)
		return
	}

	s.mu.Lock()
	s.submitted++
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, submitResponse{
		TransactionID: result.Transaction.ID,
		Holding:       toHoldingJSON(result.Holding),
		Closed:        result.Closed,
		RealizedGain:  result.RealizedGain,
	})
}

// rejectionResponse carries the machine-readable rejection reason.
type rejectionResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (s *Server) writeSubmitError(w http.ResponseWriter, err error) {
	var rejection *validate.RejectionError
	switch {
	case errors.As(err, &rejection):
		writeJSON(w, http.StatusUnprocessableEntity, rejectionResponse{
			Error:  rejection.Error(),
			Reason: string(rejection.Reason),
		})
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInconsistentHolding):
		s.log.Error().Err(err).Msg("arithmetic inconsistency")
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.log.Error().Err(err).Msg("submit failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.stores.holdings.GetByAccount(r.Context(), r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]*holdingJSON, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, toHoldingJSON(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.processor.Summarize(r.Context(), r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account")

	rebuilt, err := s.rebuilder.Rebuild(r.Context(), accountID)
	if err != nil {
		s.log.Error().Err(err).Str("account", accountID).Msg("rebuild failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.rebuilds++
	s.lastRebuild = time.Now()
	s.mu.Unlock()

	out := make([]*holdingJSON, 0, len(rebuilt))
	for _, h := range rebuilt {
		out = append(out, toHoldingJSON(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account")

	report, err := s.rebuilder.Verify(r.Context(), accountID)
	if err != nil {
		s.log.Error().Err(err).Str("account", accountID).Msg("verify failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.verifyRuns++
	s.lastVerified = time.Now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, report)
}

// priceRequest is the JSON body for a market price update.
type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (s *Server) handlePriceUpdate(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	key := domain.HoldingKey{
		AccountID:  r.PathValue("account"),
		PlatformID: r.PathValue("platform"),
		SecurityID: r.PathValue("security"),
	}
	err := s.stores.holdings.UpdateMarketPrice(r.Context(), key, req.Price)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "no holding for "+key.String())
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "price must be positive")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		observability.RecordPriceUpdate()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleCreatePlatform(w http.ResponseWriter, r *http.Request) {
	var p domain.Platform
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	err := s.stores.platforms.Insert(r.Context(), &p)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "platform already exists")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "platform id is required")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := s.stores.platforms.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, platforms)
}

func (s *Server) handleCreateSecurity(w http.ResponseWriter, r *http.Request) {
	var sec domain.Security
	if err := json.NewDecoder(r.Body).Decode(&sec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	err := s.stores.securities.Insert(r.Context(), &sec)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "security already exists")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "security id is required")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusCreated, sec)
	}
}

func (s *Server) handleListSecurities(w http.ResponseWriter, r *http.Request) {
	securities, err := s.stores.securities.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, securities)
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	Submitted    int       `json:"transactions_submitted"`
	Rebuilds     int       `json:"rebuilds"`
	LastRebuild  time.Time `json:"last_rebuild,omitempty"`
	VerifyRuns   int       `json:"verify_runs"`
	LastVerified time.Time `json:"last_verified,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).String(),
		Submitted:    s.submitted,
		Rebuilds:     s.rebuilds,
		LastRebuild:  s.lastRebuild,
		VerifyRuns:   s.verifyRuns,
		LastVerified: s.lastVerified,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
