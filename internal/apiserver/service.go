package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/aptos"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/config"
	"github.com/traderadar/backend/internal/entry"
	"github.com/traderadar/backend/internal/facade"
	"github.com/traderadar/backend/internal/merkle"
	"github.com/traderadar/backend/internal/oracle"
	"github.com/traderadar/backend/internal/store"
)

// Store is every read the HTTP layer performs against Postgres.
type Store interface {
	facade.Store
	Ping(ctx context.Context) error
	ListPools(ctx context.Context) ([]store.Pool, error)
	GetPool(ctx context.Context, address string) (store.Pool, error)
	ListSwaps(ctx context.Context, pool string, limit int) ([]store.Swap, error)
	AggregatedPoolMetrics(ctx context.Context) (store.AggregatedPoolMetrics, error)
	PoolWindowMetrics(ctx context.Context, pool string, hours int) (store.PoolWindowMetrics, error)
	PoolSwapHistory(ctx context.Context, pool string, limit, offset int) (store.Page[store.Swap], error)
	PoolVolumeTimeSeries(ctx context.Context, pool string, intervalMinutes, hours int) ([]store.VolumeBucket, error)
	PoolLiquidityChanges(ctx context.Context, pool string, hours int) ([]store.LiquiditySnapshot, error)
	MostActivePools(ctx context.Context, limit, hours int) ([]store.PoolActivity, error)
	TopTraders(ctx context.Context, limit, hours int) ([]store.TraderActivity, error)
	RecentLargeTrades(ctx context.Context, minVolume decimal.Decimal, limit int) ([]store.LargeTrade, error)
	LatestPriceTick(ctx context.Context, symbol string) (store.PriceTick, error)
	ListPriceTicks(ctx context.Context, symbol string, sinceUnix int64, limit int) ([]store.PriceTick, error)
}

type PriceOracle interface {
	Price(ctx context.Context, symbol string) (oracle.Quote, error)
	Prices(ctx context.Context, symbols []string) (map[string]oracle.Quote, error)
	PairPrices(ctx context.Context, pair string) ([2]float64, error)
}

type MerkleClient interface {
	Pairs(ctx context.Context) ([]merkle.Pair, error)
	Market(ctx context.Context, symbol string) (merkle.Pair, error)
	Positions(ctx context.Context, user string) ([]merkle.Position, error)
	Orderbook(ctx context.Context, symbol string) (merkle.Orderbook, error)
}

type ChainReader interface {
	PoolAddresses() []string
	LedgerInfo(ctx context.Context) (aptos.LedgerInfo, error)
	Details(ctx context.Context, address string) (aptos.Details, error)
	Performance(ctx context.Context, address string, volume24h, price0, price1 float64) (aptos.Performance, error)
}

// Deps are the collaborators of a Service. Entry may be nil, in which case
// the payload routes answer 503.
type Deps struct {
	Store  Store
	Oracle PriceOracle
	Merkle MerkleClient
	Chain  ChainReader
	Entry  *entry.Builder
	Close  func() error
	Now    func() time.Time
}

type Service struct {
	cfg              config.APIServerConfig
	logger           *slog.Logger
	store            Store
	actions          *facade.Actions
	oracle           PriceOracle
	merkle           MerkleClient
	chain            ChainReader
	entry            *entry.Builder
	closeStore       func() error
	now              func() time.Time
	allowAllOrigins  bool
	allowedOriginSet map[string]struct{}
}

func New(ctx context.Context, cfg config.APIServerConfig, logger *slog.Logger) (*Service, error) {
	db, err := store.NewStore(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := db.EnsureSchema(ctx, cfg.AutoMigrate); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	prices, err := oracle.New(cfg.Oracle, nil, nil, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init oracle: %w", err)
	}

	var builder *entry.Builder
	if strings.TrimSpace(cfg.ModuleAddress) != "" {
		builder, err = entry.NewBuilder(cfg.ModuleAddress)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init entry builder: %w", err)
		}
	} else {
		logger.Warn("MODULE_ADDRESS is not set, entry payload routes are disabled")
	}

	chain := aptos.NewHyperionReader(aptos.New(cfg.Aptos), cfg.Aptos.HyperionAddress, cfg.Aptos.KnownPools)

	return NewWithDeps(cfg, logger, Deps{
		Store:  db,
		Oracle: prices,
		Merkle: merkle.New(cfg.Merkle),
		Chain:  chain,
		Entry:  builder,
		Close:  db.Close,
	}), nil
}

func NewWithDeps(cfg config.APIServerConfig, logger *slog.Logger, deps Deps) *Service {
	allowAllOrigins := false
	allowedOriginSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAllOrigins = true
			continue
		}
		allowedOriginSet[trimmed] = struct{}{}
	}
	if len(allowedOriginSet) == 0 && !allowAllOrigins {
		allowAllOrigins = true
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	closeStore := deps.Close
	if closeStore == nil {
		closeStore = func() error { return nil }
	}

	return &Service{
		cfg:              cfg,
		logger:           logger,
		store:            deps.Store,
		actions:          facade.New(deps.Store),
		oracle:           deps.Oracle,
		merkle:           deps.Merkle,
		chain:            deps.Chain,
		entry:            deps.Entry,
		closeStore:       closeStore,
		now:              now,
		allowAllOrigins:  allowAllOrigins,
		allowedOriginSet: allowedOriginSet,
	}
}

// Handler returns the full route table wrapped in middleware.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/hyperion/pools", s.handlePools)
	mux.HandleFunc("/api/hyperion/swaps", s.handleSwaps)
	mux.HandleFunc("/api/hyperion/volume", s.handleVolume)
	mux.HandleFunc("/api/hyperion/metrics", s.handleMetrics)
	mux.HandleFunc("/api/hyperion/alerts", s.handleAlerts)
	mux.HandleFunc("/api/hyperion/blockchain", s.handleBlockchain)

	mux.HandleFunc("/api/merkle/pairs", s.handleMerklePairs)
	mux.HandleFunc("/api/merkle/positions", s.handleMerklePositions)
	mux.HandleFunc("/api/merkle/orderbook", s.handleMerkleOrderbook)

	mux.HandleFunc("/api/analytics/market", s.handleMarketAnalysis)
	mux.HandleFunc("/api/analytics/pool-history", s.handlePoolHistory)
	mux.HandleFunc("/api/analytics/traders", s.handleTraders)

	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/api/prices/history", s.handlePriceHistory)
	mux.HandleFunc("/api/prices/indicators", s.handlePriceIndicators)

	mux.HandleFunc("/api/actions/trades", s.handleActionTrades)
	mux.HandleFunc("/api/actions/trade", s.handleActionTrade)
	mux.HandleFunc("/api/actions/trader-stats", s.handleActionTraderStats)
	mux.HandleFunc("/api/actions/messages", s.handleActionMessages)
	mux.HandleFunc("/api/actions/message", s.handleActionMessage)
	mux.HandleFunc("/api/actions/user-stats", s.handleActionUserStats)
	mux.HandleFunc("/api/actions/last-version", s.handleActionLastVersion)
	mux.HandleFunc("/api/entry/", s.handleEntry)

	mux.HandleFunc("/ws", s.handleWebsocket)

	return s.withRequestID(s.withMetrics(s.withCORS(mux)))
}

func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if err := s.closeStore(); err != nil {
			s.logger.Error("failed to close store", "err", err)
		}
	}()

	server := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	s.logger.Info("api-server started",
		"listen_addr", s.cfg.ListenAddr,
		"db_driver", "postgres",
		"allowed_origins", strings.Join(s.cfg.AllowedOrigins, ","),
		"entry_enabled", s.entry != nil,
	)

	select {
	case <-ctx.Done():
		s.logger.Info("api-server stopping")
		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown api-server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	}
}

type healthResponse struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "err", err)
		s.respondJSON(w, http.StatusServiceUnavailable, healthResponse{OK: false, Database: "unreachable"})
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true, Database: "ok"})
}

func (s *Service) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			allowed := s.allowAllOrigins
			if !allowed {
				_, allowed = s.allowedOriginSet[origin]
			}

			if allowed {
				if s.allowAllOrigins {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "300")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) isOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	if s.allowAllOrigins {
		return true
	}
	_, ok := s.allowedOriginSet[origin]
	return ok
}

func queryParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func parseOptionalInt(r *http.Request, key string, fallback int) (int, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseOptionalFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseOptionalIntPtr(r *http.Request, key string) (*int, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &value, nil
}

// statusFor maps an error kind to an HTTP status. Upstream failures become
// 502 only when the caller asks for it.
func statusFor(err error, upstreamAsBadGateway bool) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUpstream:
		if upstreamAsBadGateway {
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// respondFailure writes {error, message} for a failed operation. message is
// the route's public summary; the underlying error goes in "message".
func (s *Service) respondFailure(w http.ResponseWriter, err error, message string) {
	s.writeFailure(w, err, message, false)
}

func (s *Service) respondUpstreamFailure(w http.ResponseWriter, err error, message string) {
	s.writeFailure(w, err, message, true)
}

func (s *Service) writeFailure(w http.ResponseWriter, err error, message string, upstreamAsBadGateway bool) {
	code := statusFor(err, upstreamAsBadGateway)
	if code >= http.StatusInternalServerError {
		s.logger.Error(strings.ToLower(message), "err", err)
	}
	s.respondJSON(w, code, errorResponse{Error: message, Message: err.Error()})
}

func (s *Service) respondMethodNotAllowed(w http.ResponseWriter) {
	s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Service) respondError(w http.ResponseWriter, code int, message string) {
	s.respondJSON(w, code, errorResponse{Error: message})
}

func (s *Service) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to write JSON response", "err", err)
	}
}
