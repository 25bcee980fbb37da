// Package tracker runs the background price and pool-stat worker: it stores
// oracle price ticks, snapshots pool stats on interval boundaries, prunes old
// ticks and publishes alerts.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/config"
	"github.com/traderadar/backend/internal/oracle"
	"github.com/traderadar/backend/internal/store"
)

const (
	sourceOracle = "coingecko"
	sourcePyth   = "pyth"

	alertMemorySize = 4096
	alertMemoryTTL  = time.Hour
)

type Store interface {
	InsertPriceTick(ctx context.Context, input store.PriceTickInput) (bool, error)
	PruneTicks(ctx context.Context, olderThanUnix int64) (int64, error)
	SnapshotPoolStats(ctx context.Context, snapshotTime int64) (int64, error)
	ListPools(ctx context.Context) ([]store.Pool, error)
}

type PriceOracle interface {
	Prices(ctx context.Context, symbols []string) (map[string]oracle.Quote, error)
}

type Deps struct {
	Store     Store
	Oracle    PriceOracle
	Publisher Publisher
	Close     func() error
	Now       func() time.Time
}

type Service struct {
	cfg        config.TrackerConfig
	logger     *slog.Logger
	store      Store
	oracle     PriceOracle
	publisher  Publisher
	closeStore func() error
	now        func() time.Time

	targetsMu sync.Mutex
	targets   []analytics.PriceTarget
	fired     map[int]bool

	// recent pool alert ids, so a condition that persists across snapshots
	// is published once per alertMemoryTTL
	published *expirable.LRU[string, struct{}]
}

func New(ctx context.Context, cfg config.TrackerConfig, logger *slog.Logger) (*Service, error) {
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

	var publisher Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = NewKafkaPublisher(cfg.Kafka)
	} else {
		logger.Warn("KAFKA_BROKERS is not set, alerts are logged only")
		publisher = NewLogPublisher(logger)
	}

	return NewWithDeps(cfg, logger, Deps{
		Store:     db,
		Oracle:    prices,
		Publisher: publisher,
		Close:     db.Close,
	}), nil
}

func NewWithDeps(cfg config.TrackerConfig, logger *slog.Logger, deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	closeStore := deps.Close
	if closeStore == nil {
		closeStore = func() error { return nil }
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}

	targets := make([]analytics.PriceTarget, 0, len(cfg.PriceTargets))
	for _, target := range cfg.PriceTargets {
		targets = append(targets, analytics.PriceTarget{
			Symbol: strings.ToUpper(strings.TrimSpace(target.Symbol)),
			Above:  target.Above,
			Price:  target.Price,
		})
	}

	return &Service{
		cfg:        cfg,
		logger:     logger,
		store:      deps.Store,
		oracle:     deps.Oracle,
		publisher:  publisher,
		closeStore: closeStore,
		now:        now,
		targets:    targets,
		fired:      make(map[int]bool, len(targets)),
		published:  expirable.NewLRU[string, struct{}](alertMemorySize, nil, alertMemoryTTL),
	}
}

func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("failed to close alert publisher", "err", err)
		}
		if err := s.closeStore(); err != nil {
			s.logger.Error("failed to close store", "err", err)
		}
	}()

	pollInterval := s.cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	s.logger.Info("price-tracker started",
		"symbols", strings.Join(s.cfg.Symbols, ","),
		"poll_interval", pollInterval.String(),
		"snapshot_interval", normalizeSnapshotInterval(s.cfg.SnapshotInterval).String(),
		"tick_retention", s.cfg.TickRetention.String(),
		"price_targets", len(s.targets),
		"pyth_enabled", s.cfg.Pyth.Enabled,
	)

	if err := s.pollOnce(ctx); err != nil {
		s.logger.Error("initial price poll failed", "err", err)
	}
	if s.cfg.Pyth.Enabled {
		go s.runPythPriceStream(ctx)
	}
	if addr := strings.TrimSpace(s.cfg.MetricsAddr); addr != "" {
		go s.serveMetrics(ctx, addr)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	snapshotTimer := time.NewTimer(nextSnapshotDelay(s.now(), s.cfg.SnapshotInterval))
	defer snapshotTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("price-tracker stopped")
			return nil
		case <-ticker.C:
			if err := s.pollOnce(ctx); err != nil {
				s.logger.Error("price poll failed", "err", err)
			}
		case now := <-snapshotTimer.C:
			if err := s.snapshotOnce(ctx, now); err != nil {
				s.logger.Error("pool snapshot failed", "err", err)
			}
			snapshotTimer.Reset(nextSnapshotDelay(s.now(), s.cfg.SnapshotInterval))
		}
	}
}

// pollOnce stores one oracle tick per tracked symbol and checks the price
// targets against it. Unavailable and fallback quotes are skipped; cached
// quotes keep their fetch time and so collapse into the existing tick.
func (s *Service) pollOnce(ctx context.Context) error {
	if len(s.cfg.Symbols) == 0 {
		return nil
	}
	quotes, err := s.oracle.Prices(ctx, s.cfg.Symbols)
	if err != nil {
		s.logger.Warn("oracle prices incomplete", "err", err)
	}

	now := s.now()
	stored := 0
	latest := make(map[string]float64, len(quotes))
	for symbol, quote := range quotes {
		if quote.Source == oracle.SourceUnavailable || quote.Source == oracle.SourceFallback || quote.Price <= 0 {
			continue
		}
		latest[symbol] = quote.Price

		publishTime := quote.FetchedAt.Unix()
		if quote.FetchedAt.IsZero() {
			publishTime = now.Unix()
		}
		inserted, err := s.store.InsertPriceTick(ctx, store.PriceTickInput{
			Symbol:      symbol,
			Source:      sourceOracle,
			Price:       decimal.NewFromFloat(quote.Price),
			PublishTime: publishTime,
			ReceivedAt:  now.Unix(),
		})
		if err != nil {
			ticksTotal.WithLabelValues(sourceOracle, "error").Inc()
			s.logger.Error("store price tick failed", "symbol", symbol, "err", err)
			continue
		}
		if inserted {
			stored++
			ticksTotal.WithLabelValues(sourceOracle, "stored").Inc()
		} else {
			ticksTotal.WithLabelValues(sourceOracle, "duplicate").Inc()
		}
	}
	s.logger.Debug("price poll complete", "quotes", len(quotes), "stored", stored)

	if alerts := s.checkTargets(latest, now); len(alerts) > 0 {
		return s.publish(ctx, alerts)
	}
	return nil
}

// checkTargets returns an alert for every target hit for the first time.
// A fired target stays fired for the life of the process.
func (s *Service) checkTargets(prices map[string]float64, now time.Time) []analytics.Alert {
	s.targetsMu.Lock()
	defer s.targetsMu.Unlock()

	alerts := make([]analytics.Alert, 0)
	for i, target := range s.targets {
		if s.fired[i] {
			continue
		}
		price, ok := prices[target.Symbol]
		if !ok || !target.Hit(price) {
			continue
		}
		s.fired[i] = true
		alerts = append(alerts, analytics.PriceTargetAlert(target, price, now))
	}
	return alerts
}

// snapshotOnce records pool stats as observed at the interval boundary that
// just passed, prunes expired ticks, then evaluates pool alerts.
func (s *Service) snapshotOnce(ctx context.Context, now time.Time) error {
	snapshotTime := snapshotBoundary(now, s.cfg.SnapshotInterval)
	if snapshotTime <= 0 {
		return nil
	}
	rows, err := s.store.SnapshotPoolStats(ctx, snapshotTime)
	if err != nil {
		return fmt.Errorf("snapshot pool stats at %d: %w", snapshotTime, err)
	}
	snapshotRowsTotal.Add(float64(rows))
	s.logger.Info("pool stats snapshot stored", "snapshot_time", snapshotTime, "rows", rows)

	if s.cfg.TickRetention > 0 {
		cutoff := now.Add(-s.cfg.TickRetention).Unix()
		pruned, err := s.store.PruneTicks(ctx, cutoff)
		if err != nil {
			s.logger.Error("prune price ticks failed", "err", err)
		} else if pruned > 0 {
			s.logger.Info("pruned price ticks", "count", pruned, "older_than", cutoff)
		}
	}

	return s.evaluatePoolAlerts(ctx, now)
}

func (s *Service) evaluatePoolAlerts(ctx context.Context, now time.Time) error {
	records, err := s.store.ListPools(ctx)
	if err != nil {
		return fmt.Errorf("list pools: %w", err)
	}
	alerts := analytics.BuildAlerts(analytics.PoolsFromRecords(records), analytics.CategoryAll, now)
	analytics.SortAlerts(alerts)

	fresh := make([]analytics.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if s.published.Contains(alert.ID) {
			continue
		}
		fresh = append(fresh, alert)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := s.publish(ctx, fresh); err != nil {
		return err
	}
	for _, alert := range fresh {
		s.published.Add(alert.ID, struct{}{})
	}
	return nil
}

func (s *Service) publish(ctx context.Context, alerts []analytics.Alert) error {
	if err := s.publisher.Publish(ctx, alerts); err != nil {
		return fmt.Errorf("publish %d alerts: %w", len(alerts), err)
	}
	for _, alert := range alerts {
		alertsTotal.WithLabelValues(string(alert.Type), string(analytics.SeverityOf(alert))).Inc()
	}
	return nil
}

func nextSnapshotDelay(now time.Time, interval time.Duration) time.Duration {
	stepMinutes := int64(normalizeSnapshotInterval(interval) / time.Minute)
	currentMinute := now.Unix() / 60
	nextMinute := ((currentMinute / stepMinutes) + 1) * stepMinutes
	delay := time.Unix(nextMinute*60, 0).Sub(now)
	if delay <= 0 {
		return time.Second
	}
	return delay
}

// snapshotBoundary is the most recent interval boundary at or before now.
// The snapshot timer fires on boundaries, so this is the observation time.
func snapshotBoundary(now time.Time, interval time.Duration) int64 {
	stepMinutes := int64(normalizeSnapshotInterval(interval) / time.Minute)
	currentMinute := now.Unix() / 60
	return (currentMinute / stepMinutes) * stepMinutes * 60
}

func normalizeSnapshotInterval(interval time.Duration) time.Duration {
	wholeMinutes := int64(interval / time.Minute)
	if wholeMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(wholeMinutes) * time.Minute
}
