package tracker

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/config"
	"github.com/traderadar/backend/internal/logging"
	"github.com/traderadar/backend/internal/oracle"
	"github.com/traderadar/backend/internal/store"
)

type fakeStore struct {
	mu           sync.Mutex
	ticks        []store.PriceTickInput
	seen         map[string]bool
	snapshotTime int64
	pruneCutoff  int64
	pools        []store.Pool
}

func (f *fakeStore) InsertPriceTick(_ context.Context, input store.PriceTickInput) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := input.Symbol + "|" + input.Source + "|" + strconv.FormatInt(input.PublishTime, 10)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.ticks = append(f.ticks, input)
	return true, nil
}

func (f *fakeStore) PruneTicks(_ context.Context, olderThanUnix int64) (int64, error) {
	f.pruneCutoff = olderThanUnix
	return 3, nil
}

func (f *fakeStore) SnapshotPoolStats(_ context.Context, snapshotTime int64) (int64, error) {
	f.snapshotTime = snapshotTime
	return int64(len(f.pools)), nil
}

func (f *fakeStore) ListPools(context.Context) ([]store.Pool, error) { return f.pools, nil }

type fakeOracle struct {
	quotes map[string]oracle.Quote
}

func (f *fakeOracle) Prices(_ context.Context, symbols []string) (map[string]oracle.Quote, error) {
	out := make(map[string]oracle.Quote, len(symbols))
	for _, symbol := range symbols {
		if quote, ok := f.quotes[symbol]; ok {
			out[symbol] = quote
			continue
		}
		out[symbol] = oracle.Quote{Symbol: symbol, Source: oracle.SourceUnavailable}
	}
	return out, nil
}

type recordingPublisher struct {
	batches [][]analytics.Alert
}

func (p *recordingPublisher) Publish(_ context.Context, alerts []analytics.Alert) error {
	p.batches = append(p.batches, alerts)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var fixedNow = time.Date(2026, 3, 1, 12, 7, 30, 0, time.UTC)

func newTestService(cfg config.TrackerConfig, db *fakeStore, quotes map[string]oracle.Quote, pub *recordingPublisher) *Service {
	return NewWithDeps(cfg, logging.Discard(), Deps{
		Store:     db,
		Oracle:    &fakeOracle{quotes: quotes},
		Publisher: pub,
		Now:       func() time.Time { return fixedNow },
	})
}

func TestPollStoresTicksAndFiresTargetsOnce(t *testing.T) {
	db := &fakeStore{}
	pub := &recordingPublisher{}
	fetched := fixedNow.Add(-10 * time.Second)
	quotes := map[string]oracle.Quote{
		"APT":  {Symbol: "APT", Price: 13, Source: oracle.SourceLive, FetchedAt: fetched},
		"USDC": {Symbol: "USDC", Price: 1, Source: oracle.SourceFallback},
	}
	cfg := config.TrackerConfig{
		Symbols:      []string{"APT", "BTC", "USDC"},
		PriceTargets: []config.PriceTarget{{Symbol: "apt", Above: true, Price: 12.5}, {Symbol: "APT", Above: false, Price: 5}},
	}
	svc := newTestService(cfg, db, quotes, pub)

	if err := svc.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error = %v", err)
	}
	if len(db.ticks) != 1 {
		t.Fatalf("ticks = %+v, want only APT", db.ticks)
	}
	tick := db.ticks[0]
	if tick.Symbol != "APT" || tick.Source != sourceOracle || !tick.Price.Equal(decimal.NewFromInt(13)) || tick.PublishTime != fetched.Unix() {
		t.Fatalf("tick = %+v", tick)
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) != 1 {
		t.Fatalf("batches = %+v", pub.batches)
	}
	alert := pub.batches[0][0]
	if alert.Type != analytics.AlertPriceTarget || alert.Symbol != "APT" || alert.Value != 13 {
		t.Fatalf("alert = %+v", alert)
	}

	if err := svc.pollOnce(context.Background()); err != nil {
		t.Fatalf("second pollOnce() error = %v", err)
	}
	if len(db.ticks) != 1 {
		t.Fatalf("cached quote stored twice: %+v", db.ticks)
	}
	if len(pub.batches) != 1 {
		t.Fatalf("target fired again: %+v", pub.batches)
	}
}

func TestSnapshotPrunesAndPublishesPoolAlertsOnce(t *testing.T) {
	db := &fakeStore{pools: []store.Pool{{
		PoolAddress:  "0xpool",
		Token0Symbol: "APT",
		Token1Symbol: "USDC",
		Liquidity:    decimal.NewFromInt(1000),
		TVLUSD:       decimal.NewNullDecimal(decimal.NewFromInt(20_000)),
		APR:          decimal.NewNullDecimal(decimal.NewFromInt(150)),
	}}}
	pub := &recordingPublisher{}
	cfg := config.TrackerConfig{SnapshotInterval: 5 * time.Minute, TickRetention: 24 * time.Hour}
	svc := newTestService(cfg, db, nil, pub)

	if err := svc.snapshotOnce(context.Background(), fixedNow); err != nil {
		t.Fatalf("snapshotOnce() error = %v", err)
	}
	if want := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC).Unix(); db.snapshotTime != want {
		t.Fatalf("snapshotTime = %d, want %d", db.snapshotTime, want)
	}
	if want := fixedNow.Add(-24 * time.Hour).Unix(); db.pruneCutoff != want {
		t.Fatalf("pruneCutoff = %d, want %d", db.pruneCutoff, want)
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) < 2 {
		t.Fatalf("batches = %+v", pub.batches)
	}

	if err := svc.snapshotOnce(context.Background(), fixedNow.Add(5*time.Minute)); err != nil {
		t.Fatalf("second snapshotOnce() error = %v", err)
	}
	if len(pub.batches) != 1 {
		t.Fatalf("unchanged alerts republished: %d batches", len(pub.batches))
	}
}

func TestSnapshotAlignment(t *testing.T) {
	if got := nextSnapshotDelay(fixedNow, 5*time.Minute); got != 150*time.Second {
		t.Fatalf("nextSnapshotDelay() = %s, want 2m30s", got)
	}
	if got := nextSnapshotDelay(fixedNow, 10*time.Second); got != 30*time.Second {
		t.Fatalf("sub-minute interval delay = %s, want 30s", got)
	}
	if got, want := snapshotBoundary(fixedNow, 15*time.Minute), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix(); got != want {
		t.Fatalf("snapshotBoundary() = %d, want %d", got, want)
	}
	// a snapshot taken when the timer fires is stamped with that boundary
	fired := fixedNow.Add(nextSnapshotDelay(fixedNow, 5*time.Minute) + 20*time.Millisecond)
	if got, want := snapshotBoundary(fired, 5*time.Minute), time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC).Unix(); got != want {
		t.Fatalf("snapshotBoundary(timer fire) = %d, want %d", got, want)
	}
}

func TestReadPythEvents(t *testing.T) {
	db := &fakeStore{}
	svc := newTestService(config.TrackerConfig{}, db, nil, &recordingPublisher{})
	feeds := feedSymbols(map[string]string{"apt": "0xAAAA", "BTC": "bbbb"})

	body := strings.Join([]string{
		`: keepalive`,
		`data: {"parsed":[{"id":"aaaa","price":{"price":"6350000000","conf":"1500000","expo":-8,"publish_time":1772366400}},`,
		`data: {"id":"cccc","price":{"price":"1","conf":"0","expo":0,"publish_time":1772366400}}]}`,
		``,
		`data: {"parsed":[{"id":"bbbb","price":{"price":"-5","conf":"0","expo":0,"publish_time":1772366401}}]}`,
		``,
		`data: not json`,
		``,
	}, "\n")

	if err := svc.readPythEvents(context.Background(), strings.NewReader(body), feeds); err == nil {
		t.Fatalf("readPythEvents() should report end of stream")
	}
	if len(db.ticks) != 1 {
		t.Fatalf("ticks = %+v", db.ticks)
	}
	tick := db.ticks[0]
	if tick.Symbol != "APT" || tick.Source != sourcePyth || tick.PublishTime != 1772366400 {
		t.Fatalf("tick = %+v", tick)
	}
	if !tick.Price.Equal(decimal.RequireFromString("63.5")) || !tick.Conf.Equal(decimal.RequireFromString("0.015")) {
		t.Fatalf("price = %s conf = %s", tick.Price, tick.Conf)
	}
}

func TestBuildPythStreamURL(t *testing.T) {
	raw, err := buildPythStreamURL("https://hermes.example/v2/updates/price/stream", map[string]string{"bbbb": "BTC", "aaaa": "APT"})
	if err != nil {
		t.Fatalf("buildPythStreamURL() error = %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ids := parsed.Query()["ids[]"]
	if len(ids) != 2 || ids[0] != "aaaa" || ids[1] != "bbbb" || parsed.Query().Get("parsed") != "true" {
		t.Fatalf("url = %s", raw)
	}
	if _, err := buildPythStreamURL("hermes.example", nil); err == nil {
		t.Fatalf("expected error for endpoint without scheme")
	}
}

func TestAlertMessagesKeyBySymbol(t *testing.T) {
	alerts := []analytics.Alert{{ID: "a1", Symbol: "APT/USDC", Type: analytics.AlertLowLiquidity, Value: 20_000}}
	messages, err := alertMessages(alerts, fixedNow)
	if err != nil {
		t.Fatalf("alertMessages() error = %v", err)
	}
	if len(messages) != 1 || string(messages[0].Key) != "APT/USDC" {
		t.Fatalf("messages = %+v", messages)
	}
	if !strings.Contains(string(messages[0].Value), `"severity":"high"`) {
		t.Fatalf("value = %s", messages[0].Value)
	}
	if len(messages[0].Headers) != 1 || string(messages[0].Headers[0].Value) != string(analytics.AlertLowLiquidity) {
		t.Fatalf("headers = %+v", messages[0].Headers)
	}
}
