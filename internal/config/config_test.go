package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/traderadar/backend/internal/apperr"
)

func TestRequireDSNFailsFast(t *testing.T) {
	t.Setenv("API_SERVER_DB_DSN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := requireDSN("API_SERVER_DB_DSN")
	if !errors.Is(err, apperr.ErrConfig) {
		t.Fatalf("requireDSN() err = %v, want config error", err)
	}

	t.Setenv("DATABASE_URL", "postgres://db/traderadar")
	dsn, err := requireDSN("API_SERVER_DB_DSN")
	if err != nil {
		t.Fatalf("requireDSN() unexpected err: %v", err)
	}
	if dsn != "postgres://db/traderadar" {
		t.Fatalf("requireDSN() = %q", dsn)
	}

	t.Setenv("API_SERVER_DB_DSN", "postgres://override/db")
	if dsn, _ := requireDSN("API_SERVER_DB_DSN"); dsn != "postgres://override/db" {
		t.Fatalf("service key must win over DATABASE_URL, got %q", dsn)
	}
}

func TestParsePriceTargets(t *testing.T) {
	targets, err := parsePriceTargets("apt>12.5, BTC<50000")
	if err != nil {
		t.Fatalf("parsePriceTargets() err = %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("len = %d, want 2", len(targets))
	}
	if targets[0] != (PriceTarget{Symbol: "APT", Above: true, Price: 12.5}) {
		t.Errorf("targets[0] = %+v", targets[0])
	}
	if targets[1] != (PriceTarget{Symbol: "BTC", Above: false, Price: 50000}) {
		t.Errorf("targets[1] = %+v", targets[1])
	}

	for _, bad := range []string{">5", "APT>", "APT=5", "APT>abc"} {
		if _, err := parsePriceTargets(bad); err == nil {
			t.Errorf("parsePriceTargets(%q) expected error", bad)
		}
	}
}

func TestParseFallbackPrices(t *testing.T) {
	prices, err := parseFallbackPrices("apt=8.5,BTC=60000")
	if err != nil {
		t.Fatalf("parseFallbackPrices() err = %v", err)
	}
	if prices["APT"] != 8.5 || prices["BTC"] != 60000 {
		t.Fatalf("prices = %v", prices)
	}
	if _, err := parseFallbackPrices("APT=-1"); err == nil {
		t.Fatalf("negative fallback must be rejected")
	}
}

func TestReadConfigFileFlattensNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config-test.yaml")
	body := []byte("oracle:\n  cache-ttl: 30s\n  fallback_prices: \"APT=8\"\ntracker:\n  symbols: [apt, btc]\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	values, err := readConfigFile(path)
	if err != nil {
		t.Fatalf("readConfigFile() err = %v", err)
	}
	want := map[string]string{
		"ORACLE_CACHE_TTL":       "30s",
		"ORACLE_FALLBACK_PRICES": "APT=8",
		"TRACKER_SYMBOLS":        "apt,btc",
	}
	for key, value := range want {
		if values[key] != value {
			t.Errorf("%s = %q, want %q", key, values[key], value)
		}
	}
}

func TestTypedLookupsReportConfigErrors(t *testing.T) {
	t.Setenv("TRADERADAR_TEST_DURATION", "soon")
	if _, err := envDuration("TRADERADAR_TEST_DURATION", time.Second); !errors.Is(err, apperr.ErrConfig) {
		t.Fatalf("envDuration() err = %v, want config error", err)
	}
	t.Setenv("TRADERADAR_TEST_DURATION", "-5s")
	if _, err := envDuration("TRADERADAR_TEST_DURATION", time.Second); err == nil {
		t.Fatalf("negative duration must be rejected")
	}
	t.Setenv("TRADERADAR_TEST_DURATION", "")
	if d, err := envDuration("TRADERADAR_TEST_DURATION", time.Second); err != nil || d != time.Second {
		t.Fatalf("envDuration(unset) = %s, %v", d, err)
	}

	t.Setenv("TRADERADAR_TEST_INT", "0")
	if _, err := envInt("TRADERADAR_TEST_INT", 1); err == nil {
		t.Fatalf("envInt must reject zero")
	}
	if v, err := envNonNegativeInt("TRADERADAR_TEST_INT", 1); err != nil || v != 0 {
		t.Fatalf("envNonNegativeInt() = %d, %v", v, err)
	}
	t.Setenv("TRADERADAR_TEST_BOOL", "yes")
	if _, err := envBool("TRADERADAR_TEST_BOOL", false); err == nil {
		t.Fatalf("envBool must reject %q", "yes")
	}
}

func TestParseCSVEnv(t *testing.T) {
	got := parseCSVEnv(" APT, ,BTC,", []string{"X"})
	if len(got) != 2 || got[0] != "APT" || got[1] != "BTC" {
		t.Fatalf("parseCSVEnv() = %v", got)
	}
	if got := parseCSVEnv(" , ", []string{"X"}); len(got) != 1 || got[0] != "X" {
		t.Fatalf("blank list = %v, want fallback", got)
	}
}
