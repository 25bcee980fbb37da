package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/traderadar/backend/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		if err != nil {
			t.Fatalf("ParseLevel(%q) err = %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc", "svc.log")
	logger, closeLogger, err := New("svc", config.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path})
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	logger.Info("hello", "k", 1)
	if err := closeLogger(); err != nil {
		t.Fatalf("close: %v", err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `"service":"svc"`) || !strings.Contains(string(body), `"msg":"hello"`) {
		t.Fatalf("unexpected log body: %s", body)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, _, err := New("svc", config.LogConfig{Format: "xml"}); err == nil {
		t.Fatalf("expected format error")
	}
	if _, _, err := New("svc", config.LogConfig{Output: "syslog"}); err == nil {
		t.Fatalf("expected output error")
	}
}
