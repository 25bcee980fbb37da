package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/traderadar/backend/internal/apperr"
)

func TestGetJSONMapsStatusToKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.URL.Query().Get("ids") != "aptos" {
				t.Errorf("query ids = %q", r.URL.Query().Get("ids"))
			}
			if r.Header.Get("X-Api-Key") != "secret" {
				t.Errorf("missing api key header")
			}
			_, _ = w.Write([]byte(`{"value":"1.5"}`))
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client := New(server.URL, time.Second).WithHeader("X-Api-Key", "secret")

	var out struct {
		Value Number `json:"value"`
	}
	if err := client.GetJSON(context.Background(), "/ok", url.Values{"ids": {"aptos"}}, &out); err != nil {
		t.Fatalf("GetJSON() err = %v", err)
	}
	if out.Value != 1.5 {
		t.Fatalf("value = %v", out.Value)
	}

	err := client.GetJSON(context.Background(), "/missing", nil, &out)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("404 err = %v, want not found", err)
	}
	err = client.GetJSON(context.Background(), "/broken", nil, &out)
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("502 err = %v, want upstream", err)
	}
}

func TestPostJSONSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode([]any{body["function"]})
	}))
	defer server.Close()

	var out []string
	err := New(server.URL, time.Second).PostJSON(context.Background(), "/view", map[string]string{"function": "0x1::m::f"}, &out)
	if err != nil {
		t.Fatalf("PostJSON() err = %v", err)
	}
	if len(out) != 1 || out[0] != "0x1::m::f" {
		t.Fatalf("out = %v", out)
	}
}

func TestNumberDecoding(t *testing.T) {
	var values []Number
	if err := json.Unmarshal([]byte(`["2.5", 3, null, ""]`), &values); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []Number{2.5, 3, 0, 0}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, values[i], want[i])
		}
	}
	var bad Number
	if err := json.Unmarshal([]byte(`"abc"`), &bad); err == nil {
		t.Fatalf("expected parse error")
	}
}
