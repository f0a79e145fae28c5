package portfolio_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/voucheo/market-ledger/internal/portfolio"
	"github.com/voucheo/market-ledger/internal/store"
)

func newPortfolioServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	api := portfolio.NewAPI(portfolio.NewAggregator(st))

	r := chi.NewRouter()
	api.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func TestHTTP_PnL_Unavailable(t *testing.T) {
	srv, _ := newPortfolioServer(t)

	resp, err := http.Get(srv.URL + "/portfolio/ghost/pnl")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if avail, _ := body["available"].(bool); avail {
		t.Errorf("available = true for owner with no history")
	}
}

func TestHTTP_PnL_Available(t *testing.T) {
	srv, st := newPortfolioServer(t)
	seedHistory(t, st, "alice", 100, 120)

	resp, err := http.Get(srv.URL + "/portfolio/alice/pnl")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Available bool `json:"available"`
		PnL       struct {
			Delta string `json:"delta"`
			Pct   string `json:"pct"`
		} `json:"pnl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Available {
		t.Fatal("available = false, want true")
	}
	if body.PnL.Delta != "20" || body.PnL.Pct != "20" {
		t.Errorf("pnl = %+v, want delta 20, pct 20", body.PnL)
	}
}

func TestHTTP_History_EmptyIsArray(t *testing.T) {
	srv, _ := newPortfolioServer(t)

	resp, err := http.Get(srv.URL + "/portfolio/ghost/history")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	var entries []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("history should decode as a JSON array: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}
