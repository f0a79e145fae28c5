package portfolio

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voucheo/market-ledger/internal/model"
)

// API exposes portfolio views over HTTP.
type API struct {
	agg *Aggregator
}

// NewAPI creates the HTTP surface for a portfolio aggregator.
func NewAPI(agg *Aggregator) *API {
	return &API{agg: agg}
}

// Routes mounts all portfolio endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/portfolio/{owner}", a.GetPortfolio)
	r.Get("/portfolio/{owner}/history", a.GetHistory)
	r.Get("/portfolio/{owner}/pnl", a.GetPnL)
}

// GetPortfolio handles GET /api/v1/portfolio/{owner}
func (a *API) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	snapshot, err := a.agg.Snapshot(r.Context(), owner)
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// GetHistory handles GET /api/v1/portfolio/{owner}/history
func (a *API) GetHistory(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	history, err := a.agg.History(r.Context(), owner)
	if err != nil {
		writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, history)
}

// GetPnL handles GET /api/v1/portfolio/{owner}/pnl
// Insufficient history yields {available: false} with 200 rather than an
// error — the profile view renders it as "unavailable".
func (a *API) GetPnL(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	pnl, err := a.agg.PnL(r.Context(), owner)
	if errors.Is(err, ErrInsufficientHistory) {
		writeJSON(w, http.StatusOK, map[string]any{"available": false})
		return
	}
	if err != nil {
		writeError(w, "failed to compute p&l", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"available": true, "pnl": pnl})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
