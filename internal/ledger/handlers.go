package ledger

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
	"github.com/voucheo/market-ledger/internal/payout"
	"github.com/voucheo/market-ledger/internal/policy"
	"github.com/voucheo/market-ledger/internal/post"
	"github.com/voucheo/market-ledger/internal/store"
)

// API exposes the ledger service over HTTP. Resolution and fee withdrawal
// are admin-gated: the ledger trusts its caller, so the identity check
// lives here, in front of it.
type API struct {
	svc      *Service
	adminKey string
}

// NewAPI creates the HTTP surface for a ledger service. If adminKey is
// empty, admin endpoints are disabled rather than open.
func NewAPI(svc *Service, adminKey string) *API {
	return &API{svc: svc, adminKey: adminKey}
}

// Routes mounts all ledger endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/markets", a.ListMarkets)
	r.Post("/markets", a.CreateMarket)
	r.Get("/markets/{marketID}", a.GetMarket)
	r.Get("/markets/{marketID}/odds", a.GetOdds)
	r.Get("/markets/{marketID}/positions", a.GetPositions)
	r.Post("/markets/{marketID}/resolve", a.ResolveMarket)

	r.Post("/bets", a.PlaceBet)
	r.Post("/positions/{positionID}/claim", a.Claim)

	r.Get("/fees", a.GetFees)
	r.Post("/fees/withdraw", a.WithdrawFees)
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for market creation.
type CreateMarketRequest struct {
	Question     string          `json:"question"`
	PostURL      string          `json:"post_url"`
	Category     string          `json:"category"`
	Deadline     time.Time       `json:"deadline"`
	InitialStake decimal.Decimal `json:"initial_stake"`
	Side         model.Side      `json:"side"` // defaults to yes
	Creator      string          `json:"creator"`
}

// CreateMarketResponse returns the new market and the creator's position.
type CreateMarketResponse struct {
	Market   marketView      `json:"market"`
	Position *model.Position `json:"position"`
}

// BetRequest is the JSON body for POST /bets.
type BetRequest struct {
	MarketID int64           `json:"market_id"`
	Owner    string          `json:"owner"`
	Side     model.Side      `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
}

// ResolveRequest is the JSON body for POST /markets/{id}/resolve.
type ResolveRequest struct {
	OutcomeYes bool `json:"outcome_yes"`
}

// ClaimRequest is the JSON body for POST /positions/{id}/claim.
type ClaimRequest struct {
	Owner string `json:"owner"`
}

// WithdrawRequest is the JSON body for POST /fees/withdraw.
type WithdrawRequest struct {
	To string `json:"to"`
}

// marketView is a market as rendered to clients: the stored status is
// replaced by the display-time classification (open past its deadline
// reads "locked") and the current odds are attached.
type marketView struct {
	model.Market
	Status  string          `json:"status"`
	OddsYes decimal.Decimal `json:"odds_yes"`
	OddsNo  decimal.Decimal `json:"odds_no"`
}

func (a *API) view(m model.Market) marketView {
	oddsYes, oddsNo := m.Odds()
	return marketView{
		Market:  m,
		Status:  m.DisplayStatus(a.svc.Now()),
		OddsYes: oddsYes,
		OddsNo:  oddsNo,
	}
}

// --- HTTP Handlers ---

// CreateMarket handles POST /api/v1/markets
func (a *API) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	market, position, err := a.svc.CreateMarket(r.Context(), CreateMarketParams{
		Question:     req.Question,
		PostURL:      req.PostURL,
		Category:     req.Category,
		Deadline:     req.Deadline,
		InitialStake: req.InitialStake,
		Side:         req.Side,
		Creator:      req.Creator,
	})
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, CreateMarketResponse{
		Market:   a.view(*market),
		Position: position,
	})
}

// ListMarkets handles GET /api/v1/markets
// Optional filters: ?category=<name>&status=<open|locked|resolved>.
func (a *API) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := a.svc.Markets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}

	category := r.URL.Query().Get("category")
	status := r.URL.Query().Get("status")

	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		v := a.view(m)
		if category != "" && m.Category != category {
			continue
		}
		if status != "" && v.Status != status {
			continue
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, views)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (a *API) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return
	}

	market, err := a.svc.Market(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, a.view(*market))
}

// GetOdds handles GET /api/v1/markets/{marketID}/odds
func (a *API) GetOdds(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return
	}

	market, err := a.svc.Market(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	oddsYes, oddsNo := market.Odds()
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"yes": oddsYes,
		"no":  oddsNo,
	})
}

// GetPositions handles GET /api/v1/markets/{marketID}/positions
func (a *API) GetPositions(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return
	}

	positions, err := a.svc.MarketPositions(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}

	writeJSON(w, http.StatusOK, positions)
}

// PlaceBet handles POST /api/v1/bets
func (a *API) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	position, err := a.svc.PlaceBet(r.Context(), req.MarketID, req.Owner, req.Side, req.Amount)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, position)
}

// ResolveMarket handles POST /api/v1/markets/{marketID}/resolve (admin).
func (a *API) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}

	id, err := marketID(r)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	market, err := a.svc.ResolveMarket(r.Context(), id, req.OutcomeYes)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, a.view(*market))
}

// Claim handles POST /api/v1/positions/{positionID}/claim
// An unclaimable position yields {payout: 0, claimed: false} with 200 —
// a reported no-op, not an error.
func (a *API) Claim(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "positionID")

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	result, err := a.svc.Claim(r.Context(), positionID, req.Owner)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetFees handles GET /api/v1/fees (admin).
func (a *API) GetFees(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}

	accrued, err := a.svc.AccruedFees(r.Context())
	if err != nil {
		writeError(w, "failed to read fee balance", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"accrued": accrued})
}

// WithdrawFees handles POST /api/v1/fees/withdraw (admin).
func (a *API) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := a.svc.WithdrawFees(r.Context(), req.To)
	if err != nil {
		writeError(w, "failed to withdraw fees", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"withdrawn": amount})
}

// --- helpers ---

// requireAdmin validates the X-Admin-Key header in constant time. An
// unconfigured key disables admin endpoints entirely.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if a.adminKey == "" {
		writeError(w, "admin endpoints are not configured", http.StatusForbidden)
		return false
	}
	key := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(a.adminKey)) != 1 {
		writeError(w, "admin authorization required", http.StatusForbidden)
		return false
	}
	return true
}

func marketID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "marketID"), 10, 64)
}

// statusFor maps domain errors onto HTTP status codes: absent records are
// 404, state-machine and policy rejections 409, bad input 400, and
// settlement arithmetic failures 500 (defect, not user error).
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrMarketNotFound),
		errors.Is(err, store.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMarketNotOpen),
		errors.Is(err, ErrMarketExpired),
		errors.Is(err, ErrMarketResolved),
		errors.Is(err, policy.ErrPerMarketLimitExceeded),
		errors.Is(err, policy.ErrTotalLimitExceeded):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrInvalidDeadline),
		errors.Is(err, ErrInvalidSide),
		errors.Is(err, ErrInvalidStake),
		errors.Is(err, ErrInvalidOwner),
		errors.Is(err, ErrStakeBelowMin),
		errors.Is(err, post.ErrInvalidURL),
		errors.Is(err, post.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, payout.ErrZeroWinningPool):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
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
