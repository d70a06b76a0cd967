package game

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/feature"
	"github.com/tradequest/level-engine/internal/ledger"
	"github.com/tradequest/level-engine/internal/model"
	"github.com/tradequest/level-engine/internal/quote"
	"github.com/tradequest/level-engine/internal/symbol"
)

// --- Request types ---

// MarkRequest is the JSON body for POST /mark.
type MarkRequest struct {
	PortfolioID string                 `json:"portfolio_id,omitempty"`
	Quotes      map[string]model.Quote `json:"quotes"`
}

// SkipRequest is the JSON body for POST /level/skip.
type SkipRequest struct {
	Level int `json:"level"`
}

// CreatePortfolioRequest is the JSON body for POST /portfolios.
type CreatePortfolioRequest struct {
	Name            string          `json:"name"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
}

// Routes mounts the session API on r. The hub's WebSocket endpoint is
// mounted when the service has one.
func (s *Service) Routes(r chi.Router) {
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	r.Get("/state", s.GetState)
	r.Get("/levels", s.GetLevels)
	r.Post("/orders", s.PlaceOrder)
	r.Post("/mark", s.Mark)
	r.Post("/tick", s.PostTick)
	r.Post("/level/reset", s.PostResetLevel)
	r.Post("/level/skip", s.PostSkipLevel)
	r.Post("/progression/reset", s.PostResetProgression)
	r.Post("/portfolios", s.CreatePortfolio)
	r.Get("/portfolios/{portfolioID}", s.GetPortfolio)
}

// --- HTTP Handlers ---

// GetState handles GET /api/v1/state
func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State())
}

// GetLevels handles GET /api/v1/levels
func (s *Service) GetLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Levels())
}

// PlaceOrder handles POST /api/v1/orders. Orders fill at the current quote;
// a price in the body must match it.
func (s *Service) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var o Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.ExecuteAtMarket(r.Context(), o)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Mark handles POST /api/v1/mark
func (s *Service) Mark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Keys are normalized so {"aapl": ...} marks AAPL.
	quotes := make(map[string]model.Quote, len(req.Quotes))
	for k, q := range req.Quotes {
		sym, err := symbol.Normalize(k)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		q.Symbol = sym
		quotes[sym] = q
	}

	snap, err := s.MarkToMarket(r.Context(), req.PortfolioID, quotes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PostTick handles POST /api/v1/tick
func (s *Service) PostTick(w http.ResponseWriter, r *http.Request) {
	if err := s.ManualTick(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// PostResetLevel handles POST /api/v1/level/reset
func (s *Service) PostResetLevel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ResetLevel(r.Context()))
}

// PostSkipLevel handles POST /api/v1/level/skip
func (s *Service) PostSkipLevel(w http.ResponseWriter, r *http.Request) {
	var req SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Ignored skips are not errors; the state shows the unchanged level.
	s.SkipToLevel(r.Context(), req.Level)
	writeJSON(w, http.StatusOK, s.State())
}

// PostResetProgression handles POST /api/v1/progression/reset
func (s *Service) PostResetProgression(w http.ResponseWriter, r *http.Request) {
	s.ResetProgression(r.Context())
	writeJSON(w, http.StatusOK, s.State())
}

// CreatePortfolio handles POST /api/v1/portfolios
func (s *Service) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req CreatePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := s.CreateCustomPortfolio(r.Context(), req.Name, req.StartingCapital)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GetPortfolio handles GET /api/v1/portfolios/{portfolioID}
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.CustomPortfolio(chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidPrice),
		errors.Is(err, symbol.ErrInvalidSymbol),
		errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrInvalidCapital):
		return http.StatusBadRequest
	case errors.Is(err, feature.ErrFeatureLocked):
		return http.StatusForbidden
	case errors.Is(err, ErrPortfolioNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares):
		return http.StatusConflict
	case errors.Is(err, quote.ErrQuoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
