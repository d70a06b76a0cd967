package game_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tradequest/level-engine/internal/game"
	"github.com/tradequest/level-engine/internal/model"
)

// newTestRouter mounts a test Service under /api/v1.
func newTestRouter(t *testing.T) (*game.Service, chi.Router) {
	t.Helper()
	svc, _, _ := newTestService(t)
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return svc, r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_PlaceOrder(t *testing.T) {
	_, router := newTestRouter(t)

	w := do(t, router, "POST", "/api/v1/orders", map[string]any{
		"kind":   "buy",
		"symbol": "AAPL",
		"shares": "1.5",
		"price":  "100",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res game.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Transaction.Kind != model.KindBuy || !res.Transaction.Shares.Equal(d(1.5)) {
		t.Errorf("transaction = %+v", res.Transaction)
	}
	if !res.Portfolio.Cash.Equal(d(50)) {
		t.Errorf("cash = %s, want 50", res.Portfolio.Cash)
	}
}

func TestHandlers_OrderWithoutPriceUsesQuote(t *testing.T) {
	_, router := newTestRouter(t)

	w := do(t, router, "POST", "/api/v1/orders", map[string]any{
		"kind": "buy", "symbol": "KO", "shares": "2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res game.Result
	json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Transaction.Price.Equal(d(20)) {
		t.Errorf("price = %s, want 20", res.Transaction.Price)
	}
}

func TestHandlers_ErrorStatus(t *testing.T) {
	_, router := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"insufficient funds", map[string]any{"kind": "buy", "symbol": "AAPL", "shares": "5", "price": "100"}, http.StatusConflict},
		{"insufficient shares", map[string]any{"kind": "sell", "symbol": "AAPL", "shares": "1", "price": "100"}, http.StatusConflict},
		{"invalid quantity", map[string]any{"kind": "buy", "symbol": "AAPL", "shares": "0", "price": "100"}, http.StatusBadRequest},
		{"invalid price", map[string]any{"kind": "buy", "symbol": "AAPL", "shares": "1", "price": "-1"}, http.StatusBadRequest},
		{"invalid symbol", map[string]any{"kind": "buy", "symbol": "??", "shares": "1", "price": "1"}, http.StatusBadRequest},
		{"unknown kind", map[string]any{"kind": "hold", "symbol": "AAPL", "shares": "1", "price": "1"}, http.StatusBadRequest},
		{"locked short", map[string]any{"kind": "short_sell", "symbol": "AAPL", "shares": "1", "price": "100"}, http.StatusForbidden},
		{"no quote", map[string]any{"kind": "buy", "symbol": "NVDA", "shares": "1"}, http.StatusServiceUnavailable},
		{"unknown portfolio", map[string]any{"kind": "buy", "symbol": "AAPL", "shares": "1", "price": "100", "portfolio_id": "x"}, http.StatusNotFound},
		{"price below quote", map[string]any{"kind": "buy", "symbol": "AAPL", "shares": "1", "price": "1"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, "POST", "/api/v1/orders", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			var body map[string]string
			json.Unmarshal(w.Body.Bytes(), &body)
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestHandlers_OffQuotePriceCannotCompleteLevel(t *testing.T) {
	svc, router := newTestRouter(t)

	for i := 0; i < 5; i++ {
		w := do(t, router, "POST", "/api/v1/orders", map[string]any{
			"kind": "buy", "symbol": "AAPL", "shares": "40", "price": "1",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("order %d: expected 400, got %d: %s", i, w.Code, w.Body.String())
		}
	}
	if err := svc.Tick(context.Background(), epoch); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	st := svc.State()
	if st.Progression.CurrentLevel != 1 {
		t.Errorf("level = %d, want 1", st.Progression.CurrentLevel)
	}
	if !st.Portfolio.Cash.Equal(d(200)) || len(st.Portfolio.Positions) != 0 {
		t.Errorf("portfolio changed: cash %s, %d positions", st.Portfolio.Cash, len(st.Portfolio.Positions))
	}
}

func TestHandlers_InvalidBody(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandlers_MarkAndState(t *testing.T) {
	_, router := newTestRouter(t)

	do(t, router, "POST", "/api/v1/orders", map[string]any{"kind": "buy", "symbol": "AAPL", "shares": "1", "price": "100"})

	w := do(t, router, "POST", "/api/v1/mark", map[string]any{
		"quotes": map[string]any{"aapl": map[string]any{"price": "120"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap model.LedgerSnapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if !snap.TotalValue.Equal(d(220)) {
		t.Errorf("total = %s, want 220", snap.TotalValue)
	}

	w = do(t, router, "GET", "/api/v1/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var st game.State
	json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Portfolio.TotalValue.Equal(d(220)) {
		t.Errorf("state total = %s, want 220", st.Portfolio.TotalValue)
	}
	if st.Level.Level != 1 {
		t.Errorf("state level = %d, want 1", st.Level.Level)
	}
}

func TestHandlers_Levels(t *testing.T) {
	_, router := newTestRouter(t)

	w := do(t, router, "GET", "/api/v1/levels", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var levels []map[string]any
	json.Unmarshal(w.Body.Bytes(), &levels)
	if len(levels) != 5 {
		t.Errorf("levels = %d, want 5", len(levels))
	}
}

func TestHandlers_SkipAndPortfolios(t *testing.T) {
	_, router := newTestRouter(t)

	w := do(t, router, "POST", "/api/v1/portfolios", map[string]any{"name": "Income", "starting_capital": "1000"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before level 5, got %d", w.Code)
	}

	w = do(t, router, "POST", "/api/v1/level/skip", map[string]any{"level": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("skip: expected 200, got %d", w.Code)
	}
	var st game.State
	json.Unmarshal(w.Body.Bytes(), &st)
	if st.Progression.CurrentLevel != 5 {
		t.Fatalf("level = %d, want 5", st.Progression.CurrentLevel)
	}

	w = do(t, router, "POST", "/api/v1/portfolios", map[string]any{"name": "Income", "starting_capital": "1000"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created model.LedgerSnapshot
	json.Unmarshal(w.Body.Bytes(), &created)

	w = do(t, router, "GET", "/api/v1/portfolios/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = do(t, router, "GET", "/api/v1/portfolios/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandlers_Resets(t *testing.T) {
	_, router := newTestRouter(t)
	do(t, router, "POST", "/api/v1/orders", map[string]any{"kind": "buy", "symbol": "AAPL", "shares": "1", "price": "100"})

	w := do(t, router, "POST", "/api/v1/level/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap model.LedgerSnapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if !snap.Cash.Equal(d(200)) {
		t.Errorf("cash = %s, want 200", snap.Cash)
	}

	w = do(t, router, "POST", "/api/v1/progression/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandlers_TickLocked(t *testing.T) {
	_, router := newTestRouter(t)

	w := do(t, router, "POST", "/api/v1/tick", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}
