package quote

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/model"
	"github.com/tradequest/level-engine/internal/symbol"
)

// DefaultVolatility is the daily standard deviation of log returns.
const DefaultVolatility = 0.02

// PriceScale is the number of decimal places synthetic prices are rounded to.
var PriceScale int32 = 2

type walk struct {
	prev  float64
	price float64
	open  float64
	high  float64
	low   float64
	vol   int64
}

// SyntheticSource produces a deterministic geometric random walk per
// symbol. Prices only move when Advance is called, so repeated GetQuote
// calls within a tick return the same quote.
//
// Internal math uses float64 (exp/log), with results immediately converted
// to decimal.
type SyntheticSource struct {
	mu         sync.Mutex
	rng        *rand.Rand
	volatility float64
	walks      map[string]*walk
	now        func() time.Time
}

// NewSyntheticSource creates a seeded synthetic source.
func NewSyntheticSource(seed uint64, volatility float64) *SyntheticSource {
	if volatility <= 0 {
		volatility = DefaultVolatility
	}
	return &SyntheticSource{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		volatility: volatility,
		walks:      make(map[string]*walk),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

// GetQuote returns the current point of the symbol's walk, starting it at
// the directory reference price (or 100) on first use.
func (s *SyntheticSource) GetQuote(_ context.Context, sym string) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.walk(sym)
	return s.quote(sym, w), nil
}

// Advance moves every known walk one simulated day forward.
func (s *SyntheticSource) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.walks {
		s.step(w)
	}
}

func (s *SyntheticSource) walk(sym string) *walk {
	w, ok := s.walks[sym]
	if ok {
		return w
	}
	base := 100.0
	if info, found := symbol.Lookup(sym); found {
		base = info.BasePrice.InexactFloat64()
	}
	w = &walk{prev: base, price: base, open: base, high: base, low: base}
	s.walks[sym] = w
	return w
}

func (s *SyntheticSource) step(w *walk) {
	w.prev = w.price
	w.open = w.price
	ret := s.rng.NormFloat64() * s.volatility
	w.price = math.Max(0.01, w.price*math.Exp(ret))

	// Intraday range straddles open and close.
	spread := math.Abs(s.rng.NormFloat64()) * s.volatility / 2
	w.high = math.Max(w.open, w.price) * (1 + spread)
	w.low = math.Min(w.open, w.price) * (1 - spread)
	w.vol = 100_000 + s.rng.Int64N(900_000)
}

func (s *SyntheticSource) quote(sym string, w *walk) model.Quote {
	price := decimal.NewFromFloat(w.price).Round(PriceScale)
	prev := decimal.NewFromFloat(w.prev).Round(PriceScale)
	change := price.Sub(prev)
	pct := decimal.Zero
	if prev.IsPositive() {
		pct = change.Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
	}
	open := decimal.NewFromFloat(w.open).Round(PriceScale)
	high := decimal.NewFromFloat(w.high).Round(PriceScale)
	low := decimal.NewFromFloat(w.low).Round(PriceScale)
	vol := w.vol

	return model.Quote{
		Symbol:        sym,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		Volume:        &vol,
		Open:          &open,
		High:          &high,
		Low:           &low,
		Timestamp:     s.now(),
	}
}
