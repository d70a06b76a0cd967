// Package quote defines the price source consumed by the ledger's
// mark-to-market step, plus synthetic, static and Yahoo Finance sources.
//
// A failing source is never fatal: Fetch skips symbols it cannot resolve
// and the ledger keeps their last known price.
package quote

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/metrics"
	"github.com/tradequest/level-engine/internal/model"
)

// ErrQuoteUnavailable is returned when a source has no quote for a symbol.
var ErrQuoteUnavailable = errors.New("quote: unavailable")

// Source supplies point-in-time quotes.
type Source interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	Name() string
}

// Fetch resolves quotes for symbols, skipping any the source rejects.
func Fetch(ctx context.Context, src Source, symbols []string) map[string]model.Quote {
	out := make(map[string]model.Quote, len(symbols))
	for _, sym := range symbols {
		if _, done := out[sym]; done {
			continue
		}
		q, err := src.GetQuote(ctx, sym)
		if err != nil {
			metrics.QuoteFailures.WithLabelValues(src.Name()).Inc()
			slog.Warn("quote unavailable, keeping last price",
				"source", src.Name(),
				"symbol", sym,
				"err", err,
			)
			continue
		}
		if !q.Price.IsPositive() {
			metrics.QuoteFailures.WithLabelValues(src.Name()).Inc()
			continue
		}
		out[sym] = q
	}
	return out
}

// StaticSource serves quotes from a fixed map.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]model.Quote
}

// NewStaticSource creates a source from symbol → price.
func NewStaticSource(prices map[string]decimal.Decimal) *StaticSource {
	s := &StaticSource{quotes: make(map[string]model.Quote, len(prices))}
	for sym, p := range prices {
		s.quotes[sym] = model.Quote{Symbol: sym, Price: p}
	}
	return s
}

func (s *StaticSource) Name() string { return "static" }

// Set replaces the quote for a symbol.
func (s *StaticSource) Set(q model.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
}

func (s *StaticSource) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[symbol]
	if !ok {
		return model.Quote{}, ErrQuoteUnavailable
	}
	return q, nil
}
