// Package feature enforces level feature flags on session operations.
//
// The ledger never gates: it accepts any valid order. The gate sits in
// front of it and rejects operations whose feature has not been unlocked
// by the learner's progression.
package feature

import (
	"errors"
	"fmt"

	"github.com/tradequest/level-engine/internal/level"
	"github.com/tradequest/level-engine/internal/model"
)

// ErrFeatureLocked is returned when an operation needs a feature flag that
// is not unlocked yet.
var ErrFeatureLocked = errors.New("feature: locked")

// Operation names a gated session operation.
type Operation string

const (
	OpCreatePortfolio Operation = "create_portfolio"
	OpAccelerate      Operation = "accelerate"
)

// Gate maps orders and operations to the feature flag they need.
type Gate struct {
	// Orders maps a transaction kind to its required flag. Kinds absent
	// from the map need basic_trading.
	Orders map[model.TransactionKind]string

	// Operations maps non-trade operations to their required flag.
	Operations map[Operation]string
}

// NewGate returns the default gate: short selling and covering need
// short_selling, custom portfolios need custom_portfolios and manual
// clock ticks need time_acceleration.
func NewGate() *Gate {
	return &Gate{
		Orders: map[model.TransactionKind]string{
			model.KindBuy:       level.FeatureBasicTrading,
			model.KindSell:      level.FeatureBasicTrading,
			model.KindShortSell: level.FeatureShortSelling,
			model.KindShortBuy:  level.FeatureShortSelling,
		},
		Operations: map[Operation]string{
			OpCreatePortfolio: level.FeatureCustomPortfolios,
			OpAccelerate:      level.FeatureTimeAcceleration,
		},
	}
}

// CheckOrder validates that the flag required by kind is unlocked.
func (g *Gate) CheckOrder(kind model.TransactionKind, unlocked []string) error {
	need, ok := g.Orders[kind]
	if !ok {
		need = level.FeatureBasicTrading
	}
	return check(need, unlocked)
}

// CheckOperation validates that the flag required by op is unlocked.
// Operations without a mapping are always allowed.
func (g *Gate) CheckOperation(op Operation, unlocked []string) error {
	need, ok := g.Operations[op]
	if !ok {
		return nil
	}
	return check(need, unlocked)
}

func check(need string, unlocked []string) error {
	for _, f := range unlocked {
		if f == need {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not unlocked", ErrFeatureLocked, need)
}
