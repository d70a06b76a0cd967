// Package objective derives objective progress from a ledger snapshot and
// the active level's objective templates. Evaluation is read-only.
package objective

import (
	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/level"
	"github.com/tradequest/level-engine/internal/model"
)

// Generate returns a fresh objective set for a level with zero progress.
func Generate(cfg level.Config) []model.Objective {
	out := make([]model.Objective, 0, len(cfg.Objectives))
	for _, tpl := range cfg.Objectives {
		out = append(out, model.Objective{
			ID:          tpl.ID,
			Kind:        tpl.Kind,
			Description: tpl.Description,
			Target:      tpl.Target,
			Progress:    decimal.Zero,
		})
	}
	return out
}

// Measure returns the raw value an objective kind reads from a snapshot.
//
//   - portfolio_value: totalValue
//   - trade_count: number of recorded transactions
//   - distinct_symbols: number of distinct symbols with an open long position
func Measure(kind model.ObjectiveKind, snap model.LedgerSnapshot) decimal.Decimal {
	switch kind {
	case model.ObjectivePortfolioValue:
		return snap.TotalValue
	case model.ObjectiveTradeCount:
		return decimal.NewFromInt(int64(len(snap.Transactions)))
	case model.ObjectiveDistinctSymbols:
		return decimal.NewFromInt(int64(DistinctSymbols(snap)))
	}
	return decimal.Zero
}

// DistinctSymbols counts symbols held long.
func DistinctSymbols(snap model.LedgerSnapshot) int {
	seen := make(map[string]struct{})
	for _, p := range snap.Positions {
		if p.Side == model.SideLong {
			seen[p.Symbol] = struct{}{}
		}
	}
	return len(seen)
}

// Evaluate projects snap onto the current objective set. Progress is the
// measured value clamped at the target and never falls below the previous
// progress; a completed objective stays completed until the set is
// regenerated.
func Evaluate(current []model.Objective, snap model.LedgerSnapshot) []model.Objective {
	out := make([]model.Objective, len(current))
	for i, o := range current {
		v := decimal.Min(Measure(o.Kind, snap), o.Target)
		if v.LessThan(o.Progress) {
			v = o.Progress
		}
		o.Progress = v
		o.Completed = o.Completed || v.GreaterThanOrEqual(o.Target)
		out[i] = o
	}
	return out
}

// AllComplete reports whether every objective is completed. An empty set
// is never complete.
func AllComplete(objs []model.Objective) bool {
	if len(objs) == 0 {
		return false
	}
	for _, o := range objs {
		if !o.Completed {
			return false
		}
	}
	return true
}
