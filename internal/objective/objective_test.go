package objective

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/level"
	"github.com/tradequest/level-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func snapshot(total float64, trades int, symbols ...string) model.LedgerSnapshot {
	s := model.LedgerSnapshot{TotalValue: d(total)}
	for i := 0; i < trades; i++ {
		s.Transactions = append(s.Transactions, model.Transaction{Kind: model.KindBuy})
	}
	for _, sym := range symbols {
		s.Positions = append(s.Positions, model.Position{Symbol: sym, Side: model.SideLong, Shares: d(1)})
	}
	return s
}

func levelObjectives(t *testing.T, n int) []model.Objective {
	t.Helper()
	cfg, ok := level.Default().Get(n)
	if !ok {
		t.Fatalf("level %d missing", n)
	}
	return Generate(cfg)
}

func TestGenerate_ZeroProgress(t *testing.T) {
	objs := levelObjectives(t, 1)
	if len(objs) != 2 {
		t.Fatalf("expected 2 objectives, got %d", len(objs))
	}
	for _, o := range objs {
		if !o.Progress.IsZero() || o.Completed {
			t.Errorf("objective %s should start empty: %+v", o.ID, o)
		}
	}
}

func TestEvaluate_PortfolioValueClampedAtTarget(t *testing.T) {
	objs := Evaluate(levelObjectives(t, 1), snapshot(250, 0))
	v := objs[0]
	if v.Kind != model.ObjectivePortfolioValue {
		t.Fatalf("expected portfolio_value first, got %s", v.Kind)
	}
	if !v.Progress.Equal(d(210)) {
		t.Errorf("progress should clamp at 210, got %s", v.Progress)
	}
	if !v.Completed {
		t.Error("portfolio_value should be complete")
	}
	if objs[1].Completed {
		t.Error("trade count should not be complete without trades")
	}
}

func TestEvaluate_LevelOneNeedsFiveTrades(t *testing.T) {
	objs := Evaluate(levelObjectives(t, 1), snapshot(210, 4))
	if AllComplete(objs) {
		t.Fatal("4 trades should not complete level 1")
	}
	objs = Evaluate(objs, snapshot(210, 5))
	if !AllComplete(objs) {
		t.Errorf("210 value + 5 trades should complete level 1: %+v", objs)
	}
}

func TestEvaluate_LevelTwoDistinctSymbols(t *testing.T) {
	objs := Evaluate(levelObjectives(t, 2), snapshot(600, 3, "AAPL", "AAPL", "MSFT"))
	if objs[1].Completed {
		t.Error("duplicate symbols must not count twice")
	}
	objs = Evaluate(objs, snapshot(600, 3, "AAPL", "MSFT", "KO"))
	if !AllComplete(objs) {
		t.Errorf("3 distinct symbols should complete level 2: %+v", objs)
	}
}

func TestEvaluate_ShortPositionsDoNotDiversify(t *testing.T) {
	s := snapshot(600, 0, "AAPL", "MSFT")
	s.Positions = append(s.Positions, model.Position{Symbol: "KO", Side: model.SideShort, Shares: d(1)})
	if n := DistinctSymbols(s); n != 2 {
		t.Errorf("expected 2 distinct long symbols, got %d", n)
	}
}

func TestEvaluate_ValueOnlyLevels(t *testing.T) {
	for _, n := range []int{3, 4, 5} {
		cfg, _ := level.Default().Get(n)
		objs := Evaluate(Generate(cfg), snapshot(cfg.WinCondition.InexactFloat64(), 0))
		if !AllComplete(objs) {
			t.Errorf("level %d should complete on value alone", n)
		}
	}
}

func TestEvaluate_ProgressNeverDecreases(t *testing.T) {
	objs := Evaluate(levelObjectives(t, 1), snapshot(209, 0))
	objs = Evaluate(objs, snapshot(180, 0))
	if !objs[0].Progress.Equal(d(209)) {
		t.Errorf("progress should hold its high-water mark, got %s", objs[0].Progress)
	}

	objs = Evaluate(objs, snapshot(215, 0))
	objs = Evaluate(objs, snapshot(150, 0))
	if !objs[0].Completed {
		t.Error("completed objective should stay completed")
	}
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	in := levelObjectives(t, 1)
	Evaluate(in, snapshot(300, 10))
	if in[0].Completed || !in[0].Progress.IsZero() {
		t.Error("Evaluate must not modify its input")
	}
}

func TestAllComplete_EmptySet(t *testing.T) {
	if AllComplete(nil) {
		t.Error("empty objective set must not be complete")
	}
}
