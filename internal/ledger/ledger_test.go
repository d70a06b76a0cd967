package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestLedger(capital float64) *Ledger {
	n := 0
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return New(1, d(capital),
		WithClock(func() time.Time { return fixed }),
		WithIDs(func() string { n++; return fmt.Sprintf("tx-%d", n) }),
	)
}

func quotes(prices map[string]float64) map[string]model.Quote {
	out := make(map[string]model.Quote, len(prices))
	for s, p := range prices {
		out[s] = model.Quote{Symbol: s, Price: d(p)}
	}
	return out
}

// --- Constructor ---

func TestNew_SeedsCapital(t *testing.T) {
	l := newTestLedger(200)
	if !l.Cash().Equal(d(200)) || !l.TotalValue().Equal(d(200)) || !l.StartingValue().Equal(d(200)) {
		t.Errorf("expected cash=total=start=200, got %s/%s/%s", l.Cash(), l.TotalValue(), l.StartingValue())
	}
	if l.Level() != 1 {
		t.Errorf("expected level 1, got %d", l.Level())
	}
}

// --- Buy ---

func TestBuy_AverageCostBasis(t *testing.T) {
	l := newTestLedger(1000)

	if _, err := l.Buy("AAPL", d(10), d(10)); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if _, err := l.Buy("AAPL", d(10), d(20)); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	p, ok := l.Position("AAPL", model.SideLong)
	if !ok {
		t.Fatal("expected long AAPL position")
	}
	if !p.AvgPrice.Equal(d(15)) {
		t.Errorf("expected avg cost 15, got %s", p.AvgPrice)
	}
	if !p.Shares.Equal(d(20)) {
		t.Errorf("expected 20 shares, got %s", p.Shares)
	}
	if !l.Cash().Equal(d(700)) {
		t.Errorf("expected cash 700, got %s", l.Cash())
	}
}

func TestBuy_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	l := newTestLedger(200)
	l.Buy("AAPL", d(1), d(150))
	before := l.Snapshot()

	_, err := l.Buy("MSFT", d(1), d(60))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	after := l.Snapshot()
	b1, _ := json.Marshal(before)
	b2, _ := json.Marshal(after)
	if string(b1) != string(b2) {
		t.Errorf("ledger changed on failed buy:\nbefore=%s\nafter=%s", b1, b2)
	}
}

func TestBuy_ExactCashAllowed(t *testing.T) {
	l := newTestLedger(200)
	if _, err := l.Buy("KO", d(4), d(50)); err != nil {
		t.Fatalf("buy with exact cash should succeed: %v", err)
	}
	if !l.Cash().IsZero() {
		t.Errorf("expected zero cash, got %s", l.Cash())
	}
}

func TestBuy_InvalidInput(t *testing.T) {
	l := newTestLedger(200)
	tests := []struct {
		shares, price float64
		want          error
	}{
		{0, 10, ErrInvalidQuantity},
		{-1, 10, ErrInvalidQuantity},
		{0.05, 10, ErrInvalidQuantity},
		{1.25, 10, ErrInvalidQuantity},
		{1, 0, ErrInvalidPrice},
		{1, -5, ErrInvalidPrice},
	}
	for _, tt := range tests {
		_, err := l.Buy("AAPL", d(tt.shares), d(tt.price))
		if !errors.Is(err, tt.want) {
			t.Errorf("Buy(%v @ %v): expected %v, got %v", tt.shares, tt.price, tt.want, err)
		}
	}
	if len(l.Snapshot().Transactions) != 0 {
		t.Error("invalid orders must not record transactions")
	}
}

func TestBuy_FractionalShares(t *testing.T) {
	l := newTestLedger(200)
	if _, err := l.Buy("AAPL", d(0.5), d(150)); err != nil {
		t.Fatalf("0.5 shares should be allowed: %v", err)
	}
	if !l.Cash().Equal(d(125)) {
		t.Errorf("expected cash 125, got %s", l.Cash())
	}
}

// --- Sell ---

func TestSell_AllSharesClosesPosition(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(5), d(100))

	if _, err := l.Sell("AAPL", d(5), d(110)); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, ok := l.Position("AAPL", model.SideLong); ok {
		t.Error("position should be removed after selling all shares")
	}
	if !l.Cash().Equal(d(1050)) {
		t.Errorf("expected cash 1050, got %s", l.Cash())
	}
	if !l.TotalValue().Equal(d(1050)) {
		t.Errorf("expected total 1050, got %s", l.TotalValue())
	}
}

func TestSell_PartialKeepsCostBasis(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(10), d(10))
	l.Buy("AAPL", d(10), d(20))

	if _, err := l.Sell("AAPL", d(5), d(30)); err != nil {
		t.Fatalf("sell: %v", err)
	}
	p, _ := l.Position("AAPL", model.SideLong)
	if !p.AvgPrice.Equal(d(15)) {
		t.Errorf("sell must not change avg cost, got %s", p.AvgPrice)
	}
	if !p.Shares.Equal(d(15)) {
		t.Errorf("expected 15 shares, got %s", p.Shares)
	}
}

func TestSell_MoreThanHeldRejected(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(5), d(100))
	before, _ := json.Marshal(l.Snapshot())

	_, err := l.Sell("AAPL", d(6), d(100))
	if !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	after, _ := json.Marshal(l.Snapshot())
	if string(before) != string(after) {
		t.Error("ledger changed on rejected sell")
	}
}

func TestSell_NoPositionRejected(t *testing.T) {
	l := newTestLedger(1000)
	if _, err := l.Sell("AAPL", d(1), d(100)); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestSell_DoesNotTouchShortPosition(t *testing.T) {
	l := newTestLedger(1000)
	l.ShortSell("AAPL", d(2), d(100))
	if _, err := l.Sell("AAPL", d(1), d(100)); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("sell against a short position should fail, got %v", err)
	}
}

// --- Conservation ---

func TestConservation_CashNeverNegative(t *testing.T) {
	l := newTestLedger(500)
	ops := []struct {
		buy           bool
		shares, price float64
	}{
		{true, 2, 100},
		{true, 3, 100},  // spends the remaining 300
		{true, 1, 0.1},  // rejected, cash 0
		{false, 1, 120}, // sell
		{true, 1, 121},  // rejected
		{true, 1, 120},
	}
	for _, op := range ops {
		if op.buy {
			l.Buy("SPY", d(op.shares), d(op.price))
		} else {
			l.Sell("SPY", d(op.shares), d(op.price))
		}
		if l.Cash().IsNegative() {
			t.Fatalf("cash went negative: %s", l.Cash())
		}
	}

	p, _ := l.Position("SPY", model.SideLong)
	// cash + basis of unsold shares = capital + realized gain (1 share sold at +20).
	deployed := l.Cash().Add(p.Shares.Mul(p.AvgPrice))
	if !deployed.Equal(d(520)) {
		t.Errorf("capital not conserved: cash+basis=%s, want 520", deployed)
	}
	if !p.AvgPrice.Equal(d(104)) {
		t.Errorf("expected avg 104, got %s", p.AvgPrice)
	}
}

// --- Short selling ---

func TestShortSell_CreditsProceedsAndNetsObligation(t *testing.T) {
	l := newTestLedger(1000)

	if _, err := l.ShortSell("TSLA", d(2), d(100)); err != nil {
		t.Fatalf("short: %v", err)
	}
	if !l.Cash().Equal(d(1200)) {
		t.Errorf("expected cash 1200, got %s", l.Cash())
	}
	if !l.TotalValue().Equal(d(1000)) {
		t.Errorf("short should not change total value at entry, got %s", l.TotalValue())
	}

	l.MarkToMarket(quotes(map[string]float64{"TSLA": 90}))
	p, _ := l.Position("TSLA", model.SideShort)
	if !p.UnrealizedGain.Equal(d(20)) {
		t.Errorf("expected short unrealized gain 20, got %s", p.UnrealizedGain)
	}
	if !l.TotalValue().Equal(d(1020)) {
		t.Errorf("expected total 1020, got %s", l.TotalValue())
	}

	valueBefore := l.TotalValue()
	if _, err := l.CoverShort("TSLA", d(2), d(90)); err != nil {
		t.Fatalf("cover: %v", err)
	}
	if _, ok := l.Position("TSLA", model.SideShort); ok {
		t.Error("covered short should be removed")
	}
	if !l.Cash().Equal(d(1020)) {
		t.Errorf("expected cash 1020 after cover, got %s", l.Cash())
	}
	if !l.TotalValue().Equal(valueBefore) {
		t.Errorf("cover should not change total value: before=%s after=%s", valueBefore, l.TotalValue())
	}
}

func TestShortSell_AveragesEntries(t *testing.T) {
	l := newTestLedger(1000)
	l.ShortSell("TSLA", d(1), d(100))
	l.ShortSell("TSLA", d(3), d(200))

	p, _ := l.Position("TSLA", model.SideShort)
	if !p.AvgPrice.Equal(d(175)) {
		t.Errorf("expected avg 175, got %s", p.AvgPrice)
	}
}

func TestShortAndLongAreDistinctPositions(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(1), d(100))
	l.ShortSell("AAPL", d(1), d(100))

	if len(l.Snapshot().Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(l.Snapshot().Positions))
	}

	// Covering removes only the short, keyed by (symbol, side).
	l.CoverShort("AAPL", d(1), d(100))
	ps := l.Snapshot().Positions
	if len(ps) != 1 || ps[0].Side != model.SideLong {
		t.Errorf("expected only the long position to remain, got %+v", ps)
	}
}

func TestCoverShort_Rejections(t *testing.T) {
	l := newTestLedger(100)
	l.ShortSell("TSLA", d(1), d(50)) // cash 150

	if _, err := l.CoverShort("TSLA", d(2), d(50)); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
	if _, err := l.CoverShort("NVDA", d(1), d(50)); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares for missing position, got %v", err)
	}

	before, _ := json.Marshal(l.Snapshot())
	if _, err := l.CoverShort("TSLA", d(1), d(151)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	after, _ := json.Marshal(l.Snapshot())
	if string(before) != string(after) {
		t.Error("ledger changed on rejected cover")
	}
}

// --- Mark to market ---

func TestMarkToMarket_Idempotent(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(2), d(100))
	l.Buy("MSFT", d(1), d(300))
	q := quotes(map[string]float64{"AAPL": 110, "MSFT": 290})

	l.MarkToMarket(q)
	first := l.Snapshot()
	l.MarkToMarket(q)
	second := l.Snapshot()

	if !first.TotalValue.Equal(second.TotalValue) {
		t.Errorf("total value drifted: %s vs %s", first.TotalValue, second.TotalValue)
	}
	if !first.Cash.Equal(second.Cash) || len(first.Positions) != len(second.Positions) {
		t.Error("mark-to-market changed cash or positions")
	}
	if !reflect.DeepEqual(first.Positions, second.Positions) {
		t.Error("positions differ between identical marks")
	}
}

func TestMarkToMarket_UnmatchedSymbolsKeepLastPrice(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(1), d(100))
	l.Buy("KO", d(1), d(50))

	l.MarkToMarket(quotes(map[string]float64{"AAPL": 120, "ZZZ": 5}))

	ko, _ := l.Position("KO", model.SideLong)
	if !ko.CurrentPrice.Equal(d(50)) {
		t.Errorf("KO should keep last price 50, got %s", ko.CurrentPrice)
	}
	if !l.TotalValue().Equal(d(850 + 120 + 50)) {
		t.Errorf("expected total 1020, got %s", l.TotalValue())
	}
}

func TestMarkToMarket_EndToEndLevelOne(t *testing.T) {
	l := newTestLedger(200)
	if _, err := l.Buy("AAPL", d(1), d(150)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !l.Cash().Equal(d(50)) {
		t.Errorf("expected cash 50, got %s", l.Cash())
	}

	l.MarkToMarket(quotes(map[string]float64{"AAPL": 160}))
	if !l.TotalValue().Equal(d(210)) {
		t.Errorf("expected total 210, got %s", l.TotalValue())
	}
	p, _ := l.Position("AAPL", model.SideLong)
	if !p.UnrealizedGain.Equal(d(10)) {
		t.Errorf("expected unrealized gain 10, got %s", p.UnrealizedGain)
	}
	if !l.Performance().Equal(d(5)) {
		t.Errorf("expected performance 5%%, got %s", l.Performance())
	}
}

// --- Transactions ---

func TestTransactions_MostRecentFirst(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(1), d(100))
	l.Sell("AAPL", d(1), d(100))
	l.ShortSell("KO", d(1), d(50))
	l.CoverShort("KO", d(1), d(50))

	txs := l.Snapshot().Transactions
	want := []model.TransactionKind{model.KindShortBuy, model.KindShortSell, model.KindSell, model.KindBuy}
	if len(txs) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(txs))
	}
	for i, k := range want {
		if txs[i].Kind != k {
			t.Errorf("tx %d: expected %s, got %s", i, k, txs[i].Kind)
		}
	}
	if txs[0].ID != "tx-4" {
		t.Errorf("expected newest id tx-4, got %s", txs[0].ID)
	}
}

// --- Reset & snapshot ---

func TestReset_FreshState(t *testing.T) {
	l := newTestLedger(200)
	l.Buy("AAPL", d(1), d(150))

	l.Reset(2, d(500))
	s := l.Snapshot()
	if s.Level != 2 || !s.Cash.Equal(d(500)) || !s.TotalValue.Equal(d(500)) || !s.StartingValue.Equal(d(500)) {
		t.Errorf("unexpected reset state: %+v", s)
	}
	if len(s.Positions) != 0 || len(s.Transactions) != 0 || len(s.Performance) != 0 {
		t.Error("reset should clear positions, transactions and performance")
	}

	l.Reset(2, d(500))
	if !l.Cash().Equal(d(500)) {
		t.Error("reset should be idempotent")
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(1), d(100))

	s := l.Snapshot()
	s.Positions[0].Shares = d(99)
	s.Transactions[0].Symbol = "HACK"

	p, _ := l.Position("AAPL", model.SideLong)
	if !p.Shares.Equal(d(1)) {
		t.Error("mutating a snapshot changed the ledger")
	}
	if l.Snapshot().Transactions[0].Symbol != "AAPL" {
		t.Error("mutating a snapshot changed the transaction log")
	}
}

func TestFromSnapshot_RoundTrip(t *testing.T) {
	l := newTestLedger(1000)
	l.Buy("AAPL", d(2), d(100))
	l.MarkToMarket(quotes(map[string]float64{"AAPL": 130}))

	data, err := json.Marshal(l.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var s model.LedgerSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := FromSnapshot(s)
	if !restored.TotalValue().Equal(d(1060)) {
		t.Errorf("expected restored total 1060, got %s", restored.TotalValue())
	}
	if _, err := restored.Sell("AAPL", d(2), d(130)); err != nil {
		t.Errorf("restored ledger should be tradable: %v", err)
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	l := newTestLedger(200)
	data, _ := json.Marshal(l.Snapshot())

	var raw map[string]json.RawMessage
	json.Unmarshal(data, &raw)
	for _, key := range []string{"level", "cash", "totalValue", "startingValue", "positions", "transactions", "performance"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("snapshot JSON missing key %q: %s", key, data)
		}
	}
}

// --- Performance series ---

func TestRecordPerformance_DailyReturn(t *testing.T) {
	l := newTestLedger(1000)
	day1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	p := l.RecordPerformance(day1)
	if !p.DailyReturn.IsZero() {
		t.Errorf("first point should have zero return, got %s", p.DailyReturn)
	}

	l.Buy("AAPL", d(1), d(100))
	l.MarkToMarket(quotes(map[string]float64{"AAPL": 200}))
	p = l.RecordPerformance(day1.AddDate(0, 0, 1))
	if !p.DailyReturn.Equal(d(10)) {
		t.Errorf("expected 10%% return, got %s", p.DailyReturn)
	}
}

func TestRecordPerformance_SameDayReplaces(t *testing.T) {
	l := newTestLedger(1000)
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.RecordPerformance(day)
	l.RecordPerformance(day.Add(3 * time.Hour))

	if n := len(l.Snapshot().Performance); n != 1 {
		t.Errorf("expected 1 point for the same day, got %d", n)
	}
}

func TestRecordPerformance_CappedAt365(t *testing.T) {
	l := newTestLedger(1000)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		l.RecordPerformance(start.AddDate(0, 0, i))
	}

	series := l.Snapshot().Performance
	if len(series) != MaxPerformancePoints {
		t.Fatalf("expected %d points, got %d", MaxPerformancePoints, len(series))
	}
	if want := start.AddDate(0, 0, 35).Format("2006-01-02"); series[0].Date != want {
		t.Errorf("oldest points should be evicted first: first=%s want=%s", series[0].Date, want)
	}
}

func TestNewCustom_KeepsIdentityAcrossReset(t *testing.T) {
	l := NewCustom("p1", "Growth", d(2500))
	l.Buy("MSFT", d(1), d(330))
	l.Reset(0, d(2500))

	s := l.Snapshot()
	if s.ID != "p1" || s.Name != "Growth" || s.Level != 0 {
		t.Errorf("identity lost: id=%q name=%q level=%d", s.ID, s.Name, s.Level)
	}
	if !s.Cash.Equal(d(2500)) {
		t.Errorf("cash = %s, want 2500", s.Cash)
	}
}
