// Package ledger implements the portfolio ledger: one consistent
// {cash, positions, transactions, totalValue} tuple per level (or per
// custom portfolio) with average-cost-basis accounting.
//
// Every operation is all-or-nothing: inputs are validated and
// preconditions checked before any field is touched, so a failed call
// leaves the ledger exactly as it was. A Ledger is not safe for concurrent
// use; callers serialize access (see game.Service).
//
// All monetary values use shopspring/decimal; never float64 for money.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/model"
)

var (
	// ErrInsufficientFunds is returned when a buy or cover costs more than
	// the available cash.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientShares is returned when a sell or cover asks for more
	// shares than the matching position holds.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrInvalidQuantity is returned for non-positive share counts or counts
	// finer than ShareIncrement.
	ErrInvalidQuantity = errors.New("ledger: shares must be a positive multiple of 0.1")

	// ErrInvalidPrice is returned for non-positive prices.
	ErrInvalidPrice = errors.New("ledger: price must be positive")
)

var (
	// ShareIncrement is the smallest tradable fraction of a share.
	ShareIncrement = decimal.New(1, -1)

	// MaxPerformancePoints caps the performance series; oldest points are
	// evicted first.
	MaxPerformancePoints = 365

	hundred = decimal.NewFromInt(100)
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithNamer sets the function used to name new positions.
func WithNamer(name func(symbol string) string) Option {
	return func(l *Ledger) { l.name = name }
}

// WithIDs overrides transaction id generation.
func WithIDs(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// Ledger owns the cash, positions and transaction history of one portfolio.
type Ledger struct {
	snap  model.LedgerSnapshot
	now   func() time.Time
	name  func(string) string
	newID func() string
}

// New creates a fresh ledger with cash = totalValue = startingValue = capital.
func New(level int, capital decimal.Decimal, opts ...Option) *Ledger {
	l := newLedger(opts)
	l.snap = fresh(level, capital, l.now())
	return l
}

// NewCustom creates a fresh ad-hoc ledger outside the level ladder. Custom
// ledgers carry level 0.
func NewCustom(id, name string, capital decimal.Decimal, opts ...Option) *Ledger {
	l := New(0, capital, opts...)
	l.snap.ID = id
	l.snap.Name = name
	return l
}

// FromSnapshot restores a ledger from a persisted snapshot. The snapshot is
// copied; later mutations of s do not affect the ledger.
func FromSnapshot(s model.LedgerSnapshot, opts ...Option) *Ledger {
	l := newLedger(opts)
	l.snap = clone(s)
	l.recompute()
	return l
}

func newLedger(opts []Option) *Ledger {
	l := &Ledger{
		now:   func() time.Time { return time.Now().UTC() },
		name:  func(s string) string { return s },
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func fresh(level int, capital decimal.Decimal, at time.Time) model.LedgerSnapshot {
	return model.LedgerSnapshot{
		Level:         level,
		Cash:          capital,
		TotalValue:    capital,
		StartingValue: capital,
		Positions:     []model.Position{},
		Transactions:  []model.Transaction{},
		Performance:   []model.PerformancePoint{},
		CreatedAt:     at,
	}
}

// Snapshot returns a deep copy of the ledger state.
func (l *Ledger) Snapshot() model.LedgerSnapshot {
	return clone(l.snap)
}

func (l *Ledger) Level() int                     { return l.snap.Level }
func (l *Ledger) Cash() decimal.Decimal          { return l.snap.Cash }
func (l *Ledger) TotalValue() decimal.Decimal    { return l.snap.TotalValue }
func (l *Ledger) StartingValue() decimal.Decimal { return l.snap.StartingValue }

// Position returns the open position for (symbol, side), if any.
func (l *Ledger) Position(symbol string, side model.Side) (model.Position, bool) {
	if i := l.find(symbol, side); i >= 0 {
		return l.snap.Positions[i], true
	}
	return model.Position{}, false
}

// Performance returns the gain since creation as a percentage of the
// starting value.
func (l *Ledger) Performance() decimal.Decimal {
	if !l.snap.StartingValue.IsPositive() {
		return decimal.Zero
	}
	return l.snap.TotalValue.Sub(l.snap.StartingValue).
		Div(l.snap.StartingValue).Mul(hundred).Round(4)
}

// Buy opens or adds to a long position. Requires shares*price <= cash.
func (l *Ledger) Buy(symbol string, shares, price decimal.Decimal) (model.Transaction, error) {
	if err := validate(shares, price); err != nil {
		return model.Transaction{}, err
	}
	cost := shares.Mul(price)
	if cost.GreaterThan(l.snap.Cash) {
		return model.Transaction{}, ErrInsufficientFunds
	}

	l.snap.Cash = l.snap.Cash.Sub(cost)
	l.addTo(symbol, model.SideLong, shares, price)
	return l.record(symbol, model.KindBuy, shares, price), nil
}

// Sell reduces a long position. The average cost basis is untouched; the
// position is removed when its share count reaches exactly zero.
func (l *Ledger) Sell(symbol string, shares, price decimal.Decimal) (model.Transaction, error) {
	if err := validate(shares, price); err != nil {
		return model.Transaction{}, err
	}
	i := l.find(symbol, model.SideLong)
	if i < 0 || l.snap.Positions[i].Shares.LessThan(shares) {
		return model.Transaction{}, ErrInsufficientShares
	}

	l.snap.Cash = l.snap.Cash.Add(shares.Mul(price))
	l.reduce(i, shares)
	return l.record(symbol, model.KindSell, shares, price), nil
}

// ShortSell opens or adds to a short position and credits the proceeds.
func (l *Ledger) ShortSell(symbol string, shares, price decimal.Decimal) (model.Transaction, error) {
	if err := validate(shares, price); err != nil {
		return model.Transaction{}, err
	}

	l.snap.Cash = l.snap.Cash.Add(shares.Mul(price))
	l.addTo(symbol, model.SideShort, shares, price)
	return l.record(symbol, model.KindShortSell, shares, price), nil
}

// CoverShort buys back shares of a short position. Requires a short
// position with enough shares and enough cash to pay shares*price.
func (l *Ledger) CoverShort(symbol string, shares, price decimal.Decimal) (model.Transaction, error) {
	if err := validate(shares, price); err != nil {
		return model.Transaction{}, err
	}
	i := l.find(symbol, model.SideShort)
	if i < 0 || l.snap.Positions[i].Shares.LessThan(shares) {
		return model.Transaction{}, ErrInsufficientShares
	}
	cost := shares.Mul(price)
	if cost.GreaterThan(l.snap.Cash) {
		return model.Transaction{}, ErrInsufficientFunds
	}

	l.snap.Cash = l.snap.Cash.Sub(cost)
	l.reduce(i, shares)
	return l.record(symbol, model.KindShortBuy, shares, price), nil
}

// MarkToMarket sets the current price of every held position that has a
// quote. Positions without a quote keep their last price. Cash and share
// counts are never touched.
func (l *Ledger) MarkToMarket(quotes map[string]model.Quote) {
	for i := range l.snap.Positions {
		q, ok := quotes[l.snap.Positions[i].Symbol]
		if !ok || !q.Price.IsPositive() {
			continue
		}
		l.snap.Positions[i].CurrentPrice = q.Price
	}
	l.recompute()
}

// Reset replaces the ledger state with a fresh one for level.
func (l *Ledger) Reset(level int, capital decimal.Decimal) {
	id, name := l.snap.ID, l.snap.Name
	l.snap = fresh(level, capital, l.now())
	l.snap.ID, l.snap.Name = id, name
}

// RecordPerformance appends a {date, totalValue, dailyReturn} point. A
// second point for the same date replaces the previous one.
func (l *Ledger) RecordPerformance(date time.Time) model.PerformancePoint {
	day := date.Format("2006-01-02")
	series := l.snap.Performance
	if n := len(series); n > 0 && series[n-1].Date == day {
		series = series[:n-1]
	}

	ret := decimal.Zero
	if n := len(series); n > 0 && series[n-1].TotalValue.IsPositive() {
		prev := series[n-1].TotalValue
		ret = l.snap.TotalValue.Sub(prev).Div(prev).Mul(hundred).Round(4)
	}

	p := model.PerformancePoint{Date: day, TotalValue: l.snap.TotalValue, DailyReturn: ret}
	series = append(series, p)
	if over := len(series) - MaxPerformancePoints; over > 0 {
		series = append([]model.PerformancePoint(nil), series[over:]...)
	}
	l.snap.Performance = series
	return p
}

// --- internals ---

func validate(shares, price decimal.Decimal) error {
	if !shares.IsPositive() || !shares.Mod(ShareIncrement).IsZero() {
		return ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// find returns the index of the (symbol, side) position or -1.
func (l *Ledger) find(symbol string, side model.Side) int {
	for i, p := range l.snap.Positions {
		if p.Symbol == symbol && p.Side == side {
			return i
		}
	}
	return -1
}

// addTo folds shares at price into the running weighted average of the
// (symbol, side) position, creating it if needed.
func (l *Ledger) addTo(symbol string, side model.Side, shares, price decimal.Decimal) {
	i := l.find(symbol, side)
	if i < 0 {
		l.snap.Positions = append(l.snap.Positions, model.Position{
			Symbol:       symbol,
			Name:         l.name(symbol),
			Shares:       shares,
			AvgPrice:     price,
			CurrentPrice: price,
			Side:         side,
			OpenedAt:     l.now(),
		})
		l.recompute()
		return
	}

	p := &l.snap.Positions[i]
	total := p.Shares.Add(shares)
	p.AvgPrice = p.Shares.Mul(p.AvgPrice).Add(shares.Mul(price)).Div(total)
	p.Shares = total
	p.CurrentPrice = price
	l.recompute()
}

// reduce removes shares from position i, deleting it by key at zero.
func (l *Ledger) reduce(i int, shares decimal.Decimal) {
	p := &l.snap.Positions[i]
	p.Shares = p.Shares.Sub(shares)
	if p.Shares.IsZero() {
		l.snap.Positions = append(l.snap.Positions[:i], l.snap.Positions[i+1:]...)
	}
	l.recompute()
}

func (l *Ledger) record(symbol string, kind model.TransactionKind, shares, price decimal.Decimal) model.Transaction {
	tx := model.Transaction{
		ID:        l.newID(),
		Symbol:    symbol,
		Kind:      kind,
		Shares:    shares,
		Price:     price,
		Timestamp: l.now(),
	}
	l.snap.Transactions = append([]model.Transaction{tx}, l.snap.Transactions...)
	return tx
}

// recompute derives unrealized gains and total value.
//
// totalValue = cash + Σ long shares×price − Σ short shares×price. Short
// proceeds are credited to cash on ShortSell, so the buy-back obligation is
// netted here; the value is continuous across ShortSell and CoverShort.
func (l *Ledger) recompute() {
	total := l.snap.Cash
	for i := range l.snap.Positions {
		p := &l.snap.Positions[i]
		switch p.Side {
		case model.SideShort:
			p.UnrealizedGain = p.AvgPrice.Sub(p.CurrentPrice).Mul(p.Shares)
			total = total.Sub(p.MarketValue())
		default:
			p.UnrealizedGain = p.CurrentPrice.Sub(p.AvgPrice).Mul(p.Shares)
			total = total.Add(p.MarketValue())
		}
	}
	l.snap.TotalValue = total
}

func clone(s model.LedgerSnapshot) model.LedgerSnapshot {
	out := s
	out.Positions = append(make([]model.Position, 0, len(s.Positions)), s.Positions...)
	out.Transactions = append(make([]model.Transaction, 0, len(s.Transactions)), s.Transactions...)
	out.Performance = append(make([]model.PerformancePoint, 0, len(s.Performance)), s.Performance...)
	return out
}
