// Package model defines the core domain types shared across the level engine.
// All monetary values use shopspring/decimal; never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TransactionKind identifies the ledger operation that produced a transaction.
type TransactionKind string

const (
	KindBuy       TransactionKind = "buy"
	KindSell      TransactionKind = "sell"
	KindShortSell TransactionKind = "short_sell"
	KindShortBuy  TransactionKind = "short_buy" // cover
)

// Valid reports whether k is one of the four ledger operations.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindBuy, KindSell, KindShortSell, KindShortBuy:
		return true
	}
	return false
}

// Position is an open stake in one symbol on one side.
// Unique by (Symbol, Side) within a ledger.
type Position struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Shares         decimal.Decimal `json:"shares"`
	AvgPrice       decimal.Decimal `json:"avgPrice"`     // average cost basis
	CurrentPrice   decimal.Decimal `json:"currentPrice"` // last marked price
	UnrealizedGain decimal.Decimal `json:"unrealizedGain"`
	Side           Side            `json:"side"`
	OpenedAt       time.Time       `json:"openedAt"`
}

// MarketValue returns shares × current price.
func (p Position) MarketValue() decimal.Decimal {
	return p.Shares.Mul(p.CurrentPrice)
}

// Transaction is an immutable record of a ledger operation.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Kind      TransactionKind `json:"type"`
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Total returns shares × price.
func (t Transaction) Total() decimal.Decimal {
	return t.Shares.Mul(t.Price)
}

// PerformancePoint is one entry of a ledger's value history.
type PerformancePoint struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	TotalValue  decimal.Decimal `json:"totalValue"`
	DailyReturn decimal.Decimal `json:"dailyReturn"` // percent vs. previous point
}

// LedgerSnapshot is the persisted form of a ledger.
// Positions keep insertion order; Transactions are most-recent-first.
type LedgerSnapshot struct {
	Level         int                `json:"level"` // 0 for custom portfolios
	ID            string             `json:"id,omitempty"`
	Name          string             `json:"name,omitempty"`
	Cash          decimal.Decimal    `json:"cash"`
	TotalValue    decimal.Decimal    `json:"totalValue"`
	StartingValue decimal.Decimal    `json:"startingValue"`
	Positions     []Position         `json:"positions"`
	Transactions  []Transaction      `json:"transactions"`
	Performance   []PerformancePoint `json:"performance"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// Quote is a point-in-time price snapshot for a symbol.
type Quote struct {
	Symbol        string           `json:"symbol"`
	Price         decimal.Decimal  `json:"price"`
	Change        decimal.Decimal  `json:"change"`
	ChangePercent decimal.Decimal  `json:"changePercent"`
	Volume        *int64           `json:"volume,omitempty"`
	Open          *decimal.Decimal `json:"open,omitempty"`
	High          *decimal.Decimal `json:"high,omitempty"`
	Low           *decimal.Decimal `json:"low,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ObjectiveKind names what an objective measures.
type ObjectiveKind string

const (
	ObjectivePortfolioValue  ObjectiveKind = "portfolio_value"
	ObjectiveTradeCount      ObjectiveKind = "trade_count"
	ObjectiveDistinctSymbols ObjectiveKind = "distinct_symbols"
)

// Valid reports whether k is a known objective kind.
func (k ObjectiveKind) Valid() bool {
	switch k {
	case ObjectivePortfolioValue, ObjectiveTradeCount, ObjectiveDistinctSymbols:
		return true
	}
	return false
}

// Objective is a measurable condition gating level completion.
type Objective struct {
	ID          string          `json:"id"`
	Kind        ObjectiveKind   `json:"kind"`
	Description string          `json:"description"`
	Target      decimal.Decimal `json:"target"`
	Progress    decimal.Decimal `json:"current"`
	Completed   bool            `json:"completed"`
}

// CompletedLevel records one finished level.
type CompletedLevel struct {
	Level          int             `json:"level"`
	CompletedAt    time.Time       `json:"completedAt"`
	FinalValue     decimal.Decimal `json:"finalValue"`
	Performance    decimal.Decimal `json:"performance"` // percent
	TimeToComplete time.Duration   `json:"timeToComplete"`
}

// Progression is the persisted learner progression record.
type Progression struct {
	CurrentLevel    int              `json:"currentLevel"`
	LevelStartDate  time.Time        `json:"levelStartDate"`
	CompletedLevels []CompletedLevel `json:"completedLevels"`
	Features        []string         `json:"unlockedFeatures"`
	Objectives      []Objective      `json:"objectives"`
}

// PointsEntry is one append-only points award.
type PointsEntry struct {
	Points    int64     `json:"points"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Achievements is the persisted achievement/points ledger.
type Achievements struct {
	Entries []PointsEntry `json:"entries"`
	Badges  []string      `json:"badges"`
	Total   int64         `json:"totalPoints"`
}
