// Package symbol handles ticker validation and the built-in directory of
// well-known symbols used for position names and synthetic reference prices.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// tickerRegex matches exchange tickers such as AAPL, BRK.B or RDS-A.
var tickerRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

var ErrInvalidSymbol = errors.New("symbol: invalid ticker format")

// Info describes a symbol in the directory.
type Info struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Sector    string          `json:"sector"`
	BasePrice decimal.Decimal `json:"base_price"`
}

var directory = map[string]Info{
	"AAPL":  {Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", BasePrice: decimal.NewFromInt(150)},
	"MSFT":  {Symbol: "MSFT", Name: "Microsoft Corporation", Sector: "Technology", BasePrice: decimal.NewFromInt(330)},
	"GOOGL": {Symbol: "GOOGL", Name: "Alphabet Inc.", Sector: "Communication Services", BasePrice: decimal.NewFromInt(135)},
	"AMZN":  {Symbol: "AMZN", Name: "Amazon.com, Inc.", Sector: "Consumer Discretionary", BasePrice: decimal.NewFromInt(130)},
	"TSLA":  {Symbol: "TSLA", Name: "Tesla, Inc.", Sector: "Consumer Discretionary", BasePrice: decimal.NewFromInt(240)},
	"NVDA":  {Symbol: "NVDA", Name: "NVIDIA Corporation", Sector: "Technology", BasePrice: decimal.NewFromInt(450)},
	"META":  {Symbol: "META", Name: "Meta Platforms, Inc.", Sector: "Communication Services", BasePrice: decimal.NewFromInt(300)},
	"JPM":   {Symbol: "JPM", Name: "JPMorgan Chase & Co.", Sector: "Financials", BasePrice: decimal.NewFromInt(145)},
	"KO":    {Symbol: "KO", Name: "The Coca-Cola Company", Sector: "Consumer Staples", BasePrice: decimal.NewFromInt(60)},
	"DIS":   {Symbol: "DIS", Name: "The Walt Disney Company", Sector: "Communication Services", BasePrice: decimal.NewFromInt(90)},
	"NFLX":  {Symbol: "NFLX", Name: "Netflix, Inc.", Sector: "Communication Services", BasePrice: decimal.NewFromInt(400)},
	"SPY":   {Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Sector: "ETF", BasePrice: decimal.NewFromInt(440)},
}

// Normalize upper-cases and validates a ticker.
func Normalize(ticker string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, ticker)
	}
	return s, nil
}

// Lookup returns directory information for a normalized symbol.
func Lookup(sym string) (Info, bool) {
	info, ok := directory[sym]
	return info, ok
}

// Name returns the human-readable name of a symbol, or the symbol itself
// when it is not in the directory.
func Name(sym string) string {
	if info, ok := directory[sym]; ok {
		return info.Name
	}
	return sym
}

// Known returns all directory symbols in alphabetical order.
func Known() []string {
	out := make([]string, 0, len(directory))
	for s := range directory {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
