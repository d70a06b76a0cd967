// Package level holds the static configuration of the five learning levels:
// starting capital, win condition, objective templates and feature flags.
// The table is immutable for the lifetime of a run.
package level

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tradequest/level-engine/internal/model"
)

const (
	First = 1
	Last  = 5
)

// CompletionBonus is awarded for every completed level.
const CompletionBonus int64 = 500

// Feature flags unlocked by levels.
const (
	FeatureBasicTrading     = "basic_trading"
	FeaturePortfolioView    = "portfolio_view"
	FeatureMarketData       = "market_data"
	FeatureWatchlist        = "watchlist"
	FeatureShortSelling     = "short_selling"
	FeatureStopLoss         = "stop_loss"
	FeatureAdvancedCharts   = "advanced_charts"
	FeatureTimeAcceleration = "time_acceleration"
	FeatureCustomPortfolios = "custom_portfolios"
	FeatureSectorAnalysis   = "sector_analysis"
)

// ObjectiveTemplate describes an objective before it is evaluated.
type ObjectiveTemplate struct {
	ID          string              `json:"id" yaml:"id"`
	Kind        model.ObjectiveKind `json:"kind" yaml:"kind"`
	Description string              `json:"description" yaml:"description"`
	Target      decimal.Decimal     `json:"target" yaml:"target"`
}

// Config is the static configuration of one level.
type Config struct {
	Level           int                 `json:"level" yaml:"level"`
	Name            string              `json:"name" yaml:"name"`
	StartingCapital decimal.Decimal     `json:"starting_capital" yaml:"starting_capital"`
	WinCondition    decimal.Decimal     `json:"win_condition" yaml:"win_condition"` // target portfolio value
	Objectives      []ObjectiveTemplate `json:"objectives" yaml:"objectives"`
	Features        []string            `json:"features" yaml:"features"`
}

// Table indexes level configurations by level number.
type Table map[int]Config

func valueObjective(target int64) ObjectiveTemplate {
	return ObjectiveTemplate{
		ID:          "portfolio_value",
		Kind:        model.ObjectivePortfolioValue,
		Description: fmt.Sprintf("Grow your portfolio to $%d", target),
		Target:      decimal.NewFromInt(target),
	}
}

// Default returns the literal level table.
// Levels 3–5 gate on portfolio value only.
func Default() Table {
	return Table{
		1: {
			Level:           1,
			Name:            "First Steps",
			StartingCapital: decimal.NewFromInt(200),
			WinCondition:    decimal.NewFromInt(210),
			Objectives: []ObjectiveTemplate{
				valueObjective(210),
				{
					ID:          "complete_trades",
					Kind:        model.ObjectiveTradeCount,
					Description: "Complete 5 trades",
					Target:      decimal.NewFromInt(5),
				},
			},
			Features: []string{FeatureBasicTrading, FeaturePortfolioView},
		},
		2: {
			Level:           2,
			Name:            "Building a Portfolio",
			StartingCapital: decimal.NewFromInt(500),
			WinCondition:    decimal.NewFromInt(600),
			Objectives: []ObjectiveTemplate{
				valueObjective(600),
				{
					ID:          "diversify",
					Kind:        model.ObjectiveDistinctSymbols,
					Description: "Hold at least 3 different stocks",
					Target:      decimal.NewFromInt(3),
				},
			},
			Features: []string{FeatureMarketData, FeatureWatchlist},
		},
		3: {
			Level:           3,
			Name:            "Managing Risk",
			StartingCapital: decimal.NewFromInt(1000),
			WinCondition:    decimal.NewFromInt(1300),
			Objectives:      []ObjectiveTemplate{valueObjective(1300)},
			Features:        []string{FeatureShortSelling, FeatureStopLoss},
		},
		4: {
			Level:           4,
			Name:            "Advanced Strategies",
			StartingCapital: decimal.NewFromInt(5000),
			WinCondition:    decimal.NewFromInt(6500),
			Objectives:      []ObjectiveTemplate{valueObjective(6500)},
			Features:        []string{FeatureAdvancedCharts, FeatureTimeAcceleration},
		},
		5: {
			Level:           5,
			Name:            "Portfolio Manager",
			StartingCapital: decimal.NewFromInt(10000),
			WinCondition:    decimal.NewFromInt(15000),
			Objectives:      []ObjectiveTemplate{valueObjective(15000)},
			Features:        []string{FeatureCustomPortfolios, FeatureSectorAnalysis},
		},
	}
}

// Load reads level overrides from a YAML file of the form
//
//	levels:
//	  - level: 1
//	    starting_capital: 250
//	    ...
//
// Levels absent from the file keep their defaults. The merged table is
// validated.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read levels: %w", err)
	}
	var doc struct {
		Levels []Config `yaml:"levels"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse levels: %w", err)
	}

	t := Default()
	for _, c := range doc.Levels {
		if !Valid(c.Level) {
			return nil, fmt.Errorf("level %d out of range %d-%d", c.Level, First, Last)
		}
		t[c.Level] = c
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that every level is present with positive capital, a
// portfolio value objective, known objective kinds with positive targets,
// and at least one feature flag.
func (t Table) Validate() error {
	for n := First; n <= Last; n++ {
		c, ok := t[n]
		if !ok {
			return fmt.Errorf("level %d: missing", n)
		}
		if c.Level != n {
			return fmt.Errorf("level %d: configured as level %d", n, c.Level)
		}
		if !c.StartingCapital.IsPositive() {
			return fmt.Errorf("level %d: starting_capital must be positive", n)
		}
		if len(c.Objectives) == 0 {
			return fmt.Errorf("level %d: at least one objective is required", n)
		}
		hasValue := false
		for _, o := range c.Objectives {
			if !o.Kind.Valid() {
				return fmt.Errorf("level %d: objective %q has unknown kind %q", n, o.ID, o.Kind)
			}
			if !o.Target.IsPositive() {
				return fmt.Errorf("level %d: objective %q needs a positive target", n, o.ID)
			}
			if o.Kind == model.ObjectivePortfolioValue {
				hasValue = true
			}
		}
		if !hasValue {
			return fmt.Errorf("level %d: a %s objective is required", n, model.ObjectivePortfolioValue)
		}
		if len(c.Features) == 0 {
			return fmt.Errorf("level %d: at least one feature is required", n)
		}
	}
	return nil
}

// Valid reports whether n is a level number.
func Valid(n int) bool {
	return n >= First && n <= Last
}

// Get returns the configuration for level n.
func (t Table) Get(n int) (Config, bool) {
	c, ok := t[n]
	return c, ok
}

// FeaturesThrough returns the sorted union of feature flags for all levels <= n.
func (t Table) FeaturesThrough(n int) []string {
	set := make(map[string]struct{})
	for lvl := First; lvl <= n && lvl <= Last; lvl++ {
		for _, f := range t[lvl].Features {
			set[f] = struct{}{}
		}
	}
	return sortedSet(set)
}

// Union merges flags into an existing sorted feature list.
func Union(existing, add []string) []string {
	set := make(map[string]struct{}, len(existing)+len(add))
	for _, f := range existing {
		set[f] = struct{}{}
	}
	for _, f := range add {
		set[f] = struct{}{}
	}
	return sortedSet(set)
}

// Ordered returns the configurations in level order.
func (t Table) Ordered() []Config {
	out := make([]Config, 0, len(t))
	for lvl := First; lvl <= Last; lvl++ {
		if c, ok := t[lvl]; ok {
			out = append(out, c)
		}
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
