package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/config"
	"github.com/tradequest/level-engine/internal/game"
	"github.com/tradequest/level-engine/internal/model"
	"github.com/tradequest/level-engine/internal/quote"
	"github.com/tradequest/level-engine/internal/store"
)

var commands = []subcommands.Command{
	&statusCmd{},
	&levelsCmd{},
	&orderCmd{},
	&skipCmd{},
	&resetLevelCmd{},
	&resetProgressCmd{},
}

// withSession loads config, opens the store and restores the session.
func withSession(ctx context.Context, fn func(*game.Service) error) subcommands.ExitStatus {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	st, closeStore, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	var src quote.Source = quote.NewSyntheticSource(cfg.Quotes.Seed, 0)
	if cfg.Quotes.Provider == config.ProviderYahoo {
		src = quote.NewYahooSource(cfg.Quotes.Proxy)
	}

	levels, err := cfg.Levels()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	svc := game.NewService(st, src, game.WithLevels(levels))
	if err := svc.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := fn(svc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printStatus writes the level, objectives and portfolio summary.
func printStatus(out io.Writer, st game.State) {
	fmt.Fprintf(out, "Level %d: %s\n", st.Progression.CurrentLevel, st.Level.Name)
	fmt.Fprintf(out, "Cash %s  Total %s  Start %s\n",
		st.Portfolio.Cash.StringFixed(2), st.Portfolio.TotalValue.StringFixed(2), st.Portfolio.StartingValue.StringFixed(2))
	fmt.Fprintf(out, "Points %d  Badges %d\n\n", st.Achievements.Total, len(st.Achievements.Badges))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OBJECTIVE\tPROGRESS\tTARGET\tDONE")
	for _, o := range st.Progression.Objectives {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", o.Description, o.Progress.String(), o.Target.String(), o.Completed)
	}
	tw.Flush()

	if len(st.Portfolio.Positions) > 0 {
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tSIDE\tSHARES\tAVG\tPRICE\tGAIN")
		for _, p := range st.Portfolio.Positions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Symbol, p.Side, p.Shares.String(),
				p.AvgPrice.StringFixed(2), p.CurrentPrice.StringFixed(2), p.UnrealizedGain.StringFixed(2))
		}
		tw.Flush()
	}
}

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the current level, objectives and portfolio" }
func (*statusCmd) Usage() string {
	return `questctl status

  Prints the current level, objective progress, cash and total value, and
  open positions of the active level portfolio.
`
}
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (*statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(svc *game.Service) error {
		printStatus(os.Stdout, svc.State())
		return nil
	})
}

type levelsCmd struct{}

func (*levelsCmd) Name() string     { return "levels" }
func (*levelsCmd) Synopsis() string { return "list the level table" }
func (*levelsCmd) Usage() string {
	return `questctl levels
`
}
func (*levelsCmd) SetFlags(*flag.FlagSet) {}

func (*levelsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(svc *game.Service) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LEVEL\tNAME\tCAPITAL\tTARGET\tFEATURES")
		for _, c := range svc.Levels() {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%v\n", c.Level, c.Name, c.StartingCapital.String(), c.WinCondition.String(), c.Features)
		}
		return tw.Flush()
	})
}

type orderCmd struct {
	kind      string
	symbol    string
	shares    string
	price     string
	portfolio string
}

func (*orderCmd) Name() string     { return "order" }
func (*orderCmd) Synopsis() string { return "place a trade on the active level or a custom portfolio" }
func (*orderCmd) Usage() string {
	return `questctl order -k <buy|sell|short_sell|short_buy> -s <symbol> -n <shares> [-p <price>] [-portfolio <id>]

  Without -p the price is taken from the configured quote provider.
`
}

func (c *orderCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "k", "buy", "order kind: buy, sell, short_sell or short_buy")
	f.StringVar(&c.symbol, "s", "", "ticker symbol")
	f.StringVar(&c.shares, "n", "", "number of shares (multiple of 0.1)")
	f.StringVar(&c.price, "p", "", "limit price; defaults to the current quote")
	f.StringVar(&c.portfolio, "portfolio", "", "custom portfolio id")
}

func (c *orderCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	shares, err := decimal.NewFromString(c.shares)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid shares %q: %v\n", c.shares, err)
		return subcommands.ExitUsageError
	}
	o := game.Order{
		Kind:        model.TransactionKind(c.kind),
		Symbol:      c.symbol,
		Shares:      shares,
		PortfolioID: c.portfolio,
	}
	if c.price != "" {
		p, err := decimal.NewFromString(c.price)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid price %q: %v\n", c.price, err)
			return subcommands.ExitUsageError
		}
		o.Price = &p
	}

	return withSession(ctx, func(svc *game.Service) error {
		res, err := svc.Execute(ctx, o)
		if err != nil {
			return err
		}
		tx := res.Transaction
		fmt.Printf("%s %s %s @ %s (total %s)\n", tx.Kind, tx.Shares.String(), tx.Symbol, tx.Price.StringFixed(2), tx.Total().StringFixed(2))
		if res.Transition != nil {
			fmt.Printf("Level %d complete! Now on level %d.\n", res.Transition.From, res.Transition.To)
		}
		for _, b := range res.Badges {
			fmt.Printf("Badge earned: %s\n", b)
		}
		return nil
	})
}

type skipCmd struct{}

func (*skipCmd) Name() string     { return "skip" }
func (*skipCmd) Synopsis() string { return "jump directly to a level" }
func (*skipCmd) Usage() string {
	return `questctl skip <level>

  Moves the learner to <level> (1-5) with a fresh portfolio. Levels below
  the current one are ignored; use reset-progress to start over.
`
}
func (*skipCmd) SetFlags(*flag.FlagSet) {}

func (*skipCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "skip takes exactly one level argument")
		return subcommands.ExitUsageError
	}
	target, err := strconv.Atoi(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid level %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(svc *game.Service) error {
		if !svc.SkipToLevel(ctx, target) {
			return fmt.Errorf("cannot skip to level %d from level %d", target, svc.State().Progression.CurrentLevel)
		}
		printStatus(os.Stdout, svc.State())
		return nil
	})
}

type resetLevelCmd struct{}

func (*resetLevelCmd) Name() string     { return "reset-level" }
func (*resetLevelCmd) Synopsis() string { return "restart the active level with a fresh portfolio" }
func (*resetLevelCmd) Usage() string {
	return `questctl reset-level
`
}
func (*resetLevelCmd) SetFlags(*flag.FlagSet) {}

func (*resetLevelCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(svc *game.Service) error {
		svc.ResetLevel(ctx)
		printStatus(os.Stdout, svc.State())
		return nil
	})
}

type resetProgressCmd struct{}

func (*resetProgressCmd) Name() string { return "reset-progress" }
func (*resetProgressCmd) Synopsis() string {
	return "start over from level 1, keeping points and badges"
}
func (*resetProgressCmd) Usage() string {
	return `questctl reset-progress
`
}
func (*resetProgressCmd) SetFlags(*flag.FlagSet) {}

func (*resetProgressCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(svc *game.Service) error {
		svc.ResetProgression(ctx)
		printStatus(os.Stdout, svc.State())
		return nil
	})
}
