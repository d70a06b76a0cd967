// Package game wires the ledger, objective evaluator, progression engine
// and achievement ledger into one learner session, and exposes it over
// HTTP and WebSocket.
//
// Every mutation runs the same pipeline: ledger operation, persist the
// ledger, re-evaluate objectives, auto-complete the level, seed the next
// level's ledger on advance, persist progression and achievements, then
// broadcast. Persistence failures are logged and never roll back the
// in-memory state.
//
// All monetary values use shopspring/decimal; never float64 for money.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/achievement"
	"github.com/tradequest/level-engine/internal/feature"
	"github.com/tradequest/level-engine/internal/ledger"
	"github.com/tradequest/level-engine/internal/level"
	"github.com/tradequest/level-engine/internal/metrics"
	"github.com/tradequest/level-engine/internal/model"
	"github.com/tradequest/level-engine/internal/objective"
	"github.com/tradequest/level-engine/internal/progression"
	"github.com/tradequest/level-engine/internal/quote"
	"github.com/tradequest/level-engine/internal/store"
	"github.com/tradequest/level-engine/internal/symbol"
)

var (
	// ErrPortfolioNotFound is returned for unknown custom portfolio ids.
	ErrPortfolioNotFound = errors.New("game: portfolio not found")

	// ErrInvalidOrder is returned for orders with an unknown kind.
	ErrInvalidOrder = errors.New("game: invalid order")

	// ErrInvalidCapital is returned when a custom portfolio is created with
	// non-positive starting capital.
	ErrInvalidCapital = errors.New("game: starting capital must be positive")
)

// DiversifiedSymbols is the number of distinct long symbols that earns the
// diversified badge.
const DiversifiedSymbols = 3

// Order is a request to trade on the level ledger or a custom portfolio.
type Order struct {
	Kind        model.TransactionKind `json:"kind"`
	Symbol      string                `json:"symbol"`
	Shares      decimal.Decimal       `json:"shares"`
	Price       *decimal.Decimal      `json:"price,omitempty"` // nil: resolve from the quote source
	PortfolioID string                `json:"portfolio_id,omitempty"`
}

// Result is returned from a successful order.
type Result struct {
	Transaction model.Transaction       `json:"transaction"`
	Portfolio   model.LedgerSnapshot    `json:"portfolio"`
	Transition  *progression.Transition `json:"transition,omitempty"`
	Badges      []string                `json:"badges,omitempty"`
}

// State is the full session view.
type State struct {
	Progression  model.Progression      `json:"progression"`
	Level        level.Config           `json:"level"`
	Portfolio    model.LedgerSnapshot   `json:"portfolio"`
	Achievements model.Achievements     `json:"achievements"`
	Custom       []model.LedgerSnapshot `json:"customPortfolios"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for every component of the session.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHub attaches a WebSocket hub for event broadcasts.
func WithHub(h *Hub) Option {
	return func(s *Service) { s.hub = h }
}

// WithLevels replaces the default level table.
func WithLevels(t level.Table) Option {
	return func(s *Service) { s.levels = t }
}

// Service is one learner session. Uses a mutex for serialized execution
// (single-instance); it is the only writer of its store keys.
type Service struct {
	store  store.Store
	quotes quote.Source
	levels level.Table
	gate   *feature.Gate
	hub    *Hub
	now    func() time.Time

	mu      sync.Mutex
	engine  *progression.Engine
	awards  *achievement.Ledger
	active  *ledger.Ledger
	custom  map[string]*ledger.Ledger
	stepper func() error
}

// NewService creates a session in its initial state. Call Open to restore
// a persisted session.
func NewService(st store.Store, src quote.Source, opts ...Option) *Service {
	s := &Service{
		store:  st,
		quotes: src,
		levels: level.Default(),
		gate:   feature.NewGate(),
		now:    func() time.Time { return time.Now().UTC() },
		custom: make(map[string]*ledger.Ledger),
	}
	for _, o := range opts {
		o(s)
	}
	s.awards = achievement.New()
	s.awards.SetClock(s.now)
	s.engine = progression.New(s.levels, s.awards, progression.WithClock(s.now))
	s.active = s.newLevelLedger(s.engine.CurrentLevel())
	return s
}

// SetStepper sets the function used by ManualTick to advance the
// simulation clock. Without one, ManualTick ticks at the wall-clock date.
func (s *Service) SetStepper(step func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepper = step
}

func (s *Service) ledgerOpts() []ledger.Option {
	return []ledger.Option{ledger.WithClock(s.now), ledger.WithNamer(symbol.Name)}
}

func (s *Service) newLevelLedger(n int) *ledger.Ledger {
	cfg, _ := s.levels.Get(n)
	return ledger.New(n, cfg.StartingCapital, s.ledgerOpts()...)
}

// Open restores achievements, progression, the active level ledger and
// every custom portfolio from the store. Missing keys keep the initial
// state.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ach model.Achievements
	switch err := store.LoadJSON(ctx, s.store, store.KeyAchievements, &ach); {
	case err == nil:
		s.awards = achievement.FromSnapshot(ach)
		s.awards.SetClock(s.now)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load achievements: %w", err)
	}

	var rec model.Progression
	switch err := store.LoadJSON(ctx, s.store, store.KeyProgression, &rec); {
	case err == nil:
		s.engine = progression.FromSnapshot(s.levels, s.awards, rec, progression.WithClock(s.now))
	case errors.Is(err, store.ErrNotFound):
		s.engine = progression.New(s.levels, s.awards, progression.WithClock(s.now))
	default:
		return fmt.Errorf("load progression: %w", err)
	}

	cur := s.engine.CurrentLevel()
	var snap model.LedgerSnapshot
	switch err := store.LoadJSON(ctx, s.store, store.LevelKey(cur), &snap); {
	case err == nil:
		s.active = ledger.FromSnapshot(snap, s.ledgerOpts()...)
	case errors.Is(err, store.ErrNotFound):
		s.active = s.newLevelLedger(cur)
	default:
		return fmt.Errorf("load level %d portfolio: %w", cur, err)
	}

	keys, err := s.store.List(ctx, store.CustomPrefix())
	if err != nil {
		return fmt.Errorf("list custom portfolios: %w", err)
	}
	for _, k := range keys {
		var cs model.LedgerSnapshot
		if err := store.LoadJSON(ctx, s.store, k, &cs); err != nil {
			slog.Warn("skipping unreadable custom portfolio", "key", k, "err", err)
			continue
		}
		id := cs.ID
		if id == "" {
			id = strings.TrimPrefix(k, store.CustomPrefix())
			cs.ID = id
		}
		s.custom[id] = ledger.FromSnapshot(cs, s.ledgerOpts()...)
	}

	metrics.CurrentLevel.Set(float64(cur))
	metrics.PortfolioValue.Set(s.active.TotalValue().InexactFloat64())
	slog.Info("session opened",
		"level", cur,
		"total_value", s.active.TotalValue().String(),
		"custom_portfolios", len(s.custom),
		"points", s.awards.Total(),
	)
	return nil
}

// Execute validates and runs an order. A missing price is resolved from
// the quote source before the ledger is touched.
func (s *Service) Execute(ctx context.Context, o Order) (Result, error) {
	return s.execute(ctx, o, false)
}

// ExecuteAtMarket runs an order at the current quote. A supplied price must
// equal the quote; it is never used to fill.
func (s *Service) ExecuteAtMarket(ctx context.Context, o Order) (Result, error) {
	return s.execute(ctx, o, true)
}

func (s *Service) execute(ctx context.Context, o Order, atMarket bool) (Result, error) {
	if !o.Kind.Valid() {
		metrics.TradeRejections.WithLabelValues("invalid_order").Inc()
		return Result{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidOrder, o.Kind)
	}
	sym, err := symbol.Normalize(o.Symbol)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectReason(err)).Inc()
		return Result{}, err
	}

	var price decimal.Decimal
	if o.Price != nil && !atMarket {
		price = *o.Price
	} else {
		q, err := s.quotes.GetQuote(ctx, sym)
		if err != nil {
			metrics.TradeRejections.WithLabelValues(rejectReason(err)).Inc()
			return Result{}, fmt.Errorf("price %s: %w", sym, err)
		}
		if o.Price != nil && !o.Price.Equal(q.Price) {
			metrics.TradeRejections.WithLabelValues("invalid_order").Inc()
			return Result{}, fmt.Errorf("%w: price %s does not match quote %s for %s",
				ErrInvalidOrder, o.Price.String(), q.Price.String(), sym)
		}
		price = q.Price
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, key, err := s.target(o.PortfolioID)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectReason(err)).Inc()
		return Result{}, err
	}
	if err := s.gate.CheckOrder(o.Kind, s.engine.Features()); err != nil {
		metrics.TradeRejections.WithLabelValues(rejectReason(err)).Inc()
		return Result{}, err
	}

	var tx model.Transaction
	switch o.Kind {
	case model.KindBuy:
		tx, err = l.Buy(sym, o.Shares, price)
	case model.KindSell:
		tx, err = l.Sell(sym, o.Shares, price)
	case model.KindShortSell:
		tx, err = l.ShortSell(sym, o.Shares, price)
	case model.KindShortBuy:
		tx, err = l.CoverShort(sym, o.Shares, price)
	}
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectReason(err)).Inc()
		slog.Info("order rejected",
			"kind", o.Kind,
			"symbol", sym,
			"shares", o.Shares.String(),
			"price", price.String(),
			"err", err,
		)
		return Result{}, err
	}
	metrics.TradesTotal.WithLabelValues(string(o.Kind)).Inc()

	slog.Info("trade executed",
		"tx_id", tx.ID,
		"portfolio", key,
		"kind", tx.Kind,
		"symbol", tx.Symbol,
		"shares", tx.Shares.String(),
		"price", tx.Price.String(),
		"cash", l.Cash().String(),
		"total_value", l.TotalValue().String(),
	)

	snap := l.Snapshot()
	s.persistLedger(ctx, key, snap)

	badges := s.awardTrade(tx, snap)

	var tr *progression.Transition
	if l == s.active {
		tr = s.advance(ctx)
	}
	s.persistProgress(ctx)

	s.hub.Broadcast(Event{
		Type:        EventTrade,
		Level:       snap.Level,
		PortfolioID: snap.ID,
		TotalValue:  snap.TotalValue.String(),
		Transaction: &tx,
	})
	for _, b := range badges {
		s.hub.Broadcast(Event{Type: EventBadge, Badge: b})
	}
	s.broadcastTransition(tr)

	return Result{Transaction: tx, Portfolio: snap, Transition: tr, Badges: badges}, nil
}

// Buy places a buy order on the level ledger at price.
func (s *Service) Buy(ctx context.Context, sym string, shares, price decimal.Decimal) (Result, error) {
	return s.Execute(ctx, Order{Kind: model.KindBuy, Symbol: sym, Shares: shares, Price: &price})
}

// Sell places a sell order on the level ledger at price.
func (s *Service) Sell(ctx context.Context, sym string, shares, price decimal.Decimal) (Result, error) {
	return s.Execute(ctx, Order{Kind: model.KindSell, Symbol: sym, Shares: shares, Price: &price})
}

// ShortSell opens or adds to a short position on the level ledger.
func (s *Service) ShortSell(ctx context.Context, sym string, shares, price decimal.Decimal) (Result, error) {
	return s.Execute(ctx, Order{Kind: model.KindShortSell, Symbol: sym, Shares: shares, Price: &price})
}

// CoverShort buys back shares of a short position on the level ledger.
func (s *Service) CoverShort(ctx context.Context, sym string, shares, price decimal.Decimal) (Result, error) {
	return s.Execute(ctx, Order{Kind: model.KindShortBuy, Symbol: sym, Shares: shares, Price: &price})
}

// MarkToMarket applies quotes to the level ledger, or to a custom
// portfolio when portfolioID is set.
func (s *Service) MarkToMarket(ctx context.Context, portfolioID string, quotes map[string]model.Quote) (model.LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, key, err := s.target(portfolioID)
	if err != nil {
		return model.LedgerSnapshot{}, err
	}
	l.MarkToMarket(quotes)
	snap := l.Snapshot()
	s.persistLedger(ctx, key, snap)

	var tr *progression.Transition
	if l == s.active {
		tr = s.advance(ctx)
	}
	var badges []string
	if objective.DistinctSymbols(snap) >= DiversifiedSymbols &&
		s.awards.Earn(achievement.BadgeDiversified, achievement.DiversifiedPoints) {
		badges = append(badges, achievement.BadgeDiversified)
	}
	s.persistProgress(ctx)

	s.hub.Broadcast(Event{
		Type:        EventMarked,
		Level:       snap.Level,
		PortfolioID: snap.ID,
		TotalValue:  snap.TotalValue.String(),
	})
	for _, b := range badges {
		s.hub.Broadcast(Event{Type: EventBadge, Badge: b})
	}
	s.broadcastTransition(tr)
	return snap, nil
}

// Tick runs one simulated market day: fetch quotes for every held symbol,
// mark every portfolio and record a performance point dated day.
func (s *Service) Tick(ctx context.Context, day time.Time) error {
	if a, ok := s.quotes.(interface{ Advance() }); ok {
		a.Advance()
	}

	s.mu.Lock()
	symbols := s.heldSymbols()
	s.mu.Unlock()

	quotes := quote.Fetch(ctx, s.quotes, symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.active.MarkToMarket(quotes)
	s.active.RecordPerformance(day)
	s.persistLedger(ctx, store.LevelKey(s.active.Level()), s.active.Snapshot())

	for id, l := range s.custom {
		l.MarkToMarket(quotes)
		l.RecordPerformance(day)
		s.persistLedger(ctx, store.CustomKey(id), l.Snapshot())
	}

	tr := s.advance(ctx)
	s.persistProgress(ctx)
	metrics.SimulationTicks.Inc()

	slog.Debug("simulation tick",
		"day", day.Format(time.DateOnly),
		"symbols", len(symbols),
		"quoted", len(quotes),
		"total_value", s.active.TotalValue().String(),
	)

	s.hub.Broadcast(Event{
		Type:       EventMarked,
		Level:      s.active.Level(),
		TotalValue: s.active.TotalValue().String(),
	})
	s.broadcastTransition(tr)
	return nil
}

// ManualTick advances the simulation on demand. Requires the
// time_acceleration feature.
func (s *Service) ManualTick(ctx context.Context) error {
	s.mu.Lock()
	err := s.gate.CheckOperation(feature.OpAccelerate, s.engine.Features())
	step := s.stepper
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if step != nil {
		return step()
	}
	return s.Tick(ctx, s.now())
}

// ResetLevel replaces the active level ledger with a fresh one and
// restarts the level's objectives.
func (s *Service) ResetLevel(ctx context.Context) model.LedgerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.engine.CurrentLevel()
	cfg, _ := s.levels.Get(n)
	s.active.Reset(n, cfg.StartingCapital)
	s.engine.Restart()
	snap := s.active.Snapshot()
	s.persistLedger(ctx, store.LevelKey(n), snap)
	s.persistProgress(ctx)

	slog.Info("level reset", "level", n, "capital", cfg.StartingCapital.String())
	s.hub.Broadcast(Event{Type: EventLevelReset, Level: n, TotalValue: snap.TotalValue.String()})
	return snap
}

// SkipToLevel jumps to target, seeding a fresh ledger for it. Targets out
// of range or below the current level are ignored and false is returned.
func (s *Service) SkipToLevel(ctx context.Context, target int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.engine.CurrentLevel()
	if !s.engine.SkipToLevel(target) {
		slog.Info("level skip ignored", "from", from, "target", target)
		return false
	}
	if target != from {
		s.active = s.newLevelLedger(target)
		s.persistLedger(ctx, store.LevelKey(target), s.active.Snapshot())
	}
	s.persistProgress(ctx)

	slog.Info("level skipped", "from", from, "to", target)
	s.hub.Broadcast(Event{Type: EventLevelChanged, Level: target, Unlocked: s.engine.Features()})
	return true
}

// ResetProgression restores the initial progression state and a fresh
// level 1 ledger. Points and badges are kept.
func (s *Service) ResetProgression(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Reset()
	n := s.engine.CurrentLevel()
	s.active = s.newLevelLedger(n)
	s.persistLedger(ctx, store.LevelKey(n), s.active.Snapshot())
	s.persistProgress(ctx)

	slog.Info("progression reset", "points", s.awards.Total())
	s.hub.Broadcast(Event{Type: EventProgressionReset, Level: n})
}

// CreateCustomPortfolio creates an ad-hoc ledger. Requires the
// custom_portfolios feature.
func (s *Service) CreateCustomPortfolio(ctx context.Context, name string, capital decimal.Decimal) (model.LedgerSnapshot, error) {
	if !capital.IsPositive() {
		return model.LedgerSnapshot{}, ErrInvalidCapital
	}
	if name == "" {
		name = "Custom Portfolio"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.gate.CheckOperation(feature.OpCreatePortfolio, s.engine.Features()); err != nil {
		return model.LedgerSnapshot{}, err
	}

	id := uuid.New().String()
	l := ledger.NewCustom(id, name, capital, s.ledgerOpts()...)
	s.custom[id] = l
	snap := l.Snapshot()
	s.persistLedger(ctx, store.CustomKey(id), snap)

	slog.Info("custom portfolio created", "id", id, "name", name, "capital", capital.String())
	s.hub.Broadcast(Event{Type: EventPortfolioCreated, PortfolioID: id, TotalValue: capital.String()})
	return snap, nil
}

// CustomPortfolio returns a custom portfolio snapshot.
func (s *Service) CustomPortfolio(id string) (model.LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.custom[id]
	if !ok {
		return model.LedgerSnapshot{}, ErrPortfolioNotFound
	}
	return l.Snapshot(), nil
}

// State returns the full session view.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.custom))
	for id := range s.custom {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	custom := make([]model.LedgerSnapshot, 0, len(ids))
	for _, id := range ids {
		custom = append(custom, s.custom[id].Snapshot())
	}

	return State{
		Progression:  s.engine.Snapshot(),
		Level:        s.engine.Config(),
		Portfolio:    s.active.Snapshot(),
		Achievements: s.awards.Snapshot(),
		Custom:       custom,
	}
}

// Levels returns the level table in order.
func (s *Service) Levels() []level.Config {
	return s.levels.Ordered()
}

// --- pipeline ---

// target resolves the ledger an operation applies to. Caller holds s.mu.
func (s *Service) target(portfolioID string) (*ledger.Ledger, string, error) {
	if portfolioID == "" {
		return s.active, store.LevelKey(s.active.Level()), nil
	}
	l, ok := s.custom[portfolioID]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}
	return l, store.CustomKey(portfolioID), nil
}

// awardTrade credits trade points and first-time badges. Returns the
// badges newly earned.
func (s *Service) awardTrade(tx model.Transaction, snap model.LedgerSnapshot) []string {
	var earned []string
	s.awards.Award(achievement.TradePoints, "trade:"+string(tx.Kind))
	if s.awards.Earn(achievement.BadgeFirstTrade, achievement.FirstTradePoints) {
		earned = append(earned, achievement.BadgeFirstTrade)
	}
	if tx.Kind == model.KindShortSell && s.awards.Earn(achievement.BadgeFirstShort, achievement.FirstShortPoints) {
		earned = append(earned, achievement.BadgeFirstShort)
	}
	if objective.DistinctSymbols(snap) >= DiversifiedSymbols &&
		s.awards.Earn(achievement.BadgeDiversified, achievement.DiversifiedPoints) {
		earned = append(earned, achievement.BadgeDiversified)
	}
	return earned
}

// advance re-evaluates objectives against the active ledger and completes
// the level once every objective is met. On advance the next level starts
// with a fresh ledger. Caller holds s.mu.
func (s *Service) advance(ctx context.Context) *progression.Transition {
	metrics.PortfolioValue.Set(s.active.TotalValue().InexactFloat64())
	if !s.engine.Evaluate(s.active.Snapshot()) {
		return nil
	}

	n := s.engine.CurrentLevel()
	elapsed := s.now().Sub(s.engine.LevelStartDate())
	tr, err := s.engine.CompleteLevel(n, s.active.TotalValue(), s.active.Performance(), elapsed)
	if err != nil {
		slog.Debug("level completion skipped", "level", n, "err", err)
		return nil
	}
	metrics.LevelCompletions.WithLabelValues(strconv.Itoa(n)).Inc()
	slog.Info("level completed",
		"level", n,
		"final_value", tr.Completed.FinalValue.String(),
		"performance", tr.Completed.Performance.String(),
		"time_to_complete", elapsed.String(),
		"advanced", tr.Advanced,
	)

	if tr.Advanced {
		s.active = s.newLevelLedger(tr.To)
		s.persistLedger(ctx, store.LevelKey(tr.To), s.active.Snapshot())
		metrics.CurrentLevel.Set(float64(tr.To))
		metrics.PortfolioValue.Set(s.active.TotalValue().InexactFloat64())
	}
	return &tr
}

func (s *Service) broadcastTransition(tr *progression.Transition) {
	if tr == nil {
		return
	}
	s.hub.Broadcast(Event{
		Type:       EventLevelCompleted,
		Level:      tr.From,
		TotalValue: tr.Completed.FinalValue.String(),
		Badge:      achievement.LevelBadge(tr.From),
	})
	if tr.Advanced {
		s.hub.Broadcast(Event{Type: EventLevelChanged, Level: tr.To, Unlocked: tr.Unlocked})
	}
}

func (s *Service) persistLedger(ctx context.Context, key string, snap model.LedgerSnapshot) {
	if err := store.SaveJSON(ctx, s.store, key, snap); err != nil {
		metrics.PersistFailures.WithLabelValues("portfolio").Inc()
		slog.Error("persist portfolio failed", "key", key, "err", err)
	}
}

// persistProgress saves the progression record and achievements. Caller
// holds s.mu.
func (s *Service) persistProgress(ctx context.Context) {
	if err := store.SaveJSON(ctx, s.store, store.KeyProgression, s.engine.Snapshot()); err != nil {
		metrics.PersistFailures.WithLabelValues("progression").Inc()
		slog.Error("persist progression failed", "err", err)
	}
	if err := store.SaveJSON(ctx, s.store, store.KeyAchievements, s.awards.Snapshot()); err != nil {
		metrics.PersistFailures.WithLabelValues("achievements").Inc()
		slog.Error("persist achievements failed", "err", err)
	}
}

// heldSymbols lists every symbol held by any portfolio. Caller holds s.mu.
func (s *Service) heldSymbols() []string {
	set := make(map[string]struct{})
	add := func(snap model.LedgerSnapshot) {
		for _, p := range snap.Positions {
			set[p.Symbol] = struct{}{}
		}
	}
	add(s.active.Snapshot())
	for _, l := range s.custom {
		add(l.Snapshot())
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ledger.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, symbol.ErrInvalidSymbol):
		return "invalid_symbol"
	case errors.Is(err, feature.ErrFeatureLocked):
		return "feature_locked"
	case errors.Is(err, quote.ErrQuoteUnavailable):
		return "quote_unavailable"
	case errors.Is(err, ErrPortfolioNotFound):
		return "portfolio_not_found"
	default:
		return "other"
	}
}
