// Package progression implements the level state machine: five ordinal
// levels, one-directional transitions, no cycles.
//
// The engine owns the current level, the active objective set, the
// completion history and the unlocked feature flags. Points and badges are
// written to an achievement.Ledger, which survives Reset.
package progression

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/achievement"
	"github.com/tradequest/level-engine/internal/level"
	"github.com/tradequest/level-engine/internal/model"
	"github.com/tradequest/level-engine/internal/objective"
)

// ErrInvalidLevelTransition is returned by CompleteLevel when the level is
// not current or already completed. No state is changed; callers treat it
// as a no-op.
var ErrInvalidLevelTransition = errors.New("progression: invalid level transition")

// Transition describes the effect of a successful CompleteLevel.
type Transition struct {
	Completed model.CompletedLevel `json:"completed"`
	From      int                  `json:"from"`
	To        int                  `json:"to"`
	Advanced  bool                 `json:"advanced"` // false on the terminal level
	Unlocked  []string             `json:"unlocked,omitempty"`
}

// Engine is the level progression state machine. Not safe for concurrent
// use.
type Engine struct {
	levels level.Table
	awards *achievement.Ledger
	rec    model.Progression
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine in the initial state: level 1, level 1 features and
// a fresh level 1 objective set.
func New(levels level.Table, awards *achievement.Ledger, opts ...Option) *Engine {
	e := newEngine(levels, awards, opts)
	e.rec = e.initial()
	return e
}

// FromSnapshot restores an engine from a persisted progression record.
// Records with an out-of-range level fall back to the initial state.
func FromSnapshot(levels level.Table, awards *achievement.Ledger, rec model.Progression, opts ...Option) *Engine {
	e := newEngine(levels, awards, opts)
	if !level.Valid(rec.CurrentLevel) {
		e.rec = e.initial()
		return e
	}
	e.rec = cloneRecord(rec)
	if len(e.rec.Objectives) == 0 {
		e.rec.Objectives = objective.Generate(e.levels[e.rec.CurrentLevel])
	}
	return e
}

func newEngine(levels level.Table, awards *achievement.Ledger, opts []Option) *Engine {
	if awards == nil {
		awards = achievement.New()
	}
	e := &Engine{
		levels: levels,
		awards: awards,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) initial() model.Progression {
	return model.Progression{
		CurrentLevel:    level.First,
		LevelStartDate:  e.now(),
		CompletedLevels: []model.CompletedLevel{},
		Features:        e.levels.FeaturesThrough(level.First),
		Objectives:      objective.Generate(e.levels[level.First]),
	}
}

// CurrentLevel returns the active level number.
func (e *Engine) CurrentLevel() int { return e.rec.CurrentLevel }

// Config returns the active level configuration.
func (e *Engine) Config() level.Config { return e.levels[e.rec.CurrentLevel] }

// LevelStartDate returns when the active level started.
func (e *Engine) LevelStartDate() time.Time { return e.rec.LevelStartDate }

// Objectives returns a copy of the active objective set.
func (e *Engine) Objectives() []model.Objective {
	return append([]model.Objective{}, e.rec.Objectives...)
}

// Features returns the unlocked feature flags, sorted.
func (e *Engine) Features() []string {
	return append([]string{}, e.rec.Features...)
}

// HasFeature reports whether a feature flag is unlocked.
func (e *Engine) HasFeature(f string) bool {
	for _, x := range e.rec.Features {
		if x == f {
			return true
		}
	}
	return false
}

// Achievements returns the points ledger the engine awards into.
func (e *Engine) Achievements() *achievement.Ledger { return e.awards }

// IsCompleted reports whether level n is in the completed list.
func (e *Engine) IsCompleted(n int) bool {
	for _, c := range e.rec.CompletedLevels {
		if c.Level == n {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the progression record.
func (e *Engine) Snapshot() model.Progression { return cloneRecord(e.rec) }

// Evaluate refreshes the active objectives from a ledger snapshot. It
// returns true when every objective is complete and the current level has
// not been recorded yet.
func (e *Engine) Evaluate(snap model.LedgerSnapshot) bool {
	e.rec.Objectives = objective.Evaluate(e.rec.Objectives, snap)
	return objective.AllComplete(e.rec.Objectives) && !e.IsCompleted(e.rec.CurrentLevel)
}

// CompleteLevel records the completion of the current level, awards the
// completion bonus and, below the last level, advances to the next one.
func (e *Engine) CompleteLevel(n int, finalValue, performance decimal.Decimal, timeToComplete time.Duration) (Transition, error) {
	if n != e.rec.CurrentLevel || e.IsCompleted(n) {
		return Transition{}, fmt.Errorf("%w: complete level %d while on level %d", ErrInvalidLevelTransition, n, e.rec.CurrentLevel)
	}

	done := model.CompletedLevel{
		Level:          n,
		CompletedAt:    e.now(),
		FinalValue:     finalValue,
		Performance:    performance,
		TimeToComplete: timeToComplete,
	}
	e.rec.CompletedLevels = append(e.rec.CompletedLevels, done)

	e.awards.Award(level.CompletionBonus, fmt.Sprintf("level:%d", n))
	e.awards.Earn(achievement.LevelBadge(n), 0)

	tr := Transition{Completed: done, From: n, To: n}
	if n >= level.Last {
		e.awards.Earn(achievement.BadgeGraduate, achievement.GraduatePoints)
		return tr, nil
	}

	next := n + 1
	before := len(e.rec.Features)
	e.rec.CurrentLevel = next
	e.rec.LevelStartDate = e.now()
	e.rec.Features = level.Union(e.rec.Features, e.levels[next].Features)
	e.rec.Objectives = objective.Generate(e.levels[next])

	tr.To = next
	tr.Advanced = true
	if len(e.rec.Features) > before {
		tr.Unlocked = append([]string{}, e.levels[next].Features...)
	}
	return tr, nil
}

// SkipToLevel jumps directly to target, re-deriving the cumulative feature
// set and regenerating objectives. The completion history is untouched.
// Out-of-range targets and targets below the current level are ignored and
// false is returned; the current level only moves down through Reset.
func (e *Engine) SkipToLevel(target int) bool {
	if !level.Valid(target) || target < e.rec.CurrentLevel {
		return false
	}
	if target != e.rec.CurrentLevel {
		e.rec.LevelStartDate = e.now()
	}
	e.rec.CurrentLevel = target
	e.rec.Features = level.Union(e.rec.Features, e.levels.FeaturesThrough(target))
	e.rec.Objectives = objective.Generate(e.levels[target])
	return true
}

// Restart begins the current level again: objectives are regenerated and
// the level start date moves to now. History and features are kept.
func (e *Engine) Restart() {
	e.rec.LevelStartDate = e.now()
	e.rec.Objectives = objective.Generate(e.levels[e.rec.CurrentLevel])
}

// Reset restores the initial state. Points and badges are kept.
func (e *Engine) Reset() {
	e.rec = e.initial()
}

func cloneRecord(r model.Progression) model.Progression {
	out := r
	out.CompletedLevels = append([]model.CompletedLevel{}, r.CompletedLevels...)
	out.Features = append([]string{}, r.Features...)
	out.Objectives = append([]model.Objective{}, r.Objectives...)
	return out
}
