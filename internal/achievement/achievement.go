// Package achievement keeps the append-only points ledger and the set of
// earned badges. It is purely additive bookkeeping.
package achievement

import (
	"fmt"
	"time"

	"github.com/tradequest/level-engine/internal/model"
)

// Badge ids.
const (
	BadgeFirstTrade  = "first_trade"
	BadgeFirstShort  = "first_short"
	BadgeDiversified = "diversified"
	BadgeGraduate    = "graduate"
)

// Points awarded alongside badges and trades.
const (
	TradePoints       int64 = 10
	FirstTradePoints  int64 = 50
	FirstShortPoints  int64 = 100
	DiversifiedPoints int64 = 100
	GraduatePoints    int64 = 1000
)

// LevelBadge returns the badge id for completing level n.
func LevelBadge(n int) string {
	return fmt.Sprintf("level_%d_complete", n)
}

// Ledger accumulates points entries and badges.
type Ledger struct {
	state model.Achievements
	now   func() time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		state: model.Achievements{Entries: []model.PointsEntry{}, Badges: []string{}},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FromSnapshot restores a ledger. The total is recomputed from the entries.
func FromSnapshot(s model.Achievements) *Ledger {
	l := New()
	l.state.Entries = append(l.state.Entries, s.Entries...)
	l.state.Badges = append(l.state.Badges, s.Badges...)
	for _, e := range l.state.Entries {
		l.state.Total += e.Points
	}
	return l
}

// SetClock overrides time.Now for entry timestamps.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Award appends a points entry.
func (l *Ledger) Award(points int64, source string) model.PointsEntry {
	e := model.PointsEntry{Points: points, Source: source, Timestamp: l.now()}
	l.state.Entries = append(l.state.Entries, e)
	l.state.Total += points
	return e
}

// Earn grants a badge and its points. It returns false, awarding nothing,
// if the badge was already earned.
func (l *Ledger) Earn(badge string, points int64) bool {
	if l.Has(badge) {
		return false
	}
	l.state.Badges = append(l.state.Badges, badge)
	if points != 0 {
		l.Award(points, "badge:"+badge)
	}
	return true
}

// Has reports whether a badge was earned.
func (l *Ledger) Has(badge string) bool {
	for _, b := range l.state.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// Total returns the points balance.
func (l *Ledger) Total() int64 { return l.state.Total }

// Snapshot returns a copy of the ledger state.
func (l *Ledger) Snapshot() model.Achievements {
	return model.Achievements{
		Entries: append([]model.PointsEntry{}, l.state.Entries...),
		Badges:  append([]string{}, l.state.Badges...),
		Total:   l.state.Total,
	}
}
