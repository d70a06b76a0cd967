// Package store defines the persistence interface for the level engine: an
// opaque key-value store of JSON snapshots. Implementations include
// PostgreSQL, SQLite, in-memory (for testing) and a Redis read-through
// cache that wraps any of them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no snapshot exists for a key.
var ErrNotFound = errors.New("store: not found")

// Keys used by the level engine.
const (
	KeyProgression  = "progression"
	KeyAchievements = "achievements"

	levelPrefix  = "portfolio_level_"
	customPrefix = "portfolio_custom_"
)

// LevelKey returns the ledger key for level n.
func LevelKey(n int) string { return fmt.Sprintf("%s%d", levelPrefix, n) }

// CustomKey returns the ledger key for a custom portfolio.
func CustomKey(id string) string { return customPrefix + id }

// CustomPrefix is the key prefix shared by all custom portfolios.
func CustomPrefix() string { return customPrefix }

// Store is the persistence interface. Writers for the same key are never
// concurrent; the session service serializes them.
type Store interface {
	// Load returns the snapshot stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores a snapshot under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// List returns the keys that start with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// LoadJSON loads and decodes the snapshot under key into v.
func LoadJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}
