package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// Settings key holding the embedding dimension the vector table was built with.
const SettingEmbeddingDim = "embedding_dim"

// Settings is a read-through, write-through cache over the settings table.
// Each catalog owns its own instance; there is no package-level cache.
type Settings struct {
	q     Querier
	mu    sync.RWMutex
	cache map[string]string
}

// NewSettings returns a cache backed by q.
func NewSettings(q Querier) *Settings {
	return &Settings{
		q:     q,
		cache: make(map[string]string),
	}
}

// Get returns the value for key and whether it exists.
func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	v, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return v, true, nil
	}

	err := s.q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = v
	s.mu.Unlock()
	return v, true, nil
}

// Set stores value under key, then updates the cache.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

// GetInt reads an integer setting.
func (s *Settings) GetInt(ctx context.Context, key string) (int, bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, fmt.Errorf("setting %s is not an integer: %q", key, v)
	}
	return n, true, nil
}

// SetInt stores an integer setting.
func (s *Settings) SetInt(ctx context.Context, key string, n int) error {
	return s.Set(ctx, key, strconv.Itoa(n))
}

// Invalidate drops every cached value so the next read goes to storage.
func (s *Settings) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}
