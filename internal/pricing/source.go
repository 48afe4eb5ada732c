package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/cache"
)

// Source supplies the pricing tables. Administrative tooling owns the
// tables; the engine only reads them.
type Source interface {
	Load(ctx context.Context) (Config, error)
}

// StaticSource always returns the same tables.
type StaticSource struct {
	Config Config
}

func (s StaticSource) Load(ctx context.Context) (Config, error) {
	return s.Config, nil
}

// FileSource reads the tables from a JSON file on every Load.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read pricing config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse pricing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid pricing config %s: %w", s.Path, err)
	}
	return cfg, nil
}

const cacheKey = "pricing:config"

// CachedSource keeps the last loaded tables in a cache for ttl so that
// every request does not hit the underlying source.
type CachedSource struct {
	next   Source
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedSource(next Source, c cache.Cache, ttl time.Duration, logger *logrus.Logger) *CachedSource {
	return &CachedSource{next: next, cache: c, ttl: ttl, logger: logger}
}

func (s *CachedSource) Load(ctx context.Context) (Config, error) {
	var cfg Config
	err := cache.GetJSON(ctx, s.cache, cacheKey, &cfg)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.WithError(err).Warn("pricing config cache read failed")
	}

	cfg, err = s.next.Load(ctx)
	if err != nil {
		return Config{}, err
	}

	if err := cache.SetJSON(ctx, s.cache, cacheKey, cfg, s.ttl); err != nil {
		s.logger.WithError(err).Warn("pricing config cache write failed")
	}
	return cfg, nil
}

// Invalidate drops the cached tables so the next Load re-reads the source.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, cacheKey)
}
