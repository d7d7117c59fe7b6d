package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get when nothing live is stored under the key.
var ErrCacheMiss = errors.New("cache miss")

// Provider stores encoded analysis results by key.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider never stores anything; every lookup misses.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoopProvider) Del(context.Context, string) error { return nil }
func (NoopProvider) Close() error { return nil }

// GetJSON decodes the value stored at key into dst.
func GetJSON(ctx context.Context, p Provider, key string, dst any) error {
	raw, err := p.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, p Provider, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.Set(ctx, key, raw, ttl)
}
