/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"strings"

	"github.com/patrickmn/go-cache"
)

var _ Store = (*Memory)(nil)

// Memory keeps documents in process. Nothing expires; sessions live until
// cleared or the process exits.
type Memory struct {
	cache *cache.Cache
}

func NewMemory() *Memory {
	return &Memory{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, found := m.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}

	value := x.([]byte)

	return append([]byte(nil), value...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.cache.Set(key, append([]byte(nil), value...), cache.NoExpiration)

	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.cache.Flush()

	return nil
}

func (m *Memory) clearPrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}

	return nil
}

func (m *Memory) Close() error {
	return nil
}
