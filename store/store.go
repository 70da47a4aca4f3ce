/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store provides the key-value backends facilitation sessions are
// persisted to. Values are opaque JSON documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store is an async-style key-value backend. Get returns ErrNotFound when
// the key is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
	Close() error
}

// Options selects and configures a driver.
type Options struct {
	Driver   string
	Path     string
	RedisURL string
	Prefix   string
}

// Drivers lists the accepted values for Options.Driver.
var Drivers = []string{"memory", "sqlite", "redis"}

// Open returns the driver named in opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, opts.Path)
	case "redis":
		return OpenRedis(ctx, opts.RedisURL, opts.Prefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

type prefixed struct {
	inner  Store
	prefix string
}

// WithPrefix namespaces every key under prefix. Clear only removes keys
// written through the returned store, and Close does not close inner.
func WithPrefix(inner Store, prefix string) Store {
	return &prefixed{inner: inner, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Clear(ctx context.Context) error {
	if pc, ok := p.inner.(prefixClearer); ok {
		return pc.clearPrefix(ctx, p.prefix)
	}

	return fmt.Errorf("store %T cannot clear a key prefix", p.inner)
}

func (p *prefixed) Close() error {
	return nil
}

// prefixClearer is implemented by every driver in this package.
type prefixClearer interface {
	clearPrefix(ctx context.Context, prefix string) error
}
