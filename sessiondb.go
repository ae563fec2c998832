package sessiondb

import (
	"log/slog"
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/persistence/middleware"
	"github.com/aretw0/sessiondb/pkg/ports"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
)

// Version is the sessiondb release, overridden at build time with -ldflags.
var Version = "0.1.0-dev"

// Store is the expiry-aware session store.
type Store = sessionstore.Store

// Session is a stored session payload.
type Session = domain.Session

// Option defines a functional option for configuring the Store.
type Option func(*sessionstore.Options)

// WithLogger sets a custom structured logger for the store and its collection.
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionstore.Options) {
		o.Logger = logger
	}
}

// WithMemory keeps sessions in process memory only.
func WithMemory() Option {
	return func(o *sessionstore.Options) {
		o.InMemoryOnly = true
	}
}

// WithRedis stores sessions in the Redis server at url.
func WithRedis(url string) Option {
	return func(o *sessionstore.Options) {
		o.RedisURL = url
	}
}

// WithCollection injects a custom collection, bypassing backend selection.
func WithCollection(c ports.Collection) Option {
	return func(o *sessionstore.Options) {
		o.Collection = c
	}
}

// WithDefaultExpiry sets the lifetime of sessions whose cookie has no expiry.
func WithDefaultExpiry(d time.Duration) Option {
	return func(o *sessionstore.Options) {
		o.DefaultExpiry = d
	}
}

// WithAutoCompaction sets the compaction interval. Use
// sessionstore.DisableAutoCompaction to turn it off.
func WithAutoCompaction(d time.Duration) Option {
	return func(o *sessionstore.Options) {
		o.AutoCompactInterval = d
	}
}

// WithCorruptAlertThreshold sets the tolerated fraction of unreadable documents at load.
func WithCorruptAlertThreshold(f float64) Option {
	return func(o *sessionstore.Options) {
		o.CorruptAlertThreshold = &f
	}
}

// WithHooks wraps durable payloads, e.g. with middleware.NewEncryptionHooks.
func WithHooks(h middleware.Hooks) Option {
	return func(o *sessionstore.Options) {
		o.AfterSerialization = h.After
		o.BeforeDeserialization = h.Before
	}
}

// WithListener subscribes l before loading starts.
func WithListener(l domain.EventListener) Option {
	return func(o *sessionstore.Options) {
		o.Listeners = append(o.Listeners, l)
	}
}

// WithOnLoad registers a callback run once loading finished.
func WithOnLoad(fn func(error)) Option {
	return func(o *sessionstore.Options) {
		o.OnLoad = fn
	}
}

// Open creates a store persisted at filename (sessionstore.DefaultFilename
// when empty) unless an option selects another backend. Loading continues
// in the background; operations wait for it.
func Open(filename string, opts ...Option) (*Store, error) {
	o := sessionstore.Options{Filename: filename}
	for _, opt := range opts {
		opt(&o)
	}
	return sessionstore.New(o)
}
