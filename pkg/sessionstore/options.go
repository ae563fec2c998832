package sessionstore

import (
	"log/slog"
	"time"

	"github.com/aretw0/sessiondb/internal/logging"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/ports"
)

const (
	// DefaultExpiry applies when a session cookie carries no explicit expiry.
	DefaultExpiry = 14 * 24 * time.Hour

	// DefaultFilename is the datafile of durable stores.
	DefaultFilename = "data/sessions.db"

	DefaultAutoCompactInterval = 24 * time.Hour
	MinAutoCompactInterval     = 5 * time.Second
	MaxAutoCompactInterval     = 24 * time.Hour

	// DisableAutoCompaction turns periodic compaction off.
	DisableAutoCompaction time.Duration = -1
)

// Options configures a Store. The zero value is a durable store at
// DefaultFilename with default expiry and daily compaction.
type Options struct {
	// DefaultExpiry is the session lifetime when the cookie has no expiry.
	DefaultExpiry time.Duration

	// InMemoryOnly keeps sessions in process memory. All durability options
	// (Filename, hooks, CorruptAlertThreshold, AutoCompactInterval) are ignored.
	InMemoryOnly bool

	// Filename is the durable datafile.
	Filename string

	// AfterSerialization and BeforeDeserialization wrap the durable payload.
	AfterSerialization    ports.SerializationHook
	BeforeDeserialization ports.SerializationHook

	// CorruptAlertThreshold is the tolerated fraction of corrupt documents at load, in [0,1].
	CorruptAlertThreshold *float64

	// AutoCompactInterval is clamped to [MinAutoCompactInterval, MaxAutoCompactInterval].
	// Zero means DefaultAutoCompactInterval; DisableAutoCompaction turns it off.
	AutoCompactInterval time.Duration

	// OnLoad is called once the collection finished loading, with the load error if any.
	OnLoad func(error)

	// RedisURL selects a shared Redis collection instead of the datafile.
	RedisURL string

	// RedisPrefix namespaces the Redis keys. Empty keeps the collection default.
	RedisPrefix string

	// Collection injects a ready-made collection, bypassing backend selection.
	Collection ports.Collection

	// Listeners are subscribed before loading starts, so they see the first connect event.
	Listeners []domain.EventListener

	Logger *slog.Logger

	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// normalize applies defaults and clamps without breaking callers.
func (o Options) normalize() Options {
	if o.DefaultExpiry <= 0 {
		o.DefaultExpiry = DefaultExpiry
	}

	if o.InMemoryOnly {
		o.Filename = ""
		o.AfterSerialization = nil
		o.BeforeDeserialization = nil
		o.CorruptAlertThreshold = nil
		o.AutoCompactInterval = DisableAutoCompaction
	} else {
		if o.Filename == "" {
			o.Filename = DefaultFilename
		}
		o.AutoCompactInterval = clampInterval(o.AutoCompactInterval)
	}

	if o.CorruptAlertThreshold != nil {
		v := *o.CorruptAlertThreshold
		switch {
		case v < 0:
			v = 0
		case v > 1:
			v = 1
		}
		o.CorruptAlertThreshold = &v
	}

	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultAutoCompactInterval
	case d < 0:
		return DisableAutoCompaction
	case d < MinAutoCompactInterval:
		return MinAutoCompactInterval
	case d > MaxAutoCompactInterval:
		return MaxAutoCompactInterval
	default:
		return d
	}
}
