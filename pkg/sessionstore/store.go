package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sessiondb/pkg/adapters/memory"
	"github.com/aretw0/sessiondb/pkg/adapters/redis"
	"github.com/aretw0/sessiondb/pkg/adapters/sqlite"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/ports"
)

// Store is an expiry-aware session store. Safe for concurrent use.
type Store struct {
	opts       Options
	collection ports.Collection
	logger     *slog.Logger

	ready   chan struct{}
	loadErr error

	mu        sync.RWMutex
	listeners []domain.EventListener

	cleanupMu sync.Mutex
	cleanup   sync.WaitGroup
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New normalizes opts, builds the collection and starts loading it.
// It only fails when the collection cannot be constructed; load failures are
// reported through OnLoad, events and every subsequent operation.
func New(opts Options) (*Store, error) {
	opts = opts.normalize()

	collection, err := newCollection(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		opts:       opts,
		collection: collection,
		logger:     opts.Logger,
		ready:      make(chan struct{}),
		listeners:  append([]domain.EventListener(nil), opts.Listeners...),
	}

	go s.load()
	return s, nil
}

func newCollection(opts Options) (ports.Collection, error) {
	switch {
	case opts.Collection != nil:
		return opts.Collection, nil
	case opts.InMemoryOnly:
		return memory.New(), nil
	case opts.RedisURL != "":
		if opts.AfterSerialization != nil || opts.BeforeDeserialization != nil {
			opts.Logger.Warn("Payload hooks are ignored by the Redis collection")
		}
		var ropts []redis.Option
		if opts.RedisPrefix != "" {
			ropts = append(ropts, redis.WithPrefix(opts.RedisPrefix))
		}
		return redis.New(opts.RedisURL, ropts...)
	default:
		return sqlite.New(sqlite.Config{
			Filename:              opts.Filename,
			AfterSerialization:    opts.AfterSerialization,
			BeforeDeserialization: opts.BeforeDeserialization,
			CorruptAlertThreshold: opts.CorruptAlertThreshold,
			Logger:                opts.Logger,
		}), nil
	}
}

func (s *Store) load() {
	err := s.collection.Load(context.Background())

	if err == nil && !s.opts.InMemoryOnly && s.opts.AutoCompactInterval > 0 {
		if ac, ok := s.collection.(ports.AutoCompactor); ok {
			ac.SetAutocompactionInterval(s.opts.AutoCompactInterval)
		}
	}

	s.loadErr = err
	close(s.ready)

	if err != nil {
		s.logger.Error("Failed to load session collection", "err", err)
		s.emit(domain.Event{Type: domain.EventDisconnect})
		s.emit(domain.Event{Type: domain.EventError, Err: err})
	} else {
		s.logger.Debug("Session collection loaded")
		s.emit(domain.Event{Type: domain.EventConnect})
	}

	if s.opts.OnLoad != nil {
		s.opts.OnLoad(err)
	}
}

// Ready blocks until the collection has loaded and returns the load error.
func (s *Store) Ready(ctx context.Context) error {
	select {
	case <-s.ready:
		if s.loadErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrNotLoaded, s.loadErr)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a listener for connect, disconnect and error events.
func (s *Store) Subscribe(l domain.EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) emit(ev domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.mu.RLock()
	listeners := append([]domain.EventListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// Set stores the session under id, replacing any previous one.
func (s *Store) Set(ctx context.Context, id string, sess domain.Session) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}

	stored := sess.ForStorage()
	if stored == nil {
		stored = domain.Session{}
	}
	expiresAt := s.expiry(sess)

	res, err := s.collection.Update(ctx, ports.Filter{ID: id}, ports.Fields{
		Session:   stored,
		ExpiresAt: &expiresAt,
	}, ports.UpdateOptions{Upsert: true})
	if err != nil {
		return err
	}
	if res.Affected == 0 && !res.Upserted {
		return fmt.Errorf("%w: session %s", domain.ErrNothingWritten, id)
	}
	return nil
}

// expiry is the cookie's explicit expiry, or now + DefaultExpiry.
func (s *Store) expiry(sess domain.Session) time.Time {
	if t, ok := sess.CookieExpires(); ok {
		return ceilMillis(t)
	}
	return ceilMillis(s.opts.Now().Add(s.opts.DefaultExpiry))
}

// ceilMillis rounds t up to the millisecond durable collections store, so a
// session never turns stale before its expiry on any backend.
func ceilMillis(t time.Time) time.Time {
	if r := t.Nanosecond() % int(time.Millisecond); r != 0 {
		return t.Add(time.Millisecond - time.Duration(r))
	}
	return t
}

// Get returns the live session stored under id, or nil when there is none.
// A stale session is destroyed; the destroy error, if any, is returned.
func (s *Store) Get(ctx context.Context, id string) (domain.Session, error) {
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	rec, err := s.collection.FindOne(ctx, ports.Filter{ID: id})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if !rec.IsLive(s.opts.Now()) {
		return nil, s.destroy(ctx, id)
	}
	return rec.Session, nil
}

// Touch refreshes the session's UpdatedAt, and its expiry when the cookie
// carries one. It never creates a session.
func (s *Store) Touch(ctx context.Context, id string, sess domain.Session) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}

	var fields ports.Fields
	if t, ok := sess.CookieExpires(); ok {
		t = ceilMillis(t)
		fields.ExpiresAt = &t
	}

	res, err := s.collection.Update(ctx, ports.Filter{ID: id}, fields, ports.UpdateOptions{})
	if err != nil {
		return err
	}
	if res.Affected == 0 {
		return &domain.NotFoundError{ID: id}
	}
	return nil
}

// All returns every live session in collection order.
// Stale sessions found on the way are destroyed in the background; failures
// are reported as error events.
func (s *Store) All(ctx context.Context) ([]domain.Session, error) {
	recs, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Session, len(recs))
	for i := range recs {
		out[i] = recs[i].Session
	}
	return out, nil
}

// Records is All, returning the records themselves.
func (s *Store) Records(ctx context.Context) ([]domain.Record, error) {
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	recs, err := s.collection.Find(ctx, ports.All)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	live := make([]domain.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.IsLive(now) {
			live = append(live, rec)
			continue
		}
		s.purge(rec.ID)
	}
	return live, nil
}

// purge destroys a stale session without blocking the caller.
// A Set racing with the purge may lose its write.
func (s *Store) purge(id string) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	if s.closed {
		return
	}

	s.cleanup.Add(1)
	go func() {
		defer s.cleanup.Done()
		if err := s.destroy(context.Background(), id); err != nil {
			s.logger.Warn("Failed to destroy stale session", "session_id", id, "err", err)
			s.emit(domain.Event{Type: domain.EventError, SessionID: id, Err: err})
			return
		}
		s.logger.Debug("Destroyed stale session", "session_id", id)
	}()
}

// Length counts live sessions, with the same filtering as All.
func (s *Store) Length(ctx context.Context) (int, error) {
	recs, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Destroy removes the session stored under id. Missing sessions are not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}
	return s.destroy(ctx, id)
}

func (s *Store) destroy(ctx context.Context, id string) error {
	_, err := s.collection.Remove(ctx, ports.Filter{ID: id}, ports.RemoveOptions{})
	return err
}

// Clear removes every session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}
	_, err := s.collection.Remove(ctx, ports.All, ports.RemoveOptions{Multi: true})
	return err
}

// Compact compacts the collection's durable storage now.
func (s *Store) Compact(ctx context.Context) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}
	c, ok := s.collection.(ports.Compactor)
	if !ok || s.opts.InMemoryOnly {
		return domain.ErrCompactionUnsupported
	}
	return c.Compact(ctx)
}

// Close waits for loading and background cleanups, stops compaction and
// closes the collection.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cleanupMu.Lock()
		s.closed = true
		s.cleanupMu.Unlock()
		<-s.ready

		if ac, ok := s.collection.(ports.AutoCompactor); ok {
			ac.StopAutocompaction()
		}
		s.cleanup.Wait()

		s.closeErr = s.collection.Close()
		s.emit(domain.Event{Type: domain.EventDisconnect})
	})
	return s.closeErr
}
