// Package sqlite implements a durable, embedded ports.Collection on top of
// SQLite (modernc.org/sqlite, no cgo). A single process owns the datafile at a
// time; ownership is enforced with an advisory file lock.
package sqlite

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/aretw0/sessiondb/internal/logging"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/ports"
)

// DefaultCorruptAlertThreshold is the fraction of undecodable documents
// tolerated at load time when Config.CorruptAlertThreshold is nil.
const DefaultCorruptAlertThreshold = 0.1

// Config describes a durable collection.
type Config struct {
	// Filename is the SQLite datafile. Its directory is created if needed.
	Filename string

	// AfterSerialization and BeforeDeserialization must be set together and
	// undo each other. They wrap the JSON payload of every document.
	AfterSerialization    ports.SerializationHook
	BeforeDeserialization ports.SerializationHook

	// CorruptAlertThreshold is the tolerated fraction of corrupt documents, in [0,1].
	CorruptAlertThreshold *float64

	Logger *slog.Logger
}

// Collection implements ports.Collection, ports.Compactor and
// ports.AutoCompactor using SQLite.
type Collection struct {
	cfg    Config
	logger *slog.Logger

	db   *sql.DB
	lock *flock.Flock

	cronMu   sync.Mutex
	cron     *cron.Cron
	interval time.Duration
}

var (
	_ ports.Collection    = (*Collection)(nil)
	_ ports.Compactor     = (*Collection)(nil)
	_ ports.AutoCompactor = (*Collection)(nil)
)

// New creates a collection for cfg. Nothing is opened until Load.
func New(cfg Config) *Collection {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Collection{cfg: cfg, logger: logger}
}

// Load validates the serialization hooks, takes the datafile lock, opens the
// database, migrates it and checks stored documents for corruption.
func (c *Collection) Load(ctx context.Context) error {
	if c.cfg.Filename == "" {
		return fmt.Errorf("sqlite collection requires a filename")
	}

	if err := c.checkHooks(); err != nil {
		return err
	}

	if dir := filepath.Dir(c.cfg.Filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to ensure data directory: %w", err)
		}
	}

	lock := flock.New(c.cfg.Filename + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock datafile: %w", err)
	}
	if !locked {
		return fmt.Errorf("datafile %s is locked by another process", c.cfg.Filename)
	}

	db, err := sql.Open("sqlite", dsn(c.cfg.Filename))
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection serializes writers, which makes read-then-write upserts atomic.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return err
	}

	c.db = db
	c.lock = lock

	if err := c.dropCorrupt(ctx); err != nil {
		_ = c.Close()
		return err
	}

	c.logger.Debug("sqlite collection loaded", "filename", c.cfg.Filename)
	return nil
}

func dsn(filename string) string {
	return "file:" + filename + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// checkHooks mirrors the contract of the serialization hooks: both or
// neither, and BeforeDeserialization must undo AfterSerialization.
func (c *Collection) checkHooks() error {
	after, before := c.cfg.AfterSerialization, c.cfg.BeforeDeserialization
	if after == nil && before == nil {
		return nil
	}
	if after == nil || before == nil {
		return fmt.Errorf("%w: AfterSerialization and BeforeDeserialization must be set together", domain.ErrHooksNotReversible)
	}

	for size := 1; size <= 64; size *= 2 {
		raw := make([]byte, size)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("failed to generate hook sample: %w", err)
		}
		sample := []byte(hex.EncodeToString(raw))

		out, err := after(sample)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrHooksNotReversible, err)
		}
		back, err := before(out)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrHooksNotReversible, err)
		}
		if !bytes.Equal(back, sample) {
			return domain.ErrHooksNotReversible
		}
	}
	return nil
}

// dropCorrupt counts documents whose payload cannot be decoded. Above the
// alert threshold loading fails; below it the documents are deleted.
func (c *Collection) dropCorrupt(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `SELECT id, payload FROM documents`)
	if err != nil {
		return fmt.Errorf("failed to scan documents: %w", err)
	}

	total := 0
	var corrupt []string
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan document: %w", err)
		}
		total++
		if _, err := c.decode(payload); err != nil {
			corrupt = append(corrupt, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("failed to iterate documents: %w", err)
	}
	_ = rows.Close()

	if len(corrupt) == 0 {
		return nil
	}

	threshold := DefaultCorruptAlertThreshold
	if c.cfg.CorruptAlertThreshold != nil {
		threshold = *c.cfg.CorruptAlertThreshold
	}
	ratio := float64(len(corrupt)) / float64(total)
	if ratio > threshold {
		return fmt.Errorf("%w: %d of %d documents (%.0f%%) are corrupt, threshold is %.0f%%",
			domain.ErrCorruptData, len(corrupt), total, ratio*100, threshold*100)
	}

	for _, id := range corrupt {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to drop corrupt document %s: %w", id, err)
		}
	}
	c.logger.Warn("Dropped corrupt documents", "count", len(corrupt), "total", total)
	return nil
}

// Update applies fields to the selected documents, inserting one on upsert.
func (c *Collection) Update(ctx context.Context, filter ports.Filter, fields ports.Fields, opts ports.UpdateOptions) (res ports.UpdateResult, retErr error) {
	if c.db == nil {
		return res, domain.ErrNotLoaded
	}

	var payload []byte
	if fields.Session != nil {
		var err error
		if payload, err = c.encode(fields.Session); err != nil {
			return res, err
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	ids, err := selectIDs(ctx, tx, filter, opts.Multi)
	if err != nil {
		return res, err
	}

	now := time.Now().UnixMilli()

	if len(ids) == 0 {
		if !opts.Upsert {
			return res, tx.Commit()
		}
		if filter.All {
			return res, fmt.Errorf("upsert requires a single document filter")
		}
		if payload == nil {
			if payload, err = c.encode(domain.Session{}); err != nil {
				return res, err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, payload, expires_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			filter.ID, payload, millis(fields.ExpiresAt), now, now,
		)
		if err != nil {
			return res, fmt.Errorf("inserting document: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return res, fmt.Errorf("committing transaction: %w", err)
		}
		return ports.UpdateResult{Affected: 1, Upserted: true}, nil
	}

	query := `UPDATE documents SET updated_at = ?`
	args := []any{now}
	if payload != nil {
		query += `, payload = ?`
		args = append(args, payload)
	}
	if fields.ExpiresAt != nil {
		query += `, expires_at = ?`
		args = append(args, fields.ExpiresAt.UnixMilli())
	}
	query += ` WHERE id = ?`

	for _, id := range ids {
		result, err := tx.ExecContext(ctx, query, append(args, id)...)
		if err != nil {
			return res, fmt.Errorf("updating document %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("getting affected rows: %w", err)
		}
		res.Affected += int(n)
	}

	if err := tx.Commit(); err != nil {
		return ports.UpdateResult{}, fmt.Errorf("committing transaction: %w", err)
	}
	return res, nil
}

func selectIDs(ctx context.Context, tx *sql.Tx, filter ports.Filter, multi bool) ([]string, error) {
	query := `SELECT id FROM documents`
	var args []any
	if !filter.All {
		query += ` WHERE id = ?`
		args = append(args, filter.ID)
	}
	query += ` ORDER BY rowid`
	if !multi {
		query += ` LIMIT 1`
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document ids: %w", err)
	}
	return ids, nil
}

// FindOne returns the first selected document, or nil.
func (c *Collection) FindOne(ctx context.Context, filter ports.Filter) (*domain.Record, error) {
	recs, err := c.find(ctx, filter, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// Find returns the selected documents in insertion order.
func (c *Collection) Find(ctx context.Context, filter ports.Filter) ([]domain.Record, error) {
	return c.find(ctx, filter, 0)
}

const documentColumns = `id, payload, expires_at, created_at, updated_at`

func (c *Collection) find(ctx context.Context, filter ports.Filter, limit int) ([]domain.Record, error) {
	if c.db == nil {
		return nil, domain.ErrNotLoaded
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if !filter.All {
		query += ` WHERE id = ?`
		args = append(args, filter.ID)
	}
	query += ` ORDER BY rowid`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recs := []domain.Record{}
	for rows.Next() {
		var (
			rec       domain.Record
			payload   []byte
			expiresAt sql.NullInt64
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&rec.ID, &payload, &expiresAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		sess, err := c.decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", rec.ID, err)
		}
		rec.Session = sess
		if expiresAt.Valid {
			t := time.UnixMilli(expiresAt.Int64)
			rec.ExpiresAt = &t
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		rec.UpdatedAt = time.UnixMilli(updatedAt)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return recs, nil
}

// Remove deletes the selected documents.
func (c *Collection) Remove(ctx context.Context, filter ports.Filter, opts ports.RemoveOptions) (int, error) {
	if c.db == nil {
		return 0, domain.ErrNotLoaded
	}

	var (
		query string
		args  []any
	)
	switch {
	case !filter.All:
		// IDs are unique, Multi makes no difference.
		query = `DELETE FROM documents WHERE id = ?`
		args = append(args, filter.ID)
	case opts.Multi:
		query = `DELETE FROM documents`
	default:
		query = `DELETE FROM documents WHERE rowid = (SELECT rowid FROM documents ORDER BY rowid LIMIT 1)`
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting affected rows: %w", err)
	}
	return int(n), nil
}

// Close stops auto-compaction, closes the database and releases the datafile lock.
func (c *Collection) Close() error {
	c.StopAutocompaction()

	var errs []error
	if c.db != nil {
		errs = append(errs, c.db.Close())
		c.db = nil
	}
	if c.lock != nil {
		errs = append(errs, c.lock.Unlock())
		c.lock = nil
	}
	return errors.Join(errs...)
}

func (c *Collection) encode(sess domain.Session) ([]byte, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if c.cfg.AfterSerialization != nil {
		if data, err = c.cfg.AfterSerialization(data); err != nil {
			return nil, fmt.Errorf("failed to serialize session: %w", err)
		}
	}
	return data, nil
}

func (c *Collection) decode(payload []byte) (domain.Session, error) {
	data := payload
	if c.cfg.BeforeDeserialization != nil {
		var err error
		if data, err = c.cfg.BeforeDeserialization(payload); err != nil {
			return nil, fmt.Errorf("failed to deserialize session: %w", err)
		}
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return sess, nil
}

func millis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
