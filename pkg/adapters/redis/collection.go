package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/ports"
)

// Collection implements ports.Collection using Redis, so several processes
// can share one session collection.
//
// Each document is a hash; a sorted set scored by a sequence number keeps
// insertion order.
type Collection struct {
	client *backend.Client
	prefix string
	owned  bool
}

var _ ports.Collection = (*Collection)(nil)

type Option func(*Collection)

// WithPrefix sets the key prefix for documents.
func WithPrefix(prefix string) Option {
	return func(c *Collection) {
		c.prefix = prefix
	}
}

// New creates a collection from a redis:// URL. The client is closed by Close.
func New(url string, opts ...Option) (*Collection, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	c := NewFromClient(backend.NewClient(options), opts...)
	c.owned = true
	return c, nil
}

// NewFromClient creates a collection from an existing client. The caller keeps
// ownership of the client.
func NewFromClient(client *backend.Client, opts ...Option) *Collection {
	c := &Collection{
		client: client,
		prefix: "sessiondb:",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection) key(id string) string {
	return c.prefix + "doc:" + id
}

func (c *Collection) indexKey() string {
	return c.prefix + "index"
}

func (c *Collection) seqKey() string {
	return c.prefix + "seq"
}

// Load checks that the server is reachable.
func (c *Collection) Load(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

// upsertScript applies $set semantics to one document atomically.
// KEYS: doc, index, seq. ARGV: upsert flag, now (ms), session json or "",
// expires (ms) or "", id. Returns {affected, created}.
var upsertScript = backend.NewScript(`
local exists = redis.call('EXISTS', KEYS[1])
if exists == 0 then
  if ARGV[1] ~= '1' then
    return {0, 0}
  end
  local seq = redis.call('INCR', KEYS[3])
  redis.call('ZADD', KEYS[2], seq, ARGV[5])
  redis.call('HSET', KEYS[1], 'created_at', ARGV[2])
  redis.call('HSET', KEYS[1], 'session', 'null')
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
if ARGV[3] ~= '' then
  redis.call('HSET', KEYS[1], 'session', ARGV[3])
end
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[1], 'expires_at', ARGV[4])
end
return {1, 1 - exists}
`)

// Update applies fields to the selected documents, inserting one on upsert.
func (c *Collection) Update(ctx context.Context, filter ports.Filter, fields ports.Fields, opts ports.UpdateOptions) (ports.UpdateResult, error) {
	var res ports.UpdateResult

	session := ""
	if fields.Session != nil {
		data, err := json.Marshal(fields.Session)
		if err != nil {
			return res, fmt.Errorf("failed to marshal session: %w", err)
		}
		session = string(data)
	}
	expires := ""
	if fields.ExpiresAt != nil {
		expires = strconv.FormatInt(fields.ExpiresAt.UnixMilli(), 10)
	}
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var ids []string
	upsert := "0"
	if !filter.All {
		ids = []string{filter.ID}
		if opts.Upsert {
			upsert = "1"
		}
	} else {
		if opts.Upsert {
			return res, fmt.Errorf("upsert requires a single document filter")
		}
		var err error
		if ids, err = c.indexed(ctx, opts.Multi); err != nil {
			return res, err
		}
	}

	for _, id := range ids {
		out, err := upsertScript.Run(ctx, c.client,
			[]string{c.key(id), c.indexKey(), c.seqKey()},
			upsert, now, session, expires, id,
		).Int64Slice()
		if err != nil {
			return res, fmt.Errorf("failed to update document %s: %w", id, err)
		}
		if len(out) != 2 {
			return res, fmt.Errorf("unexpected update reply for %s: %v", id, out)
		}
		res.Affected += int(out[0])
		res.Upserted = res.Upserted || out[1] == 1
	}
	return res, nil
}

// indexed returns document ids in insertion order, only the first unless all.
func (c *Collection) indexed(ctx context.Context, all bool) ([]string, error) {
	stop := int64(-1)
	if !all {
		stop = 0
	}
	ids, err := c.client.ZRange(ctx, c.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return ids, nil
}

// FindOne returns the first selected document, or nil.
func (c *Collection) FindOne(ctx context.Context, filter ports.Filter) (*domain.Record, error) {
	recs, err := c.Find(ctx, filter)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// Find returns the selected documents in insertion order.
func (c *Collection) Find(ctx context.Context, filter ports.Filter) ([]domain.Record, error) {
	var ids []string
	if !filter.All {
		ids = []string{filter.ID}
	} else {
		var err error
		if ids, err = c.indexed(ctx, true); err != nil {
			return nil, err
		}
	}

	pipe := c.client.Pipeline()
	cmds := make([]*backend.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, c.key(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to read documents: %w", err)
		}
	}

	recs := make([]domain.Record, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decode(ids[i], fields)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func decode(id string, fields map[string]string) (domain.Record, error) {
	rec := domain.Record{ID: id}

	if err := json.Unmarshal([]byte(fields["session"]), &rec.Session); err != nil {
		return rec, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	if v, ok := fields["expires_at"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("invalid expiry on document %s: %w", id, err)
		}
		t := time.UnixMilli(ms)
		rec.ExpiresAt = &t
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("invalid created_at on document %s: %w", id, err)
	}
	updated, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("invalid updated_at on document %s: %w", id, err)
	}
	rec.CreatedAt = time.UnixMilli(created)
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, nil
}

// Remove deletes the selected documents.
func (c *Collection) Remove(ctx context.Context, filter ports.Filter, opts ports.RemoveOptions) (int, error) {
	var ids []string
	if !filter.All {
		ids = []string{filter.ID}
	} else {
		var err error
		if ids, err = c.indexed(ctx, opts.Multi); err != nil {
			return 0, err
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := c.client.TxPipeline()
	dels := make([]*backend.IntCmd, len(ids))
	for i, id := range ids {
		dels[i] = pipe.Del(ctx, c.key(id))
		pipe.ZRem(ctx, c.indexKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}

	removed := 0
	for _, del := range dels {
		removed += int(del.Val())
	}
	return removed, nil
}

// Close closes the redis client when the collection created it.
func (c *Collection) Close() error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}
