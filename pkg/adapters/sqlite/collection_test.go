package sqlite_test

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/sessiondb/pkg/adapters/sqlite"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCollection_Contract(t *testing.T) {
	ports.RunCollectionContract(t, func(t *testing.T) ports.Collection {
		return sqlite.New(sqlite.Config{Filename: filepath.Join(t.TempDir(), "sessions.db")})
	})
}

func base64Hooks() (ports.SerializationHook, ports.SerializationHook) {
	after := func(b []byte) ([]byte, error) {
		return []byte(base64.StdEncoding.EncodeToString(b)), nil
	}
	before := func(b []byte) ([]byte, error) {
		return base64.StdEncoding.DecodeString(string(b))
	}
	return after, before
}

func TestSQLiteCollection_PersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "nested", "sessions.db")
	after, before := base64Hooks()
	cfg := sqlite.Config{Filename: filename, AfterSerialization: after, BeforeDeserialization: before}

	c := sqlite.New(cfg)
	require.NoError(t, c.Load(ctx))
	_, err := c.Update(ctx, ports.Filter{ID: "keep"}, ports.Fields{Session: domain.Session{"user": "ana"}}, ports.UpdateOptions{Upsert: true})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	reopened := sqlite.New(cfg)
	require.NoError(t, reopened.Load(ctx))
	defer reopened.Close()

	rec, err := reopened.FindOne(ctx, ports.Filter{ID: "keep"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ana", rec.Session["user"])
}

func TestSQLiteCollection_Hooks(t *testing.T) {
	ctx := context.Background()
	after, before := base64Hooks()

	t.Run("Only One Hook", func(t *testing.T) {
		c := sqlite.New(sqlite.Config{Filename: filepath.Join(t.TempDir(), "s.db"), AfterSerialization: after})
		err := c.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrHooksNotReversible)
	})

	t.Run("Not Reversible", func(t *testing.T) {
		identity := func(b []byte) ([]byte, error) { return b, nil }
		c := sqlite.New(sqlite.Config{
			Filename:              filepath.Join(t.TempDir(), "s.db"),
			AfterSerialization:    after,
			BeforeDeserialization: identity,
		})
		err := c.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrHooksNotReversible)
	})

	t.Run("Reversible", func(t *testing.T) {
		c := sqlite.New(sqlite.Config{
			Filename:              filepath.Join(t.TempDir(), "s.db"),
			AfterSerialization:    after,
			BeforeDeserialization: before,
		})
		require.NoError(t, c.Load(ctx))
		assert.NoError(t, c.Close())
	})
}

func TestSQLiteCollection_CorruptAlertThreshold(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "sessions.db")
	after, before := base64Hooks()

	// Write 4 documents through the base64 hooks.
	writer := sqlite.New(sqlite.Config{Filename: filename, AfterSerialization: after, BeforeDeserialization: before})
	require.NoError(t, writer.Load(ctx))
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := writer.Update(ctx, ports.Filter{ID: id}, ports.Fields{Session: domain.Session{"id": id}}, ports.UpdateOptions{Upsert: true})
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	// A reader whose hook rejects "c" sees 1 of 4 documents as corrupt.
	picky := func(b []byte) ([]byte, error) {
		out, err := before(b)
		if err != nil {
			return nil, err
		}
		if string(out) == `{"id":"c"}` {
			return []byte("{broken"), nil
		}
		return out, nil
	}

	t.Run("Above Threshold", func(t *testing.T) {
		threshold := 0.2
		c := sqlite.New(sqlite.Config{
			Filename:              filename,
			AfterSerialization:    after,
			BeforeDeserialization: picky,
			CorruptAlertThreshold: &threshold,
		})
		err := c.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrCorruptData)
	})

	t.Run("Below Threshold Drops Corrupt", func(t *testing.T) {
		threshold := 0.5
		c := sqlite.New(sqlite.Config{
			Filename:              filename,
			AfterSerialization:    after,
			BeforeDeserialization: picky,
			CorruptAlertThreshold: &threshold,
		})
		require.NoError(t, c.Load(ctx))
		defer c.Close()

		recs, err := c.Find(ctx, ports.All)
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	})
}

func TestSQLiteCollection_DatafileLock(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "sessions.db")

	first := sqlite.New(sqlite.Config{Filename: filename})
	require.NoError(t, first.Load(ctx))

	second := sqlite.New(sqlite.Config{Filename: filename})
	assert.Error(t, second.Load(ctx), "a second owner must not open a locked datafile")

	require.NoError(t, first.Close())

	third := sqlite.New(sqlite.Config{Filename: filename})
	require.NoError(t, third.Load(ctx), "the lock is released on Close")
	require.NoError(t, third.Close())
}

func TestSQLiteCollection_Autocompaction(t *testing.T) {
	ctx := context.Background()
	c := sqlite.New(sqlite.Config{Filename: filepath.Join(t.TempDir(), "sessions.db")})
	require.NoError(t, c.Load(ctx))
	defer c.Close()

	require.NoError(t, c.Compact(ctx))

	c.SetAutocompactionInterval(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.AutocompactionInterval())

	c.StopAutocompaction()
	assert.Zero(t, c.AutocompactionInterval())
}

func TestSQLiteCollection_NotLoaded(t *testing.T) {
	c := sqlite.New(sqlite.Config{Filename: filepath.Join(t.TempDir(), "sessions.db")})
	_, err := c.Find(context.Background(), ports.All)
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
}

func TestSQLiteCollection_OrderSurvivesCompaction(t *testing.T) {
	ctx := context.Background()
	c := sqlite.New(sqlite.Config{Filename: filepath.Join(t.TempDir(), "sessions.db")})
	require.NoError(t, c.Load(ctx))
	defer c.Close()

	for _, id := range []string{"z", "a", "m", "b"} {
		_, err := c.Update(ctx, ports.Filter{ID: id}, ports.Fields{Session: domain.Session{}}, ports.UpdateOptions{Upsert: true})
		require.NoError(t, err)
	}
	_, err := c.Remove(ctx, ports.Filter{ID: "a"}, ports.RemoveOptions{})
	require.NoError(t, err)

	require.NoError(t, c.Compact(ctx))

	recs, err := c.Find(ctx, ports.All)
	require.NoError(t, err)
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"z", "m", "b"}, ids)
}
