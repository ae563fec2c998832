package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCollectionContract runs a suite of tests to verify that a Collection
// implementation adheres to the interface contract. newCollection must
// return an empty, unloaded collection; the suite loads and closes it.
func RunCollectionContract(t *testing.T, newCollection func(t *testing.T) Collection) {
	ctx := context.Background()

	setup := func(t *testing.T) Collection {
		t.Helper()
		c := newCollection(t)
		require.NoError(t, c.Load(ctx), "Load should not return error")
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	t.Run("Upsert and FindOne", func(t *testing.T) {
		c := setup(t)
		expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)

		// 1. Upsert creates
		res, err := c.Update(ctx, Filter{ID: "a"}, Fields{
			Session:   domain.Session{"foo": "bar", "count": 42},
			ExpiresAt: &expires,
		}, UpdateOptions{Upsert: true})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Affected)
		assert.True(t, res.Upserted)

		// 2. FindOne returns it with timestamps
		rec, err := c.FindOne(ctx, Filter{ID: "a"})
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "a", rec.ID)
		assert.Equal(t, "bar", rec.Session["foo"])
		// JSON persistence may turn ints into float64, only check existence.
		assert.NotNil(t, rec.Session["count"])
		require.NotNil(t, rec.ExpiresAt)
		assert.True(t, expires.Equal(*rec.ExpiresAt), "want %v, got %v", expires, *rec.ExpiresAt)
		assert.False(t, rec.CreatedAt.IsZero())
		assert.False(t, rec.UpdatedAt.IsZero())

		// 3. Upsert again replaces without creating
		res, err = c.Update(ctx, Filter{ID: "a"}, Fields{
			Session: domain.Session{"foo": "baz"},
		}, UpdateOptions{Upsert: true})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Affected)
		assert.False(t, res.Upserted)

		rec, err = c.FindOne(ctx, Filter{ID: "a"})
		require.NoError(t, err)
		assert.Equal(t, "baz", rec.Session["foo"])
		require.NotNil(t, rec.ExpiresAt, "untouched fields are kept")
		assert.True(t, expires.Equal(*rec.ExpiresAt))
	})

	t.Run("FindOne Non-Existent", func(t *testing.T) {
		c := setup(t)
		rec, err := c.FindOne(ctx, Filter{ID: "missing"})
		assert.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("Update Without Upsert", func(t *testing.T) {
		c := setup(t)

		res, err := c.Update(ctx, Filter{ID: "ghost"}, Fields{}, UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Affected)
		assert.False(t, res.Upserted)

		rec, err := c.FindOne(ctx, Filter{ID: "ghost"})
		require.NoError(t, err)
		assert.Nil(t, rec, "update without upsert must not create")
	})

	t.Run("Update Refreshes UpdatedAt", func(t *testing.T) {
		c := setup(t)
		_, err := c.Update(ctx, Filter{ID: "t"}, Fields{Session: domain.Session{}}, UpdateOptions{Upsert: true})
		require.NoError(t, err)
		before, err := c.FindOne(ctx, Filter{ID: "t"})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		res, err := c.Update(ctx, Filter{ID: "t"}, Fields{}, UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Affected)

		after, err := c.FindOne(ctx, Filter{ID: "t"})
		require.NoError(t, err)
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
		assert.True(t, after.CreatedAt.Equal(before.CreatedAt))
	})

	t.Run("Find Preserves Insertion Order", func(t *testing.T) {
		c := setup(t)
		for _, id := range []string{"one", "two", "three"} {
			_, err := c.Update(ctx, Filter{ID: id}, Fields{Session: domain.Session{"id": id}}, UpdateOptions{Upsert: true})
			require.NoError(t, err)
		}
		// Rewriting a document does not move it.
		_, err := c.Update(ctx, Filter{ID: "one"}, Fields{Session: domain.Session{"id": "one", "v": 2}}, UpdateOptions{Upsert: true})
		require.NoError(t, err)

		recs, err := c.Find(ctx, All)
		require.NoError(t, err)
		ids := make([]string, 0, len(recs))
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{"one", "two", "three"}, ids)

		recs, err = c.Find(ctx, Filter{ID: "two"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "two", recs[0].ID)
	})

	t.Run("Remove", func(t *testing.T) {
		c := setup(t)
		for _, id := range []string{"r1", "r2", "r3"} {
			_, err := c.Update(ctx, Filter{ID: id}, Fields{Session: domain.Session{}}, UpdateOptions{Upsert: true})
			require.NoError(t, err)
		}

		n, err := c.Remove(ctx, Filter{ID: "r2"}, RemoveOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = c.Remove(ctx, Filter{ID: "r2"}, RemoveOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, n, "removing a missing document is not an error")

		n, err = c.Remove(ctx, All, RemoveOptions{Multi: true})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		recs, err := c.Find(ctx, All)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("Single Document Filters Leave Others Alone", func(t *testing.T) {
		c := setup(t)
		for _, id := range []string{"a", "b"} {
			_, err := c.Update(ctx, Filter{ID: id}, Fields{Session: domain.Session{"owner": id}}, UpdateOptions{Upsert: true})
			require.NoError(t, err)
		}

		for _, id := range []string{"", "c"} {
			rec, err := c.FindOne(ctx, Filter{ID: id})
			require.NoError(t, err)
			assert.Nil(t, rec, "FindOne(%q)", id)

			recs, err := c.Find(ctx, Filter{ID: id})
			require.NoError(t, err)
			assert.Empty(t, recs, "Find(%q)", id)

			res, err := c.Update(ctx, Filter{ID: id}, Fields{Session: domain.Session{"owner": "intruder"}}, UpdateOptions{})
			require.NoError(t, err)
			assert.Equal(t, 0, res.Affected, "Update(%q)", id)

			n, err := c.Remove(ctx, Filter{ID: id}, RemoveOptions{})
			require.NoError(t, err)
			assert.Equal(t, 0, n, "Remove(%q)", id)
		}

		// An upsert on the empty id creates its own document.
		res, err := c.Update(ctx, Filter{ID: ""}, Fields{Session: domain.Session{"owner": "intruder"}}, UpdateOptions{Upsert: true})
		require.NoError(t, err)
		assert.True(t, res.Upserted)

		for _, id := range []string{"a", "b"} {
			rec, err := c.FindOne(ctx, Filter{ID: id})
			require.NoError(t, err)
			require.NotNil(t, rec, id)
			assert.Equal(t, id, rec.Session["owner"])
		}
		recs, err := c.Find(ctx, All)
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	})

	t.Run("Upsert Requires Single Document Filter", func(t *testing.T) {
		c := setup(t)
		_, err := c.Update(ctx, All, Fields{Session: domain.Session{}}, UpdateOptions{Upsert: true})
		assert.Error(t, err)

		recs, err := c.Find(ctx, All)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("Returned Records Are Isolated", func(t *testing.T) {
		c := setup(t)
		_, err := c.Update(ctx, Filter{ID: "iso"}, Fields{Session: domain.Session{"k": "v"}}, UpdateOptions{Upsert: true})
		require.NoError(t, err)

		rec, err := c.FindOne(ctx, Filter{ID: "iso"})
		require.NoError(t, err)
		rec.Session["k"] = "mutated"

		again, err := c.FindOne(ctx, Filter{ID: "iso"})
		require.NoError(t, err)
		assert.Equal(t, "v", again.Session["k"])
	})
}
