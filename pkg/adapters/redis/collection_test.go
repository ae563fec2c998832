package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessiondb/pkg/adapters/redis"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCollection_Contract(t *testing.T) {
	ports.RunCollectionContract(t, func(t *testing.T) ports.Collection {
		mr := miniredis.RunT(t)
		client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return redis.NewFromClient(client)
	})
}

func TestRedisCollection_FromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := redis.New("redis://"+mr.Addr()+"/0", redis.WithPrefix("app:"))
	require.NoError(t, err)
	require.NoError(t, c.Load(ctx))
	defer c.Close()

	_, err = c.Update(ctx, ports.Filter{ID: "s1"}, ports.Fields{Session: domain.Session{"a": "b"}}, ports.UpdateOptions{Upsert: true})
	require.NoError(t, err)

	assert.True(t, mr.Exists("app:doc:s1"))
	members, err := mr.ZMembers("app:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, members)
}

func TestRedisCollection_InvalidURL(t *testing.T) {
	_, err := redis.New("not-a-url")
	assert.Error(t, err)
}

func TestRedisCollection_LoadUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := backend.NewClient(&backend.Options{Addr: addr, MaxRetries: -1})
	defer client.Close()

	c := redis.NewFromClient(client)
	assert.Error(t, c.Load(context.Background()))
}
