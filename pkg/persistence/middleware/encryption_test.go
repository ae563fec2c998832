package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"path/filepath"
	"testing"

	"github.com/aretw0/sessiondb/pkg/adapters/sqlite"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/persistence/middleware"
	"github.com/aretw0/sessiondb/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionHooks_Roundtrip(t *testing.T) {
	hooks, err := middleware.NewEncryptionHooks(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	plain := []byte(`{"secret":"my-secret-sauce"}`)
	sealed, err := hooks.After(plain)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "my-secret-sauce")

	opened, err := hooks.Before(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestEncryptionHooks_KeyRotation(t *testing.T) {
	oldKey := generateKey(t)
	newKey := generateKey(t)

	oldHooks, err := middleware.NewEncryptionHooks(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	rotated, err := middleware.NewEncryptionHooks(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)

	// 1. Written with the old key, readable after rotation
	sealed, err := oldHooks.After([]byte("encrypted-with-old-key"))
	require.NoError(t, err)
	opened, err := rotated.Before(sealed)
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", string(opened))

	// 2. Rewritten with the new key, no longer readable with only the old one
	resealed, err := rotated.After(opened)
	require.NoError(t, err)
	_, err = oldHooks.Before(resealed)
	assert.Error(t, err)
}

func TestEncryptionHooks_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionHooks(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionHooks(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}

func TestChain_CompressThenEncrypt(t *testing.T) {
	compression, err := middleware.NewCompressionHooks()
	require.NoError(t, err)
	encryption, err := middleware.NewEncryptionHooks(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	hooks := middleware.Chain(compression, encryption)

	// The chain is accepted by a durable collection and survives a round trip.
	ctx := context.Background()
	c := sqlite.New(sqlite.Config{
		Filename:              filepath.Join(t.TempDir(), "sessions.db"),
		AfterSerialization:    hooks.After,
		BeforeDeserialization: hooks.Before,
	})
	require.NoError(t, c.Load(ctx))
	defer c.Close()

	_, err = c.Update(ctx, ports.Filter{ID: "s"}, ports.Fields{Session: domain.Session{"secret": "sauce"}}, ports.UpdateOptions{Upsert: true})
	require.NoError(t, err)

	rec, err := c.FindOne(ctx, ports.Filter{ID: "s"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sauce", rec.Session["secret"])
}

func TestDecodeKey(t *testing.T) {
	key, err := middleware.DecodeKey("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = middleware.DecodeKey("%%%")
	assert.Error(t, err)
}
