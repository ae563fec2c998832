package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CookieExpires(t *testing.T) {
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		session domain.Session
		want    time.Time
		ok      bool
	}{
		{"nil session", nil, time.Time{}, false},
		{"no cookie", domain.Session{"user": "bob"}, time.Time{}, false},
		{"typed cookie", domain.Session{"cookie": domain.Cookie{Expires: &expires}}, expires, true},
		{"typed cookie pointer", domain.Session{"cookie": &domain.Cookie{Expires: &expires}}, expires, true},
		{"typed cookie without expiry", domain.Session{"cookie": &domain.Cookie{Path: "/"}}, time.Time{}, false},
		{"map with time", domain.Session{"cookie": map[string]any{"expires": expires}}, expires, true},
		{"map with rfc3339 string", domain.Session{"cookie": map[string]any{"expires": "2030-01-02T03:04:05Z"}}, expires, true},
		{"map with garbage", domain.Session{"cookie": map[string]any{"expires": "not a date"}}, time.Time{}, false},
		{"map with null expiry", domain.Session{"cookie": map[string]any{"expires": nil}}, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.session.CookieExpires()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSession_ForStorage(t *testing.T) {
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	sess := domain.Session{
		"user":   "alice",
		"cookie": &domain.Cookie{Path: "/", HTTPOnly: true, Expires: &expires, OriginalMaxAge: time.Hour},
	}

	stored := sess.ForStorage()

	cookie, ok := stored["cookie"].(map[string]any)
	require.True(t, ok, "cookie should be replaced by its data form")
	assert.Equal(t, "/", cookie["path"])
	assert.Equal(t, true, cookie["httpOnly"])
	assert.Equal(t, int64(3600000), cookie["originalMaxAge"])
	assert.Equal(t, "2030-01-02T03:04:05Z", cookie["expires"])
	assert.NotContains(t, cookie, "maxAge")

	// The caller's session is untouched.
	_, stillTyped := sess["cookie"].(*domain.Cookie)
	assert.True(t, stillTyped)

	// Round trip through the stored form keeps the expiry.
	got, ok := stored.CookieExpires()
	require.True(t, ok)
	assert.True(t, expires.Equal(got))
}

func TestSession_Clone(t *testing.T) {
	sess := domain.Session{"nested": map[string]any{"a": []any{1, 2}}}
	clone := sess.Clone()

	clone["nested"].(map[string]any)["a"].([]any)[0] = 99
	assert.Equal(t, 1, sess["nested"].(map[string]any)["a"].([]any)[0])
}

func TestRecord_IsLive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.True(t, (&domain.Record{}).IsLive(now), "no expiry never goes stale")
	assert.True(t, (&domain.Record{ExpiresAt: &future}).IsLive(now))
	assert.False(t, (&domain.Record{ExpiresAt: &past}).IsLive(now))
	assert.False(t, (&domain.Record{ExpiresAt: &now}).IsLive(now), "expiry instant is already stale")
}

func TestNotFoundError(t *testing.T) {
	err := error(&domain.NotFoundError{ID: "abc"})
	assert.EqualError(t, err, "No Session exists with ID abc")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}
