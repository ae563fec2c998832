package domain

import (
	"time"

	"github.com/spf13/cast"
)

// CookieKey is the Session entry holding the session cookie.
const CookieKey = "cookie"

// Session is the payload a session middleware hands to the store.
// The store treats it as opaque apart from the "cookie" entry.
type Session map[string]any

// CookieData is implemented by cookie values that offer an explicit
// serialization representation. Only the returned map is persisted.
type CookieData interface {
	Data() map[string]any
}

// Cookie describes the session cookie as a middleware tracks it.
type Cookie struct {
	Path     string
	Domain   string
	HTTPOnly bool
	Secure   bool
	SameSite string

	// Expires is the absolute expiry of the cookie. Nil means a browser-session cookie.
	Expires *time.Time

	// OriginalMaxAge is the lifetime the cookie was issued with.
	OriginalMaxAge time.Duration
}

// MaxAge is derived from Expires and is never persisted.
func (c Cookie) MaxAge(now time.Time) time.Duration {
	if c.Expires == nil {
		return 0
	}
	return c.Expires.Sub(now)
}

// Data returns the persisted form of the cookie.
func (c Cookie) Data() map[string]any {
	data := map[string]any{
		"path":     c.Path,
		"httpOnly": c.HTTPOnly,
		"secure":   c.Secure,
	}
	if c.Domain != "" {
		data["domain"] = c.Domain
	}
	if c.SameSite != "" {
		data["sameSite"] = c.SameSite
	}
	if c.OriginalMaxAge > 0 {
		data["originalMaxAge"] = c.OriginalMaxAge.Milliseconds()
	}
	if c.Expires != nil {
		data["expires"] = c.Expires.UTC().Format(time.RFC3339Nano)
	}
	return data
}

// CookieExpires extracts the explicit expiry carried by the session cookie.
// It returns false when the session has no cookie, the cookie has no expiry,
// or the expiry cannot be coerced to a timestamp.
func (s Session) CookieExpires() (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}

	switch c := s[CookieKey].(type) {
	case nil:
		return time.Time{}, false
	case Cookie:
		return derefTime(c.Expires)
	case *Cookie:
		if c == nil {
			return time.Time{}, false
		}
		return derefTime(c.Expires)
	case CookieData:
		return coerceTime(c.Data()["expires"])
	case map[string]any:
		return coerceTime(c["expires"])
	default:
		return time.Time{}, false
	}
}

// ForStorage returns a shallow copy of the session whose cookie has been
// replaced by its serialization representation, when it offers one.
func (s Session) ForStorage() Session {
	if s == nil {
		return nil
	}

	out := make(Session, len(s))
	for k, v := range s {
		out[k] = v
	}

	switch c := s[CookieKey].(type) {
	case *Cookie:
		if c != nil {
			out[CookieKey] = c.Data()
		}
	case CookieData:
		out[CookieKey] = c.Data()
	}
	return out
}

// Clone returns a deep copy of the maps and slices reachable from the session.
func (s Session) Clone() Session {
	if s == nil {
		return nil
	}
	return Session(cloneMap(s))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Session:
		return Session(cloneMap(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func derefTime(t *time.Time) (time.Time, bool) {
	if t == nil || t.IsZero() {
		return time.Time{}, false
	}
	return *t, true
}

func coerceTime(v any) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	if t, ok := v.(*time.Time); ok {
		return derefTime(t)
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
