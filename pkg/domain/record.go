package domain

import "time"

// Record is a stored session document.
type Record struct {
	// ID is the session identifier and primary key.
	ID string `json:"_id"`

	// Session is the payload as last written by Set.
	Session Session `json:"session"`

	// ExpiresAt is the point after which the record is stale. Nil never expires.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsLive reports whether the record is still valid at now.
// A record is live iff it has no expiry or now is strictly before it.
func (r *Record) IsLive(now time.Time) bool {
	if r.ExpiresAt == nil {
		return true
	}
	return now.Before(*r.ExpiresAt)
}

// Clone returns a copy that shares no mutable state with r.
func (r *Record) Clone() *Record {
	out := *r
	out.Session = r.Session.Clone()
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}
