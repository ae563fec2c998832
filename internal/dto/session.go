package dto

import (
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
)

// SessionView is the JSON shape of a stored session in the admin API and CLI.
type SessionView struct {
	ID        string         `json:"id"`
	Session   domain.Session `json:"session"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// NewSessionView converts a record for display.
func NewSessionView(rec domain.Record) SessionView {
	return SessionView{
		ID:        rec.ID,
		Session:   rec.Session,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// CountView is the response of the session count endpoint.
type CountView struct {
	Count int `json:"count"`
}

// ErrorView is the JSON error body of the admin API.
type ErrorView struct {
	Error string `json:"error"`
}
