package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a mutation targets a session ID that is not stored.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNothingWritten is returned when an upsert reports no affected document and no insert.
	ErrNothingWritten = errors.New("write affected no documents")

	// ErrNotLoaded is returned by every operation once the backing collection failed to load.
	ErrNotLoaded = errors.New("collection is not loaded")

	// ErrCorruptData is returned when too many stored documents cannot be decoded.
	ErrCorruptData = errors.New("corrupt data exceeds alert threshold")

	// ErrCompactionUnsupported is returned by Compact on collections that cannot compact.
	ErrCompactionUnsupported = errors.New("collection does not support compaction")

	// ErrHooksNotReversible is returned when BeforeDeserialization does not undo AfterSerialization.
	ErrHooksNotReversible = errors.New("serialization hooks are not reversible")
)

// NotFoundError reports a Touch against a session that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No Session exists with ID %s", e.ID)
}

// Is lets errors.Is(err, ErrSessionNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrSessionNotFound
}
