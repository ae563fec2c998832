/*
Package domain contains the core models shared by the session store and its
backing collections.

It is kept free of I/O and persistence concerns, following the same hexagonal
layout as the adapters that depend on it.

# Key Entities

  - Session: the host's session payload, an unstructured map with a "cookie" entry.
  - Cookie: a typed cookie description that knows how to serialize itself.
  - Record: one stored document (ID, Session, ExpiresAt, CreatedAt, UpdatedAt).
  - Event: connectivity and error signals emitted by the store.
*/
package domain
