/*
Package sessiondb is an expiry-aware session store for HTTP session middleware.

Sessions are opaque documents stored under a session id, each with an expiry
taken from its cookie or from a default lifetime. Expired sessions are never
returned: reads treat them as absent and remove them.

# Backends

The store runs on a pluggable collection:

  - SQLite datafile (default): durable, single writer, with optional
    payload hooks (compression, AES-GCM encryption) and periodic compaction.
  - Memory: nothing survives the process.
  - Redis: shared between processes.

# Usage

	store, err := sessiondb.Open("data/sessions.db",
		sessiondb.WithDefaultExpiry(24*time.Hour),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "sid", sessiondb.Session{"user": "ana"}); err != nil {
		log.Fatal(err)
	}

	sess, err := store.Get(ctx, "sid") // nil when missing or expired

All methods are safe for concurrent use and block until the collection has
loaded, or until their context is done.
*/
package sessiondb
