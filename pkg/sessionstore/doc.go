/*
Package sessionstore implements an expiry-aware session store over a document collection.

A Store translates the session lifecycle calls of a web session middleware
(Set, Get, Touch, Destroy, All, Length, Clear) into operations on a
ports.Collection and applies one expiration policy on every read path.

# Expiry

Each record carries an ExpiresAt derived at write time from the session
cookie's explicit expiry, or from Options.DefaultExpiry when the cookie has
none. A record is live while now is strictly before ExpiresAt. Stale records
are never returned: Get destroys them before answering, All and Length filter
them out and remove them in the background.

# Loading

New returns immediately and loads the collection in the background.
Operations issued meanwhile wait for the load to finish or for their context
to be done. Listeners registered with Subscribe (or Options.Listeners) receive
a connect event on success, and disconnect plus error events on failure.

# Usage

	store, err := sessionstore.New(sessionstore.Options{Filename: "data/sessions.db"})
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Set(ctx, "sid", domain.Session{"cookie": &domain.Cookie{Path: "/"}, "user": 42})
	sess, err := store.Get(ctx, "sid")
*/
package sessionstore
