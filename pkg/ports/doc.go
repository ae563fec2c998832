/*
Package ports defines the driven ports (interfaces) of the session store.

These interfaces decouple the expiry-aware store from the storage engines that
actually hold documents, so the same store logic runs over SQLite, Redis or a
process-local map.

# Key Interfaces

  - Collection: document operations (Update, FindOne, Find, Remove) plus the load signal.
  - AutoCompactor: optional periodic compaction owned by the collection.
  - Compactor: optional on-demand compaction.
*/
package ports
