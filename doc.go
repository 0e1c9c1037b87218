// Package cached is a generic TTL cache with two interchangeable
// backends and a function-memoization layer on top.
//
// # Cache Interface
//
// The [Cache] interface defines five operations: [Cache.Get],
// [Cache.Set], [Cache.Remove], [Cache.Clear] and [Cache.Close]. Both
// backends satisfy it, so they can be swapped without changing
// application code. Absence is reported through a found bool, never an
// error, so a miss can always be told apart from a broken cache.
//
// Keys may be arbitrary values: they are serialized and reduced to a
// SHA-256 hex digest (see [MakeKey] and [Hash]), optionally prefixed by
// a namespace identifier. Bumping the identifier — typically a release
// version — logically empties the cache without deleting anything; old
// entries age out via their TTL. Callers holding a pre-derived string
// key can pass [Hashed] to skip the digest step.
//
// # Backends
//
//   - [NewSQLite] — durable single-file store using [modernc.org/sqlite]
//     (pure Go, no CGO). Rows carry an absolute UTC expiry; reads only
//     return rows that have not expired, and expired rows are swept
//     lazily by regular traffic once per cleanup interval rather than
//     by a background timer. A persisted schema-version marker is
//     readable and settable independently of the rows.
//
//   - [NewMemory] — ephemeral store over a host-provided [PropertyBag],
//     a process-wide string key/value bag that is already safe for
//     concurrent use. Entries are base64 blobs of (payload, expiry);
//     an expired entry is deleted by the first read that observes it.
//     Cleared when the host process restarts.
//
//   - [NewComposite] — chains caches; Get returns the first hit and Set
//     writes through every tier, enabling an ephemeral L1 in front of a
//     durable L2.
//
// Each backend type has a process-wide singleton reachable through
// [Instance]; constructing a backend directly bypasses the registry.
//
// # Typed Retrieval
//
// Serialized backends hand back raw msgpack bytes. The generic [Get]
// helper decodes them into the requested type, and asserts directly
// when a tier stored the live value:
//
//	found, user, err := cached.Get[User](ctx, c, userID)
//
// # Read-Through and Memoization
//
// [Loading] wraps a cache and a loader: on miss the loader runs
// synchronously and its result is stored with the cache's TTL.
// [Memoize] wraps an arbitrary function so repeated calls with equal
// arguments are served from cache:
//
//	lookup := cached.Memoize(c, time.Hour, fetchRelease)
//	rel, err := lookup(ctx, "v1.2.3")
//
// Neither layer deduplicates concurrent misses: two goroutines missing
// on the same key both invoke the function and the last write wins.
// That trade-off is deliberate.
//
// # Errors
//
// Failures are classified with sentinels ([ErrSerialization],
// [ErrStorageUnavailable], [ErrNotImplemented]) and wrapped, so
// errors.Is works through any call path. Misses are silent; genuine
// failures are never collapsed into a miss.
package cached
