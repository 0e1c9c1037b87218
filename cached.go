package cached

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Cache is the contract shared by every backend. A lookup miss is
// reported through the found bool, never through an error.
type Cache interface {
	// Get returns the entry stored under key, if present and not
	// expired. Serialized backends return the raw payload as []byte;
	// use the package-level Get[T] helper for typed retrieval.
	Get(ctx context.Context, key any, opts ...CallOption) (bool, any, error)

	// Set stores val under key, reachable until now + ttl. A zero or
	// negative ttl writes an entry that is already expired.
	Set(ctx context.Context, key any, val any, ttl time.Duration, opts ...CallOption) error

	// Remove deletes the entry if present and reports whether it was.
	Remove(ctx context.Context, key any, opts ...CallOption) (bool, error)

	// Clear drops every entry regardless of expiry. Backends that
	// cannot enumerate their store return ErrNotImplemented.
	Clear(ctx context.Context) error

	// Close releases backend resources. Operations after Close are
	// undefined.
	Close() error
}

// DefaultCleanupInterval is how often the durable backend sweeps
// expired rows when no interval is configured.
const DefaultCleanupInterval = 15 * time.Minute

// config holds the resolved configuration for a backend.
type config struct {
	identifier      string
	cleanupInterval time.Duration
	serializer      Serializer
	path            string
	bag             PropertyBag
	tag             string
}

// Option configures a backend at construction time.
type Option func(*config)

func defaultConfig() config {
	return config{
		cleanupInterval: DefaultCleanupInterval,
		serializer:      DefaultSerializer,
		tag:             "cached",
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithIdentifier sets the namespace identifier prefixed into every key,
// typically a release version. Entries written under one identifier are
// invisible under another, so bumping it logically empties the cache
// without deleting old rows.
func WithIdentifier(id string) Option {
	return func(c *config) { c.identifier = id }
}

// WithCleanupInterval sets the cadence of the durable backend's lazy
// expiry sweep. Defaults to DefaultCleanupInterval (15 minutes).
func WithCleanupInterval(d time.Duration) Option {
	return func(c *config) { c.cleanupInterval = d }
}

// WithSerializer replaces the value codec. Defaults to msgpack.
func WithSerializer(s Serializer) Option {
	return func(c *config) { c.serializer = s }
}

// WithPath sets the durable backend's database file. Defaults to
// cached.sqlite under the user cache directory; ":memory:" keeps the
// store off disk.
func WithPath(path string) Option {
	return func(c *config) { c.path = path }
}

// WithBag supplies the host's shared property bag to the ephemeral
// backend. Defaults to a process-local bag from NewMemoryBag.
func WithBag(bag PropertyBag) Option {
	return func(c *config) { c.bag = bag }
}

// WithTag sets the ephemeral backend's key prefix, separating its
// entries from unrelated uses of the same bag. Defaults to "cached".
func WithTag(tag string) Option {
	return func(c *config) { c.tag = tag }
}

// callConfig holds per-operation key options.
type callConfig struct {
	hashed     bool
	identifier string
	overrideID bool
}

// CallOption adjusts key derivation for a single Get, Set or Remove.
type CallOption func(*callConfig)

// Hashed marks the key as already hashed: the caller-supplied string is
// used as the final key component without another digest pass.
func Hashed() CallOption {
	return func(c *callConfig) { c.hashed = true }
}

// InNamespace overrides the backend's namespace identifier for one
// operation.
func InNamespace(id string) CallOption {
	return func(c *callConfig) {
		c.identifier = id
		c.overrideID = true
	}
}

// Get retrieves a typed value from c. Live values (ephemeral tiers that
// skipped serialization) are type-asserted directly; []byte payloads
// from serialized backends are decoded with the backend's own
// serializer. This works transparently regardless of which backend
// produced the value.
func Get[T any](ctx context.Context, c Cache, key any, opts ...CallOption) (bool, T, error) {
	found, val, err := c.Get(ctx, key, opts...)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	out, err := decodeAs[T](serializerOf(c), val)
	if err != nil {
		var zero T
		return false, zero, err
	}
	return true, out, nil
}

// serializerOf resolves the codec a cache stores payloads with, so
// typed retrieval decodes with the same serializer Set encoded with.
func serializerOf(c Cache) Serializer {
	if p, ok := c.(interface{ serializer() Serializer }); ok {
		return p.serializer()
	}
	return DefaultSerializer
}

func decodeAs[T any](s Serializer, val any) (T, error) {
	if typed, ok := val.(T); ok {
		return typed, nil
	}
	if data, ok := val.([]byte); ok {
		var out T
		if err := s.Unmarshal(data, &out); err != nil {
			var zero T
			return zero, errors.Mark(errors.Wrap(err, "cached: unmarshal value"), ErrSerialization)
		}
		return out, nil
	}
	var zero T
	return zero, errors.Newf("cached: cannot convert value of type %T to %T", val, zero)
}

// Backend identifies a concrete backend type in the singleton registry.
type Backend int

const (
	// SQLiteBackend is the durable single-file store.
	SQLiteBackend Backend = iota
	// MemoryBackend is the ephemeral property-bag store.
	MemoryBackend
)

var (
	registryMu sync.Mutex
	registry   = map[Backend]Cache{}
)

// Instance returns the process-wide singleton for the given backend,
// constructing it on first use with opts. Later calls return the same
// instance and ignore opts. Distinct backend types never share an
// instance. Construct a backend directly to bypass the registry, e.g.
// in tests or to address multiple physical stores.
func Instance(backend Backend, opts ...Option) (Cache, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if c, ok := registry[backend]; ok {
		return c, nil
	}

	var (
		c   Cache
		err error
	)
	switch backend {
	case SQLiteBackend:
		c, err = NewSQLite("", opts...)
	case MemoryBackend:
		c = NewMemory(nil, opts...)
	default:
		err = errors.Wrapf(ErrNotImplemented, "cached: unknown backend %d", backend)
	}
	if err != nil {
		return nil, err
	}
	registry[backend] = c
	return c, nil
}

// CloseInstances closes every registered singleton and empties the
// registry. It is the clean way to end the singletons' resource
// lifetimes, typically at process shutdown or between tests.
func CloseInstances() error {
	registryMu.Lock()
	defer registryMu.Unlock()
	var firstErr error
	for backend, c := range registry {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(registry, backend)
	}
	return firstErr
}
