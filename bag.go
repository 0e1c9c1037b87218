package cached

import "sync"

// PropertyBag is the host-provided shared key/value store backing the
// ephemeral cache, e.g. a process-wide property window. Implementations
// must be safe for concurrent use; the cache adds no locking of its own
// around the bag.
type PropertyBag interface {
	// GetProperty returns the value stored under key, or "" if absent.
	GetProperty(key string) string
	// SetProperty stores value under key, replacing any previous value.
	SetProperty(key, value string)
	// ClearProperty removes key from the bag.
	ClearProperty(key string)
}

type memoryBag struct {
	mu    sync.RWMutex
	props map[string]string
}

// NewMemoryBag returns a mutex-guarded in-process PropertyBag for hosts
// that do not supply their own.
func NewMemoryBag() PropertyBag {
	return &memoryBag{props: make(map[string]string)}
}

func (b *memoryBag) GetProperty(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props[key]
}

func (b *memoryBag) SetProperty(key, value string) {
	b.mu.Lock()
	b.props[key] = value
	b.mu.Unlock()
}

func (b *memoryBag) ClearProperty(key string) {
	b.mu.Lock()
	delete(b.props, key)
	b.mu.Unlock()
}
