package cached

import "github.com/cockroachdb/errors"

// Sentinel errors classifying cache failures. A lookup miss is never an
// error; these cover genuine faults so callers can tell "no cached
// value" apart from "cache is broken" with errors.Is.
var (
	// ErrNotImplemented reports an operation the backend cannot support,
	// such as Clear over a property bag that cannot be enumerated.
	ErrNotImplemented = errors.New("cached: not implemented")

	// ErrSerialization reports a value that cannot be converted to or
	// from its storage byte representation.
	ErrSerialization = errors.New("cached: serialization failed")

	// ErrStorageUnavailable reports that the durable store could not be
	// opened or created. It is surfaced at construction time, never
	// deferred to the first Get or Set.
	ErrStorageUnavailable = errors.New("cached: storage unavailable")
)
