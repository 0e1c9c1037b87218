package cached

import "github.com/vmihailenco/msgpack/v5"

// Serializer converts values to and from the storage byte
// representation. Backends accept a replacement via WithSerializer, for
// callers that need a faster or safer codec than the default.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type msgpackSerializer struct{}

func (msgpackSerializer) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackSerializer) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// DefaultSerializer is the msgpack codec used by every backend unless
// overridden. Primitives, strings, slices, maps, exported struct fields
// and time.Time all round-trip; functions and channels do not and cause
// Set to fail with ErrSerialization.
var DefaultSerializer Serializer = msgpackSerializer{}
