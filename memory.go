package cached

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/cockroachdb/errors"
)

// envelope carries a serialized payload together with its absolute UTC
// expiry inside a single bag property.
type envelope struct {
	Data    []byte    `msgpack:"d"`
	Expires time.Time `msgpack:"e"`
}

// Memory is the ephemeral backend: entries live in a host-provided
// shared property bag and disappear when the host process restarts.
// There is no sweep; an expired entry is deleted by the first read that
// observes it. Properties are keyed <tag>.<identifier>.<digest> and
// hold a base64 blob of (payload, expiry), so they stay representable
// as plain string values.
type Memory struct {
	bag PropertyBag
	cfg config
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an ephemeral cache over bag. A nil bag falls back
// to WithBag, then to a process-local bag from NewMemoryBag.
func NewMemory(bag PropertyBag, opts ...Option) *Memory {
	cfg := applyOptions(opts)
	if bag == nil {
		bag = cfg.bag
	}
	if bag == nil {
		bag = NewMemoryBag()
	}
	return &Memory{bag: bag, cfg: cfg}
}

// property prefixes the backend tag, keeping these entries clear of
// unrelated uses of the same shared bag.
func (c *Memory) property(key string) string {
	return c.cfg.tag + "." + key
}

func (c *Memory) Get(ctx context.Context, key any, opts ...CallOption) (bool, any, error) {
	k, err := c.cfg.resolveKey(key, opts)
	if err != nil {
		return false, nil, err
	}
	prop := c.property(k)

	raw := c.bag.GetProperty(prop)
	if raw == "" {
		return false, nil, nil
	}
	blob, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return false, nil, errors.Mark(errors.Wrap(err, "cached: decode property"), ErrSerialization)
	}
	var env envelope
	if err := c.cfg.serializer.Unmarshal(blob, &env); err != nil {
		return false, nil, errors.Mark(errors.Wrap(err, "cached: decode envelope"), ErrSerialization)
	}
	if !env.Expires.After(time.Now()) {
		// Expired data is removed on first observation, not left to
		// linger until the host restarts.
		c.bag.ClearProperty(prop)
		return false, nil, nil
	}
	return true, env.Data, nil
}

func (c *Memory) Set(ctx context.Context, key, val any, ttl time.Duration, opts ...CallOption) error {
	k, err := c.cfg.resolveKey(key, opts)
	if err != nil {
		return err
	}
	data, err := c.cfg.serializer.Marshal(val)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "cached: marshal value"), ErrSerialization)
	}
	blob, err := c.cfg.serializer.Marshal(envelope{
		Data:    data,
		Expires: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "cached: marshal envelope"), ErrSerialization)
	}
	c.bag.SetProperty(c.property(k), base64.StdEncoding.EncodeToString(blob))
	return nil
}

func (c *Memory) Remove(ctx context.Context, key any, opts ...CallOption) (bool, error) {
	k, err := c.cfg.resolveKey(key, opts)
	if err != nil {
		return false, err
	}
	prop := c.property(k)
	found := c.bag.GetProperty(prop) != ""
	c.bag.ClearProperty(prop)
	return found, nil
}

// Clear is unsupported: the bag interface has no enumeration.
func (c *Memory) Clear(context.Context) error {
	return errors.Wrap(ErrNotImplemented, "cached: clear over a property bag")
}

// Close is a no-op; the bag belongs to the host.
func (c *Memory) Close() error {
	return nil
}

func (c *Memory) serializer() Serializer {
	return c.cfg.serializer
}
