package cached

import (
	"context"
	"reflect"
	"runtime"
	"time"
)

// MemoFunc is the shape of a memoizable function.
type MemoFunc[T any] func(ctx context.Context, args ...any) (T, error)

type memoConfig struct {
	name     string
	typed    bool
	callOpts []CallOption
}

// MemoOption configures Memoize.
type MemoOption func(*memoConfig)

// WithName overrides the qualified function name mixed into the cache
// key. Useful when distinct closures would otherwise share a runtime
// name.
func WithName(name string) MemoOption {
	return func(c *memoConfig) { c.name = name }
}

// WithTypedKeys makes arguments that compare equal but differ in type
// (int 1 vs float64 1) produce distinct keys.
func WithTypedKeys() MemoOption {
	return func(c *memoConfig) { c.typed = true }
}

// WithCallOptions forwards per-call options such as InNamespace to
// every cache access the memoized function performs.
func WithCallOptions(opts ...CallOption) MemoOption {
	return func(c *memoConfig) { c.callOpts = opts }
}

// Memoize returns a function that serves repeated calls with equal
// arguments from cache instead of re-executing fn. The key combines the
// qualified function name with the arguments, so same-named methods on
// different types never share results: the name is resolved from the
// function value itself via the runtime and carries the owning type,
// e.g. "pkg.(*Client).Lookup". A bound method value already excludes
// its receiver from the argument list, which is the receiver-exclusion
// behavior instance methods need.
//
// On a hit the cached value is returned without invoking fn; a cached
// zero value is still a hit, since presence is tracked separately from
// the value. Errors from fn propagate unchanged and nothing is cached
// for that call. A failing cache never suppresses fn's own result: read
// errors fall through to calling fn and write errors are dropped after
// fn has produced its value.
func Memoize[T any](cache Cache, ttl time.Duration, fn MemoFunc[T], opts ...MemoOption) MemoFunc[T] {
	var cfg memoConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = funcName(fn)
	}

	return func(ctx context.Context, args ...any) (T, error) {
		token := MakeKey(append([]any{cfg.name}, args...), nil, cfg.typed)

		found, val, err := cache.Get(ctx, token, cfg.callOpts...)
		if err == nil && found {
			if out, derr := decodeAs[T](serializerOf(cache), val); derr == nil {
				return out, nil
			}
		}

		out, err := fn(ctx, args...)
		if err != nil {
			var zero T
			return zero, err
		}
		_ = cache.Set(ctx, token, out, ttl, cfg.callOpts...)
		return out, nil
	}
}

// funcName resolves the qualified runtime name of fn.
func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	if f := runtime.FuncForPC(pc); f != nil {
		return f.Name()
	}
	return "func"
}
