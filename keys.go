package cached

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// kwMark separates positional arguments from keyword pairs in a key
// token, so args ("a", "b") can never collide with arg ("a") plus
// kwarg b.
const kwMark = "\x00kw\x00"

// typeMark precedes the appended type names of a typed token.
const typeMark = "\x00type\x00"

// MakeKey derives a hashable token from call arguments. Keyword
// arguments are sorted by name, so the order they were passed in never
// affects the token. With typed set, the runtime type name of every
// argument is appended, making values that compare equal but differ in
// type (int 1 vs float64 1) produce distinct keys.
//
// A token consisting of a single int or string collapses to that raw
// value. This only shortcuts the work handed to Hash and never changes
// observable cache behavior.
func MakeKey(args []any, kwargs map[string]any, typed bool) any {
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]any, 0, len(args)+2*len(names)+2)
	parts = append(parts, args...)
	if len(names) > 0 {
		parts = append(parts, kwMark)
		for _, name := range names {
			parts = append(parts, name, kwargs[name])
		}
	}
	if typed {
		parts = append(parts, typeMark)
		for _, arg := range args {
			parts = append(parts, fmt.Sprintf("%T", arg))
		}
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%T", kwargs[name]))
		}
	}

	if len(parts) == 1 {
		switch parts[0].(type) {
		case int, string:
			return parts[0]
		}
	}
	return parts
}

// mapMark tags a map rewritten into a sorted pair list, so a map token
// can never collide with a plain slice of the same elements.
const mapMark = "\x00map\x00"

// Hash returns the SHA-256 hex digest of the canonically serialized
// token, so equal tokens hash identically on every call and in every
// process even when they contain maps, whose iteration order is
// randomized. Key derivation always uses this fixed encoding regardless
// of the backend's value serializer; equal tokens must land on the same
// row no matter how values are stored. Logically distinct tokens
// collide only with negligible probability.
func Hash(token any) (string, error) {
	canon, err := canonicalToken(token)
	if err != nil {
		return "", err
	}
	data, err := msgpack.Marshal(canon)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "cached: hash key"), ErrSerialization)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalToken rewrites token into a form whose msgpack encoding is
// deterministic: every map, at any nesting depth, becomes a
// mapMark-tagged list of key/value pairs ordered by the keys' own
// encoding. Anything else passes through untouched. The msgpack
// encoder's SetSortMapKeys only covers a few concrete map types, not
// maps reached through reflection, so ordering is normalized here
// instead.
func canonicalToken(token any) (any, error) {
	rv := reflect.ValueOf(token)
	switch rv.Kind() {
	case reflect.Map:
		type pair struct {
			order    []byte
			key, val any
		}
		pairs := make([]pair, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := canonicalToken(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			v, err := canonicalToken(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			order, err := msgpack.Marshal(k)
			if err != nil {
				return nil, errors.Mark(errors.Wrap(err, "cached: hash key"), ErrSerialization)
			}
			pairs = append(pairs, pair{order: order, key: k, val: v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			return bytes.Compare(pairs[i].order, pairs[j].order) < 0
		})
		out := make([]any, 0, 2*len(pairs)+1)
		out = append(out, mapMark)
		for _, p := range pairs {
			out = append(out, p.key, p.val)
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return token, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := canonicalToken(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	default:
		return token, nil
	}
}

// resolveKey turns a caller-supplied key into the final storage key:
// the hex digest of the key token, prefixed with the namespace
// identifier when one is configured. Pre-hashed string keys skip the
// digest step.
func (cfg *config) resolveKey(key any, opts []CallOption) (string, error) {
	var cc callConfig
	for _, opt := range opts {
		opt(&cc)
	}

	identifier := cfg.identifier
	if cc.overrideID {
		identifier = cc.identifier
	}

	var digest string
	if cc.hashed {
		s, ok := key.(string)
		if !ok {
			return "", errors.Newf("cached: pre-hashed key must be a string, got %T", key)
		}
		digest = s
	} else {
		var err error
		digest, err = Hash(key)
		if err != nil {
			return "", err
		}
	}

	if identifier == "" {
		return digest, nil
	}
	return identifier + "." + digest, nil
}
