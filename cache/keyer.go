package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Keyer derives the primary cache key for a namespace and input.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key from a namespace and input.
	Key(namespace string, input any) (string, error)
}

// DefaultKeyer derives keys of the form cache:<namespace>:<digest>, where
// digest is the first 16 hex characters of SHA-256 over the canonical JSON
// encoding of the input.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key implements Keyer.
func (k *DefaultKeyer) Key(namespace string, input any) (string, error) {
	return deriveKey(namespace, input, func(canonical []byte) string {
		sum := sha256.Sum256(canonical)
		return hex.EncodeToString(sum[:8])
	})
}

// FastKeyer derives keys like DefaultKeyer using xxhash64. Use it when inputs
// are not attacker controlled.
type FastKeyer struct{}

// NewFastKeyer creates a new xxhash keyer.
func NewFastKeyer() *FastKeyer {
	return &FastKeyer{}
}

// Key implements Keyer.
func (k *FastKeyer) Key(namespace string, input any) (string, error) {
	return deriveKey(namespace, input, func(canonical []byte) string {
		return fmt.Sprintf("%016x", xxhash.Sum64(canonical))
	})
}

func deriveKey(namespace string, input any, digest func([]byte) string) (string, error) {
	canonical, err := appendCanonical(make([]byte, 0, 128), input)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize input for %q: %w", namespace, err)
	}
	return "cache:" + namespace + ":" + digest(canonical), nil
}

// appendCanonical appends a JSON encoding of v to dst with object members
// sorted by name at every depth reached through map[string]any and []any.
func appendCanonical(dst []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(dst, "null"...), nil

	case map[string]string:
		dst = append(dst, '{')
		for i, name := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendJSONString(dst, name)
			dst = append(dst, ':')
			dst = appendJSONString(dst, val[name])
		}
		return append(dst, '}'), nil

	case map[string]any:
		dst = append(dst, '{')
		for i, name := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendJSONString(dst, name)
			dst = append(dst, ':')
			var err error
			if dst, err = appendCanonical(dst, val[name]); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil

	case []any:
		dst = append(dst, '[')
		for i, elem := range val {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			if dst, err = appendCanonical(dst, elem); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil

	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return append(dst, b...), nil
	}
}

func appendJSONString(dst []byte, s string) []byte {
	b, _ := json.Marshal(s)
	return append(dst, b...)
}

// varyKey renders vary values in a stable order for flight deduplication.
func varyKey(vary map[string]string) string {
	if len(vary) == 0 {
		return ""
	}
	out := make([]byte, 0, 16*len(vary))
	for _, k := range slices.Sorted(maps.Keys(vary)) {
		out = strconv.AppendQuote(out, k)
		out = append(out, '=')
		out = strconv.AppendQuote(out, vary[k])
		out = append(out, ';')
	}
	return string(out)
}

var (
	_ Keyer = (*DefaultKeyer)(nil)
	_ Keyer = (*FastKeyer)(nil)
)
