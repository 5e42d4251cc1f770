package saved

import (
	"errors"
	"fmt"
	"strings"
)

// keySeparator divides the region from the item ID within a Key
const keySeparator = ":"

// ErrMalformedKey indicates that a string can't be used as a Key
var ErrMalformedKey = errors.New("malformed saved key")

// Key identifies a saved item within a region-partitioned catalog. It has the
// form "<region>:<itemId>". Apart from building catalog requests, the
// application treats a Key as opaque.
type Key string

// NewKey builds a Key from its parts.
func NewKey(region, itemID string) (Key, error) {
	if strings.Contains(region, keySeparator) {
		return "", fmt.Errorf("%w: region %q contains %q", ErrMalformedKey, region, keySeparator)
	}
	return ParseKey(region + keySeparator + itemID)
}

// ParseKey validates s and returns it as a Key. Both the region and the item ID
// must be non-empty, and the region can't contain the separator. The item ID
// may, since catalogs are free to choose their own IDs.
func ParseKey(s string) (Key, error) {
	region, itemID, ok := strings.Cut(s, keySeparator)
	if !ok {
		return "", fmt.Errorf("%w: %q has no region separator", ErrMalformedKey, s)
	}
	if strings.TrimSpace(region) == "" || strings.TrimSpace(itemID) == "" {
		return "", fmt.Errorf("%w: %q needs both a region and an item ID", ErrMalformedKey, s)
	}
	return Key(s), nil
}

// Region returns the catalog region of k
func (k Key) Region() string {
	r, _, _ := strings.Cut(string(k), keySeparator)
	return r
}

// ItemID returns the catalog item ID of k
func (k Key) ItemID() string {
	_, id, _ := strings.Cut(string(k), keySeparator)
	return id
}

func (k Key) String() string {
	return string(k)
}

// ParseKeys converts raw strings into Keys, dropping any that are malformed.
// The second return value is the number of entries dropped.
func ParseKeys(raw []string) ([]Key, int) {
	keys := make([]Key, 0, len(raw))
	dropped := 0
	for _, s := range raw {
		k, err := ParseKey(s)
		if err != nil {
			dropped++
			continue
		}
		keys = append(keys, k)
	}
	return keys, dropped
}

// Strings is the inverse of ParseKeys
func Strings(keys []Key) []string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	return s
}

// Dedupe returns keys with every repeated key removed. The first occurrence of
// each key keeps its position.
func Dedupe(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Union returns the keys of a followed by any keys of b that a lacks. Order
// within each input is preserved.
func Union(a, b []Key) []Key {
	out := make([]Key, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return Dedupe(out)
}

// Difference returns the keys of a that are not in b, in a's order.
func Difference(a, b []Key) []Key {
	in := make(map[Key]struct{}, len(b))
	for _, k := range b {
		in[k] = struct{}{}
	}
	var out []Key
	for _, k := range a {
		if _, ok := in[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
