package process

import (
	"fmt"
	"sort"
	"strings"
)

// Values is the ordered key/value bag carried by an Outcome.
// A Values is never mutated after construction, every method returns a copy.
type Values struct {
	keys []string
	m    map[string]any
}

// NewValues builds a bag from alternating key/value pairs, in the style of slog.
// Non-string keys are formatted with fmt.Sprint and a trailing key without a
// value is stored as nil. Repeated keys keep their first position and the last value.
func NewValues(kv ...any) Values {
	v := Values{}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		v.set(key, val)
	}
	return v
}

// ValuesFromMap builds a bag from a map. Keys are sorted since maps carry no order.
func ValuesFromMap(m map[string]any) Values {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return ValuesFromOrderedMap(keys, m)
}

// ValuesFromOrderedMap builds a bag from a map using the given key order.
// Keys missing from the map are skipped, map keys missing from order are appended sorted.
func ValuesFromOrderedMap(order []string, m map[string]any) Values {
	v := Values{}
	seen := make(map[string]struct{}, len(order))
	for _, k := range order {
		val, ok := m[k]
		if !ok {
			continue
		}
		seen[k] = struct{}{}
		v.set(k, val)
	}
	if len(seen) == len(m) {
		return v
	}
	rest := make([]string, 0, len(m)-len(seen))
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		v.set(k, m[k])
	}
	return v
}

func (v *Values) set(key string, val any) {
	if v.m == nil {
		v.m = make(map[string]any)
	}
	if _, exists := v.m[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.m[key] = val
}

// Len returns the number of keys.
func (v Values) Len() int { return len(v.keys) }

// Keys returns the keys in insertion order.
func (v Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Has reports whether key was set, even to nil.
func (v Values) Has(key string) bool {
	_, ok := v.m[key]
	return ok
}

// Get returns the value stored under key.
func (v Values) Get(key string) (any, bool) {
	val, ok := v.m[key]
	return val, ok
}

// Map returns a copy of the bag as a plain map.
func (v Values) Map() map[string]any {
	out := make(map[string]any, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

// With returns a copy with key set to val.
func (v Values) With(key string, val any) Values {
	out := v.clone()
	out.set(key, val)
	return out
}

// Merge returns a copy of v overlaid with other. Keys from other win on conflict,
// keys already present keep their position and new keys are appended.
func (v Values) Merge(other Values) Values {
	out := v.clone()
	for _, k := range other.keys {
		out.set(k, other.m[k])
	}
	return out
}

// Only restricts the bag to keys, in the given order.
// It fails with ErrMissingKey naming the first key that was never set.
func (v Values) Only(keys ...string) (Values, error) {
	out := Values{}
	for _, k := range keys {
		val, ok := v.m[k]
		if !ok {
			return Values{}, missingKeyError(k, v.keys)
		}
		out.set(k, val)
	}
	return out, nil
}

// Equal compares keys, order and values.
func (v Values) Equal(other Values) bool {
	if len(v.keys) != len(other.keys) {
		return false
	}
	for i, k := range v.keys {
		if other.keys[i] != k {
			return false
		}
		if !equalValue(v.m[k], other.m[k]) {
			return false
		}
	}
	return true
}

// String renders the key list the way traces display it: "user:, token:".
func (v Values) String() string {
	if len(v.keys) == 0 {
		return ""
	}
	return strings.Join(v.keys, ":, ") + ":"
}

func (v Values) clone() Values {
	out := Values{}
	if len(v.keys) == 0 {
		return out
	}
	out.keys = make([]string, len(v.keys))
	copy(out.keys, v.keys)
	out.m = make(map[string]any, len(v.m))
	for k, val := range v.m {
		out.m[k] = val
	}
	return out
}

// Lookup returns the value under key asserted to T.
func Lookup[T any](v Values, key string) (T, bool) {
	var zero T
	raw, ok := v.m[key]
	if !ok {
		return zero, false
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
