// Package types holds the ordered key representation shared by the index
// manager and the query engine: a small tagged set of comparable key kinds,
// ranked so that null < bool < number < string, plus a composite tuple key
// for multi-field indexes.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Comparable is the interface every index/query key kind implements.
type Comparable interface {
	// Compare returns -1/0/1. Implementations must accept any other
	// Comparable, not just their own concrete type, so that keys of
	// differing kinds order correctly against each other.
	Compare(other Comparable) int
	String() string
}

// rank orders the key kinds themselves: Null < Bool < Number < String.
// Arrays/objects fold into VarcharKey via their canonical JSON form, so they
// rank alongside strings, per the key-ordering rule.
func rank(c Comparable) int {
	switch c.(type) {
	case NullKey:
		return 0
	case BoolKey:
		return 1
	case FloatKey, IntKey:
		return 2
	case VarcharKey:
		return 3
	case DateKey:
		return 2 // dates compare as an ordered scalar alongside numbers
	default:
		return 4
	}
}

func numeric(c Comparable) (float64, bool) {
	switch v := c.(type) {
	case IntKey:
		return float64(v), true
	case FloatKey:
		return float64(v), true
	}
	return 0, false
}

// NullKey represents an absent or JSON-null field.
type NullKey struct{}

func (NullKey) Compare(other Comparable) int {
	if _, ok := other.(NullKey); ok {
		return 0
	}
	return -1
}
func (NullKey) String() string { return "null" }

// IntKey is an integral numeric key.
type IntKey int64

func (k IntKey) Compare(other Comparable) int { return compareScalar(k, other) }
func (k IntKey) String() string               { return fmt.Sprintf("%d", int64(k)) }

// FloatKey is a floating point numeric key.
type FloatKey float64

func (k FloatKey) Compare(other Comparable) int { return compareScalar(k, other) }
func (k FloatKey) String() string               { return fmt.Sprintf("%g", float64(k)) }

// BoolKey orders false before true.
type BoolKey bool

func (k BoolKey) Compare(other Comparable) int {
	if rank(k) != rank(other) {
		return cmpInt(rank(k), rank(other))
	}
	o := other.(BoolKey)
	if k == o {
		return 0
	}
	if !bool(k) && bool(o) {
		return -1
	}
	return 1
}
func (k BoolKey) String() string { return fmt.Sprintf("%t", bool(k)) }

// VarcharKey is a string key; arrays/objects are folded into this kind via
// their canonical JSON form before reaching an index or query predicate.
type VarcharKey string

func (k VarcharKey) Compare(other Comparable) int {
	if rank(k) != rank(other) {
		return cmpInt(rank(k), rank(other))
	}
	o := other.(VarcharKey)
	return strings.Compare(string(k), string(o))
}
func (k VarcharKey) String() string { return string(k) }

// DateKey wraps a timestamp; it ranks alongside numeric keys since it is a
// scalar ordered value, consistent with created_at/updated_at range scans.
type DateKey time.Time

func (k DateKey) Compare(other Comparable) int {
	if rank(k) != rank(other) {
		return cmpInt(rank(k), rank(other))
	}
	o, ok := other.(DateKey)
	if !ok {
		return cmpInt(rank(k), rank(other))
	}
	t, u := time.Time(k), time.Time(o)
	if t.Before(u) {
		return -1
	}
	if t.After(u) {
		return 1
	}
	return 0
}
func (k DateKey) String() string { return time.Time(k).Format(time.RFC3339Nano) }

func compareScalar(k Comparable, other Comparable) int {
	if rank(k) != rank(other) {
		return cmpInt(rank(k), rank(other))
	}
	a, aok := numeric(k)
	b, bok := numeric(other)
	if aok && bok {
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	}
	return 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// CompositeKey is an ordered tuple of per-field keys, used by composite
// indexes. Comparison is lexicographic over the component keys.
type CompositeKey []Comparable

func (c CompositeKey) Compare(other Comparable) int {
	o, ok := other.(CompositeKey)
	if !ok {
		return 1
	}
	n := len(c)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if d := c[i].Compare(o[i]); d != 0 {
			return d
		}
	}
	return cmpInt(len(c), len(o))
}

func (c CompositeKey) String() string {
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// HasPrefix reports whether c's leading components equal prefix exactly,
// used by the index manager's order-sensitive composite prefix matching.
func (c CompositeKey) HasPrefix(prefix CompositeKey) bool {
	if len(prefix) > len(c) {
		return false
	}
	for i := range prefix {
		if c[i].Compare(prefix[i]) != 0 {
			return false
		}
	}
	return true
}

// FromJSON converts a decoded JSON value (the result of encoding/json
// unmarshalling into `any`) into the ordered Comparable representation used
// by indexes and query predicates. Arrays and objects fold into a VarcharKey
// holding their canonical form, sufficient for equality but not ordering.
func FromJSON(v any) Comparable {
	switch val := v.(type) {
	case nil:
		return NullKey{}
	case bool:
		return BoolKey(val)
	case float64:
		return FloatKey(val)
	case int:
		return FloatKey(float64(val))
	case int64:
		return FloatKey(float64(val))
	case string:
		return VarcharKey(val)
	case time.Time:
		return DateKey(val)
	default:
		return VarcharKey(Canonicalize(v))
	}
}

// Canonicalize renders an arbitrary decoded JSON value as a deterministic
// string: object keys are sorted (encoding/json already does this for
// map[string]any), so two structurally equal values always canonicalize
// identically.
func Canonicalize(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		fmt.Fprintf(b, "%t", val)
	case float64:
		fmt.Fprintf(b, "%g", val)
	case string:
		fmt.Fprintf(b, "%q", val)
	case []any:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%q:", k)
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%v", val)
	}
}
