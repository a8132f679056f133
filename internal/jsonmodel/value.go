// Package jsonmodel implements the scanner's recursive JSON document model:
// parsing, deep-key detection, deep-path primitive lookup, full primitive
// flattening, and non-destructive set-by-dotted-path. It is the substrate
// the mutation generator, scan orchestrator, and finding classifier all
// build on.
package jsonmodel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the JSON type a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// Value is a node in a parsed JSON document. Exactly one of the typed
// fields is meaningful, selected by Kind. Object preserves insertion
// order; the tree as a whole is always finite (no cycles are producible
// from a JSON parse).
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Object *Object
	Array  []*Value
}

// Object is an insertion-ordered string -> *Value mapping. Keys are
// unique; re-Setting an existing key updates its value in place without
// moving it to the end.
type Object struct {
	keys   []string
	values map[string]*Value
}

// NewObject returns an empty, ready-to-use Object.
func NewObject() *Object {
	return &Object{values: make(map[string]*Value)}
}

// Keys returns the object's keys in insertion order. The returned slice
// must not be mutated by the caller.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Get returns the value stored under key, or nil if absent.
func (o *Object) Get(key string) (*Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is an own key of the object.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.values[key]
	return ok
}

// Set inserts or overwrites key with v. Order of first insertion is kept.
func (o *Object) Set(key string, v *Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Clone returns a shallow copy: a new key/value table referencing the
// same child *Value pointers. Used by SetDeep to avoid mutating
// untouched siblings while still giving each touched level a fresh
// identity.
func (o *Object) Clone() *Object {
	if o == nil {
		return NewObject()
	}
	clone := &Object{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]*Value, len(o.values)),
	}
	for k, v := range o.values {
		clone.values[k] = v
	}
	return clone
}

// Len reports the number of own keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

func Null() *Value                 { return &Value{Kind: KindNull} }
func Bool(b bool) *Value           { return &Value{Kind: KindBool, Bool: b} }
func Number(n float64) *Value      { return &Value{Kind: KindNumber, Number: n} }
func String(s string) *Value       { return &Value{Kind: KindString, Str: s} }
func ObjectValue(o *Object) *Value { return &Value{Kind: KindObject, Object: o} }
func ArrayValue(a []*Value) *Value { return &Value{Kind: KindArray, Array: a} }

// IsObject, IsArray, IsPrimitive classify a node. A nil Value is treated
// as neither present nor primitive by callers; these methods assume a
// non-nil receiver already establishes the node exists.
func (v *Value) IsObject() bool { return v != nil && v.Kind == KindObject }
func (v *Value) IsArray() bool  { return v != nil && v.Kind == KindArray }

// IsPrimitive reports whether v is a string, number, bool, or null — the
// set of JSON types get_primitive_deep and get_all_primitives traverse
// into as terminal leaves.
func (v *Value) IsPrimitive() bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case KindString, KindNumber, KindBool, KindNull:
		return true
	default:
		return false
	}
}

// Stringify implements safe_stringify (spec.md §4.5): undefined -> "undefined";
// primitives -> their natural text form; objects/arrays -> canonical
// serialization. A nil Value is treated as the "undefined" marker.
func Stringify(v *Value) string {
	if v == nil {
		return "undefined"
	}
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return v.Str
	case KindNumber:
		return formatNumber(v.Number)
	case KindObject, KindArray:
		data, err := Serialize(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ContainsKeyDeep performs a depth-first search over objects and arrays
// and reports whether any object node in the tree carries key as an own
// key, regardless of the key's value type.
func ContainsKeyDeep(v *Value, key string) bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case KindObject:
		if v.Object.Has(key) {
			return true
		}
		for _, k := range v.Object.Keys() {
			child, _ := v.Object.Get(k)
			if ContainsKeyDeep(child, key) {
				return true
			}
		}
		return false
	case KindArray:
		for _, child := range v.Array {
			if ContainsKeyDeep(child, key) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// GetPrimitiveDeep resolves key against v. If key contains a ".", it is
// treated as a dotted path and traversed through object children in
// order, returning the terminal value iff it is a primitive. Otherwise
// it performs a depth-first search for the first object node carrying
// key whose value is itself a primitive.
func GetPrimitiveDeep(v *Value, key string) (*Value, bool) {
	if strings.Contains(key, ".") {
		return getByDottedPath(v, strings.Split(key, "."))
	}
	return firstPrimitiveDFS(v, key)
}

func getByDottedPath(v *Value, segments []string) (*Value, bool) {
	cur := v
	for _, seg := range segments {
		if !cur.IsObject() {
			return nil, false
		}
		child, ok := cur.Object.Get(seg)
		if !ok {
			return nil, false
		}
		cur = child
	}
	if cur.IsPrimitive() {
		return cur, true
	}
	return nil, false
}

func firstPrimitiveDFS(v *Value, key string) (*Value, bool) {
	if v == nil {
		return nil, false
	}
	switch v.Kind {
	case KindObject:
		if child, ok := v.Object.Get(key); ok && child.IsPrimitive() {
			return child, true
		}
		for _, k := range v.Object.Keys() {
			child, _ := v.Object.Get(k)
			if found, ok := firstPrimitiveDFS(child, key); ok {
				return found, true
			}
		}
		return nil, false
	case KindArray:
		for _, child := range v.Array {
			if found, ok := firstPrimitiveDFS(child, key); ok {
				return found, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// GetAllPrimitives recursively enumerates every primitive leaf under v,
// keyed by its dotted/bracketed path ("a.b" for object descent, "a[i]"
// for array indices), valued by its Stringify-ed form.
func GetAllPrimitives(v *Value, prefix string) map[string]string {
	out := make(map[string]string)
	collectPrimitives(v, prefix, out)
	return out
}

func collectPrimitives(v *Value, prefix string, out map[string]string) {
	if v == nil {
		return
	}
	switch v.Kind {
	case KindObject:
		for _, k := range v.Object.Keys() {
			child, _ := v.Object.Get(k)
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			collectPrimitives(child, path, out)
		}
	case KindArray:
		for i, child := range v.Array {
			path := fmt.Sprintf("%s[%d]", prefix, i)
			collectPrimitives(child, path, out)
		}
	default:
		if v.IsPrimitive() && prefix != "" {
			out[prefix] = Stringify(v)
		}
	}
}

// SetDeep returns a new tree with path (object-descent only, no array
// indices) created or overwritten to value under obj. Only the spine of
// touched nodes is freshly allocated; siblings and untouched subtrees are
// shared with obj. Intermediate nodes that are not objects are replaced
// by fresh objects.
func SetDeep(obj *Value, path string, value *Value) *Value {
	segments := strings.Split(path, ".")
	return setDeepSegments(obj, segments, value)
}

func setDeepSegments(node *Value, segments []string, value *Value) *Value {
	key := segments[0]
	var base *Object
	if node.IsObject() {
		base = node.Object.Clone()
	} else {
		base = NewObject()
	}

	if len(segments) == 1 {
		base.Set(key, value)
		return ObjectValue(base)
	}

	child, _ := base.Get(key)
	base.Set(key, setDeepSegments(child, segments[1:], value))
	return ObjectValue(base)
}

// SortedPaths is a small test/debug helper returning the keys of a
// GetAllPrimitives map in sorted order, so assertions on flattened
// documents are deterministic regardless of map iteration order.
func SortedPaths(m map[string]string) []string {
	paths := make([]string, 0, len(m))
	for k := range m {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}
