package pipeline

import (
	"fmt"
	"reflect"
	"sort"
)

// ShapeKind tags the variant of a Shape.
type ShapeKind int

const (
	// Scalar is any value that is neither a sequence nor a mapping. It is treated as a
	// one-entry sequence.
	Scalar ShapeKind = iota
	// Sequence is a slice or array. Byte slices ([]byte, json.RawMessage) are scalars.
	Sequence
	// Mapping is a map. Its entries are ordered by key.
	Mapping
)

func (k ShapeKind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "scalar"
	}
}

// Entry is one element of a coerced value. Key is the int index for sequences and
// scalars, or the map key for mappings.
type Entry struct {
	Key   any
	Value any
}

// Shape is a value coerced into ordered entries, remembering enough about the
// original container to rebuild one of the same shape.
type Shape struct {
	Kind    ShapeKind
	Entries []Entry
	keyType reflect.Type
}

// Coerce converts v into a Shape.
func Coerce(v any) Shape {
	if v == nil {
		return Shape{Kind: Scalar, Entries: []Entry{{Key: 0, Value: nil}}}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return Shape{Kind: Scalar, Entries: []Entry{{Key: 0, Value: v}}}
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		entries := make([]Entry, rv.Len())
		for i := range entries {
			entries[i] = Entry{Key: i, Value: rv.Index(i).Interface()}
		}
		return Shape{Kind: Sequence, Entries: entries}
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			entries[i] = Entry{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}
		}
		return Shape{Kind: Mapping, Entries: entries, keyType: rv.Type().Key()}
	default:
		return Shape{Kind: Scalar, Entries: []Entry{{Key: 0, Value: v}}}
	}
}

// Values returns the entry values in order.
func (s Shape) Values() []any {
	out := make([]any, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Value
	}
	return out
}

// Rebuild returns a container of the same shape holding entries: map[K]any for a
// mapping with key type K, []any otherwise.
func (s Shape) Rebuild(entries []Entry) any {
	if s.Kind != Mapping {
		out := make([]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Value)
		}
		return out
	}
	if s.keyType == nil || s.keyType.Kind() == reflect.String && s.keyType.PkgPath() == "" {
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			out[fmt.Sprint(e.Key)] = e.Value
		}
		return out
	}
	anyType := reflect.TypeOf((*any)(nil)).Elem()
	out := reflect.MakeMapWithSize(reflect.MapOf(s.keyType, anyType), len(entries))
	for _, e := range entries {
		val := reflect.New(anyType).Elem()
		if e.Value != nil {
			val.Set(reflect.ValueOf(e.Value))
		}
		out.SetMapIndex(reflect.ValueOf(e.Key), val)
	}
	return out.Interface()
}

func lessKey(a, b reflect.Value) bool {
	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.String:
			return a.String() < b.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return a.Uint() < b.Uint()
		case reflect.Float32, reflect.Float64:
			return a.Float() < b.Float()
		}
	}
	return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
}
