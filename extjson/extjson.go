// Package extjson is JSON that keeps container identity. Go maps travel as
// {"__dtype":"map","value":[[k,v],...]} and maps whose element type is
// struct{} travel as {"__dtype":"set","value":[...]}, so non-string keys
// and sets survive a round trip. Structs, slices and scalars encode as
// encoding/json would, honouring json tags and json/text marshalers.
package extjson

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

const (
	tagKey   = "__dtype"
	valueKey = "value"
	tagMap   = "map"
	tagSet   = "set"
)

// Map is the dynamic form of a tagged map.
type Map map[any]any

// Set is the dynamic form of a tagged set.
type Set map[any]struct{}

var (
	jsonMarshaler   = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshaler   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	jsonUnmarshaler = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Marshal encodes v. Map entries and set members are sorted by their
// encoded key so equal values give equal bytes.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalsItself(t reflect.Type) bool {
	return t.Implements(jsonMarshaler) || t.Implements(textMarshaler)
}

func encode(buf *bytes.Buffer, rv reflect.Value) error {
	if !rv.IsValid() {
		buf.WriteString("null")
		return nil
	}
	t := rv.Type()
	if rv.Kind() != reflect.Interface && marshalsItself(t) {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encodeStd(buf, rv.Interface())
	}
	if rv.CanAddr() && marshalsItself(reflect.PointerTo(t)) {
		return encodeStd(buf, rv.Addr().Interface())
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encode(buf, rv.Elem())

	case reflect.Struct:
		return encodeStruct(buf, rv)

	case reflect.Map:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encodeMap(buf, rv)

	case reflect.Slice:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return encodeStd(buf, rv.Interface())
		}
		return encodeArray(buf, rv)

	case reflect.Array:
		return encodeArray(buf, rv)

	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return fmt.Errorf("extjson: unsupported type %s", t)
	}
	return encodeStd(buf, rv.Interface())
}

func encodeStd(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("extjson: %w", err)
	}
	buf.Write(b)
	return nil
}

func encodeArray(buf *bytes.Buffer, rv reflect.Value) error {
	buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, rv.Index(i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeStruct(buf *bytes.Buffer, rv reflect.Value) error {
	buf.WriteByte('{')
	first := true
	for _, f := range fieldsOf(rv.Type()) {
		fv, ok := fieldByIndex(rv, f.index)
		if !ok || (f.omitEmpty && isEmpty(fv)) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name, _ := json.Marshal(f.name)
		buf.Write(name)
		buf.WriteByte(':')
		if err := encode(buf, fv); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

type entry struct {
	key []byte
	val []byte
}

func encodeMap(buf *bytes.Buffer, rv reflect.Value) error {
	set := isSetType(rv.Type())
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb bytes.Buffer
		if err := encode(&kb, iter.Key()); err != nil {
			return err
		}
		e := entry{key: kb.Bytes()}
		if !set {
			var vb bytes.Buffer
			if err := encode(&vb, iter.Value()); err != nil {
				return err
			}
			e.val = vb.Bytes()
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })

	tag := tagMap
	if set {
		tag = tagSet
	}
	fmt.Fprintf(buf, `{%q:%q,%q:[`, tagKey, tag, valueKey)
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		if set {
			buf.Write(e.key)
			continue
		}
		buf.WriteByte('[')
		buf.Write(e.key)
		buf.WriteByte(',')
		buf.Write(e.val)
		buf.WriteByte(']')
	}
	buf.WriteString("]}")
	return nil
}

func isSetType(t reflect.Type) bool {
	e := t.Elem()
	return e.Kind() == reflect.Struct && e.NumField() == 0
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

// ---------------------------------------------------------------------------
// Struct fields
// ---------------------------------------------------------------------------

type field struct {
	name      string
	index     []int
	omitEmpty bool
}

// fieldsOf lists the encoded fields of t. Untagged embedded structs are
// flattened the way encoding/json flattens them.
func fieldsOf(t reflect.Type) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		ft := sf.Type
		if sf.Anonymous && name == "" {
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				for _, inner := range fieldsOf(ft) {
					inner.index = append([]int{i}, inner.index...)
					out = append(out, inner)
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out = append(out, field{name: name, index: []int{i}, omitEmpty: strings.Contains(opts, "omitempty")})
	}
	return out
}

func fieldByIndex(rv reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}, false
			}
			rv = rv.Elem()
		}
		rv = rv.Field(x)
	}
	return rv, true
}

// fieldForSet walks index allocating nil embedded pointers.
func fieldForSet(rv reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			rv = rv.Elem()
		}
		rv = rv.Field(x)
	}
	return rv
}
