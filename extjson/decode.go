package extjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Unmarshal decodes data into the value v points to. Tagged maps and sets
// decode into Go maps of the target type; into an empty interface they
// become Map and Set.
func Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("extjson: Unmarshal needs a non-nil pointer, got %T", v)
	}
	node, err := parseTree(data)
	if err != nil {
		return err
	}
	return decode(node, rv.Elem())
}

// Parse decodes data into dynamic values: Map, Set, []any, map[string]any,
// string, bool, nil, and numbers as int64 when integral or float64.
func Parse(data []byte) (any, error) {
	node, err := parseTree(data)
	if err != nil {
		return nil, err
	}
	return dynamic(node)
}

func parseTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		return nil, fmt.Errorf("extjson: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("extjson: trailing data after value")
	}
	return node, nil
}

// tagged reports the container tag of an object node and its value list.
func tagged(node any) (string, []any, bool) {
	obj, ok := node.(map[string]any)
	if !ok || len(obj) != 2 {
		return "", nil, false
	}
	tag, ok := obj[tagKey].(string)
	if !ok || (tag != tagMap && tag != tagSet) {
		return "", nil, false
	}
	vals, ok := obj[valueKey].([]any)
	if !ok {
		return "", nil, false
	}
	return tag, vals, true
}

func unmarshalsItself(t reflect.Type) bool {
	return t.Implements(jsonUnmarshaler) || t.Implements(textUnmarshaler)
}

func decodeStd(node any, rv reflect.Value) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("extjson: %w", err)
	}
	if err := json.Unmarshal(raw, rv.Addr().Interface()); err != nil {
		return fmt.Errorf("extjson: %w", err)
	}
	return nil
}

func decode(node any, rv reflect.Value) error {
	t := rv.Type()
	if k := rv.Kind(); k != reflect.Interface && k != reflect.Pointer && unmarshalsItself(reflect.PointerTo(t)) {
		if _, _, isTagged := tagged(node); !isTagged {
			return decodeStd(node, rv)
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if node == nil {
			rv.Set(reflect.Zero(t))
			return nil
		}
		p := reflect.New(t.Elem())
		if err := decode(node, p.Elem()); err != nil {
			return err
		}
		rv.Set(p)
		return nil

	case reflect.Interface:
		if t.NumMethod() != 0 {
			return fmt.Errorf("extjson: cannot decode into non-empty interface %s", t)
		}
		d, err := dynamic(node)
		if err != nil {
			return err
		}
		if d == nil {
			rv.Set(reflect.Zero(t))
		} else {
			rv.Set(reflect.ValueOf(d))
		}
		return nil

	case reflect.Struct:
		if node == nil {
			return nil
		}
		obj, ok := node.(map[string]any)
		if !ok {
			return fmt.Errorf("extjson: expected an object for %s", t)
		}
		for _, f := range fieldsOf(t) {
			sub, ok := obj[f.name]
			if !ok {
				continue
			}
			if err := decode(sub, fieldForSet(rv, f.index)); err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
		}
		return nil

	case reflect.Map:
		return decodeMap(node, rv)

	case reflect.Slice:
		if node == nil {
			rv.Set(reflect.Zero(t))
			return nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return decodeStd(node, rv)
		}
		arr, ok := node.([]any)
		if !ok {
			return fmt.Errorf("extjson: expected an array for %s", t)
		}
		s := reflect.MakeSlice(t, len(arr), len(arr))
		for i, el := range arr {
			if err := decode(el, s.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(s)
		return nil

	case reflect.Array:
		arr, ok := node.([]any)
		if !ok || len(arr) != rv.Len() {
			return fmt.Errorf("extjson: expected an array of %d for %s", rv.Len(), t)
		}
		for i, el := range arr {
			if err := decode(el, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return decodeStd(node, rv)
}

func decodeMap(node any, rv reflect.Value) error {
	t := rv.Type()
	if node == nil {
		rv.Set(reflect.Zero(t))
		return nil
	}
	m := reflect.MakeMap(t)
	tag, vals, ok := tagged(node)
	if !ok {
		// Plain objects are accepted for string-keyed maps.
		obj, isObj := node.(map[string]any)
		if !isObj || t.Key().Kind() != reflect.String {
			return fmt.Errorf("extjson: expected a tagged map for %s", t)
		}
		for k, sub := range obj {
			val := reflect.New(t.Elem()).Elem()
			if err := decode(sub, val); err != nil {
				return err
			}
			m.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), val)
		}
		rv.Set(m)
		return nil
	}

	set := isSetType(t)
	if set != (tag == tagSet) {
		return fmt.Errorf("extjson: cannot decode a %s into %s", tag, t)
	}
	for _, item := range vals {
		keyNode := item
		var valNode any
		if !set {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return fmt.Errorf("extjson: map entry is not a [key, value] pair")
			}
			keyNode, valNode = pair[0], pair[1]
		}
		key := reflect.New(t.Key()).Elem()
		if err := decode(keyNode, key); err != nil {
			return err
		}
		val := reflect.New(t.Elem()).Elem()
		if !set {
			if err := decode(valNode, val); err != nil {
				return err
			}
		}
		m.SetMapIndex(key, val)
	}
	rv.Set(m)
	return nil
}

func dynamic(node any) (any, error) {
	if tag, vals, ok := tagged(node); ok {
		if tag == tagSet {
			s := make(Set, len(vals))
			for _, item := range vals {
				k, err := dynamicKey(item)
				if err != nil {
					return nil, err
				}
				s[k] = struct{}{}
			}
			return s, nil
		}
		m := make(Map, len(vals))
		for _, item := range vals {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("extjson: map entry is not a [key, value] pair")
			}
			k, err := dynamicKey(pair[0])
			if err != nil {
				return nil, err
			}
			v, err := dynamic(pair[1])
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	}

	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, sub := range n {
			v, err := dynamic(sub)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case []any:
		out := make([]any, len(n))
		for i, sub := range n {
			v, err := dynamic(sub)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("extjson: %w", err)
		}
		return f, nil
	}
	return node, nil
}

func dynamicKey(node any) (any, error) {
	k, err := dynamic(node)
	if err != nil {
		return nil, err
	}
	if k != nil && !reflect.TypeOf(k).Comparable() {
		return nil, fmt.Errorf("extjson: %T cannot be a map key or set member", k)
	}
	return k, nil
}
