package eval

import (
	"reflect"
	"strings"
	"sync"
)

// Lookup resolves a dotted path in parameter data. Each step descends
// through maps with string-convertible keys or through structs, where `db`
// tags take priority over field names. The boolean reports whether the full
// path was present; absent paths are not an error at this layer.
func Lookup(data map[string]any, path string) (any, bool) {
	return lookupSegments(data, strings.Split(path, "."))
}

func lookupSegments(data map[string]any, segs []string) (any, bool) {
	var cur any = data
	for _, seg := range segs {
		v, ok := lookupStep(cur, seg)
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func lookupStep(in any, name string) (any, bool) {
	// Fast path for the common parameter shape.
	if m, ok := in.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}

	v := reflect.ValueOf(in)
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, false
	}

	switch v.Kind() {
	case reflect.Map:
		keyType := v.Type().Key()
		key := reflect.ValueOf(name)
		if key.Type() != keyType {
			if !key.Type().ConvertibleTo(keyType) {
				return nil, false
			}
			key = key.Convert(keyType)
		}
		mv := v.MapIndex(key)
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Struct:
		fields := fieldsOf(v.Type())
		i, ok := fields[name]
		if !ok {
			return nil, false
		}
		return v.Field(i).Interface(), true
	}
	return nil, false
}

// fieldCache caches the name to field index mapping per struct type.
// Generating reflection information is relatively expensive and the same
// handful of parameter types is looked up on every bind.
type fieldCache struct {
	mutex sync.RWMutex
	cache map[reflect.Type]map[string]int
}

var structFields = &fieldCache{cache: map[reflect.Type]map[string]int{}}

// fieldsOf returns the field index mapping for a struct type, generating and
// caching it as required. A `db` tag names the field when present; untagged
// exported fields are reachable under their Go name. A tag of "-" hides the
// field.
func fieldsOf(t reflect.Type) map[string]int {
	structFields.mutex.RLock()
	fields, ok := structFields.cache[t]
	structFields.mutex.RUnlock()
	if ok {
		return fields
	}

	fields = map[string]int{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			// Unexported.
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "-" {
			continue
		}
		if tag != "" {
			if comma := strings.Index(tag, ","); comma >= 0 {
				tag = tag[:comma]
			}
			fields[tag] = i
			continue
		}
		fields[field.Name] = i
	}

	structFields.mutex.Lock()
	structFields.cache[t] = fields
	structFields.mutex.Unlock()
	return fields
}
