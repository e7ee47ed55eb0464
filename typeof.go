package conv

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Type descriptor vocabulary. Parameter schemas, validation failures, and
// TypeOf all speak the same small set of names.
const (
	TypeUnknown = "unknown"
	TypeNull    = "null"
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeObject  = "object"
)

type undefined struct{}

// Undefined marks a parameter default as explicitly absent: the parameter
// becomes optional but carries no default value. Distinct from nil, which
// is a real default of type "null".
var Undefined undefined

// TypeOf maps an arbitrary runtime value to its type descriptor string.
// Element types of heterogeneous arrays are joined into a union, e.g.
// "(number|string)[]", and record keys are rendered sorted, e.g.
// "{a:number,b:string}". Named struct values map to their type name.
func TypeOf(v any) string {
	return typeOf(v, true)
}

// SimpleTypeOf is TypeOf with composite detail collapsed: heterogeneous
// arrays become "unknown[]" and records become "object". Named struct
// values still map to their type name.
func SimpleTypeOf(v any) string {
	return typeOf(v, false)
}

func typeOf(v any, full bool) string {
	if _, ok := v.(undefined); ok {
		return TypeUnknown
	}
	if v == nil {
		return TypeNull
	}
	return typeOfValue(reflect.ValueOf(v), full)
}

func typeOfValue(rv reflect.Value, full bool) string {
	switch rv.Kind() {
	case reflect.Invalid:
		return TypeNull
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.String:
		return TypeString
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return TypeNull
		}
		return typeOfValue(rv.Elem(), full)
	case reflect.Slice, reflect.Array:
		return typeOfArray(rv, full)
	case reflect.Map:
		return typeOfRecord(rv, full)
	case reflect.Struct:
		// A named struct is the "constructor" case: its name wins
		// regardless of full.
		if name := rv.Type().Name(); name != "" {
			return name
		}
		return typeOfStruct(rv, full)
	default:
		return TypeUnknown
	}
}

func typeOfArray(rv reflect.Value, full bool) string {
	if rv.Len() == 0 {
		return TypeUnknown + "[]"
	}

	seen := make(map[string]struct{})
	for i := 0; i < rv.Len(); i++ {
		seen[typeOfValue(rv.Index(i), full)] = struct{}{}
	}

	if len(seen) == 1 {
		for t := range seen {
			return t + "[]"
		}
	}
	if !full {
		return TypeUnknown + "[]"
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return "(" + strings.Join(types, "|") + ")[]"
}

func typeOfRecord(rv reflect.Value, full bool) string {
	if !full {
		return TypeObject
	}

	entries := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := fmt.Sprint(iter.Key().Interface())
		entries = append(entries, key+":"+typeOfValue(iter.Value(), full))
	}
	sort.Strings(entries)
	return "{" + strings.Join(entries, ",") + "}"
}

func typeOfStruct(rv reflect.Value, full bool) string {
	if !full {
		return TypeObject
	}

	t := rv.Type()
	entries := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		entries = append(entries, f.Name+":"+typeOfValue(rv.Field(i), full))
	}
	sort.Strings(entries)
	return "{" + strings.Join(entries, ",") + "}"
}

// typeForGo maps a static Go type into the descriptor vocabulary. Used when
// a parameter has neither a declared type nor a typed default, so the
// handler signature itself is the type source.
func typeForGo(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.String:
		return TypeString
	case reflect.Interface:
		return TypeUnknown
	case reflect.Pointer:
		return typeForGo(t.Elem())
	case reflect.Slice, reflect.Array:
		return typeForGo(t.Elem()) + "[]"
	case reflect.Map:
		return TypeObject
	case reflect.Struct:
		if name := t.Name(); name != "" {
			return name
		}
		return TypeObject
	default:
		return TypeUnknown
	}
}
