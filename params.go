package conv

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"unicode"
)

// buildBag merges named path captures and then query-string entries into
// a per-request parameter bag. Captures win: a query entry is only taken
// when its key is not already present.
func buildBag(captures map[string]string, query url.Values) map[string]any {
	bag := make(map[string]any, len(captures)+len(query))
	for k, v := range captures {
		bag[k] = v
	}
	for k, vs := range query {
		if _, ok := bag[k]; ok || len(vs) == 0 {
			continue
		}
		bag[k] = vs[0]
	}
	return bag
}

// lookupParam resolves a declared parameter name against the bag, trying
// the name itself and then its kebab-case alias ("userName" also answers
// to "user-name").
func lookupParam(bag map[string]any, name string) (any, bool) {
	if v, ok := bag[name]; ok {
		return v, true
	}
	if alias := kebabCase(name); alias != name {
		if v, ok := bag[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

// kebabCase lowercases camel-case names on word boundaries. Acronym runs
// stay together: "userID" → "user-id", "HTMLBody" → "html-body".
func kebabCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
		nextLower := i+1 < len(runes) && !unicode.IsUpper(runes[i+1])
		if i > 0 && (prevLower || nextLower) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// unquote strips at most one layer of matching surrounding quote
// characters from s.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// readBody decodes the request body by content type: JSON becomes a
// structured value, form encoding a flat key/value map, anything else
// the raw text.
func readBody(r *http.Request) (any, error) {
	if r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, InvalidData("cannot read request body: %v", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, InvalidData("malformed JSON body: %v", err)
		}
		return v, nil
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, InvalidData("malformed form body: %v", err)
		}
		form := make(map[string]string, len(values))
		for k, vs := range values {
			if len(vs) > 0 {
				form[k] = vs[0]
			}
		}
		return form, nil
	default:
		return string(raw), nil
	}
}

// resolveProperty produces the argument value for one schema property, in
// three steps: resolve the raw value from the bag (falling back to the
// default), apply the textual validation rules, and coerce into the Go
// parameter type.
func resolveProperty(prop Property, bag map[string]any, at reflect.Type) (reflect.Value, error) {
	raw, ok := lookupParam(bag, prop.Name)
	if !ok {
		if prop.HasDefault {
			return coerceValue(prop.Default, at)
		}
		if prop.Required {
			return reflect.Value{}, InvalidData("missing required parameter %q", prop.Name)
		}
		return reflect.Zero(at), nil
	}

	val, err := parseRaw(prop, raw)
	if err != nil {
		return reflect.Value{}, err
	}

	cv, err := coerceValue(val, at)
	if err != nil {
		return reflect.Value{}, InvalidData("parameter %q: %v is not a valid %s", prop.Name, raw, prop.Type)
	}
	return cv, nil
}

// parseRaw applies the per-property validation rules: string-typed
// properties lose at most one layer of surrounding quotes; other textual
// values are parsed as JSON, with the raw string accepted as-is only for
// the generic "unknown" type.
func parseRaw(prop Property, raw any) (any, error) {
	if prop.Type == TypeString {
		if s, ok := raw.(string); ok {
			return unquote(s), nil
		}
		return raw, nil
	}

	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		if prop.Type == TypeUnknown {
			return s, nil
		}
		return nil, InvalidData("parameter %q: cannot read %q as %s", prop.Name, s, prop.Type)
	}
	return parsed, nil
}

// coerceValue converts a resolved value into the handler's parameter
// type. Numeric kinds convert freely among themselves; composites go
// through a JSON round trip into the target type.
func coerceValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	if rt.AssignableTo(t) {
		return rv, nil
	}
	if numericKind(rt.Kind()) && numericKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rt.Kind() == reflect.String && t.Kind() == reflect.String {
		return rv.Convert(t), nil
	}

	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Pointer:
		raw, err := json.Marshal(v)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t)
		if err := json.Unmarshal(raw, out.Interface()); err != nil {
			return reflect.Value{}, err
		}
		return out.Elem(), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
	}
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
