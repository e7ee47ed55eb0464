package conv

import (
	"context"
	"net/http"
	"reflect"
)

// Reserved parameter names. These are excluded from path/query resolution
// and filled by dedicated extraction steps during dispatch.
const (
	ParamBody    = "$body"    // decoded request body
	ParamRequest = "$request" // the *http.Request itself
	ParamUser    = "$user"    // value produced by the dispatcher's user resolver
)

// Property describes one handler parameter: its name, logical type
// descriptor, and optional default. A property without a default is
// required. Property order equals the handler's parameter order and
// defines positional invocation order.
type Property struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Default    any    `json:"default,omitempty" yaml:"default,omitempty"`
	HasDefault bool   `json:"-" yaml:"-"`
	Required   bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Schema is the ordered parameter schema of one handler.
type Schema struct {
	Name  string     `json:"name" yaml:"name"`
	Props []Property `json:"params,omitempty" yaml:"params,omitempty"`
}

func (s Schema) declares(name string) bool {
	for _, p := range s.Props {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Param is an explicit parameter descriptor, declared alongside a handler
// at registration. Descriptors are positional: the i-th descriptor
// describes the handler's i-th parameter (not counting a leading
// context.Context).
type Param struct {
	name   string
	typ    string
	def    any
	hasDef bool
}

// P starts a parameter descriptor for the given name.
func P(name string) Param {
	return Param{name: name}
}

// Type sets the logical type descriptor, overriding inference from the
// default value and the Go signature.
func (p Param) Type(t string) Param {
	p.typ = t
	return p
}

// Default sets the default value and makes the parameter optional. Use
// Undefined for optional-without-default.
func (p Param) Default(v any) Param {
	p.def = v
	p.hasDef = true
	return p
}

// Body declares the reserved $body parameter.
func Body() Param { return P(ParamBody) }

// Request declares the reserved $request parameter. Parameters of type
// *http.Request are detected without a descriptor.
func Request() Param { return P(ParamRequest) }

// User declares the reserved $user parameter.
func User() Param { return P(ParamUser) }

func reserved(name string) bool {
	return name == ParamBody || name == ParamRequest || name == ParamUser
}

// resultMode records the shape of a handler's return values.
type resultMode int

const (
	resultsNone resultMode = iota
	resultsErr
	resultsValue
	resultsValueErr
)

// handlerFunc is the invocable form of a registered handler: the reflected
// function plus everything needed to call it positionally.
type handlerFunc struct {
	fn       reflect.Value
	argTypes []reflect.Type
	hasCtx   bool
	results  resultMode
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
	reqType = reflect.TypeOf((**http.Request)(nil)).Elem()
)

// buildSchema validates a handler against its descriptors and produces the
// ordered parameter schema. Parameter names resolve per position: explicit
// descriptor, then automatic $request for *http.Request parameters, then
// the pattern's capture names in order. Any mismatch is a configuration
// error, reported once at registration.
func buildSchema(name string, fn any, captures []string, params []Param) (Schema, handlerFunc, error) {
	if fn == nil {
		return Schema{}, handlerFunc{}, configError("handler %q is nil", name)
	}

	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return Schema{}, handlerFunc{}, configError("handler %q is %s, not a function", name, t.Kind())
	}
	if t.IsVariadic() {
		return Schema{}, handlerFunc{}, configError("handler %q is variadic", name)
	}

	h := handlerFunc{fn: v}

	start := 0
	if t.NumIn() > 0 && t.In(0) == ctxType {
		h.hasCtx = true
		start = 1
	}
	for i := start; i < t.NumIn(); i++ {
		h.argTypes = append(h.argTypes, t.In(i))
	}

	switch t.NumOut() {
	case 0:
		h.results = resultsNone
	case 1:
		if t.Out(0) == errType {
			h.results = resultsErr
		} else {
			h.results = resultsValue
		}
	case 2:
		if t.Out(1) != errType {
			return Schema{}, handlerFunc{}, configError("handler %q: second result must be error, got %s", name, t.Out(1))
		}
		h.results = resultsValueErr
	default:
		return Schema{}, handlerFunc{}, configError("handler %q returns %d values; at most (value, error)", name, t.NumOut())
	}

	if len(params) > len(h.argTypes) {
		return Schema{}, handlerFunc{}, configError("handler %q declares %d parameter descriptors for %d parameters", name, len(params), len(h.argTypes))
	}

	schema := Schema{Name: name, Props: make([]Property, len(h.argTypes))}
	used := make(map[string]bool)

	// First pass: descriptor names and automatic $request detection.
	for i, at := range h.argTypes {
		prop := &schema.Props[i]

		if i < len(params) {
			p := params[i]
			if p.name == "" {
				return Schema{}, handlerFunc{}, configError("handler %q: descriptor %d has no name", name, i)
			}
			prop.Name = p.name
			prop.Type = p.typ
			if p.hasDef {
				if _, undef := p.def.(undefined); undef {
					// Explicitly optional, no default value.
					prop.Required = false
				} else {
					prop.Default = p.def
					prop.HasDefault = true
				}
			} else {
				prop.Required = true
			}
		} else if at == reqType {
			prop.Name = ParamRequest
		}

		if prop.Name != "" {
			if used[prop.Name] {
				return Schema{}, handlerFunc{}, configError("handler %q: duplicate parameter %q", name, prop.Name)
			}
			used[prop.Name] = true
		}
	}

	// Second pass: remaining parameters take capture names in order.
	next := 0
	for i := range schema.Props {
		prop := &schema.Props[i]
		if prop.Name != "" {
			continue
		}
		for next < len(captures) && used[captures[next]] {
			next++
		}
		if next >= len(captures) {
			return Schema{}, handlerFunc{}, configError("handler %q: cannot resolve a name for parameter %d; add a descriptor", name, i)
		}
		prop.Name = captures[next]
		prop.Required = true
		used[prop.Name] = true
		next++
	}

	// Reserved names are filled by dedicated steps, never by the generic
	// missing-required check; and $request must actually be a request.
	for i := range schema.Props {
		prop := &schema.Props[i]
		at := h.argTypes[i]

		if reserved(prop.Name) {
			prop.Required = false
			if prop.HasDefault {
				return Schema{}, handlerFunc{}, configError("handler %q: %s cannot have a default", name, prop.Name)
			}
			if prop.Name == ParamRequest && at != reqType {
				return Schema{}, handlerFunc{}, configError("handler %q: %s parameter must be *http.Request, got %s", name, ParamRequest, at)
			}
		}

		if prop.Type == "" {
			if prop.HasDefault {
				prop.Type = TypeOf(prop.Default)
			} else {
				prop.Type = typeForGo(at)
			}
		}

		if prop.HasDefault {
			if _, err := coerceValue(prop.Default, at); err != nil {
				return Schema{}, handlerFunc{}, configError("handler %q: default for %q does not fit %s: %v", name, prop.Name, at, err)
			}
		}
	}

	return schema, h, nil
}
