package conv

import "strings"

// Handler naming grammar: METHOD(_segment)*.
//
//	"GET"              → GET    <base>
//	"GET_admins"       → GET    <base>/admins
//	"GET_$id"          → GET    <base>/:id
//	"GET_$name__json"  → GET    <base>/:name.json
//	"GET__json"        → GET    <base>.json
//
// The first token must be an HTTP method (matched case-insensitively);
// any other first token means the name is not a route. A "$" prefix turns
// a token into a named capture. The reserved marker "__" (which yields an
// empty token when splitting on "_") joins the following token to the
// previous segment with a literal "." instead of "/".
const (
	captureMarker = "$"
	tokenSep      = "_"
)

var routeMethods = map[string]struct{}{
	"DELETE":  {},
	"GET":     {},
	"HEAD":    {},
	"OPTIONS": {},
	"PATCH":   {},
	"POST":    {},
	"PUT":     {},
}

// segment is one decoded token of a handler name.
type segment struct {
	value   string
	capture bool // named path capture
	ext     bool // joined to the previous segment with "."
}

// parseName decodes a handler name into its HTTP method and path segments.
// ok is false when the first token is not a recognized method; such names
// are not routes.
func parseName(name string) (method string, segs []segment, ok bool) {
	tokens := strings.Split(name, tokenSep)

	method = strings.ToUpper(tokens[0])
	if _, ok := routeMethods[method]; !ok {
		return "", nil, false
	}

	ext := false
	for _, tok := range tokens[1:] {
		if tok == "" {
			ext = true
			continue
		}

		seg := segment{value: tok, ext: ext}
		if strings.HasPrefix(tok, captureMarker) {
			seg.capture = true
			seg.value = strings.TrimPrefix(tok, captureMarker)
		}
		segs = append(segs, seg)
		ext = false
	}

	return method, segs, true
}
