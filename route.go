package conv

// Route is one dispatchable entry of a controller: a method, a compiled
// path pattern, the handler, and its parameter schema. Routes are
// immutable once extracted.
type Route struct {
	Method   string
	Pathname string
	Schema   Schema

	pattern pattern
	handler handlerFunc
	owner   *Controller
}

// Captures returns the number of named path captures in the route's
// pattern. Fewer captures means a more specific route.
func (rt *Route) Captures() int {
	return rt.pattern.captures
}
