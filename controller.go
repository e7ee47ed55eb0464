package conv

import (
	"sort"
	"sync"
)

// Controller is a named collection of handlers registered under a shared
// base path. Handler names encode the route: the name "GET_$id" on a
// controller with base "/users" serves GET /users/:id. Names whose first
// token is not an HTTP method are not routes and are skipped.
type Controller struct {
	base string
	open bool

	mu     sync.Mutex
	routes []*Route
	sorted bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// Open marks the controller as requiring no authenticated user: handlers
// declaring $user receive the resolver's value as-is, even when empty.
func Open() ControllerOption {
	return func(c *Controller) {
		c.open = true
	}
}

// NewController creates a controller with the given base path.
func NewController(base string, opts ...ControllerOption) *Controller {
	c := &Controller{base: base}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the controller's base path.
func (c *Controller) Base() string { return c.base }

// Handle registers a handler under a convention name, with optional
// positional parameter descriptors, and returns the controller for
// chaining. The name is decoded and the handler validated against its
// descriptors immediately; Handle panics with a configuration *Error
// when the handler cannot be described (wrong shape, unresolvable
// parameter name, incoherent default). A name that does not start with
// an HTTP method is not a route and is silently skipped.
func (c *Controller) Handle(name string, fn any, params ...Param) *Controller {
	method, segs, ok := parseName(name)
	if !ok {
		return c
	}

	pat, err := compilePattern(c.base, segs)
	if err != nil {
		panic(configError("handler %q: %v", name, err))
	}

	captures := make([]string, 0, pat.captures)
	for _, seg := range segs {
		if seg.capture {
			captures = append(captures, seg.value)
		}
	}

	schema, handler, err := buildSchema(name, fn, captures, params)
	if err != nil {
		panic(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.routes = append(c.routes, &Route{
		Method:   method,
		Pathname: pat.pathname,
		Schema:   schema,
		pattern:  pat,
		handler:  handler,
		owner:    c,
	})
	c.sorted = false
	return c
}

// Routes returns the controller's route list in specificity order:
// fewest captures first, then longest pathname first, so "/users/admins"
// is tried before "/users/:id". The sorted list is cached; repeated
// calls return the same slice.
func (c *Controller) Routes() []*Route {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sorted {
		return c.routes
	}

	sort.SliceStable(c.routes, func(i, j int) bool {
		a, b := c.routes[i], c.routes[j]
		if a.pattern.captures != b.pattern.captures {
			return a.pattern.captures < b.pattern.captures
		}
		return len(a.Pathname) > len(b.Pathname)
	})

	c.sorted = true
	return c.routes
}
