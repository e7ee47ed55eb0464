// Package conv is a convention-driven HTTP request router for Go. Routes
// are derived from handler names — no path strings, no annotations. The
// name encodes the HTTP method and path, and the handler's Go signature
// is the parameter schema:
//
//	users := conv.NewController("/users")
//	users.Handle("GET", listUsers)
//	users.Handle("GET_$id", getUser)                  // GET /users/:id
//	users.Handle("GET_admins", listAdmins)            // GET /users/admins
//	users.Handle("POST", createUser, conv.Body())
//
//	d := conv.NewDispatcher()
//	d.Mount(users)
//	http.ListenAndServe(":8080", d)
//
// Handlers are plain functions. An optional leading context.Context and
// trailing error aside, each parameter is bound positionally from path
// captures, query values, or the reserved $body/$request/$user sources:
//
//	func getUser(ctx context.Context, id int) (*User, error) { ... }
//
// Parameter descriptors refine the schema — names, logical types, and
// defaults — and are validated against the signature once, at
// registration:
//
//	users.Handle("GET", listUsers, conv.P("limit").Default(25))
//
// Incoming values are validated and coerced against the schema before
// invocation; classified errors (NotFound, InvalidData, ...) map to
// their HTTP statuses, and return values are rendered by content-type
// convention (path extension, HTML sniffing, JSON).
//
// More specific routes win: for a given method, a literal path like
// /users/admins always matches before a captured one like /users/:id.
//
// Middleware uses the standard func(http.Handler) http.Handler
// signature, so the entire Go middleware ecosystem works natively.
package conv
