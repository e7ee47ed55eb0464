package conv

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"sync"
	"time"
)

// UserResolver produces the current user for a request. The dispatcher
// calls it only for routes whose schema declares $user. The default
// resolver yields no user.
type UserResolver func(ctx context.Context, r *http.Request) (any, error)

// Dispatcher routes requests across a collection of mounted controllers.
// It owns the route lookup, parameter extraction, validation, handler
// invocation, and response rendering for each request. It implements
// http.Handler.
type Dispatcher struct {
	mu         sync.Mutex
	mounts     []*Controller
	middleware []Middleware

	resolver UserResolver
	logger   *slog.Logger
	quiet    bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithUserResolver sets the pluggable current-user resolver.
func WithUserResolver(ur UserResolver) DispatcherOption {
	return func(d *Dispatcher) {
		d.resolver = ur
	}
}

// WithLogger sets the dispatch logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Quiet suppresses logging of non-5xx dispatch failures. Internal errors
// are always logged with full detail.
func Quiet() DispatcherOption {
	return func(d *Dispatcher) {
		d.quiet = true
	}
}

// NewDispatcher creates a Dispatcher with the given options.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mount adds controllers to the dispatcher's registry. Lookup prefers the
// controller with the longest base path matching the request.
func (d *Dispatcher) Mount(controllers ...*Controller) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mounts = append(d.mounts, controllers...)
	sort.SliceStable(d.mounts, func(i, j int) bool {
		return len(d.mounts[i].base) > len(d.mounts[j].base)
	})
}

// Use adds middleware, applied in the order added around ServeHTTP and
// Handler.
func (d *Dispatcher) Use(mw ...Middleware) {
	d.middleware = append(d.middleware, mw...)
}

// Dispatch runs the full request cycle and writes the response. When no
// mounted route's pattern matches the path it writes nothing and returns
// ErrNotHandled so the caller can fall through; every other outcome,
// including failures, is written to w and returns nil.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request) error {
	route, captures, err := d.lookup(r)
	if err != nil {
		if errors.Is(err, ErrNotHandled) {
			return err
		}
		d.fail(w, r, err)
		return nil
	}

	d.serve(w, r, route, captures)
	return nil
}

// ServeHTTP implements http.Handler, converting ErrNotHandled into a 404.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := d.Dispatch(w, r); errors.Is(err, ErrNotHandled) {
			d.fail(w, r, NotFound("no route for %s %s", r.Method, r.URL.Path))
		}
	})).ServeHTTP(w, r)
}

// Handler returns an http.Handler that dispatches matching requests and
// falls through to next for everything else.
func (d *Dispatcher) Handler(next http.Handler) http.Handler {
	return d.chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := d.Dispatch(w, r); errors.Is(err, ErrNotHandled) {
			next.ServeHTTP(w, r)
		}
	}))
}

func (d *Dispatcher) chain(h http.Handler) http.Handler {
	for i := len(d.middleware) - 1; i >= 0; i-- {
		h = d.middleware[i](h)
	}
	return h
}

// ListenAndServe starts an HTTP server on the given address. It blocks
// until the context is cancelled, then shuts down gracefully.
func (d *Dispatcher) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           d,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// lookup resolves the target route: controllers in longest-base order,
// routes within each controller in specificity order. A pattern match
// under the wrong method yields a 405 error; no pattern match at all
// yields ErrNotHandled.
func (d *Dispatcher) lookup(r *http.Request) (*Route, map[string]string, error) {
	d.mu.Lock()
	mounts := d.mounts
	d.mu.Unlock()

	path := r.URL.Path
	methodMismatch := false

	for _, c := range mounts {
		if !baseMatches(path, c.base) {
			continue
		}
		for _, rt := range c.Routes() {
			captures, ok := rt.pattern.match(path)
			if !ok {
				continue
			}
			if rt.Method != r.Method {
				methodMismatch = true
				continue
			}
			return rt, captures, nil
		}
	}

	if methodMismatch {
		return nil, nil, newError(kindMethodNotAllowed, "method %s is not allowed for %s", r.Method, path)
	}
	return nil, nil, ErrNotHandled
}

func baseMatches(path, base string) bool {
	if base == "" {
		return true
	}
	if len(path) < len(base) || path[:len(base)] != base {
		return false
	}
	return len(path) == len(base) || path[len(base)] == '/' || path[len(base)] == '.'
}

// serve runs extraction, validation, invocation, and rendering for one
// matched route, converting any failure (returned or panicked) into a
// single error response.
func (d *Dispatcher) serve(w http.ResponseWriter, r *http.Request, rt *Route, captures map[string]string) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = Internal("handler panic: %v", rec)
			}
			d.fail(w, r, err)
		}
	}()

	value, hasValue, err := d.run(r, rt, captures)
	if err != nil {
		d.fail(w, r, err)
		return
	}
	renderResult(w, r, value, hasValue)
}

func (d *Dispatcher) run(r *http.Request, rt *Route, captures map[string]string) (any, bool, error) {
	bag := buildBag(captures, r.URL.Query())

	if rt.Schema.declares(ParamBody) {
		body, err := readBody(r)
		if err != nil {
			return nil, false, err
		}
		bag[ParamBody] = body
	}

	if rt.Schema.declares(ParamRequest) {
		bag[ParamRequest] = r
	}

	if rt.Schema.declares(ParamUser) {
		user, err := d.resolveUser(r)
		if err != nil {
			return nil, false, err
		}
		if emptyUser(user) && !rt.owner.open {
			return nil, false, PermissionDenied("no authenticated user")
		}
		bag[ParamUser] = user
	}

	h := rt.handler
	args := make([]reflect.Value, 0, len(h.argTypes)+1)
	if h.hasCtx {
		args = append(args, reflect.ValueOf(r.Context()))
	}

	// Positional invocation contract: schema property order is the
	// handler's declared parameter order.
	for i, prop := range rt.Schema.Props {
		at := h.argTypes[i]

		var av reflect.Value
		var err error
		if reserved(prop.Name) {
			av, err = coerceValue(bag[prop.Name], at)
			if err != nil {
				err = InvalidData("parameter %q: %v", prop.Name, err)
			}
		} else {
			av, err = resolveProperty(prop, bag, at)
		}
		if err != nil {
			return nil, false, err
		}
		args = append(args, av)
	}

	out := h.fn.Call(args)

	switch h.results {
	case resultsNone:
		return nil, false, nil
	case resultsErr:
		return nil, false, resultErr(out[0])
	case resultsValue:
		return out[0].Interface(), true, nil
	default:
		if err := resultErr(out[1]); err != nil {
			return nil, false, err
		}
		return out[0].Interface(), true, nil
	}
}

func (d *Dispatcher) resolveUser(r *http.Request) (any, error) {
	if d.resolver == nil {
		return nil, nil
	}
	return d.resolver(r.Context(), r)
}

func emptyUser(user any) bool {
	if user == nil {
		return true
	}
	rv := reflect.ValueOf(user)
	return rv.IsZero()
}

func resultErr(rv reflect.Value) error {
	if rv.IsNil() {
		return nil
	}
	return rv.Interface().(error)
}

// fail logs and writes one error response. Internal failures carry full
// diagnostic detail at Error level; everything else logs at Debug and is
// suppressed entirely under Quiet.
func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := d.logger
	if logger == nil {
		logger = slog.Default()
	}

	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("dispatch failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"err", err,
		)
	} else if !d.quiet {
		logger.Debug("request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"err", err,
		)
	}

	writeError(w, err)
}
