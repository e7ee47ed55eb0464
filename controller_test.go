package conv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convhttp/conv"
)

func noop() {}

func TestController_routeExtraction(t *testing.T) {
	t.Parallel()

	c := conv.NewController("/users")
	c.Handle("GET", noop)
	c.Handle("GET_$id", noop)
	c.Handle("GET_admins", noop)
	c.Handle("DELETE_$id", noop)
	c.Handle("helper", noop)   // not a route: first token is no method
	c.Handle("TRACE_x", noop)  // not a route: TRACE is not accepted
	c.Handle("getUsers", noop) // not a route: no separator grammar

	routes := c.Routes()
	require.Len(t, routes, 4)

	paths := make([]string, len(routes))
	for i, rt := range routes {
		paths[i] = rt.Method + " " + rt.Pathname
	}
	assert.Equal(t, []string{
		"GET /users/admins",
		"GET /users",
		"GET /users/:id",
		"DELETE /users/:id",
	}, paths)
}

func TestController_specificityOrder(t *testing.T) {
	t.Parallel()

	// Fewest captures first; ties broken by longer pathname. The literal
	// /users/admins must be tried before /users/:id.
	c := conv.NewController("/users")
	c.Handle("GET_$id", noop)
	c.Handle("GET_admins", noop)
	c.Handle("GET_$id_$sub", noop)

	routes := c.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "/users/admins", routes[0].Pathname)
	assert.Equal(t, 0, routes[0].Captures())
	assert.Equal(t, "/users/:id", routes[1].Pathname)
	assert.Equal(t, 1, routes[1].Captures())
	assert.Equal(t, "/users/:id/:sub", routes[2].Pathname)
	assert.Equal(t, 2, routes[2].Captures())
}

func TestController_routesCached(t *testing.T) {
	t.Parallel()

	c := conv.NewController("/users")
	c.Handle("GET_$id", noop)
	c.Handle("GET", noop)

	first := c.Routes()
	second := c.Routes()

	require.Len(t, second, 2)
	assert.Same(t, &first[0], &second[0])
	for i := range first {
		assert.Same(t, first[i], second[i])
	}
}

func TestController_handleChaining(t *testing.T) {
	t.Parallel()

	c := conv.NewController("/x").
		Handle("GET", noop).
		Handle("POST", noop, conv.Body())

	assert.Len(t, c.Routes(), 2)
}

func TestController_schemaOrderMatchesSignature(t *testing.T) {
	t.Parallel()

	h := func(ctx context.Context, id int, limit int) error { return nil }

	c := conv.NewController("/items")
	c.Handle("GET_$id", h, conv.P("id"), conv.P("limit").Default(10))

	routes := c.Routes()
	require.Len(t, routes, 1)

	props := routes[0].Schema.Props
	require.Len(t, props, 2)
	assert.Equal(t, "id", props[0].Name)
	assert.True(t, props[0].Required)
	assert.Equal(t, "limit", props[1].Name)
	assert.False(t, props[1].Required)
	assert.Equal(t, 10, props[1].Default)
	assert.Equal(t, "number", props[1].Type)
}
