package conv_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convhttp/conv"
	"github.com/convhttp/conv/convtest"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type userStore struct {
	mu    sync.Mutex
	users map[int]user
}

func newUserStore() *userStore {
	return &userStore{users: map[int]user{1: {ID: 1, Name: "John"}}}
}

func (s *userStore) get(id int) (user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user{}, conv.NotFound("user %d not found", id)
	}
	return u, nil
}

func (s *userStore) delete(id int) (user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user{}, conv.NotFound("user %d not found", id)
	}
	delete(s.users, id)
	return u, nil
}

func (s *userStore) admins() ([]user, error) {
	return []user{}, nil
}

func (s *userStore) create(u user) (user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = len(s.users) + 1
	s.users[u.ID] = u
	return u, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newUsersDispatcher(opts ...conv.DispatcherOption) *conv.Dispatcher {
	store := newUserStore()

	users := conv.NewController("/users")
	users.Handle("GET_admins", store.admins)
	users.Handle("GET_$id", store.get)
	users.Handle("DELETE_$id", store.delete)
	users.Handle("POST", store.create, conv.Body())

	opts = append([]conv.DispatcherOption{conv.WithLogger(quietLogger())}, opts...)
	d := conv.NewDispatcher(opts...)
	d.Mount(users)
	return d
}

func TestDispatch_endToEnd(t *testing.T) {
	t.Parallel()

	c := convtest.NewClient(t, newUsersDispatcher())

	got := convtest.Get[user](t, c, "/users/1")
	require.Equal(t, http.StatusOK, got.Status)
	require.NotNil(t, got.Body)
	assert.Equal(t, user{ID: 1, Name: "John"}, *got.Body)

	missing := convtest.Get[apiError](t, c, "/users/999")
	require.Equal(t, http.StatusNotFound, missing.Status)
	require.NotNil(t, missing.Body)
	assert.Equal(t, "not-found", missing.Body.Error)

	first := convtest.Delete[user](t, c, "/users/1")
	require.Equal(t, http.StatusOK, first.Status)
	assert.Equal(t, user{ID: 1, Name: "John"}, *first.Body)

	second := convtest.Delete[apiError](t, c, "/users/1")
	require.Equal(t, http.StatusNotFound, second.Status)
	assert.Equal(t, "not-found", second.Body.Error)
}

func TestDispatch_literalBeforeCapture(t *testing.T) {
	t.Parallel()

	// /users/admins would be a type error through GET_$id (id is numeric),
	// so reaching the literal route proves the specificity order.
	c := convtest.NewClient(t, newUsersDispatcher())

	got := convtest.Get[[]user](t, c, "/users/admins")
	assert.Equal(t, http.StatusOK, got.Status)
}

func TestDispatch_createWithBody(t *testing.T) {
	t.Parallel()

	c := convtest.NewClient(t, newUsersDispatcher())

	created := convtest.Post[user, user](t, c, "/users", &user{Name: "Jane"})
	require.Equal(t, http.StatusOK, created.Status)
	assert.Equal(t, 2, created.Body.ID)
	assert.Equal(t, "Jane", created.Body.Name)
}

func TestDispatch_methodNotAllowed(t *testing.T) {
	t.Parallel()

	c := convtest.NewClient(t, newUsersDispatcher())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPatch, c.Server.URL+"/users/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDispatch_notHandledSentinel(t *testing.T) {
	t.Parallel()

	d := newUsersDispatcher()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)

	err := d.Dispatch(rec, req)
	require.ErrorIs(t, err, conv.ErrNotHandled)
	assert.Empty(t, rec.Body.String(), "not-handled must write nothing")
}

func TestDispatch_handlerFallsThrough(t *testing.T) {
	t.Parallel()

	d := newUsersDispatcher()

	fellThrough := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fellThrough = true
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	d.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))

	assert.True(t, fellThrough)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestServeHTTP_unmatchedIs404(t *testing.T) {
	t.Parallel()

	c := convtest.NewClient(t, newUsersDispatcher())

	got := convtest.Get[apiError](t, c, "/elsewhere")
	require.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "not-found", got.Body.Error)
}

func TestDispatch_numericCoercion(t *testing.T) {
	t.Parallel()

	echo := conv.NewController("/echo")
	echo.Handle("GET", func(limit int) (map[string]int, error) {
		return map[string]int{"limit": limit}, nil
	}, conv.P("limit").Default(1))

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(echo)
	c := convtest.NewClient(t, d)

	byDefault := convtest.Get[map[string]int](t, c, "/echo")
	require.Equal(t, http.StatusOK, byDefault.Status)
	assert.Equal(t, 1, (*byDefault.Body)["limit"])

	coerced := convtest.Get[map[string]int](t, c, "/echo?limit=5")
	require.Equal(t, http.StatusOK, coerced.Status)
	assert.Equal(t, 5, (*coerced.Body)["limit"])

	bad := convtest.Get[apiError](t, c, "/echo?limit=abc")
	require.Equal(t, http.StatusBadRequest, bad.Status)
	assert.Equal(t, "invalid-data", bad.Body.Error)
	assert.Contains(t, bad.Body.Message, "limit")
	assert.Contains(t, bad.Body.Message, "abc")
	assert.Contains(t, bad.Body.Message, "number")
}

func TestDispatch_missingRequired(t *testing.T) {
	t.Parallel()

	echo := conv.NewController("/echo")
	echo.Handle("GET", func(q string) (string, error) { return q, nil }, conv.P("q"))

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(echo)
	c := convtest.NewClient(t, d)

	got := convtest.Get[apiError](t, c, "/echo")
	require.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, "invalid-data", got.Body.Error)
	assert.Contains(t, got.Body.Message, "q")
}

func TestDispatch_quoteStripping(t *testing.T) {
	t.Parallel()

	echo := conv.NewController("/echo")
	echo.Handle("GET", func(name string) (map[string]string, error) {
		return map[string]string{"name": name}, nil
	}, conv.P("name").Default("foo"))

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(echo)
	c := convtest.NewClient(t, d)

	quoted := convtest.Get[map[string]string](t, c, "/echo?name=%22bar%22")
	require.Equal(t, http.StatusOK, quoted.Status)
	assert.Equal(t, "bar", (*quoted.Body)["name"])

	byDefault := convtest.Get[map[string]string](t, c, "/echo")
	require.Equal(t, http.StatusOK, byDefault.Status)
	assert.Equal(t, "foo", (*byDefault.Body)["name"])
}

func TestDispatch_kebabAlias(t *testing.T) {
	t.Parallel()

	echo := conv.NewController("/echo")
	echo.Handle("GET", func(userName string) (string, error) {
		return userName, nil
	}, conv.P("userName"))

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(echo)
	c := convtest.NewClient(t, d)

	resp, err := http.Get(c.Server.URL + "/echo?user-name=jo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatch_formBody(t *testing.T) {
	t.Parallel()

	forms := conv.NewController("/forms")
	forms.Handle("POST", func(body map[string]string) (map[string]string, error) {
		return body, nil
	}, conv.Body())

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(forms)
	c := convtest.NewClient(t, d)

	resp, err := http.Post(
		c.Server.URL+"/forms",
		"application/x-www-form-urlencoded",
		strings.NewReader(url.Values{"a": {"1"}, "b": {"x"}}.Encode()),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatch_rawTextBody(t *testing.T) {
	t.Parallel()

	notes := conv.NewController("/notes")
	notes.Handle("POST", func(body string) (string, error) {
		return body, nil
	}, conv.Body())

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(notes)
	c := convtest.NewClient(t, d)

	resp, err := http.Post(c.Server.URL+"/notes", "text/plain", strings.NewReader("remember"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatch_userResolution(t *testing.T) {
	t.Parallel()

	whoami := func(u any) (map[string]any, error) {
		return map[string]any{"user": u}, nil
	}

	t.Run("default resolver denies", func(t *testing.T) {
		t.Parallel()

		me := conv.NewController("/me")
		me.Handle("GET", whoami, conv.User())

		d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
		d.Mount(me)
		c := convtest.NewClient(t, d)

		got := convtest.Get[apiError](t, c, "/me")
		require.Equal(t, http.StatusUnauthorized, got.Status)
		assert.Equal(t, "permission-denied", got.Body.Error)
	})

	t.Run("resolver supplies user", func(t *testing.T) {
		t.Parallel()

		me := conv.NewController("/me")
		me.Handle("GET", whoami, conv.User())

		d := conv.NewDispatcher(
			conv.WithLogger(quietLogger()),
			conv.WithUserResolver(func(_ context.Context, r *http.Request) (any, error) {
				return "alice", nil
			}),
		)
		d.Mount(me)
		c := convtest.NewClient(t, d)

		got := convtest.Get[map[string]any](t, c, "/me")
		require.Equal(t, http.StatusOK, got.Status)
		assert.Equal(t, "alice", (*got.Body)["user"])
	})

	t.Run("open controller passes empty user", func(t *testing.T) {
		t.Parallel()

		pub := conv.NewController("/pub", conv.Open())
		pub.Handle("GET", whoami, conv.User())

		d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
		d.Mount(pub)
		c := convtest.NewClient(t, d)

		got := convtest.Get[map[string]any](t, c, "/pub")
		assert.Equal(t, http.StatusOK, got.Status)
	})
}

func TestDispatch_requestParameter(t *testing.T) {
	t.Parallel()

	raw := conv.NewController("/raw")
	raw.Handle("GET", func(r *http.Request) (string, error) {
		return r.URL.RawQuery, nil
	})

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(raw)
	c := convtest.NewClient(t, d)

	resp, err := http.Get(c.Server.URL + "/raw?a=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatch_errorMapping(t *testing.T) {
	t.Parallel()

	fails := conv.NewController("/fail")
	fails.Handle("GET_conflict", func() error { return conv.AlreadyExists("dup") })
	fails.Handle("GET_invalid", func() error { return conv.InvalidData("bad") })
	fails.Handle("GET_missing", func() error { return conv.NotFound("gone") })
	fails.Handle("GET_unsupported", func() error { return conv.NotSupported("nope") })
	fails.Handle("GET_denied", func() error { return conv.PermissionDenied("halt") })
	fails.Handle("GET_broken", func() error { return assert.AnError })
	fails.Handle("GET_panicky", func() string { panic("boom") })

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()), conv.Quiet())
	d.Mount(fails)
	c := convtest.NewClient(t, d)

	tests := map[string]struct {
		path   string
		status int
		kind   string
	}{
		"already exists": {"/fail/conflict", http.StatusConflict, "already-exists"},
		"invalid data":   {"/fail/invalid", http.StatusBadRequest, "invalid-data"},
		"not found":      {"/fail/missing", http.StatusNotFound, "not-found"},
		"not supported":  {"/fail/unsupported", http.StatusNotImplemented, "not-supported"},
		"denied":         {"/fail/denied", http.StatusUnauthorized, "permission-denied"},
		"uncategorized":  {"/fail/broken", http.StatusInternalServerError, "internal"},
		"panic":          {"/fail/panicky", http.StatusInternalServerError, "internal"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := convtest.Get[apiError](t, c, tc.path)
			assert.Equal(t, tc.status, got.Status)
			require.NotNil(t, got.Body)
			assert.Equal(t, tc.kind, got.Body.Error)
		})
	}
}

func TestDispatch_longestBaseWins(t *testing.T) {
	t.Parallel()

	outer := conv.NewController("/api")
	outer.Handle("GET_$rest", func(rest string) (string, error) { return "outer", nil })

	inner := conv.NewController("/api/users")
	inner.Handle("GET_$id", func(id string) (string, error) { return "inner", nil })

	d := conv.NewDispatcher(conv.WithLogger(quietLogger()))
	d.Mount(outer, inner)
	c := convtest.NewClient(t, d)

	resp, err := http.Get(c.Server.URL + "/api/users/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := make([]byte, 16)
	n, _ := resp.Body.Read(body)
	assert.Equal(t, "inner", string(body[:n]))
}
