// Command sample demonstrates the conv router with an in-memory users API.
//
// Run:
//
//	go run ./cmd/sample
//
// Then explore:
//
//	GET    http://localhost:8080/users            — list users
//	GET    http://localhost:8080/users/1          — get user by id
//	GET    http://localhost:8080/users/admins     — literal route wins over /users/:id
//	POST   http://localhost:8080/users            — create user (JSON body)
//	PUT    http://localhost:8080/users/1          — update user
//	DELETE http://localhost:8080/users/1          — delete user
//	GET    http://localhost:8080/users/me         — current user (X-User header)
//	GET    http://localhost:8080/routes.yaml      — mounted route table
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/convhttp/conv"
)

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Admin bool   `json:"admin,omitempty"`
}

type userStore struct {
	mu    sync.Mutex
	users map[int]User
	next  int
}

func newUserStore() *userStore {
	return &userStore{
		users: map[int]User{
			1: {ID: 1, Name: "John"},
			2: {ID: 2, Name: "Jane", Admin: true},
		},
		next: 3,
	}
}

func (s *userStore) list(limit int) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if len(out) >= limit {
			break
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *userStore) get(id int) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, conv.NotFound("user %d not found", id)
	}
	return u, nil
}

func (s *userStore) admins() ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []User
	for _, u := range s.users {
		if u.Admin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *userStore) create(u User) (User, error) {
	if u.Name == "" {
		return User{}, conv.InvalidData("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Name == u.Name {
			return User{}, conv.AlreadyExists("user %q already exists", u.Name)
		}
	}

	u.ID = s.next
	s.next++
	s.users[u.ID] = u
	return u, nil
}

func (s *userStore) update(id int, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return User{}, conv.NotFound("user %d not found", id)
	}
	u.ID = id
	s.users[id] = u
	return u, nil
}

func (s *userStore) delete(id int) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, conv.NotFound("user %d not found", id)
	}
	delete(s.users, id)
	return u, nil
}

func me(user any) (any, error) {
	return map[string]any{"user": user}, nil
}

// currentUser is the sample's authenticated principal, carried through
// the request context by the auth middleware.
type currentUser string

// auth stores the X-User header in the request context; the dispatcher's
// user resolver reads it back for handlers that declare $user.
func auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := r.Header.Get("X-User"); name != "" {
			r = conv.SetValue(r, currentUser(name))
		}
		next.ServeHTTP(w, r)
	})
}

func newDispatcher(logger *slog.Logger) *conv.Dispatcher {
	store := newUserStore()

	users := conv.NewController("/users")
	users.Handle("GET", store.list, conv.P("limit").Default(25))
	users.Handle("GET_admins", store.admins)
	users.Handle("GET_me", me, conv.User())
	users.Handle("GET_$id", store.get)
	users.Handle("POST", store.create, conv.Body())
	users.Handle("PUT_$id", store.update, conv.P("id"), conv.Body())
	users.Handle("DELETE_$id", store.delete)

	d := conv.NewDispatcher(
		conv.WithLogger(logger),
		conv.WithUserResolver(func(ctx context.Context, _ *http.Request) (any, error) {
			u, ok := conv.GetValue[currentUser](ctx)
			if !ok {
				return nil, nil
			}
			return u, nil
		}),
	)
	d.Use(
		conv.Recovery(),
		conv.RequestID(),
		conv.Logger(logger),
		auth,
		conv.RateLimit(conv.RateLimitConfig{Rate: 50, Burst: 100}),
	)
	d.Mount(users)
	return d
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	d := newDispatcher(logger)

	mux := http.NewServeMux()
	mux.Handle("/routes", d.RoutesHandler())
	mux.Handle("/routes.yaml", d.RoutesHandler())
	root := d.Handler(mux)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("starting server", "addr", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}

	logger.Info("server stopped")
}
