package conv_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convhttp/conv"
)

func TestRequestID_generated(t *testing.T) {
	t.Parallel()

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = conv.GetRequestID(r)
	})

	rec := httptest.NewRecorder()
	conv.RequestID()(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_propagated(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "fixed")

	rec := httptest.NewRecorder()
	conv.RequestID()(inner).ServeHTTP(rec, req)

	assert.Equal(t, "fixed", rec.Header().Get("X-Request-ID"))
}

func TestRequestID_customConfig(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	mw := conv.RequestID(conv.RequestIDConfig{
		Header:    "X-Trace",
		Generator: func() string { return "trace-1" },
	})
	mw(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, "trace-1", rec.Header().Get("X-Trace"))
}
