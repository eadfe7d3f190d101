package httpcall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesTemporaryStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(time.Second, 2, time.Millisecond)
	body, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, Retry: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDoDoesNotRetryWhenDisallowed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(time.Second, 3, time.Millisecond)
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`)})
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusBadGateway))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDoClientErrorIsFinal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(time.Second, 3, time.Millisecond)
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, Retry: true})
	require.True(t, IsStatus(err, http.StatusNotFound))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
