package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}

func TestGET_HeadersAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/x", r.URL.Path)
		assert.Equal(t, "test agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "1", r.Header.Get("X-Extra"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeader("User-Agent", "test agent"))
	resp, err := c.GET(context.Background(), "/x", map[string]string{"X-Extra": "1"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestGETWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{"succeeds after 503", []int{503, 200}, 2, false},
		{"429 is retried", []int{429, 429, 200}, 3, false},
		{"404 is not retried", []int{404}, 1, true},
		{"gives up", []int{500, 500, 500}, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[int(n)-1])
			}))
			defer srv.Close()

			_, err := NewClient(WithBaseURL(srv.URL)).GETWithRetry(context.Background(), "/", fastRetry())
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
				var httpErr *HTTPError
				assert.ErrorAs(t, err, &httpErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGETWithRetry_ThrottlesEveryAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var waits int
	cfg := fastRetry()
	cfg.Throttle = func(context.Context) error { waits++; return nil }

	_, err := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client())).GETWithRetry(context.Background(), "/", cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, waits)

	cfg.Throttle = func(ctx context.Context) error { return context.Canceled }
	_, err = NewClient(WithBaseURL(srv.URL)).GETWithRetry(context.Background(), "/", cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), calls.Load(), "no request is sent when the throttle fails")
}
