package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SolarSavings/"+Version(), r.Header.Get("User-Agent"), "User-Agent should match expected format")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	timeout := 5 * time.Second
	client := HTTPClient(timeout)

	assert.Equal(t, timeout, client.Timeout, "Timeout should be set correctly")
	assert.NotNil(t, client.Transport, "Transport should not be nil")

	req, err := http.NewRequest("GET", server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Retries 5xx Then Succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		resp, err := DoWithRetry(ctx, HTTPClient(time.Second), 3, time.Millisecond, func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Does Not Retry 4xx", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("bad key"))
		}))
		defer server.Close()

		_, err := DoWithRetry(ctx, HTTPClient(time.Second), 3, time.Millisecond, func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		})
		var serr *StatusError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, http.StatusForbidden, serr.StatusCode)
		assert.Equal(t, "bad key", serr.Body)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Gives Up", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := DoWithRetry(ctx, HTTPClient(time.Second), 2, time.Millisecond, func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		})
		assert.ErrorContains(t, err, "giving up after 2 attempts")
	})
}
