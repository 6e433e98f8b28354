package hubapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", WithLogger(logger.Discard()), WithMaxRetries(2))
}

func TestFetchSnapshot_PayloadShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
	}{
		{
			name:    "bare array",
			body:    `[{"id":1,"title":"a"},{"id":"2","title":"b"}]`,
			wantIDs: []string{"1", "2"},
		},
		{
			name:    "envelope around array",
			body:    `{"success":true,"message":"ok","data":[{"id":"7"}]}`,
			wantIDs: []string{"7"},
		},
		{
			name:    "envelope around page object",
			body:    `{"success":true,"data":{"content":[{"notificationId":9}],"totalElements":1}}`,
			wantIDs: []string{"9"},
		},
		{
			name:    "envelope without data",
			body:    `{"success":true,"message":"empty"}`,
			wantIDs: []string{},
		},
		{
			name:    "envelope with null data",
			body:    `{"success":true,"data":null}`,
			wantIDs: []string{},
		},
		{
			name:    "items without ids are dropped",
			body:    `[{"title":"orphan"},{"id":"3"}]`,
			wantIDs: []string{"3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			got, err := c.FetchSnapshot(context.Background(), SnapshotOptions{})
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, n := range got {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFetchSnapshot_Query(t *testing.T) {
	var gotQuery string
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	_, err := c.FetchSnapshot(context.Background(), SnapshotOptions{
		Size:       10,
		EventTypes: []model.EventType{model.EventTypeReviewRequested, model.EventTypeStatusChanged},
	})
	require.NoError(t, err)
	assert.Equal(t, "eventType=REVIEW_REQUESTED&eventType=STATUS_CHANGED&size=10", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestFetchSnapshot_Errors(t *testing.T) {
	t.Run("envelope failure carries the server message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"message":"session expired"}`))
		})
		_, err := c.FetchSnapshot(context.Background(), SnapshotOptions{})
		var envErr *EnvelopeError
		require.ErrorAs(t, err, &envErr)
		assert.Equal(t, "session expired", envErr.Message)
	})

	t.Run("401 is an auth error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.FetchSnapshot(context.Background(), SnapshotOptions{})
		assert.True(t, IsAuthError(err))
	})

	t.Run("non-2xx is an API error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"boom"}`))
		})
		_, err := c.FetchSnapshot(context.Background(), SnapshotOptions{})
		require.Error(t, err)
		assert.True(t, IsStatus(err, http.StatusInternalServerError))
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`3`))
	})

	n, err := c.FetchUnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchUnreadCount(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "bare number", body: `4`, want: 4},
		{name: "numeric string", body: `"12"`, want: 12},
		{name: "envelope", body: `{"success":true,"data":5}`, want: 5},
		{name: "envelope with count object", body: `{"success":true,"data":{"unreadCount":6}}`, want: 6},
		{name: "count object", body: `{"count":2}`, want: 2},
		{name: "non-numeric string", body: `"many"`, wantErr: true},
		{name: "null data", body: `{"success":true,"data":null}`, wantErr: true},
		{name: "array", body: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/notifications/unread-count", r.URL.Path)
				w.Write([]byte(tt.body))
			})

			got, err := c.FetchUnreadCount(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarkRead(t *testing.T) {
	var method, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.MarkRead(context.Background(), "42"))
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/api/notifications/42/read", path)
}

func TestMarkManyRead_PartialFailure(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "/bad/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"success":true}`))
	})

	err := c.MarkManyRead(context.Background(), []string{"1", "bad", "2"})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Equal(t, int32(3), hits.Load(), "every id is attempted")

	assert.NoError(t, c.MarkManyRead(context.Background(), nil))
}

func TestMarkRead_EnvelopeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"not yours"}`))
	})

	err := c.MarkRead(context.Background(), "1")
	var envErr *EnvelopeError
	assert.True(t, errors.As(err, &envErr))
}

func TestWithHTTPClient_LeavesCallerClientUntouched(t *testing.T) {
	hc := &http.Client{}
	c := NewClient("http://example.invalid", "tok", WithHTTPClient(hc), WithTimeout(7*time.Second))

	assert.Zero(t, hc.Timeout)
	assert.Equal(t, 7*time.Second, c.httpClient.Timeout)
	assert.Zero(t, c.streamClient.Timeout)
	assert.NotSame(t, hc, c.httpClient)
}
