package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workhub/internal/kvsync"
	"github.com/nhle/workhub/internal/model"
	"github.com/nhle/workhub/internal/sync"
)

func newHubServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[`+
			`{"id":"1","title":"Review requested","eventType":"REVIEW_REQUESTED","isRead":false,"createdAt":"2025-11-20T09:00:00Z"},`+
			`{"id":"2","title":"Project updated","eventType":"PROJECT_UPDATED","isRead":true,"createdAt":"2025-11-20T08:00:00Z"}]}`)
	})
	mux.HandleFunc("GET /api/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":1}`)
	})
	mux.HandleFunc("GET /api/notifications/subscribe", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	mux.HandleFunc("PATCH /api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *model.AppConfig {
	return &model.AppConfig{
		API: model.APIConfig{
			BaseURL:      baseURL,
			TimeoutSec:   5,
			StreamPath:   "/api/notifications/subscribe",
			SnapshotSize: 50,
		},
		Sync: model.SyncConfig{
			ReconnectDelaySec:  1,
			TimeAgoIntervalSec: 60,
			Language:           "en",
		},
		State:   model.StateConfig{Backend: "memory"},
		Display: model.DisplayConfig{PageSize: 20},
	}
}

func newTestSession(t *testing.T, srv *httptest.Server, backend kvsync.Backend) *Session {
	t.Helper()

	s, err := NewSession(context.Background(), testConfig(srv.URL), SessionOptions{
		Token:      "tok",
		Backend:    backend,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_StartsDisabledUntilSignedIn(t *testing.T) {
	srv := newHubServer(t)
	s := newTestSession(t, srv, kvsync.NewMemoryBackend())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, sync.StateDisabled, s.Center.State())
	assert.Empty(t, s.Center.View().Notifications)
}

func TestSession_SignInReachesEveryInstance(t *testing.T) {
	srv := newHubServer(t)
	shared := kvsync.NewMemoryBackend()

	a := newTestSession(t, srv, shared)
	b := newTestSession(t, srv, shared)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))

	a.SignIn()

	for name, s := range map[string]*Session{"a": a, "b": b} {
		assert.Eventually(t, func() bool {
			v := s.Center.View()
			return v.State == sync.StateLive && len(v.Notifications) == 2
		}, 3*time.Second, 10*time.Millisecond, name)
		assert.Equal(t, 1, s.Center.View().UnreadCount, name)
	}

	a.SignOut()

	for name, s := range map[string]*Session{"a": a, "b": b} {
		assert.Eventually(t, func() bool {
			v := s.Center.View()
			return v.State == sync.StateDisabled && len(v.Notifications) == 0
		}, 3*time.Second, 10*time.Millisecond, name)
	}
}

func TestSession_UnreadCountIsMirrored(t *testing.T) {
	srv := newHubServer(t)
	shared := kvsync.NewMemoryBackend()

	s := newTestSession(t, srv, shared)
	require.NoError(t, s.Start(context.Background()))
	s.SignIn()

	observer := kvsync.NewHub(shared)
	mirror := kvsync.Bind(observer, model.KeyUnreadCount, kvsync.Options[int]{ListenAcrossTabs: true})
	defer mirror.Close()
	require.NoError(t, observer.Start(context.Background()))
	defer observer.Stop()

	assert.Eventually(t, func() bool { return mirror.Value() == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Center.MarkRead(context.Background(), "1"))
	assert.Eventually(t, func() bool { return mirror.Value() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend(model.StateConfig{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &kvsync.MemoryBackend{}, b)

	path := t.TempDir() + "/nested/state.db"
	b, err = OpenBackend(model.StateConfig{Backend: "sqlite", SQLitePath: path, PollIntervalMs: 10}, nil)
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	_, err = OpenBackend(model.StateConfig{Backend: "etcd"}, nil)
	assert.Error(t, err)
}
