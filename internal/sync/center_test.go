package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/kvsync"
	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/model"
)

var baseTime = time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

func notif(id string, minutesAgo int, read bool) model.Notification {
	return model.Notification{
		ID:          id,
		EventType:   model.EventTypeGeneral,
		Title:       "title " + id,
		Description: "description " + id,
		Read:        read,
		CreatedAt:   baseTime.Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func ids(ns []model.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

type centerFixture struct {
	center    *Center
	transport *fakeTransport
	sched     *fakeScheduler
	hub       *kvsync.Hub
	notices   []Notice
}

func newCenterFixture(t *testing.T) *centerFixture {
	t.Helper()

	f := &centerFixture{
		transport: &fakeTransport{},
		sched:     newFakeScheduler(),
		hub:       kvsync.NewHub(nil, kvsync.WithLogger(logger.Discard())),
	}
	nz := hubapi.NewNormalizer()
	nz.Location = time.UTC
	nz.Now = f.sched.Now

	f.center = New(f.transport, Options{
		Hub:        f.hub,
		Scheduler:  f.sched,
		Logger:     logger.Discard(),
		Normalizer: nz,
		OnNotice:   func(n Notice) { f.notices = append(f.notices, n) },
	})
	t.Cleanup(f.center.Shutdown)
	return f
}

func (f *centerFixture) enableLive(t *testing.T) *fakeStream {
	t.Helper()
	require.NoError(t, f.center.Enable(context.Background(), EnableOptions{}))
	s := f.transport.LastStream()
	require.NotNil(t, s)
	s.Open()
	require.Equal(t, StateLive, f.center.State())
	return s
}

func TestMerge_Idempotent(t *testing.T) {
	l := []model.Notification{notif("a", 5, false), notif("b", 1, true), notif("c", 3, false)}
	s := []model.Notification{notif("c", 3, true), notif("c", 3, true), notif("d", 0, false)}

	once := Merge(l, s)
	twice := Merge(once, s)

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(once))
	assert.True(t, once[2].Read, "incoming wins")
	assert.Len(t, l, 3, "input untouched")
	assert.False(t, l[2].Read, "input untouched")
}

func TestMerge_TieBreakByID(t *testing.T) {
	got := Merge(nil, []model.Notification{notif("1", 0, false), notif("3", 0, false), notif("2", 0, false)})
	assert.Equal(t, []string{"3", "2", "1"}, ids(got))
}

func TestCenter_EnableRefreshesAndGoesLive(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 10, false), notif("2", 5, true)}
	f.transport.count = 4

	s := f.enableLive(t)

	v := f.center.View()
	assert.Equal(t, []string{"2", "1"}, ids(v.Notifications))
	assert.Equal(t, 4, v.UnreadCount, "server count above local count wins")
	assert.False(t, v.Loading)
	assert.Empty(t, v.Error)
	assert.Equal(t, StateLive, v.State)
	assert.Equal(t, 1, f.sched.ActiveTickers())

	mirror := kvsync.Bind(f.hub, model.KeyUnreadCount, kvsync.Options[int]{})
	assert.Equal(t, 4, mirror.Value())

	require.NoError(t, f.center.Enable(context.Background(), EnableOptions{}))
	assert.Len(t, f.transport.Streams(), 1, "enable while live does not open a second stream")
	assert.False(t, s.Closed())
}

func TestCenter_RefreshToleratesCountFailure(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false)}
	f.transport.countErr = hubapi.ErrMalformedCount

	require.NoError(t, f.center.Refresh(context.Background()))
	assert.Equal(t, 1, f.center.View().UnreadCount)
	assert.Empty(t, f.notices)
}

func TestCenter_RefreshFailureKeepsSet(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false)}
	require.NoError(t, f.center.Refresh(context.Background()))

	f.transport.snapErr = &hubapi.EnvelopeError{Message: "maintenance"}
	err := f.center.Refresh(context.Background())
	require.Error(t, err)

	v := f.center.View()
	assert.Equal(t, []string{"1"}, ids(v.Notifications))
	assert.Contains(t, v.Error, "maintenance")
	require.Len(t, f.notices, 1)
	assert.Equal(t, "refresh", f.notices[0].Op)

	f.transport.snapErr = nil
	require.NoError(t, f.center.Refresh(context.Background()))
	assert.Empty(t, f.center.View().Error)
}

func TestCenter_StreamFramesMergeAndAdvanceCursor(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 10, false)}
	s := f.enableLive(t)

	s.Send("e-2", "notification", `{"id":"2","title":"hello","createdAt":"2025-11-20T11:59:00Z"}`)
	s.Send("e-2", "notification", `{"id":"2","title":"hello","createdAt":"2025-11-20T11:59:00Z"}`)
	s.Send("", "message", `[{"id":"3","createdAt":"2025-11-20T11:00:00Z"},{"id":"4","createdAt":"2025-11-20T11:30:00Z"}]`)

	v := f.center.View()
	assert.Equal(t, []string{"2", "1", "4", "3"}, ids(v.Notifications))
	assert.Equal(t, "4", v.LastEventID, "without a frame id the last item id is the cursor")
	assert.Equal(t, "hello", v.Notifications[0].Title)
	assert.Equal(t, 4, v.UnreadCount)
}

func TestCenter_FrameWithoutItemIDUsesFrameID(t *testing.T) {
	f := newCenterFixture(t)
	s := f.enableLive(t)

	s.Send("77", "REVIEW_REQUESTED", `{"eventType":"REVIEW_REQUESTED","title":"please review"}`)
	s.Send("", "message", `{"title":"orphan"}`)
	s.Send("78", "message", `"not an object"`)

	v := f.center.View()
	require.Len(t, v.Notifications, 1)
	assert.Equal(t, "77", v.Notifications[0].ID)
	assert.Equal(t, model.CategoryTask, v.Notifications[0].Category)
	assert.Equal(t, "77", v.LastEventID)
}

func TestCenter_CarriedFrameIDIsNotInherited(t *testing.T) {
	f := newCenterFixture(t)
	s := f.enableLive(t)

	s.Send("7", "notification", `{"id":"7","title":"first"}`)
	s.SendCarried("7", "message", `{"title":"another event"}`)
	s.SendCarried("7", "message", `{}`)

	v := f.center.View()
	require.Len(t, v.Notifications, 1)
	assert.Equal(t, "7", v.Notifications[0].ID)
	assert.Equal(t, "first", v.Notifications[0].Title)
	assert.Equal(t, "7", v.LastEventID)

	s.SendCarried("7", "message", `{"id":"8","title":"second"}`)
	v = f.center.View()
	assert.Equal(t, []string{"8", "7"}, ids(v.Notifications))
	assert.Equal(t, "8", v.LastEventID, "a carried id does not move the cursor")
}

func TestCenter_DisconnectDuringRefreshDropsResult(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false), notif("2", 2, false)}
	f.transport.count = 2
	f.transport.gate = make(chan struct{})
	f.transport.fetching = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- f.center.Enable(context.Background(), EnableOptions{}) }()

	select {
	case <-f.transport.fetching:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot fetch never started")
	}
	f.center.Disconnect(DisconnectOptions{ResetCursor: true})
	close(f.transport.gate)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("enable did not return")
	}

	v := f.center.View()
	assert.Equal(t, StateDisabled, v.State)
	assert.Empty(t, v.Notifications)
	assert.Equal(t, 0, v.UnreadCount)
	assert.False(t, v.Loading)
	assert.Empty(t, f.transport.Streams(), "no stream for an ended session")

	mirror := kvsync.Bind(f.hub, model.KeyUnreadCount, kvsync.Options[int]{Default: -1})
	assert.Equal(t, 0, mirror.Value())
}

func TestCenter_ReconnectSingularity(t *testing.T) {
	f := newCenterFixture(t)
	s := f.enableLive(t)
	s.Send("9", "message", `{"id":"9"}`)

	s.Fail(fmt.Errorf("connection reset"))
	assert.Equal(t, StateReconnecting, f.center.State())
	assert.Equal(t, 1, f.sched.Pending())

	s.Fail(fmt.Errorf("connection reset again"))
	assert.Equal(t, 1, f.sched.Pending(), "a second error does not schedule another timer")

	f.sched.Advance(4 * time.Second)
	assert.Len(t, f.transport.Streams(), 1)

	f.sched.Advance(time.Second)
	streams := f.transport.Streams()
	require.Len(t, streams, 2)
	assert.True(t, s.Closed(), "dangling handle closed before reopening")
	assert.Equal(t, "9", streams[1].opts.LastEventID, "cursor carried forward")
	assert.Equal(t, StateConnecting, f.center.State())
	assert.Equal(t, 0, f.sched.Pending())

	streams[1].Open()
	assert.Equal(t, StateLive, f.center.State())
}

func TestCenter_IgnoresTransientAndStaleErrors(t *testing.T) {
	f := newCenterFixture(t)
	s := f.enableLive(t)

	s.Transient(fmt.Errorf("hiccup"))
	assert.Equal(t, StateLive, f.center.State())
	assert.Equal(t, 0, f.sched.Pending())

	s.Fail(fmt.Errorf("gone"))
	f.sched.Advance(5 * time.Second)
	require.Len(t, f.transport.Streams(), 2)

	s.Fail(fmt.Errorf("late error from the old stream"))
	assert.Equal(t, 0, f.sched.Pending())
	s.Send("x", "message", `{"id":"x"}`)
	assert.Empty(t, f.center.View().Notifications, "frames from the old stream are ignored")
}

func TestCenter_OpenFailureSchedulesReconnect(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.openErr = fmt.Errorf("dial failed")

	require.NoError(t, f.center.Enable(context.Background(), EnableOptions{}))
	assert.Equal(t, StateReconnecting, f.center.State())
	assert.Equal(t, 1, f.sched.Pending())

	f.transport.mu.Lock()
	f.transport.openErr = nil
	f.transport.mu.Unlock()

	f.sched.Advance(5 * time.Second)
	require.Len(t, f.transport.Streams(), 1)
	f.transport.LastStream().Open()
	assert.Equal(t, StateLive, f.center.State())
}

func TestCenter_MarkReadIsOptimisticAndMonotonic(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false), notif("2", 2, false)}
	f.transport.count = 10
	require.NoError(t, f.center.Refresh(context.Background()))
	require.Equal(t, 10, f.center.View().UnreadCount)

	f.transport.markErr = fmt.Errorf("server said no")
	err := f.center.MarkRead(context.Background(), "1")
	require.Error(t, err)

	v := f.center.View()
	assert.True(t, v.Notifications[0].Read, "no rollback on failure")
	assert.Equal(t, 1, v.UnreadCount, "stale server count is forgotten after a mutation")
	require.Len(t, f.notices, 1)
	assert.Equal(t, "mark_read", f.notices[0].Op)
	assert.Equal(t, []string{"1"}, f.transport.Marked())

	f.transport.markErr = nil
	require.NoError(t, f.center.MarkRead(context.Background(), "1"))
	assert.True(t, f.center.View().Notifications[0].Read)
}

func TestCenter_MarkAllRead(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false), notif("2", 2, true), notif("3", 3, false)}
	require.NoError(t, f.center.Refresh(context.Background()))

	require.NoError(t, f.center.MarkAllRead(context.Background()))
	assert.ElementsMatch(t, []string{"1", "3"}, f.transport.Marked())
	assert.Equal(t, 0, f.center.View().UnreadCount)

	require.NoError(t, f.center.MarkAllRead(context.Background()))
	assert.Len(t, f.transport.Marked(), 2, "nothing left to mark")
}

func TestCenter_RemoveIsLocal(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false), notif("2", 2, false)}
	f.transport.count = 5
	require.NoError(t, f.center.Refresh(context.Background()))

	f.center.Remove("1")
	v := f.center.View()
	assert.Equal(t, []string{"2"}, ids(v.Notifications))
	assert.Equal(t, 1, v.UnreadCount)
	assert.Empty(t, f.transport.Marked())
}

func TestCenter_UnreadFloor(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false), notif("2", 2, false), notif("3", 3, false)}
	f.transport.count = 1

	check := func(step string) {
		v := f.center.View()
		assert.GreaterOrEqual(t, v.UnreadCount, model.CountUnread(v.Notifications), step)
	}

	require.NoError(t, f.center.Refresh(context.Background()))
	check("refresh with low server count")
	require.NoError(t, f.center.MarkRead(context.Background(), "1"))
	check("mark read")
	f.center.Remove("2")
	check("remove")
	f.transport.count = 0
	require.NoError(t, f.center.Refresh(context.Background()))
	check("second refresh")
}

func TestCenter_DisconnectClearsSession(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false)}
	f.transport.count = 3
	s := f.enableLive(t)
	s.Send("c-1", "message", `{"id":"5"}`)
	s.Fail(fmt.Errorf("drop"))
	require.Equal(t, 1, f.sched.Pending())

	f.center.Disconnect(DisconnectOptions{})

	v := f.center.View()
	assert.Equal(t, StateDisabled, v.State)
	assert.Empty(t, v.Notifications)
	assert.Equal(t, 0, v.UnreadCount)
	assert.Equal(t, "c-1", v.LastEventID, "cursor kept without ResetCursor")
	assert.Equal(t, 0, f.sched.Pending())
	assert.Equal(t, 0, f.sched.ActiveTickers())

	mirror := kvsync.Bind(f.hub, model.KeyUnreadCount, kvsync.Options[int]{Default: -1})
	assert.Equal(t, 0, mirror.Value())

	f.sched.Advance(time.Minute)
	assert.Len(t, f.transport.Streams(), 1, "no reconnect after disconnect")

	require.NoError(t, f.center.Enable(context.Background(), EnableOptions{}))
	assert.Equal(t, "c-1", f.transport.LastStream().opts.LastEventID)

	f.center.Disconnect(DisconnectOptions{ResetCursor: true})
	assert.Empty(t, f.center.View().LastEventID)
	assert.True(t, f.transport.LastStream().Closed())
}

func TestCenter_EnableResetCursor(t *testing.T) {
	f := newCenterFixture(t)
	s := f.enableLive(t)
	s.Send("c-9", "message", `{"id":"9"}`)
	f.center.Shutdown()

	assert.Equal(t, []string{"9"}, ids(f.center.View().Notifications), "shutdown keeps the set")

	require.NoError(t, f.center.Enable(context.Background(), EnableOptions{ResetCursor: true}))
	assert.Empty(t, f.transport.LastStream().opts.LastEventID)
}

func TestCenter_TickRecomputesTimeAgo(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 0, false), notif("2", 90, false)}
	f.enableLive(t)

	before := f.center.View().Notifications
	f.sched.Advance(60 * time.Second)
	after := f.center.View().Notifications

	assert.Equal(t, ids(before), ids(after))
	assert.Equal(t, "1 minute ago", after[0].TimeAgo)
	assert.Equal(t, "1 hour ago", after[1].TimeAgo)
}

func TestCenter_SubscribeReceivesViewsInOrder(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false)}

	var counts []int
	cancel := f.center.Subscribe(func(v View) { counts = append(counts, len(v.Notifications)) })
	require.NoError(t, f.center.Refresh(context.Background()))
	cancel()
	f.center.Remove("1")

	require.NotEmpty(t, counts)
	assert.Equal(t, 0, counts[0], "current view delivered on subscribe")
	assert.Equal(t, 1, counts[len(counts)-1])
}

func TestCenter_BindSession(t *testing.T) {
	f := newCenterFixture(t)
	f.transport.snapshot = []model.Notification{notif("1", 1, false)}

	login := kvsync.Bind(f.hub, model.KeyAuthFlag, kvsync.Options[bool]{})
	flag := kvsync.Bind(f.hub, model.KeyAuthFlag, kvsync.Options[bool]{ListenAcrossTabs: true})
	cancel := f.center.BindSession(context.Background(), flag)
	defer cancel()

	assert.Equal(t, StateDisabled, f.center.State())

	login.Set(true)
	assert.Equal(t, StateConnecting, f.center.State())
	assert.Len(t, f.center.View().Notifications, 1)

	login.Set(false)
	assert.Equal(t, StateDisabled, f.center.State())
	assert.Empty(t, f.center.View().Notifications)
}

func TestContextHelpers(t *testing.T) {
	f := newCenterFixture(t)

	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { MustFromContext(context.Background()) })

	ctx := WithCenter(context.Background(), f.center)
	assert.Same(t, f.center, MustFromContext(ctx))
}
