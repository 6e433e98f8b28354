package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workhub/internal/model"
)

func TestFeed_CoalescesViews(t *testing.T) {
	f := newCenterFixture(t)
	feed := NewFeed(f.center)
	defer feed.Stop()

	f.transport.snapshot = []model.Notification{notif("1", 1, false), notif("2", 2, false)}
	require.NoError(t, f.center.Refresh(context.Background()))

	msg := feed.WaitForNext()()
	vm, ok := msg.(ViewMsg)
	require.True(t, ok)
	assert.Len(t, vm.View.Notifications, 2, "only the newest view is kept")
}

func TestFeed_DeliversNotices(t *testing.T) {
	f := newCenterFixture(t)
	feed := NewFeed(f.center)
	defer feed.Stop()

	// drain the initial view
	_ = feed.WaitForNext()()

	f.transport.snapErr = errFake
	require.Error(t, f.center.Refresh(context.Background()))

	var notice *NoticeMsg
	for i := 0; i < 2 && notice == nil; i++ {
		if nm, ok := feed.WaitForNext()().(NoticeMsg); ok {
			notice = &nm
		}
	}
	require.NotNil(t, notice)
	assert.Equal(t, "refresh", notice.Notice.Op)
	assert.ErrorIs(t, notice.Notice.Err, errFake)
}
