package sync

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ViewMsg is a tea.Msg carrying a published view.
type ViewMsg struct {
	View View
}

// NoticeMsg is a tea.Msg carrying a transient failure.
type NoticeMsg struct {
	Notice Notice
}

// Feed forwards center updates to the Bubble Tea runtime. Views are
// coalesced: when the program falls behind, only the newest view is kept.
type Feed struct {
	viewCh   chan View
	noticeCh chan Notice
	cancel   []func()
}

// NewFeed subscribes to the views and notices of c.
func NewFeed(c *Center) *Feed {
	f := &Feed{
		viewCh:   make(chan View, 1),
		noticeCh: make(chan Notice, 8),
	}
	f.cancel = append(f.cancel, c.Subscribe(f.push), c.SubscribeNotices(f.Notify))
	return f
}

// push replaces any undelivered view with v without blocking.
func (f *Feed) push(v View) {
	for {
		select {
		case f.viewCh <- v:
			return
		default:
		}
		select {
		case <-f.viewCh:
		default:
		}
	}
}

// Notify queues a notice without blocking; notices beyond the buffer are
// dropped.
func (f *Feed) Notify(n Notice) {
	select {
	case f.noticeCh <- n:
	default:
	}
}

// Stop detaches the feed from the center.
func (f *Feed) Stop() {
	for _, cancel := range f.cancel {
		cancel()
	}
}

// WaitForNext returns a tea.Cmd that waits for the next view or notice.
// Call it again after handling each ViewMsg or NoticeMsg to keep
// listening.
func (f *Feed) WaitForNext() tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-f.viewCh:
			return ViewMsg{View: v}
		case n := <-f.noticeCh:
			return NoticeMsg{Notice: n}
		}
	}
}
