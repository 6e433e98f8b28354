package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/model"
)

// fakeScheduler fires timers only when the test advances it.
type fakeScheduler struct {
	mu      gosync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

type fakeTicker struct {
	every   time.Duration
	next    time.Time
	f       func()
	stopped bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, at: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

func (s *fakeScheduler) Every(d time.Duration, f func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	tk := &fakeTicker{every: d, next: s.now.Add(d), f: f}
	s.tickers = append(s.tickers, tk)
	return func() {
		s.mu.Lock()
		tk.stopped = true
		s.mu.Unlock()
	}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending counts timers that have neither fired nor been stopped.
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ActiveTickers counts periodic jobs that have not been stopped.
func (s *fakeScheduler) ActiveTickers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tk := range s.tickers {
		if !tk.stopped {
			n++
		}
	}
	return n
}

// Advance moves the clock forward and runs due callbacks outside the lock.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due []func()
	for _, t := range s.timers {
		if !t.stopped && !t.fired && !t.at.After(s.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	for _, tk := range s.tickers {
		for !tk.stopped && !tk.next.After(s.now) {
			tk.next = tk.next.Add(tk.every)
			due = append(due, tk.f)
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		f()
	}
}

// fakeStream is driven by the test through Open, Send and Fail.
type fakeStream struct {
	mu     gosync.Mutex
	opts   hubapi.StreamOptions
	state  hubapi.ReadyState
	closed bool
}

func (s *fakeStream) ReadyState() hubapi.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.state = hubapi.Closed
	return nil
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) Open() {
	s.mu.Lock()
	s.state = hubapi.Open
	s.mu.Unlock()
	s.opts.OnOpen()
}

// Send delivers a frame that declares id itself, or no id when empty.
func (s *fakeStream) Send(id, event, data string) {
	s.opts.OnMessage(hubapi.Frame{ID: id, OwnID: id != "", Event: event, Data: []byte(data)})
}

// SendCarried delivers a frame that only inherits id from an earlier
// frame of the stream.
func (s *fakeStream) SendCarried(id, event, data string) {
	s.opts.OnMessage(hubapi.Frame{ID: id, Event: event, Data: []byte(data)})
}

func (s *fakeStream) Fail(err error) {
	s.mu.Lock()
	s.state = hubapi.Closed
	s.mu.Unlock()
	s.opts.OnError(err)
}

// Transient reports an error while the connection is still open.
func (s *fakeStream) Transient(err error) {
	s.opts.OnError(err)
}

var errFake = errors.New("fake transport failure")

type fakeTransport struct {
	mu       gosync.Mutex
	snapshot []model.Notification
	snapErr  error
	count    int
	countErr error
	markErr  error
	marked   []string
	openErr  error
	streams  []*fakeStream

	// gate, when set, holds FetchSnapshot until it is closed; fetching
	// receives a value once the fetch is waiting.
	gate     chan struct{}
	fetching chan struct{}
}

func (f *fakeTransport) FetchSnapshot(context.Context, hubapi.SnapshotOptions) ([]model.Notification, error) {
	f.mu.Lock()
	gate, fetching := f.gate, f.fetching
	f.mu.Unlock()
	if gate != nil {
		fetching <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	out := make([]model.Notification, len(f.snapshot))
	copy(out, f.snapshot)
	return out, nil
}

func (f *fakeTransport) FetchUnreadCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeTransport) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return f.markErr
}

func (f *fakeTransport) MarkManyRead(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := f.MarkRead(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fakeTransport) OpenStream(_ context.Context, opts hubapi.StreamOptions) (StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeStream{opts: opts, state: hubapi.Connecting}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeTransport) Streams() []*fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeStream(nil), f.streams...)
}

func (f *fakeTransport) LastStream() *fakeStream {
	s := f.Streams()
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

func (f *fakeTransport) Marked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.marked...)
}
