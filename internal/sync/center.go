// Package sync owns the canonical notification set of a session. The
// Center reconciles the REST snapshot, the server unread counter and the
// live event stream into one deduplicated, newest-first view, manages the
// stream lifecycle, and applies optimistic read/remove mutations.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/kvsync"
	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/model"
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultTickInterval   = 60 * time.Second
)

// Notice is a transient, user-facing failure report.
type Notice struct {
	Op  string
	Err error
}

func (n Notice) Error() string {
	return fmt.Sprintf("%s: %v", n.Op, n.Err)
}

// View is the read-only snapshot published to subscribers.
type View struct {
	// Notifications is a private copy, newest first.
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
	Error         string
	State         State
	LastEventID   string
}

// Options configures a Center. Zero values get defaults.
type Options struct {
	// Context is the parent of every stream opened by the center.
	Context context.Context

	// Hub, when set, mirrors the unread count under
	// model.KeyUnreadCount.
	Hub *kvsync.Hub

	Scheduler  Scheduler
	Logger     *slog.Logger
	Recorder   Recorder
	Normalizer *hubapi.Normalizer
	OnNotice   func(Notice)

	Snapshot       hubapi.SnapshotOptions
	ReconnectDelay time.Duration
	TickInterval   time.Duration
	Language       string
}

// EnableOptions control Enable.
type EnableOptions struct {
	// ResetCursor drops the resumption cursor before connecting.
	ResetCursor bool
}

// DisconnectOptions control Disconnect.
type DisconnectOptions struct {
	// ResetCursor drops the resumption cursor.
	ResetCursor bool
}

// Center is the notification synchronization core. Create one per
// session with New; it is safe for concurrent use.
type Center struct {
	transport  Transport
	sched      Scheduler
	logger     *slog.Logger
	rec        Recorder
	normalizer *hubapi.Normalizer
	onNotice   func(Notice)
	snapshot   hubapi.SnapshotOptions
	reconnect  backoff.BackOff
	tick       time.Duration
	language   string
	baseCtx    context.Context
	mirror     *kvsync.Binding[int]

	mu            gosync.Mutex
	state         State
	items         []model.Notification
	unread        UnreadPolicy
	cursor        string
	loading       bool
	lastErr       string
	stream        StreamHandle
	opening       bool
	streamGen     uint64
	epoch         uint64
	timer         Timer
	stopTick      func()
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	subs          map[int]func(View)
	nextSub       int
	noticeSubs    map[int]func(Notice)

	// pubMu serializes delivery so subscribers see views in commit order.
	pubMu       gosync.Mutex
	lastMirror  int
	mirrorKnown bool
}

// New creates a Center in the Disabled state.
func New(t Transport, opts Options) *Center {
	c := &Center{
		transport:  t,
		sched:      opts.Scheduler,
		logger:     opts.Logger,
		rec:        opts.Recorder,
		normalizer: opts.Normalizer,
		onNotice:   opts.OnNotice,
		snapshot:   opts.Snapshot,
		tick:       opts.TickInterval,
		language:   opts.Language,
		baseCtx:    opts.Context,
		subs:       make(map[int]func(View)),
		noticeSubs: make(map[int]func(Notice)),
	}

	if c.sched == nil {
		c.sched = RealScheduler{}
	}
	if c.logger == nil {
		c.logger = logger.WithComponent("sync")
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	if c.normalizer == nil {
		c.normalizer = hubapi.NewNormalizer()
		c.normalizer.Now = c.sched.Now
		if c.language != "" {
			c.normalizer.Language = c.language
		}
	}
	if c.language == "" {
		c.language = c.normalizer.Language
	}
	if c.tick <= 0 {
		c.tick = defaultTickInterval
	}
	if c.baseCtx == nil {
		c.baseCtx = context.Background()
	}

	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	c.reconnect = backoff.NewConstantBackOff(delay)

	if opts.Hub != nil {
		c.mirror = kvsync.Bind(opts.Hub, model.KeyUnreadCount, kvsync.Options[int]{})
	}
	return c
}

// Enable starts the session: it refreshes, opens the stream and starts
// the relative-time tick. It is a no-op unless the center is Disabled.
// The refresh error, if any, is returned; the stream is opened anyway.
func (c *Center) Enable(ctx context.Context, opts EnableOptions) error {
	c.mu.Lock()
	if c.state != StateDisabled {
		c.mu.Unlock()
		return nil
	}
	c.setState(StateConnecting)
	if opts.ResetCursor {
		c.cursor = ""
	}
	c.reconnect.Reset()
	sessionCtx, cancel := context.WithCancel(c.baseCtx)
	c.sessionCtx, c.sessionCancel = sessionCtx, cancel
	c.stopTick = c.sched.Every(c.tick, c.Tick)
	c.commit()

	c.logger.Info("notification session enabled", "reset_cursor", opts.ResetCursor)

	err := c.Refresh(ctx)
	c.openStream(sessionCtx)
	return err
}

// Disconnect ends the session: it cancels any pending reconnect, closes
// the stream, stops the tick, clears the canonical set and publishes an
// unread count of 0. The cursor is kept unless ResetCursor is set.
func (c *Center) Disconnect(opts DisconnectOptions) {
	c.mu.Lock()
	stream := c.teardown()
	c.items = nil
	c.unread.Invalidate()
	c.loading = false
	c.lastErr = ""
	if opts.ResetCursor {
		c.cursor = ""
	}
	c.setState(StateDisabled)
	c.commit()

	closeStream(stream)
	c.logger.Info("notification session disabled", "reset_cursor", opts.ResetCursor)
}

// Shutdown stops all background activity but keeps the canonical set and
// cursor, so a later Enable resumes where the session left off.
func (c *Center) Shutdown() {
	c.mu.Lock()
	stream := c.teardown()
	c.setState(StateDisabled)
	c.commit()

	closeStream(stream)
}

// teardown cancels the timer, tick and session context and detaches the
// stream, which the caller closes after unlocking. It starts a new epoch
// so in-flight refreshes of the old session are discarded. Must hold c.mu.
func (c *Center) teardown() StreamHandle {
	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCtx, c.sessionCancel = nil, nil
	}
	stream := c.stream
	c.stream = nil
	c.opening = false
	c.streamGen++
	return stream
}

// Refresh fetches the snapshot and the unread count concurrently and
// merges the snapshot into the canonical set. A failed count is treated
// as unknown. A failed snapshot leaves the set untouched, records the
// error in the view and emits a notice. Results that arrive after the
// session was disconnected or shut down are dropped.
func (c *Center) Refresh(ctx context.Context) error {
	c.mu.Lock()
	epoch := c.epoch
	c.loading = true
	c.commit()

	var (
		snap     []model.Notification
		count    int
		countErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = c.transport.FetchSnapshot(gctx, c.snapshot)
		return err
	})
	g.Go(func() error {
		count, countErr = c.transport.FetchUnreadCount(gctx)
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	c.loading = false
	if epoch != c.epoch {
		c.commit()
		c.logger.Debug("discarding refresh from an ended session")
		return nil
	}
	if err != nil {
		c.lastErr = err.Error()
		c.commit()

		c.rec.RefreshFailed()
		c.logger.Error("refreshing notifications failed", "error", err)
		c.notify(Notice{Op: "refresh", Err: err})
		return fmt.Errorf("refreshing notifications: %w", err)
	}

	c.lastErr = ""
	c.items = Merge(c.items, snap)
	if countErr != nil {
		c.unread.Invalidate()
	} else {
		c.unread.Observe(count)
	}
	c.commit()

	if countErr != nil {
		c.logger.Warn("unread count unavailable", "error", countErr)
	}
	return nil
}

// MarkRead marks id read locally, then on the server. A server failure
// is logged, reported as a notice and returned; the local change stays.
func (c *Center) MarkRead(ctx context.Context, id string) error {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Read = true
			break
		}
	}
	c.unread.Invalidate()
	c.commit()

	if err := c.transport.MarkRead(ctx, id); err != nil {
		return c.mutationFailed("mark_read", err)
	}
	return nil
}

// MarkAllRead marks every unread notification read locally, then issues
// one server call per previously unread id. Partial failures are joined
// and returned; local changes stay.
func (c *Center) MarkAllRead(ctx context.Context) error {
	c.mu.Lock()
	var ids []string
	for i := range c.items {
		if !c.items[i].Read {
			c.items[i].Read = true
			ids = append(ids, c.items[i].ID)
		}
	}
	c.unread.Invalidate()
	c.commit()

	if len(ids) == 0 {
		return nil
	}
	if err := c.transport.MarkManyRead(ctx, ids); err != nil {
		return c.mutationFailed("mark_all_read", err)
	}
	return nil
}

// Remove hides id from this client's view. Nothing is sent to the server.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	c.unread.Invalidate()
	c.commit()
}

// Tick recomputes every TimeAgo in place. Order and identity are kept.
func (c *Center) Tick() {
	c.mu.Lock()
	now := c.sched.Now()
	for i := range c.items {
		c.items[i].TimeAgo = hubapi.RelativeTime(c.items[i].CreatedAt, now, c.language)
	}
	c.commit()
}

// View returns the current view.
func (c *Center) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// State returns the stream lifecycle state.
func (c *Center) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to receive every published view, starting with
// the current one. Callbacks run in publication order and must not call
// Center methods that publish.
func (c *Center) Subscribe(fn func(View)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	v := c.viewLocked()
	c.mu.Unlock()

	fn(v)

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// BindSession drives the center from the session flag: true enables,
// false disconnects and drops the cursor. The current value is applied
// immediately.
func (c *Center) BindSession(ctx context.Context, flag *kvsync.Binding[bool]) (cancel func()) {
	apply := func(enabled bool) {
		if enabled {
			_ = c.Enable(ctx, EnableOptions{})
			return
		}
		if c.State() != StateDisabled || len(c.View().Notifications) > 0 {
			c.Disconnect(DisconnectOptions{ResetCursor: true})
		}
	}

	cancel = flag.OnChange(apply)
	apply(flag.Value())
	return cancel
}

// ResolveLink returns the navigation target for n.
func (c *Center) ResolveLink(n model.Notification) string {
	return ResolveLink(n)
}

func (c *Center) openStream(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateDisabled || c.stream != nil || c.opening {
		c.mu.Unlock()
		return
	}
	c.opening = true
	c.streamGen++
	gen := c.streamGen
	cursor := c.cursor
	c.mu.Unlock()

	h, err := c.transport.OpenStream(ctx, hubapi.StreamOptions{
		LastEventID: cursor,
		OnOpen:      func() { c.handleOpen(gen) },
		OnMessage:   func(f hubapi.Frame) { c.handleFrame(gen, f) },
		OnError:     func(err error) { c.handleStreamError(gen, err) },
		OnInvalid:   func(hubapi.Frame, error) { c.rec.FrameDropped("invalid_json") },
	})

	c.mu.Lock()
	if gen != c.streamGen || c.state == StateDisabled {
		c.mu.Unlock()
		closeStream(h)
		return
	}
	c.opening = false
	if err != nil {
		c.logger.Warn("opening notification stream failed", "error", err)
		c.scheduleReconnect()
		c.commit()
		return
	}
	c.stream = h
	c.mu.Unlock()
}

func (c *Center) handleOpen(gen uint64) {
	c.mu.Lock()
	if gen != c.streamGen || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.setState(StateLive)
	c.reconnect.Reset()
	c.commit()

	c.logger.Debug("notification stream live")
}

func (c *Center) handleStreamError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.streamGen || c.state == StateDisabled {
		c.mu.Unlock()
		return
	}
	if c.stream != nil && c.stream.ReadyState() != hubapi.Closed {
		c.mu.Unlock()
		c.logger.Debug("transient stream error", "error", err)
		return
	}
	if c.timer != nil {
		c.mu.Unlock()
		return
	}

	c.logger.Warn("notification stream closed, reconnecting", "error", err)
	c.scheduleReconnect()
	c.commit()
}

// scheduleReconnect arms the single reconnect timer. Must hold c.mu.
func (c *Center) scheduleReconnect() {
	if c.timer != nil {
		return
	}
	c.setState(StateReconnecting)
	delay := c.reconnect.NextBackOff()
	if delay == backoff.Stop || delay <= 0 {
		delay = defaultReconnectDelay
	}
	c.timer = c.sched.AfterFunc(delay, c.reconnectNow)
	c.rec.ReconnectScheduled()
}

func (c *Center) reconnectNow() {
	c.mu.Lock()
	c.timer = nil
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	stale := c.stream
	c.stream = nil
	c.opening = false
	c.streamGen++
	c.setState(StateConnecting)
	ctx := c.sessionCtx
	c.commit()

	closeStream(stale)
	c.openStream(ctx)
}

func (c *Center) handleFrame(gen uint64, f hubapi.Frame) {
	dtos, err := hubapi.DecodeFrame(f)
	if err != nil {
		c.logger.Warn("dropping undecodable frame", "id", f.ID, "error", err)
		c.rec.FrameDropped("decode")
		return
	}

	batch := make([]model.Notification, 0, len(dtos))
	for _, dto := range dtos {
		n := c.normalizer.Normalize(dto)
		if n.ID == "" && f.OwnID {
			n.ID = f.ID
		}
		if n.ID == "" {
			c.logger.Warn("dropping notification without id", "event", f.Event)
			c.rec.FrameDropped("no_id")
			continue
		}
		batch = append(batch, n)
	}

	c.mu.Lock()
	if gen != c.streamGen || c.state == StateDisabled {
		c.mu.Unlock()
		return
	}
	switch {
	case f.OwnID:
		c.cursor = f.ID
	case len(batch) > 0:
		c.cursor = batch[len(batch)-1].ID
	}
	if len(batch) > 0 {
		c.items = Merge(c.items, batch)
	}
	c.commit()

	c.rec.FrameReceived(f.Event)
}

func (c *Center) mutationFailed(op string, err error) error {
	c.rec.MutationFailed(op)
	c.logger.Error("notification mutation failed", "op", op, "error", err)
	c.notify(Notice{Op: op, Err: err})
	return fmt.Errorf("%s: %w", op, err)
}

// SubscribeNotices registers fn to receive transient failure notices.
func (c *Center) SubscribeNotices(fn func(Notice)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.noticeSubs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.noticeSubs, id)
		c.mu.Unlock()
	}
}

func (c *Center) notify(n Notice) {
	c.mu.Lock()
	fns := make([]func(Notice), 0, len(c.noticeSubs)+1)
	if c.onNotice != nil {
		fns = append(fns, c.onNotice)
	}
	for _, fn := range c.noticeSubs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

// setState applies a transition from the table. Must hold c.mu.
func (c *Center) setState(next State) {
	if !c.state.CanTransition(next) {
		c.logger.Warn("ignoring invalid state transition", "from", c.state, "to", next)
		return
	}
	if c.state != next {
		c.logger.Debug("state transition", "from", c.state, "to", next)
		c.state = next
		c.rec.StateChanged(next.String())
	}
}

func (c *Center) viewLocked() View {
	items := make([]model.Notification, len(c.items))
	copy(items, c.items)
	return View{
		Notifications: items,
		UnreadCount:   c.unread.Published(model.CountUnread(c.items)),
		Loading:       c.loading,
		Error:         c.lastErr,
		State:         c.state,
		LastEventID:   c.cursor,
	}
}

// commit snapshots the view, releases c.mu and delivers the view to
// subscribers and the unread mirror. Must hold c.mu; returns unlocked.
func (c *Center) commit() {
	v := c.viewLocked()
	subs := make([]func(View), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}

	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	if !c.mirrorKnown || c.lastMirror != v.UnreadCount {
		c.mirrorKnown = true
		c.lastMirror = v.UnreadCount
		c.rec.UnreadPublished(v.UnreadCount)
		if c.mirror != nil {
			c.mirror.Set(v.UnreadCount)
		}
	}

	for _, fn := range subs {
		fn(v)
	}
}

func closeStream(h StreamHandle) {
	if h == nil {
		return
	}
	_ = h.Close()
}
