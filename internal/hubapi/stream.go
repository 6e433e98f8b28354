package hubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	gosync "sync"
	"sync/atomic"

	sse "github.com/tmaxmax/go-sse"

	"github.com/nhle/workhub/internal/model"
)

// ReadyState mirrors the readiness of an event stream connection.
type ReadyState int32

const (
	Connecting ReadyState = iota
	Open
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// ErrStreamEnded is reported through OnError when the server closes the
// event stream.
var ErrStreamEnded = errors.New("hubapi: event stream ended")

// maxFrameSize bounds a single event of the stream.
const maxFrameSize = 1 << 20

// Frame is one dispatched server-sent event whose data is valid JSON.
type Frame struct {
	// ID is the stream's last event id, which carries over from earlier
	// events that set one.
	ID string

	// OwnID reports whether this event declared ID itself.
	OwnID bool

	Event string
	Data  json.RawMessage
}

// StreamOptions configures OpenStream. Callbacks run on the stream's
// reader goroutine, one at a time, in arrival order.
type StreamOptions struct {
	// LastEventID resumes the stream after the given event.
	LastEventID string

	OnOpen    func()
	OnMessage func(Frame)

	// OnError fires once, after the state became Closed, when the
	// connection fails or ends. It does not fire after Close.
	OnError func(error)

	// OnInvalid receives frames whose data is not JSON. They are
	// otherwise dropped.
	OnInvalid func(Frame, error)
}

// streamEvents are the named events dispatched besides the default
// "message" event.
var streamEvents = func() map[string]bool {
	m := map[string]bool{
		"message":      true,
		"notification": true,
		"NOTIFICATION": true,
	}
	for _, et := range model.EventTypes {
		m[string(et)] = true
	}
	return m
}()

// Stream is a live server-sent event connection.
type Stream struct {
	state  atomic.Int32
	closed atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
	once   gosync.Once
	logger *slog.Logger
}

// ReadyState reports the connection state.
func (s *Stream) ReadyState() ReadyState {
	return ReadyState(s.state.Load())
}

// Close terminates the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.state.Store(int32(Closed))
		s.cancel()
	})
	return nil
}

// Done is closed when the reader goroutine has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

// OpenStream connects to the event stream endpoint. It returns as soon as
// the reader goroutine is started; the connection is established in the
// background and reported through OnOpen or OnError.
func (c *Client) OpenStream(ctx context.Context, opts StreamOptions) (*Stream, error) {
	endpoint := c.baseURL + c.streamPath
	if opts.LastEventID != "" {
		q := url.Values{}
		q.Set("lastEventId", opts.LastEventID)
		endpoint += "?" + q.Encode()
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if opts.LastEventID != "" {
		req.Header.Set("Last-Event-ID", opts.LastEventID)
	}

	s := &Stream{
		cancel: cancel,
		done:   make(chan struct{}),
		logger: c.logger,
	}
	s.state.Store(int32(Connecting))

	go s.run(c.streamClient, req, opts)
	return s, nil
}

func (s *Stream) run(hc *http.Client, req *http.Request, opts StreamOptions) {
	defer close(s.done)

	resp, err := hc.Do(req)
	if err != nil {
		s.fail(opts, fmt.Errorf("connecting to event stream: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		s.fail(opts, &AuthError{BaseURL: req.URL.Host, Message: "event stream rejected the access token"})
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.fail(opts, &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       req.URL.Path,
			Message:    errorMessage(body),
		})
		return
	}

	if s.closed.Load() {
		return
	}
	s.state.Store(int32(Open))
	if opts.OnOpen != nil {
		opts.OnOpen()
	}

	err = s.read(resp.Body, opts)
	if err == nil {
		err = ErrStreamEnded
	}
	s.fail(opts, err)
}

// fail moves the stream to Closed and reports err unless Close was called.
func (s *Stream) fail(opts StreamOptions, err error) {
	s.state.Store(int32(Closed))
	if s.closed.Load() {
		return
	}
	s.logger.Debug("event stream closed", "error", err)
	if opts.OnError != nil {
		opts.OnError(err)
	}
}

// read dispatches events until EOF or a read error.
func (s *Stream) read(r io.Reader, opts StreamOptions) error {
	prevID := ""
	for ev, err := range sse.Read(r, &sse.ReadConfig{MaxEventSize: maxFrameSize}) {
		if s.closed.Load() {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}

		own := ev.LastEventID != prevID
		prevID = ev.LastEventID
		if ev.Data == "" {
			continue
		}
		s.dispatch(Frame{
			ID:    ev.LastEventID,
			OwnID: own && ev.LastEventID != "",
			Event: ev.Type,
			Data:  json.RawMessage(ev.Data),
		}, opts)
	}
	return nil
}

func (s *Stream) dispatch(f Frame, opts StreamOptions) {
	if f.Event == "" {
		f.Event = "message"
	}
	if !streamEvents[f.Event] {
		s.logger.Debug("ignoring event", "event", f.Event, "id", f.ID)
		return
	}

	if !json.Valid(f.Data) {
		err := fmt.Errorf("event %q (id %q) is not valid JSON", f.Event, f.ID)
		s.logger.Warn("dropping malformed event", "error", err)
		if opts.OnInvalid != nil {
			opts.OnInvalid(f, err)
		}
		return
	}

	if opts.OnMessage != nil && !s.closed.Load() {
		opts.OnMessage(f)
	}
}

// DecodeFrame decodes a frame payload holding one notification DTO or an
// array of them.
func DecodeFrame(f Frame) ([]NotificationDTO, error) {
	data, err := unwrap(f.Data)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}
	if data[0] == '[' {
		var dtos []NotificationDTO
		if err := json.Unmarshal(data, &dtos); err != nil {
			return nil, fmt.Errorf("decoding event %q: %w", f.ID, err)
		}
		return dtos, nil
	}

	var dto NotificationDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decoding event %q: %w", f.ID, err)
	}
	return []NotificationDTO{dto}, nil
}
