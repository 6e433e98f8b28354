package sync

import (
	"context"

	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/model"
)

// StreamHandle is an open event stream.
type StreamHandle interface {
	ReadyState() hubapi.ReadyState
	Close() error
}

// Transport is what the center needs from the backend.
type Transport interface {
	FetchSnapshot(ctx context.Context, opts hubapi.SnapshotOptions) ([]model.Notification, error)
	FetchUnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkManyRead(ctx context.Context, ids []string) error
	OpenStream(ctx context.Context, opts hubapi.StreamOptions) (StreamHandle, error)
}

// ClientTransport adapts *hubapi.Client to Transport.
type ClientTransport struct {
	*hubapi.Client
}

// NewTransport wraps c.
func NewTransport(c *hubapi.Client) ClientTransport {
	return ClientTransport{Client: c}
}

// OpenStream implements Transport.
func (t ClientTransport) OpenStream(ctx context.Context, opts hubapi.StreamOptions) (StreamHandle, error) {
	s, err := t.Client.OpenStream(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}
