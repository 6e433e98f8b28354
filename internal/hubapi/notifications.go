package hubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/workhub/internal/model"
)

// SnapshotOptions narrows the snapshot request.
type SnapshotOptions struct {
	// Size is the page size; 0 uses the client default.
	Size int

	// EventTypes, when non-empty, is sent as repeated eventType params.
	EventTypes []model.EventType
}

// FetchSnapshot retrieves the unread and recent notifications. The
// response may be a bare array or an envelope around an array or a page
// object; absent data yields an empty slice.
func (c *Client) FetchSnapshot(
	ctx context.Context,
	opts SnapshotOptions,
) ([]model.Notification, error) {
	size := opts.Size
	if size <= 0 {
		size = c.snapshotSize
	}

	q := url.Values{}
	q.Set("size", strconv.Itoa(size))
	for _, et := range opts.EventTypes {
		q.Add("eventType", string(et))
	}

	var raw json.RawMessage
	if err := c.Get(ctx, pathNotifications, q, &raw); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	data, err := unwrap(raw)
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	dtos, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(dtos))
	for _, dto := range dtos {
		n := c.normalizer.Normalize(dto)
		if n.ID == "" {
			c.logger.Warn("dropping notification without id", "title", n.Title)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// FetchUnreadCount retrieves the server's unread counter. Any payload that
// is not a number (bare, as a string, or inside count/unreadCount) yields
// ErrMalformedCount.
func (c *Client) FetchUnreadCount(ctx context.Context) (int, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, pathUnreadCount, nil, &raw); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}

	data, err := unwrap(raw)
	if err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}

	n, err := decodeCount(data)
	if err != nil {
		return 0, fmt.Errorf("decoding unread count %q: %w", truncate(string(data), 64), err)
	}
	return n, nil
}

// MarkRead marks a single notification as read on the server.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	var raw json.RawMessage
	path := fmt.Sprintf("%s/%s/read", pathNotifications, url.PathEscape(id))
	if err := c.Patch(ctx, path, &raw); err != nil {
		return fmt.Errorf("marking %s read: %w", id, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if _, err := unwrap(raw); err != nil {
		return fmt.Errorf("marking %s read: %w", id, err)
	}
	return nil
}

// MarkManyRead issues one MarkRead per id concurrently and waits for all
// of them. It is not atomic: the returned error joins every per-id
// failure and the remaining ids may have been marked.
func (c *Client) MarkManyRead(ctx context.Context, ids []string) error {
	errs := make([]error, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = c.MarkRead(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
