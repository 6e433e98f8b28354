package kvsync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workhub/internal/logger"
)

// ioTimeout bounds every backend call made on behalf of a binding.
const ioTimeout = 5 * time.Second

// Hub connects a Backend with the in-process Bus. Create one per process
// (or per session) and share it with every Binding.
type Hub struct {
	backend Backend
	bus     *Bus
	origin  string
	logger  *slog.Logger

	mu     gosync.Mutex
	cancel func()
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates a hub over backend. A nil backend yields a private
// MemoryBackend.
func NewHub(backend Backend, opts ...HubOption) *Hub {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	h := &Hub{
		backend: backend,
		bus:     NewBus(),
		origin:  uuid.NewString(),
		logger:  logger.WithComponent("kvsync"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Origin returns the unique id this hub stamps on its writes.
func (h *Hub) Origin() string { return h.origin }

// Bus returns the in-process bus.
func (h *Hub) Bus() *Bus { return h.bus }

// Start begins forwarding changes committed by other origins to the bus.
// Calling Start twice is a no-op.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		return nil
	}

	cancel, err := h.backend.Watch(ctx, func(ev StorageEvent) {
		if ev.Origin == h.origin {
			return
		}
		h.bus.Publish(Message{Key: ev.Key, Value: ev.Value, Remote: true})
	})
	if err != nil {
		return err
	}
	h.cancel = cancel
	return nil
}

// Stop ends cross-process forwarding. The backend is left open.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// Close stops forwarding and closes the backend.
func (h *Hub) Close() error {
	h.Stop()
	return h.backend.Close()
}

// read returns the stored value for key. Backend failures are logged and
// reported as a missing key.
func (h *Hub) read(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	v, ok, err := h.backend.GetItem(ctx, key)
	if err != nil {
		h.logger.Warn("reading key failed, using default", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (h *Hub) write(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	if err := h.backend.SetItem(ctx, key, value, h.origin); err != nil {
		h.logger.Warn("writing key failed, keeping value in memory", "key", key, "error", err)
	}
}

func (h *Hub) remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	if err := h.backend.RemoveItem(ctx, key, h.origin); err != nil {
		h.logger.Warn("removing key failed", "key", key, "error", err)
	}
}
