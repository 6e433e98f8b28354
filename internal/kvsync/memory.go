package kvsync

import (
	"context"
	gosync "sync"
)

// MemoryBackend is a process-local Backend. Hubs sharing one instance
// behave like separate processes sharing a store.
type MemoryBackend struct {
	mu       gosync.Mutex
	data     map[string]string
	watchers map[int]func(StorageEvent)
	nextID   int
	closed   bool
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string]string),
		watchers: make(map[int]func(StorageEvent)),
	}
}

// GetItem implements Backend.
func (m *MemoryBackend) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// SetItem implements Backend.
func (m *MemoryBackend) SetItem(_ context.Context, key, value, origin string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.data[key] = value
	fns := m.snapshotWatchers()
	m.mu.Unlock()

	m.notify(fns, StorageEvent{Key: key, Value: strPtr(value), Origin: origin})
	return nil
}

// RemoveItem implements Backend.
func (m *MemoryBackend) RemoveItem(_ context.Context, key, origin string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	delete(m.data, key)
	fns := m.snapshotWatchers()
	m.mu.Unlock()

	m.notify(fns, StorageEvent{Key: key, Origin: origin})
	return nil
}

// Watch implements Backend. Events are delivered synchronously on the
// writer's goroutine.
func (m *MemoryBackend) Watch(ctx context.Context, fn func(StorageEvent)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn

	var once gosync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			cancel()
		}()
	}
	return cancel, nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.watchers = make(map[int]func(StorageEvent))
	return nil
}

func (m *MemoryBackend) snapshotWatchers() []func(StorageEvent) {
	fns := make([]func(StorageEvent), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	return fns
}

func (m *MemoryBackend) notify(fns []func(StorageEvent), ev StorageEvent) {
	for _, fn := range fns {
		fn(ev)
	}
}
