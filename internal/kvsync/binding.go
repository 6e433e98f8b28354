package kvsync

import (
	"encoding/json"
	"fmt"
	gosync "sync"
)

// Options configures a Binding.
type Options[T any] struct {
	// Default is used when the key is absent or unparseable. DefaultFunc,
	// when set, takes precedence and is evaluated on every fallback.
	Default     T
	DefaultFunc func() T

	// Parse and Serialize convert between T and the stored string.
	// Both default to encoding/json.
	Parse     func(string) (T, error)
	Serialize func(T) (string, error)

	// ListenAcrossTabs applies changes committed by other processes.
	ListenAcrossTabs bool
}

// Binding is a typed view of a single key. Every binding of the same key
// on the same hub observes the others' writes before Set returns.
type Binding[T any] struct {
	hub  *Hub
	key  string
	opts Options[T]

	id          uint64
	unsubscribe func()

	mu        gosync.Mutex
	value     T
	nextID    int
	listeners map[int]func(T)
}

// Bind creates a binding for key and loads its current value.
func Bind[T any](hub *Hub, key string, opts Options[T]) *Binding[T] {
	if opts.Parse == nil {
		opts.Parse = jsonParse[T]
	}
	if opts.Serialize == nil {
		opts.Serialize = jsonSerialize[T]
	}

	b := &Binding[T]{
		hub:       hub,
		key:       key,
		opts:      opts,
		listeners: make(map[int]func(T)),
	}
	b.value = b.load()
	b.id, b.unsubscribe = hub.bus.Subscribe(key, b.receive)
	return b
}

// Key returns the bound key.
func (b *Binding[T]) Key() string { return b.key }

// Value returns the current value.
func (b *Binding[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Set stores v and broadcasts it to every other binding of the key.
func (b *Binding[T]) Set(v T) {
	b.Update(func(T) T { return v })
}

// Update stores fn(current) and broadcasts the result.
func (b *Binding[T]) Update(fn func(T) T) {
	b.mu.Lock()
	next := fn(b.value)
	b.value = next
	b.mu.Unlock()

	raw, err := b.opts.Serialize(next)
	if err != nil {
		b.hub.logger.Warn("serializing value failed, keeping it in memory", "key", b.key, "error", err)
		b.notify(next)
		return
	}

	b.hub.write(b.key, raw)
	b.notify(next)
	b.hub.bus.Publish(Message{Key: b.key, Value: &raw, Sender: b.id})
}

// Clear removes the key and resets every binding to its default.
func (b *Binding[T]) Clear() {
	def := b.defaultValue()

	b.mu.Lock()
	b.value = def
	b.mu.Unlock()

	b.hub.remove(b.key)
	b.notify(def)
	b.hub.bus.Publish(Message{Key: b.key, Sender: b.id})
}

// OnChange registers fn to run after every change, local or broadcast.
func (b *Binding[T]) OnChange(fn func(T)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Close detaches the binding from the bus.
func (b *Binding[T]) Close() {
	b.unsubscribe()
}

func (b *Binding[T]) receive(msg Message) {
	if msg.Sender == b.id {
		return
	}
	if msg.Remote && !b.opts.ListenAcrossTabs {
		return
	}

	next := b.decode(msg.Value)

	b.mu.Lock()
	b.value = next
	b.mu.Unlock()

	b.notify(next)
}

func (b *Binding[T]) load() T {
	raw, ok := b.hub.read(b.key)
	if !ok {
		return b.defaultValue()
	}
	return b.decode(&raw)
}

func (b *Binding[T]) decode(raw *string) T {
	if raw == nil {
		return b.defaultValue()
	}
	v, err := b.opts.Parse(*raw)
	if err != nil {
		b.hub.logger.Warn("parsing stored value failed, using default", "key", b.key, "error", err)
		return b.defaultValue()
	}
	return v
}

func (b *Binding[T]) defaultValue() T {
	if b.opts.DefaultFunc != nil {
		return b.opts.DefaultFunc()
	}
	return b.opts.Default
}

func (b *Binding[T]) notify(v T) {
	b.mu.Lock()
	fns := make([]func(T), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func jsonParse[T any](raw string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("decoding json: %w", err)
	}
	return v, nil
}

func jsonSerialize[T any](v T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json: %w", err)
	}
	return string(data), nil
}
