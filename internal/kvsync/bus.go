package kvsync

import gosync "sync"

// Message is a change broadcast on the Bus. Sender is the id of the
// publishing binding, or 0 for changes that came from another process
// (Remote is true for those). A nil Value means the key was cleared.
type Message struct {
	Key    string
	Value  *string
	Sender uint64
	Remote bool
}

// Bus is the in-process publish/subscribe channel keyed by store key.
// Publish delivers synchronously, in subscription order, on the caller's
// goroutine.
type Bus struct {
	mu     gosync.Mutex
	nextID uint64
	subs   map[string][]busSub
}

type busSub struct {
	id uint64
	fn func(Message)
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]busSub)}
}

// Subscribe registers fn for key and returns the subscriber id and a
// cancel func.
func (b *Bus) Subscribe(key string, fn func(Message)) (uint64, func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[key] = append(b.subs[key], busSub{id: id, fn: fn})
	b.mu.Unlock()

	var once gosync.Once
	return id, func() {
		once.Do(func() { b.unsubscribe(key, id) })
	}
}

func (b *Bus) unsubscribe(key string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[key]
	for i, s := range subs {
		if s.id == id {
			b.subs[key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
}

// Publish delivers msg to every subscriber of msg.Key.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	subs := append([]busSub(nil), b.subs[msg.Key]...)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(msg)
	}
}

// Subscribers reports how many subscribers key has.
func (b *Bus) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}
