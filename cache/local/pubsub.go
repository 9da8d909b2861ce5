package local

import (
	"context"
	"sync"
	"sync/atomic"
)

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

type subscriber struct {
	ch     chan *LocalMessage
	topics []string
}

// LocalPubSub fans messages out to subscribers in the same process. A
// subscriber whose buffer is full misses the message; publishers never block.
type LocalPubSub struct {
	buf     int
	dropped atomic.Uint64

	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
}

// NewPubSub creates a LocalPubSub; buf is the per-subscriber buffer.
func NewPubSub(buf int) *LocalPubSub {
	if buf <= 0 {
		buf = 256
	}
	return &LocalPubSub{buf: buf, topics: make(map[string]map[*subscriber]struct{})}
}

func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for sub := range ps.topics[channel] {
		select {
		case sub.ch <- msg:
		default:
			ps.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe merges the given channels into one receive channel. The returned
// func unsubscribes and closes it; calling it again is a no-op.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	sub := &subscriber{ch: make(chan *LocalMessage, ps.buf), topics: channels}

	ps.mu.Lock()
	for _, name := range channels {
		set := ps.topics[name]
		if set == nil {
			set = make(map[*subscriber]struct{})
			ps.topics[name] = set
		}
		set[sub] = struct{}{}
	}
	ps.mu.Unlock()

	var once sync.Once
	return sub.ch, func() { once.Do(func() { ps.remove(sub) }) }, nil
}

func (ps *LocalPubSub) remove(sub *subscriber) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, name := range sub.topics {
		delete(ps.topics[name], sub)
		if len(ps.topics[name]) == 0 {
			delete(ps.topics, name)
		}
	}
	close(sub.ch)
}

// Subscribers returns the number of subscribers on channel.
func (ps *LocalPubSub) Subscribers(channel string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.topics[channel])
}

// Dropped counts deliveries skipped because a subscriber was full.
func (ps *LocalPubSub) Dropped() uint64 { return ps.dropped.Load() }
