package dispatch

import (
	"context"
	"sync"
)

// DefaultSubscriberBuffer is the per-subscriber channel depth.
const DefaultSubscriberBuffer = 64

// Subscription is one consumer's event feed. Events for a given entity id
// arrive in the order its state actually changed. Delivery is best-effort
// per event but the stream as a whole is at-least-once in intent: a slow
// consumer may lose individual events and is expected to reconcile by
// re-reading entity state, never by trusting the event payload alone.
type Subscription struct {
	C    <-chan MutationEvent
	ch   chan MutationEvent
	once sync.Once
	n    *Notifier
}

// Close detaches the subscription and releases its channel.
func (s *Subscription) Close() {
	s.once.Do(func() { s.n.remove(s) })
}

// Notifier fans committed mutations out to per-kind subscribers. Publish is
// wired as a store commit hook, so events are emitted under the commit
// order: per-entity ordering holds without any extra sequencing.
type Notifier struct {
	mu     sync.Mutex
	subs   map[Kind][]*Subscription
	buffer int
	onDrop func(kind Kind)
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithBuffer sets the per-subscriber channel depth.
func WithBuffer(n int) NotifierOption {
	return func(nt *Notifier) {
		if n > 0 {
			nt.buffer = n
		}
	}
}

// WithDropHandler observes events dropped on full subscriber buffers.
func WithDropHandler(fn func(kind Kind)) NotifierOption {
	return func(nt *Notifier) { nt.onDrop = fn }
}

// NewNotifier returns an empty notifier.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		subs:   make(map[Kind][]*Subscription),
		buffer: DefaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers a consumer for one entity kind.
func (n *Notifier) Subscribe(kind Kind) *Subscription {
	ch := make(chan MutationEvent, n.buffer)
	sub := &Subscription{C: ch, ch: ch, n: n}
	n.mu.Lock()
	n.subs[kind] = append(n.subs[kind], sub)
	n.mu.Unlock()
	return sub
}

func (n *Notifier) remove(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for kind, subs := range n.subs {
		for i, s := range subs {
			if s == sub {
				n.subs[kind] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}
}

// Publish delivers the events of a committed transaction. It never blocks:
// a subscriber whose buffer is full loses the event, which the drop handler
// surfaces so operators can see starved consumers. Satisfies the memory
// store's commit hook signature.
func (n *Notifier) Publish(_ context.Context, changes []Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, change := range changes {
		ev := change.Event()
		for _, sub := range n.subs[ev.Kind] {
			select {
			case sub.ch <- ev:
			default:
				if n.onDrop != nil {
					n.onDrop(ev.Kind)
				}
			}
		}
	}
	return nil
}
