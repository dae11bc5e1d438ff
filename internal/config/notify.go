package config

import "sync"

// Notifier delivers settings changes to registered callbacks. It replaces
// a shared pub/sub notifier with an explicit registry: subscribers hold a
// token and must Unsubscribe on teardown so no dangling handlers survive a
// component's lifetime.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Settings)
}

// NewNotifier creates an empty registry.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Settings))}
}

// Subscribe registers fn and returns its token.
func (n *Notifier) Subscribe(fn func(Settings)) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.subs[n.nextID] = fn
	return n.nextID
}

// Unsubscribe removes the callback registered under id.
func (n *Notifier) Unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// Publish delivers s to every subscriber, synchronously and in no
// particular order.
func (n *Notifier) Publish(s Settings) {
	n.mu.Lock()
	fns := make([]func(Settings), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Count returns the number of active subscribers.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
