package module

import "sync"

// Notifier fans device health transitions out to subscribers.
//
// Subscriptions return an unsubscribe function; Close drops every remaining
// subscriber so a retired module cannot call back into destroyed state.
// Delivery is best-effort and synchronous from the caller's goroutine.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]HealthChangedFunc
	nextID int
	closed bool
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[int]HealthChangedFunc),
	}
}

// Subscribe registers a callback and returns its unsubscribe function.
// Subscribing to a closed notifier returns a no-op unsubscribe and the
// callback is never invoked.
func (n *Notifier) Subscribe(fn HealthChangedFunc) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || fn == nil {
		return func() {}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Notify delivers a change to all current subscribers.
// Callbacks run outside the notifier lock so they may re-subscribe.
func (n *Notifier) Notify(change HealthChange) {
	n.mu.Lock()
	fns := make([]HealthChangedFunc, 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// Close drops all subscribers. Further Notify calls reach nobody.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.subs = make(map[int]HealthChangedFunc)
}

// Count returns the number of active subscribers.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
