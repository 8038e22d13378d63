package swap

import "sync"

// Handler reacts to a lifecycle event by mutating the detail in place.
type Handler func(*Detail)

type subscription struct {
	id uint64
	h  Handler
}

// Bus dispatches lifecycle events to registered handlers. Handlers run
// synchronously on the dispatching goroutine in registration order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventName][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: map[EventName][]subscription{}}
}

// On registers h for name. The returned func removes it and may be called
// more than once.
func (b *Bus) On(name EventName, h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name EventName, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.subs[name]
	out := make([]subscription, 0, len(cur))
	for _, s := range cur {
		if s.id != id {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		delete(b.subs, name)
		return
	}
	b.subs[name] = out
}

// Dispatch runs every handler registered for name against d.
func (b *Bus) Dispatch(name EventName, d *Detail) {
	if d == nil {
		return
	}

	// copy so handlers may (un)register without deadlocking
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[name]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.h(d)
	}
}

func (b *Bus) Len(name EventName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}
