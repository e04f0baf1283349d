// Package events provides the invalidation broadcast channel shared by
// cooperating wiki instances. Locally it is an in-process fan-out; a
// broker-backed implementation can replace it behind the same interface.
package events

import "sync"

// Event names carried on the bus.
const (
	EventDeletePageFromCache = "deletePageFromCache"
	EventFlushCache          = "flushCache"
)

// Handler receives the payload of a published event. For cache events the
// payload is the page hash, or "" for flush. Handlers must be idempotent:
// the originating node applies its own change locally before publishing,
// so its subscription sees the event again as a no-op.
type Handler func(payload string)

// Bus is a minimal publish/subscribe fan-out.
type Bus interface {
	Publish(name, payload string)
	Subscribe(name string, h Handler)
}

// MemoryBus is the in-process Bus implementation. Publish is synchronous
// and delivers to subscribers in registration order.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for the named event.
func (b *MemoryBus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
}

// Publish delivers the payload to every handler registered for name.
func (b *MemoryBus) Publish(name, payload string) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[name]))
	copy(handlers, b.subs[name])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
