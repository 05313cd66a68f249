// Package event provides a small typed publish/subscribe bus. Events are
// plain structs that implement Type() uint32 with a unique ID per event
// type. Handlers registered with On are invoked synchronously by Emit in
// registration order.
package event

import "sync"

type Event interface {
	Type() uint32
}

type handler struct {
	id uint64
	fn func(Event)
}

var (
	mu       sync.RWMutex
	lastID   uint64
	handlers = make(map[uint32][]handler)
)

// On registers fn for events of type T and returns an unsubscribe function.
// The unsubscribe function is safe to call more than once.
func On[T Event](fn func(T)) func() {
	var zero T
	eventType := zero.Type()

	mu.Lock()
	lastID++
	id := lastID
	handlers[eventType] = append(handlers[eventType], handler{
		id: id,
		fn: func(e Event) { fn(e.(T)) },
	})
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		hs := handlers[eventType]
		for i, h := range hs {
			if h.id == id {
				handlers[eventType] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers e to every handler registered for its type. Delivery is
// synchronous; handlers that need to block should hand off to their own
// goroutine or channel.
func Emit[T Event](e T) {
	mu.RLock()
	hs := make([]handler, len(handlers[e.Type()]))
	copy(hs, handlers[e.Type()])
	mu.RUnlock()

	for _, h := range hs {
		h.fn(e)
	}
}
