// Package events fans progress notifications out to in-process listeners such as
// the library list, so they can refresh displayed progress without re-fetching.
package events

import "sync"

// ProgressChanged is published after a progress value has been persisted.
type ProgressChanged struct {
	DocumentID  string
	ProgressPct float64
}

// Bus is a synchronous publish/subscribe hub. Handlers run on the publisher's
// goroutine and must not block.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(ProgressChanged)
}

func NewBus() *Bus {
	return &Bus{handlers: map[int]func(ProgressChanged){}}
}

// Subscribe registers fn and returns the function that removes it.
func (b *Bus) Subscribe(fn func(ProgressChanged)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

func (b *Bus) Publish(event ProgressChanged) {
	b.mu.RLock()
	handlers := make([]func(ProgressChanged), 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(event)
	}
}
