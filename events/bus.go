// Package events provides the tagged inbound event types and a synchronous
// pub/sub bus that delivers them to subscribers.
package events

import (
	"slices"
	"sync"

	"github.com/AltairaLabs/mediasession/logger"
)

// Listener handles events. Registration is keyed on listener identity, so
// listeners must be comparable; use Func to wrap a plain function.
type Listener interface {
	OnEvent(*Event)
}

// FuncListener adapts a function to the Listener interface. Its identity is
// the pointer returned by Func.
type FuncListener struct {
	fn func(*Event)
}

// Func wraps fn in a Listener. Keep the returned value to unsubscribe later.
func Func(fn func(*Event)) *FuncListener {
	return &FuncListener{fn: fn}
}

// OnEvent calls the wrapped function.
func (l *FuncListener) OnEvent(e *Event) {
	l.fn(e)
}

// Publisher is implemented by anything events can be published to.
type Publisher interface {
	Publish(*Event)
}

// Bus delivers events to listeners synchronously, in publish order.
// Listeners run on the publishing goroutine and must not block.
type Bus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]Listener
	globalListeners []Listener
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[EventType][]Listener),
	}
}

// Subscribe registers a listener for a specific event type.
// Subscribing the same listener to the same type twice has no effect.
func (b *Bus) Subscribe(eventType EventType, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.Contains(b.listeners[eventType], listener) {
		return
	}
	b.listeners[eventType] = append(b.listeners[eventType], listener)
}

// Unsubscribe removes a listener for an event type. Removing an unknown
// listener is a no-op.
func (b *Bus) Unsubscribe(eventType EventType, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ls := b.listeners[eventType]
	if i := slices.Index(ls, listener); i >= 0 {
		b.listeners[eventType] = slices.Delete(slices.Clone(ls), i, i+1)
	}
}

// SubscribeAll registers a listener for all event types.
func (b *Bus) SubscribeAll(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.Contains(b.globalListeners, listener) {
		return
	}
	b.globalListeners = append(b.globalListeners, listener)
}

// UnsubscribeAll removes a listener registered with SubscribeAll.
func (b *Bus) UnsubscribeAll(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.Index(b.globalListeners, listener); i >= 0 {
		b.globalListeners = slices.Delete(slices.Clone(b.globalListeners), i, i+1)
	}
}

// Publish delivers event to type listeners, then global listeners.
// A panicking listener is logged and skipped.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}
	b.mu.RLock()
	specific := b.listeners[event.Type]
	global := b.globalListeners
	b.mu.RUnlock()

	// Slices are copy-on-write, so iterating the snapshot is safe.
	for _, l := range specific {
		safeInvoke(l, event)
	}
	for _, l := range global {
		safeInvoke(l, event)
	}
}

// Count returns the number of listeners registered for eventType,
// excluding global listeners.
func (b *Bus) Count(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[eventType])
}

// Clear removes all listeners.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[EventType][]Listener)
	b.globalListeners = nil
}

func safeInvoke(listener Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("event listener panicked", "event", event.Type, "panic", r)
		}
	}()
	listener.OnEvent(event)
}
