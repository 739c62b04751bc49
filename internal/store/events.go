package store

import "sync"

// EventType names an event dispatched on a Bus.
type EventType string

// EventStorage is the type of events announcing a write to a Store key.
const EventStorage EventType = "storage"

// Event is a change notification. Custom events carry only their Type;
// storage events also carry the key, its new value (nil after removal) and
// the storage area.
type Event struct {
	Type        EventType `json:"type"`
	Key         string    `json:"key,omitempty"`
	NewValue    *string   `json:"newValue"`
	StorageArea string    `json:"storageArea,omitempty"`
}

// Dispatcher delivers events to listeners.
type Dispatcher interface {
	Dispatch(e Event)
}

type listener struct {
	id int
	fn func(Event)
}

// Bus is an in-process event emitter. Dispatch is synchronous: every
// listener for the event type has returned before Dispatch returns, and
// listeners run in registration order.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[EventType][]listener
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[EventType][]listener)}
}

// On registers fn for events of type t and returns a function removing it.
func (b *Bus) On(t EventType, fn func(Event)) (off func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[t] = append(b.listeners[t], listener{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			ls := b.listeners[t]
			for i, l := range ls {
				if l.id == id {
					b.listeners[t] = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
		})
	}
}

// Dispatch calls the listeners registered for e.Type. Listeners may register
// or remove listeners; such changes apply from the next Dispatch.
func (b *Bus) Dispatch(e Event) {
	b.mu.RLock()
	ls := make([]listener, len(b.listeners[e.Type]))
	copy(ls, b.listeners[e.Type])
	b.mu.RUnlock()

	for _, l := range ls {
		l.fn(e)
	}
}

// StorageEvent builds the storage event announcing a write of value to key.
func StorageEvent(s Store, key string, value *string) Event {
	return Event{Type: EventStorage, Key: key, NewValue: value, StorageArea: s.Area()}
}
