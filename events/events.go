// Package events provides a small typed in-process notifier.
//
// Components register listeners for concrete event types and emit events
// synchronously: Emit invokes every listener registered for the event's exact
// type, in registration order, and returns once all have run. A failing
// listener is logged and does not prevent the remaining listeners from
// receiving the event.
package events

import (
	"reflect"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event is any value emitted on a Notifier. Dispatch is by exact dynamic
// type, so listeners registered for *A never see *B.
type Event any

// Listener handles one event. The returned error is logged, not propagated;
// listeners that need to report failures to a caller do so through their own
// channels.
type Listener func(Event) error

// Notifier dispatches events to listeners. Registration normally happens at
// session construction; Emit may be called from any goroutine.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[reflect.Type][]Listener
	log       *log.Entry
}

func NewNotifier(logger *log.Entry) *Notifier {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Notifier{
		listeners: make(map[reflect.Type][]Listener),
		log:       logger,
	}
}

// Register appends a listener for events of type T.
func Register[T Event](n *Notifier, listener func(T) error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[t] = append(n.listeners[t], func(e Event) error {
		return listener(e.(T))
	})
}

// Emit delivers the event to every listener registered for its type, in
// registration order, waiting for each to return.
func (n *Notifier) Emit(event Event) {
	n.mu.RLock()
	registered := n.listeners[reflect.TypeOf(event)]
	listeners := make([]Listener, len(registered))
	copy(listeners, registered)
	n.mu.RUnlock()
	for _, listener := range listeners {
		if err := listener(event); err != nil {
			n.log.WithError(err).Warnf("listener failed handling %T", event)
		}
	}
}
