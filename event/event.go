////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package event surfaces user-facing notifications (failed sends, rejected
// pins, forced logouts) to whatever UI is registered for them.
package event

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/heartline/client/stoppable"
)

// DefaultQueueSize is the number of undelivered events buffered before new
// reports are dropped.
const DefaultQueueSize = 1000

// Event is a single notification for the user.
type Event struct {
	Priority Priority
	Category Category
	Type     string
	Details  string
}

// String prints the Event for logging.
func (e Event) String() string {
	return fmt.Sprintf("Event(%d, %s, %s, %s)",
		e.Priority, e.Category, e.Type, e.Details)
}

// Manager queues reported events and delivers them to registered callbacks
// from a single goroutine, in report order.
type Manager struct {
	eventCh chan Event
	cbs     sync.Map
}

// NewManager returns a Manager with a queue of the given size.
func NewManager(queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{eventCh: make(chan Event, queueSize)}
}

// Report queues an event. It never blocks; a full queue drops the event.
func (m *Manager) Report(priority Priority, category Category,
	evtType, details string) {
	e := Event{
		Priority: priority,
		Category: category,
		Type:     evtType,
		Details:  details,
	}
	select {
	case m.eventCh <- e:
		jww.TRACE.Printf("Event reported: %s", e)
	default:
		jww.ERROR.Printf("Event queue full, unable to report: %s", e)
	}
}

// RegisterEventCallback adds a callback under a unique name.
func (m *Manager) RegisterEventCallback(name string, cb Callback) error {
	if _, exists := m.cbs.LoadOrStore(name, cb); exists {
		return errors.Errorf("event callback %q already registered", name)
	}
	return nil
}

// UnregisterEventCallback removes the named callback.
func (m *Manager) UnregisterEventCallback(name string) {
	m.cbs.Delete(name)
}

// EventService starts delivery. Close the returned stoppable on teardown.
func (m *Manager) EventService() stoppable.Stoppable {
	stop := stoppable.NewSingle("EventReporting")
	go m.deliver(stop)
	return stop
}

func (m *Manager) deliver(stop *stoppable.Single) {
	jww.DEBUG.Print("Event delivery started")
	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Print("Stopping event delivery")
			stop.ToStopped()
			return
		case e := <-m.eventCh:
			// Callbacks run inline; a slow callback backs up the queue.
			m.cbs.Range(func(_, cb interface{}) bool {
				cb.(Callback)(e)
				return true
			})
		}
	}
}
