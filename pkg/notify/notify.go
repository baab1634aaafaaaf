// Package notify delivers real-time events to websocket rooms. Events are
// best effort: a failed publish is logged and never fails the operation that
// produced it.
package notify

import (
	"context"
	"encoding/json"
	"sync"
)

const (
	TopicAdmins = "admins"
)

func Restaurant(id string) string { return "restaurant-" + id }
func Table(id string) string      { return "table-" + id }
func Waiters(restaurantID string) string {
	return "waiters-" + restaurantID
}
func Directors(restaurantID string) string {
	return "directors-" + restaurantID
}

// Staff is the personal room of a staff member.
func Staff(id string) string { return id }

// Event names pushed to clients.
const (
	EventNewTable          = "newTable"
	EventUpdateTable       = "updateTable"
	EventDeletedTable      = "deletedTable"
	EventCallWaiter        = "callWaiter"
	EventCallAccepted      = "callAccepted"
	EventCallDeclined      = "callDeclined"
	EventCallExpired       = "callExpired"
	EventActiveCall        = "activeCall"
	EventTableOccupied     = "tableOccupied"
	EventClosedTable       = "closedTable"
	EventNewActiveOrder    = "newActiveOrder"
	EventNoActiveOrder     = "noActiveOrder"
	EventUpdateActiveOrder = "updateActiveOrder"
	EventUpdateOrder       = "updateOrder"
	EventUpdateBasket      = "updateBasket"
	EventCategoryCreated   = "categoryCreated"
	EventCategoryUpdated   = "categoryUpdated"
	EventCategoryDeleted   = "categoryDeleted"
	EventNewProduct        = "newProduct"
	EventUpdateProduct     = "updateProduct"
	EventDeleteProduct     = "deleteProduct"
	EventNewTableType      = "newTypeOfTable"
	EventUpdateTableType   = "updateTypeOfTable"
	EventDeleteTableType   = "deleteTypeOfTable"
)

type Event struct {
	Topic   string          `json:"topic"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data,omitempty"`
}

func NewEvent(topic, name string, payload interface{}) (Event, error) {
	e := Event{Topic: topic, Name: name}
	if payload == nil {
		return e, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return e, err
	}
	e.Payload = data
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emitter is what services hold. It builds events and swallows delivery
// errors after logging them.
type Emitter interface {
	Emit(ctx context.Context, name string, payload interface{}, topics ...string)
}

// Recorder keeps emitted events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Emit(ctx context.Context, name string, payload interface{}, topics ...string) {
	for _, t := range topics {
		e, _ := NewEvent(t, name, payload)
		_ = r.Publish(ctx, e)
	}
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events called name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Topics returns the topics that received an event called name.
func (r *Recorder) Topics(name string) []string {
	var out []string
	for _, e := range r.Named(name) {
		out = append(out, e.Topic)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
