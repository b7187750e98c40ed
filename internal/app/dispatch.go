package app

import (
	"context"

	"classroom-poll-service/internal/domain"
)

// Broadcaster delivers events to connections. Implementations must not block and
// must not call back into the Classroom.
type Broadcaster interface {
	Broadcast(ev domain.Event)
	Send(connID string, ev domain.Event)
}

// Presence mirrors who is connected into an external store (Redis liveness keys).
type Presence interface {
	Mark(ctx context.Context, p domain.Participant) error
	Clear(ctx context.Context, sessionID string) error
}

// dispatcher resolves audiences against the registry.
type dispatcher struct {
	out      Broadcaster
	registry *Registry
}

func (d dispatcher) all(typ string, payload any) {
	d.out.Broadcast(domain.Event{Type: typ, Payload: payload})
}

func (d dispatcher) teachers(typ string, payload any) {
	ev := domain.Event{Type: typ, Payload: payload}
	for _, conn := range d.registry.Teachers() {
		d.out.Send(conn, ev)
	}
}

func (d dispatcher) to(connID, typ string, payload any) {
	if connID == "" {
		return
	}
	d.out.Send(connID, domain.Event{Type: typ, Payload: payload})
}

func (d dispatcher) roster() {
	d.teachers(domain.EventUserList, d.registry.Students())
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(domain.Event)    {}
func (nopBroadcaster) Send(string, domain.Event) {}

type nopPresence struct{}

func (nopPresence) Mark(context.Context, domain.Participant) error { return nil }
func (nopPresence) Clear(context.Context, string) error            { return nil }
