// Package events fans appointment changes out to notification consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Bus delivers events synchronously to in-process subscribers.
// A Bus without subscribers drops every event.
type Bus struct {
	mu       sync.RWMutex
	handlers []func(context.Context, Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(fn func(context.Context, Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
	return nil
}

func (b *Bus) Close() error { return nil }
