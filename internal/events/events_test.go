package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "DROPPED"}))

	var got []Event
	bus.Subscribe(func(_ context.Context, ev Event) { got = append(got, ev) })
	bus.Subscribe(func(_ context.Context, ev Event) { got = append(got, ev) })

	ev := Event{Type: "APPOINTMENT_CREATED", AppointmentID: uuid.New()}
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Equal(t, []Event{ev, ev}, got)
	assert.NoError(t, bus.Close())
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "appointment.created", RoutingKey("APPOINTMENT_CREATED"))
	assert.Equal(t, "appointment.no.show", RoutingKey("APPOINTMENT_NO_SHOW"))
}
