package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func testClient(hub *Hub, events map[EventType]bool, buffer int) *Client {
	return &Client{id: uuid.New(), hub: hub, events: events, send: make(chan []byte, buffer)}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(slog.Default())

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub := newTestHub(t)
	client := testClient(hub, nil, 1)

	require.True(t, hub.join(client))
	assert.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.leave(client)
	assert.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_Broadcast(t *testing.T) {
	hub := newTestHub(t)
	client := testClient(hub, nil, 10)
	require.True(t, hub.join(client))

	hub.Broadcast(EventAttendanceRecorded, map[string]string{"name": "alice"})

	select {
	case msg := <-client.send:
		var event struct {
			Type EventType         `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventAttendanceRecorded, event.Type)
		assert.Equal(t, "alice", event.Data["name"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHub_EventFilter(t *testing.T) {
	hub := newTestHub(t)

	all := testClient(hub, nil, 10)
	onlyAttendance := testClient(hub, ParseEventTypes("attendance.recorded"), 10)
	require.True(t, hub.join(all))
	require.True(t, hub.join(onlyAttendance))

	hub.Broadcast(EventAnnotationsUpdated, nil)

	select {
	case <-all.send:
	case <-time.After(time.Second):
		t.Fatal("unfiltered client should receive message")
	}

	select {
	case <-onlyAttendance.send:
		t.Fatal("filtered client should not receive annotations")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := newTestHub(t)
	slow := testClient(hub, nil, 0)
	require.True(t, hub.join(slow))

	hub.Broadcast(EventAnnotationsUpdated, nil)

	assert.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-slow.send
	assert.False(t, open, "send channel closed for dropped client")
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := testClient(hub, nil, 1)
	require.True(t, hub.join(client))

	cancel()
	<-stopped

	_, open := <-client.send
	assert.False(t, open)
	assert.False(t, hub.join(testClient(hub, nil, 1)), "join fails after stop")
}

func TestParseEventTypes(t *testing.T) {
	assert.Nil(t, ParseEventTypes(""))
	assert.Nil(t, ParseEventTypes(" , "))
	assert.Equal(t, map[EventType]bool{
		EventAttendanceRecorded: true,
		EventIdentityDeleted:    true,
	}, ParseEventTypes("attendance.recorded, identity.deleted"))
}
