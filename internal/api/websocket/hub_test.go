package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/jobrunner-go/internal/events"
	"github.com/maumercado/jobrunner-go/internal/logger"
)

func init() {
	logger.Init("error", false)
}

func newTestClient(h *Hub, buffer int) *Client {
	c := NewClient(h, nil)
	c.send = make(chan []byte, buffer)
	return c
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(h, 1)

	h.Register(c)
	assert.Equal(t, 1, h.ClientCount())

	h.Unregister(c)
	assert.Equal(t, 0, h.ClientCount())

	// The send channel is closed on unregister.
	_, open := <-c.send
	assert.False(t, open)
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(h, 1)

	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_BroadcastFiltersBySubscription(t *testing.T) {
	h := NewHub(nil)

	all := newTestClient(h, 4)
	all.SubscribeAll()

	onlyCompleted := newTestClient(h, 4)
	onlyCompleted.Subscribe(events.EventTaskCompleted)

	h.Register(all)
	h.Register(onlyCompleted)

	h.broadcastEvent(events.NewEvent(events.EventTaskStarted, events.TaskEventData(1, "Processing", nil)))
	h.broadcastEvent(events.NewEvent(events.EventTaskCompleted, events.TaskEventData(1, "Completed", nil)))

	assert.Len(t, all.send, 2)
	require.Len(t, onlyCompleted.send, 1)

	msg := <-onlyCompleted.send
	assert.Contains(t, string(msg), string(events.EventTaskCompleted))
}

func TestHub_SaturatedClientIsDropped(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(h, 1)
	c.SubscribeAll()
	h.Register(c)

	// First event fills the buffer; the second finds it full and the hub
	// drops the connection.
	h.broadcastEvent(events.NewEvent(events.EventTaskStarted, events.TaskEventData(1, "Processing", nil)))
	h.broadcastEvent(events.NewEvent(events.EventTaskStarted, events.TaskEventData(2, "Processing", nil)))

	assert.Eventually(t, func() bool {
		return h.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}
