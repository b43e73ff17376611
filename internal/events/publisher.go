package events

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies a task lifecycle event.
type EventType string

const (
	EventTaskSubmitted EventType = "task.submitted"
	EventTaskStarted   EventType = "task.started"
	EventTaskCompleted EventType = "task.completed"
	EventTaskFailed    EventType = "task.failed"
	EventTaskCancelled EventType = "task.cancelled"
)

// Event is what goes over the wire to WebSocket clients.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// TaskEventData builds the payload for task events.
func TaskEventData(taskID uint, status string, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"task_id": taskID,
		"status":  status,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// Publisher is implemented by the Redis pub/sub publisher and by test fakes.
// Publishing is best-effort everywhere: callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
