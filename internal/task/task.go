package task

import (
	"errors"
	"fmt"
	"time"
)

// Defaults applied to create requests when fields are omitted.
const (
	DefaultMaxExecutionTime  = 30
	DefaultSimulatedDuration = 5
	DefaultReplicas          = 1
	DefaultTaskType          = "text_processing"
)

// Task is the canonical record for a unit of work. All mutable state lives in
// the task store; the stream entry only carries the ID.
type Task struct {
	ID                uint      `json:"id"`
	InputData         string    `json:"input_data"`
	Status            Status    `json:"status"`
	Result            *string   `json:"result"`
	OwnerID           uint      `json:"owner_id"`
	TaskType          string    `json:"task_type"`
	MaxExecutionTime  int       `json:"max_execution_time"`
	SimulatedDuration int       `json:"simulated_duration"`
	IsCancelled       bool      `json:"is_cancelled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateRequest is the body of POST /tasks. Zero values on optional fields
// mean "use the default".
type CreateRequest struct {
	InputData         string `json:"input_data"`
	MaxExecutionTime  *int   `json:"max_execution_time,omitempty"`
	TaskType          string `json:"task_type,omitempty"`
	SimulatedDuration *int   `json:"simulated_duration,omitempty"`
	Replicas          *int   `json:"replicas,omitempty"`
}

var (
	ErrEmptyInput         = errors.New("input_data is required")
	ErrInvalidTimeout     = errors.New("max_execution_time must be at least 1 second")
	ErrInvalidDuration    = errors.New("simulated_duration must not be negative")
	ErrInvalidReplicas    = errors.New("replicas must be at least 1")
	ErrTaskNotFound       = errors.New("task not found")
	ErrNotOwner           = errors.New("task belongs to another user")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect username or password")
)

// Normalize applies defaults and validates the request. It mutates the
// receiver so the handler can read back the effective values.
func (r *CreateRequest) Normalize() error {
	if r.InputData == "" {
		return ErrEmptyInput
	}
	if r.MaxExecutionTime == nil {
		v := DefaultMaxExecutionTime
		r.MaxExecutionTime = &v
	}
	if *r.MaxExecutionTime < 1 {
		return ErrInvalidTimeout
	}
	if r.SimulatedDuration == nil {
		v := DefaultSimulatedDuration
		r.SimulatedDuration = &v
	}
	if *r.SimulatedDuration < 0 {
		return ErrInvalidDuration
	}
	if r.Replicas == nil {
		v := DefaultReplicas
		r.Replicas = &v
	}
	if *r.Replicas < 1 {
		return ErrInvalidReplicas
	}
	if r.TaskType == "" {
		r.TaskType = DefaultTaskType
	}
	return nil
}

// Response is the wire representation of a task.
type Response struct {
	ID                uint      `json:"id"`
	InputData         string    `json:"input_data"`
	Status            string    `json:"status"`
	Result            *string   `json:"result"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	MaxExecutionTime  int       `json:"max_execution_time"`
	IsCancelled       bool      `json:"is_cancelled"`
	OwnerID           uint      `json:"owner_id"`
	TaskType          string    `json:"task_type"`
	SimulatedDuration int       `json:"simulated_duration"`
}

// ToResponse converts a Task to its API representation.
func (t *Task) ToResponse() *Response {
	return &Response{
		ID:                t.ID,
		InputData:         t.InputData,
		Status:            t.Status.String(),
		Result:            t.Result,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		MaxExecutionTime:  t.MaxExecutionTime,
		IsCancelled:       t.IsCancelled,
		OwnerID:           t.OwnerID,
		TaskType:          t.TaskType,
		SimulatedDuration: t.SimulatedDuration,
	}
}

func (t *Task) String() string {
	return fmt.Sprintf("task %d [%s]", t.ID, t.Status)
}
