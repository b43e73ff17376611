package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maumercado/jobrunner-go/internal/api/middleware"
	"github.com/maumercado/jobrunner-go/internal/events"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/metrics"
	"github.com/maumercado/jobrunner-go/internal/store"
	"github.com/maumercado/jobrunner-go/internal/task"
)

// StreamPublisher is the slice of the dispatch queue the API needs.
type StreamPublisher interface {
	Publish(ctx context.Context, taskID uint) (string, error)
}

// TaskHandler serves the task lifecycle endpoints.
type TaskHandler struct {
	tasks  *store.TaskRepository
	users  *store.UserRepository
	stream StreamPublisher
	events events.Publisher
}

func NewTaskHandler(tasks *store.TaskRepository, users *store.UserRepository, stream StreamPublisher, pub events.Publisher) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		users:  users,
		stream: stream,
		events: pub,
	}
}

// Create handles POST /tasks. Each replica is a separate row and a separate
// stream entry; the response lists every created task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUser(r.Context())

	var req task.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Normalize(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, err, "failed to load user")
		return
	}

	// Admission-time quota over the lifetime task count. The count and the
	// inserts below are not one atomic unit; a user racing themselves can
	// overshoot by a few tasks, never another user.
	count, err := h.tasks.CountByOwner(r.Context(), claims.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to count tasks")
		respondError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	if count+int64(*req.Replicas) > int64(u.TaskQuota) {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Quota exceeded. Available: %d", u.TaskQuota-int(count)))
		return
	}

	created := make([]*task.Response, 0, *req.Replicas)
	for i := 0; i < *req.Replicas; i++ {
		t := &task.Task{
			InputData:         req.InputData,
			Status:            task.StatusPending,
			OwnerID:           claims.UserID,
			TaskType:          req.TaskType,
			MaxExecutionTime:  *req.MaxExecutionTime,
			SimulatedDuration: *req.SimulatedDuration,
		}
		if err := h.tasks.Create(r.Context(), t); err != nil {
			logger.Error().Err(err).Msg("failed to create task")
			respondError(w, http.StatusInternalServerError, "failed to create task")
			return
		}

		// Durable row first, then the stream entry. A publish failure leaves
		// the row Pending with no entry; surfacing the 500 lets the client
		// decide whether to resubmit.
		entryID, err := h.stream.Publish(r.Context(), t.ID)
		if err != nil {
			logger.Error().Err(err).Uint("task_id", t.ID).Msg("failed to enqueue task")
			respondError(w, http.StatusInternalServerError, "failed to enqueue task")
			return
		}

		logger.Info().
			Uint("task_id", t.ID).
			Str("entry_id", entryID).
			Str("task_type", t.TaskType).
			Uint("owner_id", t.OwnerID).
			Msg("task submitted")
		metrics.RecordTaskSubmission(t.TaskType)

		h.publishEvent(r.Context(), events.EventTaskSubmitted, t.ID, t.Status.String())
		created = append(created, t.ToResponse())
	}

	respondJSON(w, http.StatusCreated, created)
}

// List handles GET /tasks with skip/limit pagination, newest first.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 20)

	tasks, err := h.tasks.List(r.Context(), skip, limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list tasks")
		respondError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	out := make([]*task.Response, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ToResponse())
	}
	respondJSON(w, http.StatusOK, out)
}

// Get handles GET /tasks/{taskID}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "failed to get task")
		return
	}
	respondJSON(w, http.StatusOK, t.ToResponse())
}

// Cancel handles POST /tasks/{taskID}/cancel. Only the owner may cancel;
// terminal tasks report "already finished" rather than an error.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUser(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "failed to get task")
		return
	}
	if t.OwnerID != claims.UserID {
		respondError(w, http.StatusForbidden, "Not authorized to cancel this task")
		return
	}

	cancelled, err := h.tasks.Cancel(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "failed to cancel task")
		return
	}
	if !cancelled {
		respondJSON(w, http.StatusOK, MessageResponse{Message: "Task already finished"})
		return
	}

	logger.Info().Uint("task_id", id).Msg("task cancelled")
	h.publishEvent(r.Context(), events.EventTaskCancelled, id, task.StatusCancelled.String())
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Task cancelled"})
}

// KillAll handles POST /tasks/kill-all: cancels every non-terminal task the
// caller owns.
func (h *TaskHandler) KillAll(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUser(r.Context())

	n, err := h.tasks.CancelAllByOwner(r.Context(), claims.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to cancel tasks")
		respondError(w, http.StatusInternalServerError, "failed to cancel tasks")
		return
	}

	logger.Info().Uint("user_id", claims.UserID).Int64("count", n).Msg("tasks terminated")
	respondJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Terminated %d active tasks", n),
	})
}

// DeleteMine handles DELETE /tasks: purges the caller's task history. Stream
// entries for deleted tasks dangle until a worker no-op-acks them.
func (h *TaskHandler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUser(r.Context())

	n, err := h.tasks.DeleteByOwner(r.Context(), claims.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to delete tasks")
		respondError(w, http.StatusInternalServerError, "failed to delete tasks")
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Successfully deleted %d tasks from your history.", n),
	})
}

func (h *TaskHandler) publishEvent(ctx context.Context, eventType events.EventType, taskID uint, status string) {
	if h.events == nil {
		return
	}
	e := events.NewEvent(eventType, events.TaskEventData(taskID, status, nil))
	if err := h.events.Publish(ctx, e); err != nil {
		logger.Warn().Err(err).Uint("task_id", taskID).Msg("failed to publish event")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "taskID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "invalid task ID")
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
