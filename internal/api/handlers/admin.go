package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/store"
)

// StreamResetter drops the dispatch stream and recreates its consumer group.
type StreamResetter interface {
	Reset(ctx context.Context) error
}

// AdminHandler serves the admin-only endpoints. Routing mounts it behind the
// RequireAdmin middleware.
type AdminHandler struct {
	users  *store.UserRepository
	tasks  *store.TaskRepository
	stream StreamResetter
}

func NewAdminHandler(users *store.UserRepository, tasks *store.TaskRepository, stream StreamResetter) *AdminHandler {
	return &AdminHandler{
		users:  users,
		tasks:  tasks,
		stream: stream,
	}
}

// ResetSystem handles POST /admin/reset-system: truncates the tasks table,
// restarts the id sequence and drops the stream. User accounts survive.
func (h *AdminHandler) ResetSystem(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Reset(r.Context()); err != nil {
		logger.Error().Err(err).Msg("failed to reset tasks")
		respondError(w, http.StatusInternalServerError, "failed to reset system")
		return
	}
	if err := h.stream.Reset(r.Context()); err != nil {
		logger.Error().Err(err).Msg("failed to reset stream")
		respondError(w, http.StatusInternalServerError, "failed to reset system")
		return
	}

	logger.Warn().Msg("system reset by admin")
	respondJSON(w, http.StatusOK, MessageResponse{
		Message: "System purged successfully. All records cleared and IDs reset.",
	})
}

// AdminUserResponse is one row of GET /admin/users.
type AdminUserResponse struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	IsAdmin         bool   `json:"is_admin"`
	TaskQuota       int    `json:"task_quota"`
	TasksDispatched int64  `json:"tasks_dispatched"`
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list users")
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	out := make([]AdminUserResponse, 0, len(users))
	for _, u := range users {
		count, err := h.tasks.CountByOwner(r.Context(), u.ID)
		if err != nil {
			logger.Error().Err(err).Uint("user_id", u.ID).Msg("failed to count tasks")
			respondError(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		out = append(out, AdminUserResponse{
			ID:              u.ID,
			Username:        u.Username,
			IsAdmin:         u.IsAdmin,
			TaskQuota:       u.TaskQuota,
			TasksDispatched: count,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// PromoteUser handles POST /admin/users/{userID}/promote.
func (h *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.users.Promote(r.Context(), uint(id)); err != nil {
		respondStoreError(w, err, "failed to promote user")
		return
	}

	logger.Info().Uint64("user_id", id).Msg("user promoted to admin")
	respondJSON(w, http.StatusOK, MessageResponse{Message: "User promoted to admin"})
}
