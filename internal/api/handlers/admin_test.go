package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/jobrunner-go/internal/task"
)

func withUserID(req *http.Request, id uint) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("userID", strconv.FormatUint(uint64(id), 10))
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminHandler_ResetSystem(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.seedUser(t, "root", 100, true)

	req := httptest.NewRequest(http.MethodPost, "/tasks",
		jsonBody(t, task.CreateRequest{InputData: "x"}))
	w := httptest.NewRecorder()
	f.taskH.Create(w, asUser(req, f.owner))
	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/reset-system", nil)
	w = httptest.NewRecorder()
	f.adminH.ResetSystem(w, asUser(req, admin))

	require.Equal(t, http.StatusOK, w.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "System purged successfully. All records cleared and IDs reset.", resp.Message)
	assert.Equal(t, 1, f.stream.resetCalls)

	remaining, err := f.tasks.List(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Accounts survive a reset; only tasks are purged.
	_, err = f.users.GetByID(context.Background(), f.owner.ID)
	assert.NoError(t, err)

	// Id sequence restarts.
	fresh := &task.Task{InputData: "y", OwnerID: f.owner.ID, TaskType: task.DefaultTaskType,
		MaxExecutionTime: 30, SimulatedDuration: 0}
	require.NoError(t, f.tasks.Create(context.Background(), fresh))
	assert.Equal(t, uint(1), fresh.ID)
}

func TestAdminHandler_ListUsers(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.seedUser(t, "root", 100, true)

	replicas := 2
	req := httptest.NewRequest(http.MethodPost, "/tasks",
		jsonBody(t, task.CreateRequest{InputData: "x", Replicas: &replicas}))
	w := httptest.NewRecorder()
	f.taskH.Create(w, asUser(req, f.owner))
	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	w = httptest.NewRecorder()
	f.adminH.ListUsers(w, asUser(req, admin))

	require.Equal(t, http.StatusOK, w.Code)
	var resp []AdminUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	assert.Equal(t, "alice", resp[0].Username)
	assert.Equal(t, int64(2), resp[0].TasksDispatched)
	assert.False(t, resp[0].IsAdmin)

	assert.Equal(t, "root", resp[1].Username)
	assert.Equal(t, int64(0), resp[1].TasksDispatched)
	assert.True(t, resp[1].IsAdmin)
}

func TestAdminHandler_PromoteUser(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.seedUser(t, "root", 100, true)

	req := httptest.NewRequest(http.MethodPost, "/admin/users/1/promote", nil)
	w := httptest.NewRecorder()
	f.adminH.PromoteUser(w, withUserID(asUser(req, admin), f.owner.ID))

	require.Equal(t, http.StatusOK, w.Code)

	u, err := f.users.GetByID(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
}

func TestAdminHandler_PromoteUser_NotFound(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.seedUser(t, "root", 100, true)

	req := httptest.NewRequest(http.MethodPost, "/admin/users/999/promote", nil)
	w := httptest.NewRecorder()
	f.adminH.PromoteUser(w, withUserID(asUser(req, admin), 999))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
