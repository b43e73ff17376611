package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_LoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login", r.URL.Path)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "alice", creds["username"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-123",
			"token_type":   "bearer",
			"is_admin":     true,
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	isAdmin, err := c.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, "tok-123", c.token)
}

func TestClient_CreateTaskSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateTaskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.InputData)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]*Task{{ID: 1, InputData: "hello", Status: "Pending"}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok-123"))
	created, err := c.CreateTask(context.Background(), &CreateTaskRequest{InputData: "hello"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, uint(1), created[0].ID)
	assert.Equal(t, "Pending", created[0].Status)
}

func TestClient_ListTasksPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("skip"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]*Task{{ID: 7}, {ID: 6}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	tasks, err := c.ListTasks(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, uint(7), tasks[0].ID)
}

func TestClient_APIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "Bad Request",
			"message": "Quota exceeded. Available: 0",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	_, err := c.CreateTask(context.Background(), &CreateTaskRequest{InputData: "x"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Quota exceeded. Available: 0", apiErr.Message)
}

func TestClient_APIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Health(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not Found", apiErr.Message)
}

func TestClient_CancelTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/42/cancel", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"message": "Task cancelled"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	msg, err := c.CancelTask(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Task cancelled", msg)
}
