// Package client is a Go client for the job runner HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Task is the API representation of a submitted work item.
type Task struct {
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

// CreateTaskRequest is the body of POST /tasks. Nil optionals take server
// defaults.
type CreateTaskRequest struct {
	InputData         string `json:"input_data"`
	MaxExecutionTime  *int   `json:"max_execution_time,omitempty"`
	TaskType          string `json:"task_type,omitempty"`
	SimulatedDuration *int   `json:"simulated_duration,omitempty"`
	Replicas          *int   `json:"replicas,omitempty"`
}

// Quota reports the caller's admission budget.
type Quota struct {
	Quota     int `json:"quota"`
	Used      int `json:"used"`
	Available int `json:"available"`
}

// AdminUser is one row of the admin user listing.
type AdminUser struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	IsAdmin         bool   `json:"is_admin"`
	TaskQuota       int    `json:"task_quota"`
	TasksDispatched int64  `json:"tasks_dispatched"`
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the job runner API. It is safe for concurrent use once
// configured; SetToken is not synchronized with in-flight requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, http.MethodPost, "/signup", body, nil)
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	body := map[string]string{"username": username, "password": password}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		IsAdmin     bool   `json:"is_admin"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return false, err
	}
	c.token = resp.AccessToken
	return resp.IsAdmin, nil
}

// UpdateProfile changes username and/or password; empty strings leave the
// field unchanged.
func (c *Client) UpdateProfile(ctx context.Context, username, password string) error {
	body := map[string]string{}
	if username != "" {
		body["username"] = username
	}
	if password != "" {
		body["password"] = password
	}
	return c.do(ctx, http.MethodPut, "/users/me", body, nil)
}

// GetQuota returns the caller's admission budget.
func (c *Client) GetQuota(ctx context.Context) (*Quota, error) {
	var q Quota
	if err := c.do(ctx, http.MethodGet, "/users/me/quota", nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateTask submits a task (or several, with Replicas) and returns the
// created records.
func (c *Client) CreateTask(ctx context.Context, req *CreateTaskRequest) ([]*Task, error) {
	var created []*Task
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// ListTasks returns tasks newest-first with offset pagination.
func (c *Client) ListTasks(ctx context.Context, skip, limit int) ([]*Task, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var tasks []*Task
	if err := c.do(ctx, http.MethodGet, "/tasks?"+q.Encode(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns one task by id.
func (c *Client) GetTask(ctx context.Context, id uint) (*Task, error) {
	var t Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d", id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask requests cooperative cancellation of one task.
func (c *Client) CancelTask(ctx context.Context, id uint) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/cancel", id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// KillAllTasks cancels every non-terminal task the caller owns.
func (c *Client) KillAllTasks(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/kill-all", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// DeleteTasks purges the caller's task history.
func (c *Client) DeleteTasks(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodDelete, "/tasks", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetSystem purges all tasks and the dispatch stream. Admin only.
func (c *Client) ResetSystem(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/admin/reset-system", nil, nil)
}

// ListUsers returns all accounts with their dispatch counts. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]*AdminUser, error) {
	var users []*AdminUser
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// PromoteUser grants the admin flag to an account. Admin only.
func (c *Client) PromoteUser(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/admin/users/%d/promote", id), nil, nil)
}

// Health checks the API liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
