package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maumercado/jobrunner-go/internal/api/middleware"
	"github.com/maumercado/jobrunner-go/internal/auth"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/store"
	"github.com/maumercado/jobrunner-go/internal/task"
)

// UserHandler serves signup, login and profile endpoints.
type UserHandler struct {
	users      *store.UserRepository
	tasks      *store.TaskRepository
	issuer     *auth.TokenIssuer
	bcryptCost int
}

func NewUserHandler(users *store.UserRepository, tasks *store.TaskRepository, issuer *auth.TokenIssuer, bcryptCost int) *UserHandler {
	return &UserHandler{
		users:      users,
		tasks:      tasks,
		issuer:     issuer,
		bcryptCost: bcryptCost,
	}
}

// CredentialsRequest is the body of POST /signup and POST /login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup handles POST /signup.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hashed, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		logger.Error().Err(err).Msg("failed to hash password")
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	u := &store.User{Username: req.Username, HashedPassword: hashed}
	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, task.ErrUsernameTaken) {
			respondError(w, http.StatusBadRequest, "Username already registered")
			return
		}
		logger.Error().Err(err).Msg("failed to create user")
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	logger.Info().Uint("user_id", u.ID).Str("username", u.Username).Msg("user created")
	respondJSON(w, http.StatusCreated, MessageResponse{Message: "User created successfully"})
}

// LoginResponse is the body returned by POST /login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IsAdmin     bool   `json:"is_admin"`
}

// Login handles POST /login. Bad username and bad password both return the
// same 401 so the endpoint does not leak which accounts exist.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, task.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		logger.Error().Err(err).Msg("failed to load user")
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.VerifyPassword(req.Password, u.HashedPassword) {
		respondError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := h.issuer.Issue(u.ID, u.Username, u.IsAdmin)
	if err != nil {
		logger.Error().Err(err).Msg("failed to issue token")
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		IsAdmin:     u.IsAdmin,
	})
}

// ProfileUpdateRequest is the body of PUT /users/me. Omitted fields stay
// unchanged.
type ProfileUpdateRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// UpdateProfile handles PUT /users/me.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUser(r.Context())

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hashed := ""
	if req.Password != "" {
		var err error
		hashed, err = auth.HashPassword(req.Password, h.bcryptCost)
		if err != nil {
			logger.Error().Err(err).Msg("failed to hash password")
			respondError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
	}

	u, err := h.users.UpdateProfile(r.Context(), claims.UserID, req.Username, hashed)
	if err != nil {
		respondStoreError(w, err, "failed to update profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Profile updated successfully",
		"username": u.Username,
	})
}

// QuotaResponse is the body of GET /users/me/quota.
type QuotaResponse struct {
	Quota     int `json:"quota"`
	Used      int `json:"used"`
	Available int `json:"available"`
}

// Quota handles GET /users/me/quota. Used counts every task ever submitted,
// terminal ones included; quota is a lifetime admission budget.
func (h *UserHandler) Quota(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUser(r.Context())

	u, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, err, "failed to load user")
		return
	}

	used, err := h.tasks.CountByOwner(r.Context(), claims.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to count tasks")
		respondError(w, http.StatusInternalServerError, "failed to load quota")
		return
	}

	available := u.TaskQuota - int(used)
	if available < 0 {
		available = 0
	}
	respondJSON(w, http.StatusOK, QuotaResponse{
		Quota:     u.TaskQuota,
		Used:      int(used),
		Available: available,
	})
}
