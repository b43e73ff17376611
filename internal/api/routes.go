package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maumercado/jobrunner-go/internal/api/handlers"
	apiMiddleware "github.com/maumercado/jobrunner-go/internal/api/middleware"
	"github.com/maumercado/jobrunner-go/internal/api/websocket"
	"github.com/maumercado/jobrunner-go/internal/auth"
	"github.com/maumercado/jobrunner-go/internal/config"
	"github.com/maumercado/jobrunner-go/internal/events"
	"github.com/maumercado/jobrunner-go/internal/queue"
	"github.com/maumercado/jobrunner-go/internal/store"
)

// Server wires the HTTP surface: auth, task lifecycle, admin and the
// WebSocket event feed.
type Server struct {
	router       *chi.Mux
	config       *config.Config
	issuer       *auth.TokenIssuer
	userHandler  *handlers.UserHandler
	taskHandler  *handlers.TaskHandler
	adminHandler *handlers.AdminHandler
	wsHub        *websocket.Hub
	wsHandler    *websocket.Handler
}

func NewServer(cfg *config.Config, users *store.UserRepository, tasks *store.TaskRepository, stream *queue.RedisStreams, publisher *events.RedisPubSub) *Server {
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	wsHub := websocket.NewHub(publisher)

	s := &Server{
		router:       chi.NewRouter(),
		config:       cfg,
		issuer:       issuer,
		userHandler:  handlers.NewUserHandler(users, tasks, issuer, cfg.Auth.BcryptCost),
		taskHandler:  handlers.NewTaskHandler(tasks, users, stream, publisher),
		adminHandler: handlers.NewAdminHandler(users, tasks, stream),
		wsHub:        wsHub,
		wsHandler:    websocket.NewHandler(wsHub),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apiMiddleware.RequestLogger())
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.health)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		if s.config.Queue.RateLimitRPS > 0 {
			r.Use(apiMiddleware.ClientRateLimit(s.config.Queue.RateLimitRPS))
		}

		// Public
		r.Post("/signup", s.userHandler.Signup)
		r.Post("/login", s.userHandler.Login)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.Auth(s.issuer))

			r.Put("/users/me", s.userHandler.UpdateProfile)
			r.Get("/users/me/quota", s.userHandler.Quota)

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", s.taskHandler.Create)
				r.Get("/", s.taskHandler.List)
				r.Delete("/", s.taskHandler.DeleteMine)
				r.Post("/kill-all", s.taskHandler.KillAll)
				r.Get("/{taskID}", s.taskHandler.Get)
				r.Post("/{taskID}/cancel", s.taskHandler.Cancel)
			})

			// Admin
			r.Route("/admin", func(r chi.Router) {
				r.Use(apiMiddleware.RequireAdmin)

				r.Post("/reset-system", s.adminHandler.ResetSystem)
				r.Get("/users", s.adminHandler.ListUsers)
				r.Post("/users/{userID}/promote", s.adminHandler.PromoteUser)
			})
		})
	})

	// WebSocket endpoint
	s.router.Get("/ws", s.wsHandler.ServeWS)

	// Metrics endpoint
	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","service":"api"}`))
}

// Start starts the WebSocket hub.
func (s *Server) Start(ctx context.Context) {
	s.wsHub.Run(ctx)
}

// Stop stops the WebSocket hub.
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
