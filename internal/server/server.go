package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/flatmate/internal/access"
	"github.com/dukerupert/flatmate/internal/account"
	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/config"
	"github.com/dukerupert/flatmate/internal/credential"
	"github.com/dukerupert/flatmate/internal/handler"
	"github.com/dukerupert/flatmate/internal/house"
	"github.com/dukerupert/flatmate/internal/middleware"
	"github.com/dukerupert/flatmate/internal/store"
	"github.com/dukerupert/flatmate/internal/task"
	ws "github.com/dukerupert/flatmate/internal/websocket"
)

const apiPrefix = "/api/v1"

type Server struct {
	cfg         config.Config
	hub         *ws.Hub
	resolver    *auth.Resolver
	authH       *handler.AuthHandler
	houseH      *handler.HouseHandler
	taskH       *handler.TaskHandler
	rateLimiter *middleware.RateLimiter
	clientIP    *middleware.ClientIP
	metrics     *middleware.Metrics
	logger      *slog.Logger
}

func New(db *sql.DB, cfg config.Config, creds *credential.Service, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	houseStore := store.NewHouseStore(db)
	taskStore := store.NewTaskStore(db)

	authority := access.NewAuthority(houseStore, userStore)
	houseSvc := house.NewService(houseStore, authority)
	taskSvc := task.NewService(taskStore, authority)
	accountSvc, err := account.NewService(userStore, creds)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	clientIP, err := middleware.NewClientIP(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:         cfg,
		hub:         hub,
		resolver:    auth.NewResolver(creds, userStore),
		authH:       handler.NewAuthHandler(accountSvc, logger.With("component", "auth")),
		houseH:      handler.NewHouseHandler(houseSvc, hub, logger.With("component", "house")),
		taskH:       handler.NewTaskHandler(taskSvc, houseSvc, hub, logger.With("component", "task")),
		rateLimiter: middleware.NewRateLimiter(),
		clientIP:    clientIP,
		metrics:     middleware.NewMetrics(),
		logger:      logger,
	}, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the live update hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Router serves every route at the root and again under /api/v1.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	api := s.metrics.Middleware(mux)

	outer := http.NewServeMux()
	outer.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, api))
	outer.Handle("/", api)

	h := middleware.RequestLogger(s.logger.With("component", "http"))(outer)
	h = middleware.RequestID(h)
	return middleware.CORS(s.cfg.AllowedOrigins)(h)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /{$}", s.rootHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("POST /auth/register", s.rateLimited(registerLimit, s.authH.Register))
	mux.Handle("POST /auth/login", s.rateLimited(loginLimit, s.authH.Login))
	mux.Handle("POST /auth/login-form", s.rateLimited(loginLimit, s.authH.LoginForm))

	// Authenticated routes
	protected := middleware.RequireAuth(s.resolver, s.logger.With("component", "auth"))
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	handle("GET /auth/me", s.authH.Me)

	handle("GET /houses", s.houseH.List)
	handle("GET /houses/user", s.houseH.List)
	handle("POST /houses", s.houseH.Create)
	handle("GET /houses/{id}/members", s.houseH.Members)
	handle("POST /houses/{id}/invite", s.houseH.Invite)
	handle("POST /houses/{id}/exit", s.houseH.Exit)
	handle("DELETE /houses/{id}", s.houseH.Delete)

	handle("GET /tasks", s.taskH.List)
	handle("GET /tasks/today", s.taskH.List)
	handle("POST /tasks", s.taskH.Create)
	handle("GET /tasks/{id}", s.taskH.Get)
	handle("PATCH /tasks/{id}", s.taskH.Update)
	handle("PUT /tasks/{id}", s.taskH.Update)
	handle("POST /tasks/{id}/complete", s.taskH.Complete)
	handle("DELETE /tasks/{id}", s.taskH.Delete)

	handle("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Welcome to Flatmate API"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Both login routes draw from one budget per client.
var (
	loginLimit    = middleware.Limit{Scope: "login", Requests: 10, Window: time.Minute}
	registerLimit = middleware.Limit{Scope: "register", Requests: 10, Window: time.Minute}
)

func (s *Server) rateLimited(limit middleware.Limit, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, limit, s.clientIP.Resolve)(h)
}
