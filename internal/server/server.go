package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/radixapp/radix/internal/api"
	"github.com/radixapp/radix/internal/auth"
	"github.com/radixapp/radix/internal/config"
	"github.com/radixapp/radix/internal/database"
	"github.com/radixapp/radix/internal/middleware"
)

// Dependencies holds all service dependencies for the server
type Dependencies struct {
	DB             *database.DB
	AuthService    *auth.Service
	TokenService   *auth.TokenService
	RoomHandler    *api.RoomHandler
	ProblemHandler *api.ProblemHandler
	AuthHandler    *api.AuthHandler
	RateLimiter    *middleware.RateLimiter
	Logger         *slog.Logger
}

// New creates an HTTP server with all routes configured.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	mux := http.NewServeMux()

	// Register routes
	registerRoutes(mux, deps)

	// Wrap with middleware
	handler := chainMiddleware(mux,
		requestIDMiddleware,
		corsMiddleware(cfg),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	)

	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check - essential for docker, k8s, load balancers
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Ready check - verifies DB connectivity
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","error":"database unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	sessionAuth := auth.Middleware(deps.AuthService)
	rateLimited := func(h http.HandlerFunc) http.Handler {
		return sessionAuth(deps.RateLimiter.Middleware(h))
	}

	// =========================================================================
	// Room routes
	// =========================================================================
	mux.Handle("POST /room", rateLimited(deps.RoomHandler.CreateRoom))
	mux.HandleFunc("GET /room/list", deps.RoomHandler.ListRooms)
	mux.Handle("GET /room/{name}/can-connect", rateLimited(deps.RoomHandler.CanConnect))
	mux.Handle("GET /room/{name}", sessionAuth(http.HandlerFunc(deps.RoomHandler.Connect)))

	// =========================================================================
	// Problem routes
	// =========================================================================
	mux.Handle("POST /problems", rateLimited(deps.ProblemHandler.CreateProblem))
	mux.Handle("GET /problems/{id}", rateLimited(deps.ProblemHandler.GetProblem))
	mux.Handle("PUT /problems/{id}", rateLimited(deps.ProblemHandler.UpdateProblem))
	mux.HandleFunc("GET /problems/infinite", deps.ProblemHandler.ListProblems)
	mux.HandleFunc("GET /problems/search", deps.ProblemHandler.SearchProblems)

	// =========================================================================
	// Internal adapter routes (NextAuth persistence, service token only)
	// =========================================================================
	serviceAuth := auth.ServiceMiddleware(deps.TokenService)
	adapter := func(h http.HandlerFunc) http.Handler { return serviceAuth(h) }

	mux.Handle("POST /internal/auth/user", adapter(deps.AuthHandler.CreateUser))
	mux.Handle("GET /internal/auth/user/{id}", adapter(deps.AuthHandler.GetUser))
	mux.Handle("GET /internal/auth/user-by-email/{email}", adapter(deps.AuthHandler.GetUserByEmail))
	mux.Handle("GET /internal/auth/user-by-account/{provider}/{id}", adapter(deps.AuthHandler.GetUserByAccount))
	mux.Handle("POST /internal/auth/account", adapter(deps.AuthHandler.LinkAccount))
	mux.Handle("POST /internal/auth/session", adapter(deps.AuthHandler.CreateSession))
	mux.Handle("GET /internal/auth/session/{token}", adapter(deps.AuthHandler.GetSessionAndUser))
	mux.Handle("DELETE /internal/auth/session/{token}", adapter(deps.AuthHandler.DeleteSession))
}
