package http

import (
	"context"
	"net/http"
	"sync"

	"cashcal/internal/auth"
	"cashcal/internal/log"
	"cashcal/internal/middleware/ratelimit"
	"cashcal/internal/middleware/security"
	"cashcal/internal/middleware/trace"
	"cashcal/internal/services"
	"cashcal/internal/tenant"
)

// Deps are the collaborators of the API server.
type Deps struct {
	Directory   tenant.Directory
	Calendars   *services.CalendarService
	Ledger      *services.LedgerService
	Projections *services.ProjectionService
	Tokens      *auth.Tokens
	// Login serves /auth/*. Nil answers 503 there.
	Login  *auth.Handlers
	Logger *log.Logger

	FrontendURL string
	// RateLimitPerMinute is the per-client budget, zero for the default.
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	dir         tenant.Directory
	calendars   *services.CalendarService
	ledger      *services.LedgerService
	projections *services.ProjectionService
	login       *auth.Handlers

	logs     *log.StructuredLogger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	login := deps.Login
	if login == nil {
		login = auth.NewHandlers(nil, deps.Directory, deps.Tokens, deps.FrontendURL, false)
	}

	s := &Server{
		dir:         deps.Directory,
		calendars:   deps.Calendars,
		ledger:      deps.Ledger,
		projections: deps.Projections,
		login:       login,
		logs:        log.NewStructuredLogger(logger),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:    security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/me", s.handleMe)

	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	api.HandleFunc("GET /api/schedules", s.handleListSchedules)
	api.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	api.HandleFunc("GET /api/schedules/{id}", s.handleGetSchedule)
	api.HandleFunc("PUT /api/schedules/{id}", s.handleUpdateSchedule)
	api.HandleFunc("DELETE /api/schedules/{id}", s.handleDeleteSchedule)

	api.HandleFunc("GET /api/settings", s.handleGetSettings)
	api.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	api.HandleFunc("GET /api/calendar", s.handleCalendar)
	api.HandleFunc("POST /api/projection", s.handleProjection)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /auth/login", s.login.Login)
	mux.HandleFunc("GET /auth/callback", s.login.Callback)
	mux.Handle("/api/", auth.Require(deps.Tokens, s.unauthorized)(api))

	s.Server = http.Server{
		Addr: addr,
		Handler: chain(mux,
			log.Middleware(logger),
			s.tracer.Middleware,
			security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
			security.CORS(deps.FrontendURL),
			security.Recover(func(w http.ResponseWriter, _ *http.Request) {
				WriteError(w, http.StatusInternalServerError, "internal server error")
			}),
			s.detector.Middleware,
			s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}),
		),
	}
	return s
}

// chain applies middleware so that the first one is outermost.
func chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="cashcal"`)
	s.fail(w, r, log.OpLogin, err)
}

// store returns the authenticated user's store. Routes under /api/ always
// carry a user id.
func (s *Server) store(r *http.Request) tenant.Store {
	userID, _ := auth.UserID(r.Context())
	return s.dir.ForUser(userID)
}
