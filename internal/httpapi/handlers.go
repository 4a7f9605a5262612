package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"accountd.io/internal/account"
	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
	"accountd.io/internal/obs"
)

const serviceName = "accountd"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyCheck pings the database when one is configured.
type ReadyCheck struct {
	DB *sql.DB
}

func (rc ReadyCheck) Check(ctx context.Context) error {
	if rc.DB == nil {
		return nil
	}
	return rc.DB.PingContext(ctx)
}

// Config tunes the HTTP surface.
type Config struct {
	Version      string
	MaxBodyBytes int64
	RatePerSec   float64
	RateBurst    int
	CORSOrigins  []string
	// TrustedProxies lists addresses or CIDR prefixes whose forwarded
	// headers are honored.
	TrustedProxies []string
}

// Deps are the services the handlers call into.
type Deps struct {
	Auth     *auth.Service
	Accounts *account.Service
	Trail    audit.Store
	Auditor  auth.Auditor
	Ready    readinessChecker
}

// API is the HTTP layer.
type API struct {
	router   chi.Router
	auth     *auth.Service
	accounts *account.Service
	trail    audit.Store
	auditor  auth.Auditor
	ready    readinessChecker
	limiter  *RateLimiter
	cfg      Config
}

func New(cfg Config, deps Deps) *API {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	a := &API{
		auth:     deps.Auth,
		accounts: deps.Accounts,
		trail:    deps.Trail,
		auditor:  deps.Auditor,
		ready:    deps.Ready,
		limiter:  NewRateLimiter(cfg.RatePerSec, cfg.RateBurst),
		cfg:      cfg,
	}
	if a.ready == nil {
		a.ready = ReadyCheck{}
	}
	if a.auditor == nil {
		a.auditor = (*audit.Recorder)(nil)
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(TrustedRealIP(a.cfg.TrustedProxies))
	r.Use(RequestID)
	r.Use(Recover)
	r.Use(LoggingJSON)
	r.Use(obs.Instrument)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	}))
	r.Use(MaxBodyBytes(a.cfg.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, msgMethodNotAllowed)
	})

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)
		r.Use(a.accessLog)

		r.Route("/auth", func(r chi.Router) {
			r.Use(a.limiter.Middleware)
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.Post("/refresh", a.handleRefresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.require(auth.Authenticated()))
			r.Get("/user/me", a.handleMe)
			r.Patch("/user/me/change-password", a.handleChangeOwnPassword)
			r.Patch("/user/me/change-email", a.handleChangeOwnEmail)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.require(auth.AnyRole(auth.RoleAdmin)))
			r.Get("/user/{username}", a.handleGetUser)
			r.Patch("/user/{username}/change-password", a.handleChangePassword)
			r.Patch("/user/{username}/change-email", a.handleChangeEmail)
			r.Patch("/user/{username}/roles", a.handleUpdateRoles)
			r.Delete("/user/{username}", a.handleDeleteUser)
			r.Delete("/user/{username}/delete", a.handleDeleteUser)
			r.Get("/audit", a.handleListAudit)
		})
	})
	return r
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler {
	return a.router
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.cfg.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.cfg.Version,
	})
}
