package http

import (
	"log/slog"
	"net/http"

	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/observability"
)

// LockAPI covers every lock operation the router exposes.
type LockAPI interface {
	LockManager
	LockOverrider
}

// GemAPI covers every catalog operation the router exposes.
type GemAPI interface {
	GemCatalog
	CatalogExporter
}

// RouterConfig wires services into the HTTP surface.
type RouterConfig struct {
	Locks    LockAPI
	Gems     GemAPI
	Login    LoginService
	Sessions SessionParser
	Limiter  *RateLimiter
	Clock    clock.Clock

	CORSOrigins []string
	Logger      *slog.Logger
	Metrics     observability.MetricsCollector
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter builds the full handler chain: CORS, request logging, routing.
func NewRouter(cfg RouterConfig) http.Handler {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	session := func(h http.Handler, methods ...string) http.Handler {
		return RequireSession(cfg.Sessions, h, methods...)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	if cfg.MetricsHandler != nil {
		mux.Handle("/metrics", cfg.MetricsHandler)
	}

	mux.Handle("/auth/google", HandleGoogleLogin(cfg.Login))
	mux.Handle("/auth/me", session(HandleMe()))

	mux.Handle("/items/locks", HandleListLocks(cfg.Locks))
	mux.Handle("/items/{item_key}/lock", session(cfg.Limiter.Limit(HandleItemLock(cfg.Locks, clk))))
	mux.Handle("/admin/locks/{item_key}", session(HandleAdminReleaseLock(cfg.Locks, clk)))

	mux.Handle("/gems", HandleListGems(cfg.Gems))
	mux.Handle("/gems/{stars}/{name}", session(HandleGem(cfg.Gems, clk), http.MethodPut))
	mux.Handle("/export", HandleExport(cfg.Gems))

	mux.Handle("/", NotFoundHandler())

	return CORS(cfg.CORSOrigins, RequestLogger(mux, cfg.Logger, cfg.Metrics))
}
