package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splitpay/internal/auth"
	applog "splitpay/internal/log"
	"splitpay/internal/metrics"
	"splitpay/internal/middleware/ratelimit"
	"splitpay/internal/middleware/security"
	"splitpay/internal/middleware/session"
	"splitpay/internal/middleware/trace"
	"splitpay/internal/services"
	appweb "splitpay/web"
)

// Config wires the server to the ledger and the access gate.
type Config struct {
	Addr     string
	Ledger   *services.LedgerService
	Gate     *auth.Gate
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	Logger   *applog.Logger
	// Checks are run by /readyz, keyed by name.
	Checks map[string]func(context.Context) error
	// NotifyEnabled and SheetEnabled toggle the matching buttons on the page.
	NotifyEnabled bool
	SheetEnabled  bool
	RateLimit     ratelimit.Config
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    *services.LedgerService
	gate      *auth.Gate
	sessions  *session.Manager
	metrics   *metrics.Metrics
	logger    *applog.Logger
	checks    map[string]func(context.Context) error
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIP
	started   time.Time

	notifyEnabled bool
	sheetEnabled  bool
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.New(applog.DefaultConfig())
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:        cfg.Ledger,
		gate:          cfg.Gate,
		sessions:      cfg.Sessions,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.WithComponent(applog.ComponentHTTP),
		checks:        cfg.Checks,
		limiter:       ratelimit.NewLimiter(cfg.RateLimit),
		clientIP:      security.NewClientIP(),
		started:       time.Now(),
		notifyEnabled: cfg.NotifyEnabled,
		sheetEnabled:  cfg.SheetEnabled,
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err, applog.FieldComponent, applog.ComponentTemplate)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	mux.Handle("GET /login", security.NoStore(http.HandlerFunc(s.handleLoginPage)))
	mux.Handle("POST /login", security.NoStore(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.protected(s.handleIndex))
	mux.Handle("GET /export.xlsx", s.protected(s.handleExport))

	mux.Handle("POST /members/add", s.mutating(s.handleAddMember))
	mux.Handle("POST /members/delete", s.mutating(s.handleRemoveMember))
	mux.Handle("POST /contractor", s.mutating(s.handleSetContractor))
	mux.Handle("POST /payment-link", s.mutating(s.handleSetPaymentLink))
	mux.Handle("POST /months/next", s.mutating(s.handleNextMonth))
	mux.Handle("POST /months/delete", s.mutating(s.handleDeleteMonth))
	mux.Handle("POST /ledger", s.mutating(s.handleApplyTable))
	mux.Handle("POST /notify", s.mutating(s.handleNotify))
	mux.Handle("POST /sheet/pull", s.mutating(s.handleSheetPull))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.metrics, s.clientIP.Extract)
	s.Handler = tracer.Middleware(headers.Middleware(mux))

	return s
}

// protected requires a session and disables caching.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.sessions.Require("/login")(security.NoStore(h))
}

// mutating is protected plus the per-client request budget.
func (s *Server) mutating(h http.HandlerFunc) http.Handler {
	limited := s.limiter.Middleware(s.clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.clientIP.Extract(r),
			applog.FieldPath, r.URL.Path)
		w.Header().Set("Retry-After", "60")
		ErrorResponse(http.StatusTooManyRequests, "Too many changes. Please wait a minute.").Write(w)
	})
	return s.protected(limited(h).ServeHTTP)
}

// Shutdown stops the limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
