package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/text/language"

	"ctalara/internal/cache"
	"ctalara/internal/core"
	applog "ctalara/internal/log"
	"ctalara/internal/middleware/ratelimit"
	"ctalara/internal/middleware/security"
	"ctalara/internal/middleware/trace"
	"ctalara/internal/services"
	appweb "ctalara/web"
)

// Options configures NewServer.
type Options struct {
	Addr       string
	Dataset    *core.Dataset
	Reports    *services.ReportService
	Locale     language.Tag
	SessionTTL time.Duration
	SessionMax int
	Logger     *applog.Logger
}

type Server struct {
	http.Server
	dataset   *core.Dataset
	reports   *services.ReportService
	templates *template.Template
	numbers   numberFormatter
	logger    *applog.Logger
	events    *applog.StructuredLogger

	// One selection per browser session; derived views are never cached
	sessions   *cache.SessionStore
	cacheMgr   *cache.Manager
	sessionTTL time.Duration

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	metrics      appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime       time.Time
	computations int64
	exports      int64
	reports      int64
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentHTTP})
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.SessionMax <= 0 {
		opts.SessionMax = 1000
	}
	if opts.Locale == language.Und {
		opts.Locale = language.Polish
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		dataset:    opts.Dataset,
		reports:    opts.Reports,
		numbers:    newNumberFormatter(opts.Locale),
		logger:     logger,
		events:     applog.NewStructuredLogger(logger),
		sessions:   cache.NewSessionStore(opts.SessionMax, opts.SessionTTL),
		cacheMgr:   cache.NewManager(logger.Logger),
		sessionTTL: opts.SessionTTL,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 30}),
		detector:   security.NewDetector(logger.Logger),
		metrics:    appMetrics{uptime: time.Now()},
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger.Logger)

	s.cacheMgr.Register(s.sessions)
	s.cacheMgr.StartCleanup(5 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs(s.numbers)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.CacheControl(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/{$}", s.withDataset(s.handleIndex))
	mux.HandleFunc("/ui/views", s.withDataset(s.handleViews))
	mux.HandleFunc("/charts/{file}", s.withDataset(s.handleChart))
	mux.HandleFunc("/api/dashboard", s.withDataset(s.handleAPIDashboard))
	mux.HandleFunc("/export/alara_score.csv", s.withDataset(s.handleExportCSV))
	mux.HandleFunc("/export/alara_report.xlsx", s.withDataset(s.handleExportXLSX))
	mux.HandleFunc("/reports", s.withDataset(s.handleCreateReport))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, http.MethodPost)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = applog.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = applog.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// withDataset answers 503 until a dataset is available.
func (s *Server) withDataset(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.dataset == nil {
			ErrorResponse(http.StatusServiceUnavailable, "Dane nie zostały jeszcze wczytane").Write(w)
			return
		}
		next(w, r)
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info("Stopping HTTP server", applog.FieldOperation, applog.OpShutdown)
		s.cacheMgr.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
