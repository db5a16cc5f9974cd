// Package webui is the browser-facing surface of the console: HTML pages,
// the JSON API the pages call, and the WebSocket that streams activity
// updates. All data comes from the backend client; nothing is persisted
// here beyond sessions.
package webui

import (
	"context"
	"crypto/rand"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/docs"
	"github.com/diptoe/collective-memory-sub000/internal/session"
)

//go:embed static/*.html
var staticFiles embed.FS

// Options assembles a Server. Client, Sessions and Logger are required.
type Options struct {
	Client   *api.Client
	Sessions *session.Manager
	Docs     *docs.Library
	Logger   *zap.Logger
	Metrics  *Metrics

	// Registry backs the /metrics endpoint. Nil disables it.
	Registry *prometheus.Registry

	// CookieName for the browser session. Empty means "cm_session".
	CookieName    string
	SecureCookies bool

	// CSRFKey authenticates form tokens. Empty generates a random
	// per-process key.
	CSRFKey []byte

	// PollInterval and RecentLimit configure per-connection feed pollers.
	PollInterval time.Duration
	RecentLimit  int

	// Location for bucket boundaries and labels. Nil means time.Local.
	Location *time.Location

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Server is the console HTTP server.
type Server struct {
	logger   *zap.Logger
	client   *api.Client
	sessions *session.Manager
	docs     *docs.Library
	metrics  *Metrics

	cookieName    string
	secureCookies bool
	pollInterval  time.Duration
	recentLimit   int
	location      *time.Location
	now           func() time.Time

	// loginLimiter throttles credential guessing. It is per process; put a
	// per-client limiter in front when the console is exposed directly.
	loginLimiter *rate.Limiter

	tmpl           *template.Template
	router         *chi.Mux
	csrfProtect    func(http.Handler) http.Handler
	metricsHandler http.Handler
}

// New builds the console server and its route table.
func New(opts Options) (*Server, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("webui: backend client is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("webui: session manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	tmpl, err := template.ParseFS(staticFiles, "static/*.html")
	if err != nil {
		return nil, fmt.Errorf("webui: parse templates: %w", err)
	}

	key := opts.CSRFKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("webui: generate csrf key: %w", err)
		}
	}

	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = "cm_session"
	}
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		logger:        opts.Logger.Named("webui"),
		client:        opts.Client,
		sessions:      opts.Sessions,
		docs:          opts.Docs,
		metrics:       opts.Metrics,
		cookieName:    cookieName,
		secureCookies: opts.SecureCookies,
		pollInterval:  opts.PollInterval,
		recentLimit:   opts.RecentLimit,
		location:      location,
		now:           now,
		loginLimiter:  rate.NewLimiter(rate.Every(time.Second), 5),
		tmpl:          tmpl,
		router:        chi.NewRouter(),
		csrfProtect: csrf.Protect(key,
			csrf.Secure(opts.SecureCookies),
			csrf.Path("/"),
		),
	}

	if opts.Registry != nil {
		s.metricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Browser pages and form posts. CSRF tokens are minted here and checked
	// on the posts.
	r.Group(func(r chi.Router) {
		r.Use(s.csrfProtect)
		r.Use(s.withSession)

		r.Get("/", s.handleIndex)
		r.Get("/login", s.handleLoginPage)
		r.Get("/docs", s.handleDocsIndex)
		r.Get("/docs/{slug}", s.handleDocsPage)

		r.Post("/login", s.handleLogin)
		r.Post("/auth/guest", s.handleGuest)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
	})

	// JSON API and the live socket. Session required; cross-site posts are
	// kept out by the SameSite cookie.
	r.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Use(s.requireSession)

		r.Get("/api/me", s.handleMe)

		r.Route("/api/activity", func(r chi.Router) {
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/radial.svg", s.handleRadialSVG)
			r.Get("/drilldown", s.handleDrilldown)
		})

		mountCRUD[api.User](s, r, "/api/users", s.client.Users)
		mountCRUD[api.Team](s, r, "/api/teams", s.client.Teams)
		mountCRUD[api.ClientAccount](s, r, "/api/clients", s.client.Clients)
		mountCRUD[api.Persona](s, r, "/api/personas", s.client.Personas)
		mountCRUD[api.AgentSession](s, r, "/api/sessions", s.client.Sessions)

		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/", s.handleMessagesList)
			r.Post("/", s.handleMessageSend)
			r.Post("/{key}/read", s.handleMessageRead)
		})

		r.Get("/api/worksessions", s.handleWorkSessions)

		r.Get("/ws", s.handleWS)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
}

// ServeHTTP lets the Server act as a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled, then drains it.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("console listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
