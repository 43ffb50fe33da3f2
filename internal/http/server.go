package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"invoicer/internal/api"
	"invoicer/internal/config"
	"invoicer/internal/db"
	"invoicer/internal/guard"
	"invoicer/internal/metrics"
	"invoicer/internal/routing"
	"invoicer/internal/workspace"
)

const stageEdge = "edge"

// Deps are the collaborators of the HTTP server. Pool, Metrics and Gatherer
// are optional.
type Deps struct {
	API      *api.Client
	Registry *workspace.Registry
	Pool     *db.Pool
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type Server struct {
	cfg      config.Config
	router   chi.Router
	api      *api.Client
	registry *workspace.Registry
	shell    *guard.Shell
	db       *db.Pool
	obs      guard.Observer
	gatherer prometheus.Gatherer
	log      *zap.Logger
	limiter  *rateLimiter
}

func NewServer(cfg config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var obs guard.Observer = noopObserver{}
	if deps.Metrics != nil {
		obs = deps.Metrics
	}

	router := chi.NewRouter()
	server := &Server{
		cfg:      cfg,
		router:   router,
		api:      deps.API,
		registry: deps.Registry,
		shell:    guard.NewShell(log, obs),
		db:       deps.Pool,
		obs:      obs,
		gatherer: deps.Gatherer,
		log:      log,
		limiter:  newRateLimiter(cfg.RateLimitRPS),
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.accessLog)
	router.Use(middleware.Recoverer)
	router.Use(server.rateLimitMiddleware())
	router.Use(server.edge)

	server.registerRoutes()
	return server
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.cfg.StaticDir != "" {
		s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.origin()},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(s.attachWorkspace)
		r.Get("/state", s.handleState)
		r.Get("/notifications", s.handleListNotifications)
		r.Delete("/notifications/{id}", s.handleDismissNotification)
		r.Post("/logout", s.handleLogout)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.attachWorkspace)

		r.With(s.requireShell).Get("/app", s.handleAppRoot)
		r.With(s.requireShell).Get("/app/", s.handleAppRoot)
		r.Route("/app/{orgID}", s.registerWorkspaceRoutes)

		// The public pages answer with or without a trailing slash, as the
		// edge and the guards treat both forms as the same page.
		for _, path := range []string{routing.QuickSetupPath, routing.QuickSetupPath + "/"} {
			r.With(s.requireShell).Get(path, s.handleQuickSetupForm)
			r.Post(path, s.handleQuickSetupCreate)
		}
		for _, path := range []string{routing.InvitationsPath, routing.InvitationsPath + "/"} {
			r.Get(path, s.handleInvitation)
			r.Post(path, s.handleAcceptInvitation)
		}
	})
}

func (s *Server) registerWorkspaceRoutes(r chi.Router) {
	r.Use(s.requireShell)
	r.Get("/", s.handleDashboard)

	customers := s.api.Customers()
	r.Get("/clients", listRecords(s, "clients", customers))
	r.Post("/clients", createRecord(s, customers, func(orgID string, in *api.CustomerInput) { in.OrganizationID = orgID }))
	r.Get("/clients/{id}", getRecord(s, "client", customers))

	items := s.api.Items()
	r.Get("/items", listRecords(s, "items", items))
	r.Post("/items", createRecord(s, items, func(orgID string, in *api.ItemInput) { in.OrganizationID = orgID }))
	r.Get("/items/{id}", getRecord(s, "item", items))

	taxes := s.api.Taxes()
	r.Get("/taxes", listRecords(s, "taxes", taxes))
	r.Post("/taxes", createRecord(s, taxes, func(orgID string, in *api.TaxInput) { in.OrganizationID = orgID }))
	r.Get("/taxes/{id}", getRecord(s, "tax", taxes))

	invoices := s.api.Invoices()
	r.Get("/invoices", listRecords(s, "invoices", invoices))
	r.Post("/invoices", createRecord(s, invoices, nil))
	r.Get("/invoices/{id}", getRecord(s, "invoice", invoices))
	r.Get("/invoices/{id}/pdf", s.handleInvoicePDF)
	r.Post("/invoices/{id}/send", s.handleSendInvoice)

	r.Get("/settings", s.handleSettings)
	r.Post("/settings/mailing", s.handleSaveMailing)
	r.Post("/settings/mailing/test-connection", s.handleTestMailingConnection)
	r.Post("/settings/mailing/test-email", s.handleSendTestEmail)

	invitations := s.api.Invitations()
	r.Get("/invitations", listRecords(s, "invitations", invitations))
	r.Post("/invitations", createRecord(s, invitations, nil))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status = "degraded"
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// Handler exposes the router, for tests and for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured port until ctx ends, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) origin() string {
	origin := strings.TrimSuffix(s.cfg.PublicURL, "/")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return origin
}

// loginURL sends the browser to the login service with the current request
// as return target.
func (s *Server) loginURL(r *http.Request) string {
	return routing.LoginURL(s.cfg.AuthClientURL, s.cfg.PublicURL+r.URL.RequestURI())
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

type noopObserver struct{}

func (noopObserver) ObserveDecision(string, routing.Decision) {}
func (noopObserver) ObserveResolution(string)                 {}
func (noopObserver) ObserveSessionCheck(bool)                 {}
