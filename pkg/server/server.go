package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/rs/cors"

	"github.com/raterudder/solarsavings/pkg/ingest"
	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/quote"
	"github.com/raterudder/solarsavings/pkg/storage"
	"github.com/raterudder/solarsavings/pkg/types"
)

// tokenVerifier validates an ID token and returns the email it was issued to.
type tokenVerifier func(ctx context.Context, rawIDToken string) (string, error)

// Server handles the HTTP API for interval analysis and quotes.
type Server struct {
	calculator *quote.Calculator
	storage    storage.Database

	listenAddr string
	httpServer *http.Server
	serverName string

	adminEmails   []string
	oidcVerifiers map[string]tokenVerifier
	bypassAuth    bool
	corsOrigins   []string

	maxUploadBytes int64
	maxReadings    int
	location       *time.Location

	now   func() time.Time
	newID func() string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(c *quote.Calculator, s storage.Database) *Server {
	srv := &Server{
		calculator: c,
		storage:    s,
		serverName: "solarsavings",
		location:   time.UTC,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to list quotes")
	oidcAudiences := map[string]string{}
	lflag.JSON(&oidcAudiences, "oidc-audiences", oidcAudiences, "JSON map of provider (google/apple) to audience/client ID")
	devMode := lflag.Bool("dev-mode", false, "Disable admin authentication for local development")
	corsOrigins := lflag.String("cors-origins", "", "comma-delimited list of origins allowed to call the API from a browser")
	maxUploadBytes := int64(32 << 20)
	lflag.JSON(&maxUploadBytes, "max-upload-bytes", maxUploadBytes, "Largest request body accepted, in bytes")
	maxReadings := 200000
	lflag.JSON(&maxReadings, "max-readings", maxReadings, "Most raw interval readings accepted in one export (0 for unlimited)")
	timezone := lflag.String("interval-timezone", "UTC", "Time zone for interval timestamps that carry no offset")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.adminEmails = splitList(*adminEmails)
		srv.corsOrigins = splitList(*corsOrigins)
		srv.maxUploadBytes = maxUploadBytes
		srv.maxReadings = maxReadings

		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			panic(fmt.Sprintf("invalid interval-timezone %q: %v", *timezone, err))
		}
		srv.location = loc

		if len(oidcAudiences) > 0 {
			srv.oidcVerifiers = make(map[string]tokenVerifier, len(oidcAudiences))
			for n, a := range oidcAudiences {
				var issuer string
				switch n {
				case "google":
					issuer = "https://accounts.google.com"
				case "apple":
					issuer = "https://appleid.apple.com"
				default:
					log.Ctx(context.Background()).Error("unsupported oidc audience client", slog.String("client", n))
					os.Exit(1)
				}
				provider, err := oidc.NewProvider(context.Background(), issuer)
				if err != nil {
					log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("client", n), slog.Any("error", err))
					os.Exit(1)
				}
				srv.oidcVerifiers[n] = emailVerifier(provider.Verifier(&oidc.Config{ClientID: a}))
			}
		}
		srv.bypassAuth = *devMode
		if !srv.bypassAuth && len(srv.adminEmails) > 0 && len(srv.oidcVerifiers) == 0 {
			log.Ctx(context.Background()).Warn("admin-emails is set without oidc-audiences, admin endpoints are unreachable")
		}
	})

	return srv
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/intervals/analyze", s.handleAnalyzeIntervals)
	apiMux.HandleFunc("POST /api/quotes/demand", s.handleDemandQuote)
	apiMux.HandleFunc("POST /api/quotes/residential", s.handleResidentialQuote)
	apiMux.HandleFunc("GET /api/quotes/{id}", s.handleGetQuote)
	apiMux.HandleFunc("GET /api/schedule", s.handleGetSchedule)
	apiMux.Handle("GET /api/admin/quotes", s.adminMiddleware(http.HandlerFunc(s.handleListQuotes)))

	mux := http.NewServeMux()
	mux.Handle("/api/", s.requestLogMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)

	return s.revisionMiddleware(gziphandler.GzipHandler(s.corsMiddleware(s.securityHeadersMiddleware(mux))))
}

// corsMiddleware allows browsers on the configured origins to call the API.
// With no origins configured cross-origin requests get no CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	if len(s.corsOrigins) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         3600,
	}).Handler(next)
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// writeJSON encodes v before writing anything so an encoding failure is
// still reported as a 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
		writeJSONError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(buf.Bytes()); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// writeError maps engine and storage errors onto status codes. Input
// problems are the caller's fault and their message is returned as is.
func writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	var (
		formatErr *types.FormatError
		validErr  *types.ValidationError
		configErr *types.ConfigurationError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxErr):
		writeJSONError(w, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
	case errors.As(err, &formatErr), errors.As(err, &validErr), errors.As(err, &configErr):
		log.Ctx(ctx).InfoContext(ctx, msg, slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrQuoteNotFound):
		writeJSONError(w, "quote not found", http.StatusNotFound)
	default:
		log.Ctx(ctx).ErrorContext(ctx, msg, slog.Any("error", err))
		writeJSONError(w, msg, http.StatusInternalServerError)
	}
}

func (s *Server) ingestOptions(r *http.Request) (ingest.Options, error) {
	opts := ingest.Options{
		Location:    s.location,
		MaxReadings: s.maxReadings,
	}
	if tz := r.URL.Query().Get("timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return opts, types.Invalid("timezone", "unknown time zone %q", tz)
		}
		opts.Location = loc
	}
	return opts, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.WithAttrs(r.Context(), slog.String("reqPath", r.URL.Path), slog.String("reqMethod", r.Method))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
