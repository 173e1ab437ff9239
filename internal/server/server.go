// Package server exposes review sessions over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/crm-import/internal/importer"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/store"
)

// Options configures the API.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	// UploadsPerMin limits uploads per client address; 0 disables the limit.
	UploadsPerMin int
	// SeedCities is the gazetteer used while the store has no cities.
	SeedCities []model.City
}

// Server serves the review API. A nil store validates against an empty
// reference snapshot and commits without persisting.
type Server struct {
	store    store.Store
	importer *importer.Importer
	sessions *Manager
	opts     Options
}

// New creates a Server.
func New(st store.Store, im *importer.Importer, sessions *Manager, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Server{store: st, importer: im, sessions: sessions, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/entities", s.handleEntities)
		api.Get("/cities", s.handleListCities)
		api.Get("/imports", s.handleListImports)

		upload := api.With()
		if s.opts.UploadsPerMin > 0 {
			lim := newIPLimiter(rate.Every(time.Minute/time.Duration(s.opts.UploadsPerMin)), s.opts.UploadsPerMin)
			upload = api.With(lim.middleware)
		}
		upload.Post("/imports", s.handleUpload)

		api.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Get("/", s.handleSummary)
			sr.Delete("/", s.handleDiscard)
			sr.Get("/rows", s.handleRows)
			sr.Get("/rows/{row}", s.handleRow)
			sr.Post("/rows/{row}/toggle", s.handleToggle)
			sr.Put("/rows/{row}/approval", s.handleSetApproval)
			sr.Post("/select-all", s.handleSelectAll)
			sr.Post("/deselect-all", s.handleDeselectAll)
			sr.Get("/cities", s.handlePendingCities)
			sr.Post("/cities", s.handleAddCity)
			sr.Post("/cities/resolve", s.handleResolveCity)
			sr.Post("/commit", s.handleCommit)
			sr.Get("/report", s.handleReport)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sessions.Run(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

// Addr formats a listen address for port.
func Addr(port int) string {
	return fmt.Sprintf(":%d", port)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
