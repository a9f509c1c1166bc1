package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cufy/campusmatch/internal/app"
	"github.com/cufy/campusmatch/internal/config"
	"github.com/cufy/campusmatch/internal/utils/httputil"
)

// Registrar is the common interface all HTTP services implement to attach
// their routes under /api.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter builds the chi router with the shared middleware stack and
// mounts every registrar under /api.
func NewRouter(appCtx *app.AppContext, registrars ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(appCtx))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	if len(appCtx.Config.HTTP.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   appCtx.Config.HTTP.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-Email", "X-Admin-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", healthHandler(appCtx))

	r.Route("/api", func(api chi.Router) {
		for _, reg := range registrars {
			reg.Register(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// RequireAdmin guards the admin console routes with a shared key. An empty
// configured key disables the console rather than leaving it open.
func RequireAdmin(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" || r.Header.Get("X-Admin-Key") != adminKey {
				httputil.WriteError(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(appCtx *app.AppContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			appCtx.Logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

func healthHandler(appCtx *app.AppContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]any{}
		healthy := true

		sqlDB, err := appCtx.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			components["postgres"] = map[string]any{"ok": false, "error": err.Error()}
			healthy = false
		} else {
			components["postgres"] = map[string]any{"ok": true}
		}

		if err := appCtx.RedisCache.Ping(r.Context()); err != nil {
			components["redis"] = map[string]any{"ok": false, "error": err.Error()}
			healthy = false
		} else {
			components["redis"] = map[string]any{"ok": true}
		}

		status := "ok"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{
			"status":     status,
			"checked_at": time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	}
}

// StartHTTPServer boots the HTTP server and blocks until ctx is canceled,
// then drains in-flight requests.
func StartHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
