package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures NewRouter.
type Options struct {
	API            *APIHandler
	AllowedOrigins []string
	// RegisterRateLimit is the number of registrations allowed per client
	// IP per minute; 0 disables the limit.
	RegisterRateLimit int
	// StaticDir, when set, is served at / with index.html as the fallback
	// for client-side routes.
	StaticDir string
}

// NewRouter builds the HTTP surface of the service.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(middleware.Recoverer) // recover from panics, return 500
	r.Use(middleware.RequestID) // attach request IDs
	r.Use(middleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)
	r.Use(Metrics)
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", opts.API.Ping)
		r.Get("/tables", opts.API.ListTables)
		r.With(rateLimit(opts.RegisterRateLimit)...).Post("/register", opts.API.Register)
		r.Post("/tg-webhook", opts.API.TelegramWebhook)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})

	if opts.StaticDir != "" {
		r.Handle("/*", spaHandler(opts.StaticDir))
	}

	return r
}

func rateLimit(perMinute int) []func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{httprate.LimitByIP(perMinute, time.Minute)}
}

// spaHandler serves files from dir and falls back to index.html for paths
// that do not exist.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
