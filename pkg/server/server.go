// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package server is the HTTP face of the archive: catalog listing, asset
// delivery, thumbnails, detector control and the change feed.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/TurbineOne/detection-archive/pkg/catalog"
	"github.com/TurbineOne/detection-archive/pkg/detector"
)

const (
	// AssetsPath and ThumbnailsPath prefix the URLs handed out in catalog entries.
	AssetsPath     = "/assets"
	ThumbnailsPath = "/thumbnails"

	lAddress = "address"
	lID      = "id"
	lReqID   = "req_id"
)

// Config controls the HTTP listener.
type Config struct { //nolint:govet // Don't care about alignment.
	Address            string        `yaml:"address" json:"address" env:"ADDRESS" validate:"required,hostname_port" doc:"Listen address"`
	AllowedOrigins     []string      `yaml:"allowed_origins" json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:"," doc:"CORS and WebSocket origins, * for any"`
	DetectionRateLimit int           `yaml:"detection_rate_limit" json:"detection_rate_limit" env:"DETECTION_RATE_LIMIT" validate:"min=1" doc:"Detection control requests per minute per client"`
	ReadHeaderTimeout  time.Duration `yaml:"read_header_timeout" json:"read_header_timeout" env:"READ_HEADER_TIMEOUT" validate:"gt=0" doc:"Time allowed to read request headers"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0" doc:"Grace period for in-flight requests at shutdown"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Address:            ":8080",
		AllowedOrigins:     []string{"*"},
		DetectionRateLimit: 30,               //nolint:mnd // Default.
		ReadHeaderTimeout:  10 * time.Second, //nolint:mnd // Default.
		ShutdownTimeout:    10 * time.Second, //nolint:mnd // Default.
	}
}

//go:generate mockgen -destination=mocks/server_mock.go -package=mocks -source=server.go

// Catalog produces listings and can be told to forget a cached one.
type Catalog interface {
	List(ctx context.Context) ([]catalog.Entry, error)
	Invalidate()
}

// Assets resolves ids and serves their bytes.
type Assets interface {
	Resolve(id string) (string, error)
	ServeAsset(w http.ResponseWriter, r *http.Request, id string) error
}

// Thumbnailer renders video previews.
type Thumbnailer interface {
	Thumbnail(path string, modTime time.Time, size int64) ([]byte, error)
}

// Detectors runs detector processes per camera.
type Detectors interface {
	Start(cameraID, source string) (detector.Info, error)
	Stop(cameraID string) error
	List() []detector.Info
}

// Deps are the collaborators behind the routes. Thumbnails and Events may
// be nil, which turns their routes off.
type Deps struct {
	Catalog    Catalog
	Assets     Assets
	Thumbnails Thumbnailer
	Detectors  Detectors
	Events     http.Handler
}

// Server routes HTTP requests to the archive components.
type Server struct {
	c       Config
	deps    Deps
	handler http.Handler
	log     zerolog.Logger
}

// New builds the router. Serve starts listening.
func New(c *Config, deps Deps, logger *zerolog.Logger) *Server {
	s := &Server{
		c:    *c,
		deps: deps,
		log:  logger.With().Str("pkg", "server").Logger(),
	}

	s.handler = s.routes()

	return s
}

// URLs are the prefixes catalog views link to.
func URLs() catalog.URLs {
	return catalog.URLs{Assets: AssetsPath, Thumbnails: ThumbnailsPath}
}

// Handler is the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(requestIDLogger)
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.c.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Range", "If-None-Match", "Content-Type"},
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length", "ETag"},
		MaxAge:         300, //nolint:mnd // Seconds.
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &routeNotFoundError{})
	})

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/catalog", s.listCatalog)
	r.Post("/catalog/refresh", s.refreshCatalog)

	r.Get(AssetsPath+"/{id}", s.serveAsset)
	r.Head(AssetsPath+"/{id}", s.serveAsset)

	if s.deps.Thumbnails != nil {
		r.Get(ThumbnailsPath+"/{id}", s.serveThumbnail)
	}

	r.Route("/detection", func(r chi.Router) {
		r.Use(httprate.Limit(s.c.DetectionRateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, r, &rateLimitedError{})
			})))

		r.Get("/", s.listDetectors)
		r.Post("/start", s.startDetector)
		r.Post("/stop", s.stopDetector)
	})

	if s.deps.Events != nil {
		r.Handle("/events", s.deps.Events)
	}

	return r
}

// requestIDLogger tags the request logger with chi's request id.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str(lReqID, id)
			})
		}

		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	event := hlog.FromRequest(r).Debug()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Warn()
	}

	event.Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// Serve listens until ctx is done, then shuts down gracefully. There is no
// write timeout: long downloads are bounded per chunk by the delivery layer.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.c.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: s.c.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info().Str(lAddress, s.c.Address).Msg("starting http server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err //nolint:wrapcheck // Supervisor logs it.
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.c.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Info().Err(err).Msg("forcing http server close")
		_ = srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err //nolint:wrapcheck // Supervisor logs it.
	}

	s.log.Info().Msg("http server stopped")

	return ctx.Err()
}
