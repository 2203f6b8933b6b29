package server

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alenastream/alenastream/internal/auth"
	"github.com/alenastream/alenastream/internal/database"
	"github.com/alenastream/alenastream/internal/geoip"
	"github.com/alenastream/alenastream/internal/ratelimit"
	"github.com/alenastream/alenastream/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB               database.DBTX
	Pinger           Pinger
	Storage          video.ObjectStorage
	PublicFS         fs.FS
	JWTSecret        string
	BaseURL          string
	GrantTTL         time.Duration
	S3PublicEndpoint string
	GeoResolver      *geoip.Resolver
}

type Server struct {
	router       chi.Router
	pinger       Pinger
	verifier     *auth.Verifier
	authHandler  *auth.Handler
	videoHandler *video.Handler
	publicFS     fs.FS
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.S3PublicEndpoint,
	}))

	s := &Server{router: r, pinger: cfg.Pinger, publicFS: cfg.PublicFS}

	if cfg.DB != nil {
		jwtSecret := cfg.JWTSecret
		if jwtSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		secureCookies := strings.HasPrefix(baseURL, "https://")
		s.verifier = auth.NewVerifier(jwtSecret, secureCookies)
		s.authHandler = auth.NewHandler(cfg.DB, jwtSecret, secureCookies)
		s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage, baseURL, cfg.GrantTTL)
		if cfg.GeoResolver != nil {
			s.videoHandler.SetGeoResolver(cfg.GeoResolver)
		}
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.authHandler != nil {
		authLimiter := ratelimit.NewLimiter(0.5, 8)
		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
			r.Get("/me", s.authHandler.Me)
			r.Post("/logout", s.authHandler.Logout)
		})
	}

	if s.videoHandler != nil {
		playbackLimiter := ratelimit.NewLimiter(5, 20)
		s.router.Route("/api/videos", func(r chi.Router) {
			// Playback surface: consumed by the embed player without a session.
			r.Group(func(r chi.Router) {
				r.Use(playbackLimiter.Middleware)
				r.Get("/by-token/{publicToken}", s.videoHandler.ByToken)
				r.Get("/public-signed/{embedToken}", s.videoHandler.PublicSigned)
				r.Post("/{id}/view", s.videoHandler.RegisterView)
			})
			// Management surface: gated by the session verifier.
			r.Group(func(r chi.Router) {
				r.Use(s.verifier.Middleware)
				r.Get("/", s.videoHandler.List)
				r.Post("/", s.videoHandler.Create)
				r.Delete("/{id}", s.videoHandler.Delete)
			})
		})
		s.router.With(s.verifier.Middleware).Get("/api/stats/summary", s.videoHandler.StatsSummary)
		s.router.Get("/e/{token}", s.videoHandler.EmbedPage)
	}

	if s.publicFS != nil {
		// Pages and assets: the verifier's allow-list admits the public
		// surfaces; anything else redirects to the entry point without a
		// session.
		var files http.Handler = newPublicFileServer(s.publicFS)
		if s.verifier != nil {
			files = s.verifier.Middleware(files)
		}
		s.router.NotFound(files.ServeHTTP)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
