package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/saifulabidin/fake-pinterest/config"
	"github.com/saifulabidin/fake-pinterest/internal/auth"
	"github.com/saifulabidin/fake-pinterest/internal/db"
	"github.com/saifulabidin/fake-pinterest/internal/handlers"
	"github.com/saifulabidin/fake-pinterest/internal/mq"
	"github.com/saifulabidin/fake-pinterest/internal/services"
	"github.com/saifulabidin/fake-pinterest/internal/storage"
	"github.com/saifulabidin/fake-pinterest/internal/store"
)

const sessionSweepInterval = time.Hour

// Server wraps the HTTP server and its wired dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	sessions   *services.SessionService
	logger     *slog.Logger
	stopSweep  context.CancelFunc
}

// New constructs a Server with all services wired. The database and the
// listen socket are hard requirements; object storage and the message
// broker degrade to disabled features when unreachable at startup.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	imageRepo := store.NewImageRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)

	userService := services.NewUserService(userRepo)
	sessionService := services.NewSessionService(
		sessionRepo,
		userRepo,
		time.Duration(cfg.Auth.SessionTTLHours)*time.Hour,
	)

	objects, localDir := openStorage(ctx, cfg, logger)

	events, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		logger.Warn("message broker unavailable, eventing disabled",
			"backend", cfg.MQ.Backend, "error", err)
		events = nil
	}

	var objectStore services.ObjectStore
	if objects != nil {
		objectStore = objects
	}
	imageService := services.NewImageService(
		imageRepo,
		userService,
		objectStore,
		events,
		logger,
		cfg.Upload.MaxBytes,
	)

	resolver := handlers.NewSessionResolver(sessionService, userService, verifier, cfg.Auth.SessionCookie)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, resolver, verifier, userService, imageService, sessionService)
	})
	router.Route("/api/images", func(r chi.Router) {
		handlers.ImageRouter(r, imageService, resolver)
	})
	if localDir != "" {
		fileServer := http.FileServer(http.Dir(localDir))
		router.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
		sessions:   sessionService,
		logger:     logger,
	}, nil
}

// openStorage builds the configured object storage backend. A nil return
// disables uploads rather than failing startup. The second return is the
// local uploads directory when the local backend is active, for the static
// file server.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage.Storage, string) {
	var (
		backend  storage.ObjectStorage
		localDir string
		err      error
	)

	switch cfg.Storage.Backend {
	case "local", "":
		var client *storage.LocalClient
		client, err = storage.NewLocalClient(cfg.Storage.Local, cfg.PublicBaseURL)
		if err == nil {
			backend = client
			localDir = client.Dir()
		}
	case "minio":
		backend, err = storage.NewMinioClient(cfg.Storage.Minio)
	case "gcs":
		backend, err = storage.NewGCSClient(ctx, cfg.Storage.GCS)
	default:
		logger.Warn("unknown storage backend, uploads disabled", "backend", cfg.Storage.Backend)
		return nil, ""
	}
	if err != nil {
		logger.Warn("object storage unavailable, uploads disabled",
			"backend", cfg.Storage.Backend, "error", err)
		return nil, ""
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		logger.Warn("object storage bucket unavailable, uploads disabled",
			"backend", cfg.Storage.Backend, "error", err)
		return nil, ""
	}

	return storage.NewStorage(backend), localDir
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the session sweeper and the HTTP server.
func (s *Server) Start() error {
	sweepCtx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	go s.sweepSessions(sweepCtx)

	s.logger.Info("listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopSweep != nil {
		s.stopSweep()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// sweepSessions deletes expired sessions on an interval until ctx is done.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.sessions.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("swept expired sessions", "count", removed)
			}
		}
	}
}
