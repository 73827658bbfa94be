package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/abilityms/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/ability"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/host"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/launcher"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/permission"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/remote"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/tracing"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	catalog  *bundle.Catalog
	spawner  *host.Spawner
	manager  *ability.Manager
	loop     *ability.Loop
	launcher *launcher.Ability
	remote   *remote.Client
	hub      *ws.Hub

	router *gin.Engine
	http   *http.Server

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing ability manager",
		zap.String("port", cfg.Server.Port),
		zap.Int("capacity", cfg.Ability.ListCapacity),
		zap.String("launcher", cfg.Ability.LauncherBundle),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("abilityms", logger.Named("trace"))

	catalog := bundle.NewCatalog(logger.Named("bundle"))
	if cfg.Bundle.AppsDir != "" {
		seeder := bundle.NewSeeder(catalog, cfg.Bundle.AppsDir, cfg.Bundle.ManifestGlob, logger.Named("bundle"))
		if _, _, err := seeder.Seed(context.Background()); err != nil {
			logger.Warn("Failed to seed bundles", zap.Error(err))
		}
	}

	checker, err := permission.NewChecker(permission.Config{
		Deny:     cfg.Permission.Deny,
		StartRPS: cfg.Permission.StartRPS,
		Burst:    cfg.Permission.StartBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("permission checker: %w", err)
	}

	devices, err := cfg.Remote.DeviceMap()
	if err != nil {
		return nil, err
	}

	spawner := host.NewSpawner(cfg.Worker.MaxTasks, nil, logger.Named("host")).WithMetrics(metrics)
	hub := ws.NewHub(logger.Named("ws"), metrics)

	manager := ability.NewManager(ability.Config{
		Capacity:       cfg.Ability.ListCapacity,
		LauncherBundle: cfg.Ability.LauncherBundle,
		LauncherSuffix: cfg.Ability.LauncherSuffix,
		QueueLength:    cfg.Worker.QueueLength,
		TaskPriority:   cfg.Worker.TaskPriority,
		StackSize:      cfg.Worker.StackSize,
		PostRetries:    cfg.Worker.PostRetries,
	}, spawner, logger.Named("ability")).
		WithMetrics(metrics).
		WithBundles(catalog).
		WithChecker(checker).
		WithEvents(hub)

	var remoteClient *remote.Client
	if len(devices) > 0 {
		remoteClient = remote.NewClient(remote.Config{
			Devices: devices,
			Timeout: cfg.Remote.Timeout,
			Retries: cfg.Remote.Retries,
		}, logger.Named("remote")).WithTracer(tracer)
		manager.WithRemote(remoteClient)
		logger.Info("Remote devices configured", zap.Int("devices", len(devices)))
	}

	loop := ability.NewLoop(manager, logger.Named("loop"))
	spawner.SetAcknowledger(loop)

	home := launcher.New(loop, logger.Named("launcher"))
	manager.SetNativeAbility(home)

	s := &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		catalog:  catalog,
		spawner:  spawner,
		manager:  manager,
		loop:     loop,
		launcher: home,
		remote:   remoteClient,
		hub:      hub,
	}
	s.router = s.buildRouter()

	logger.Info("Server initialized successfully")
	return s, nil
}

func newLogger(cfg config.LogConfig) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Level,
		Development: cfg.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(s.logger.Named("http")))
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
			Burst:             s.config.RateLimit.Burst,
			Exempt:            []string{apihttp.AckRoute, "/metrics", "/health"},
		}))
	}

	var breakers apihttp.BreakerReporter
	if s.remote != nil {
		breakers = s.remote
	}
	handlers := apihttp.NewHandlers(s.loop, s.catalog, s.spawner, breakers, s.logger.Named("api"))
	handlers.Register(router)

	router.GET("/events", s.hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return router
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the controller loop and brings up the home unit
func (s *Server) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		if err := s.loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Ability loop exited", zap.Error(err))
		}
	}()

	if err := s.loop.StartLauncher(ctx); err != nil {
		return fmt.Errorf("start launcher: %w", err)
	}
	s.logger.Info("Launcher started", zap.String("bundle", s.config.Ability.LauncherBundle))
	return nil
}

// Run starts the controller and serves HTTP until Close
func (s *Server) Run() error {
	if err := s.Start(context.Background()); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server. Every live ability is torn
// down before the loop and the worker host stop.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if s.http != nil {
			if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
				s.logger.Error("HTTP shutdown failed", zap.Error(shutdownErr))
				err = fmt.Errorf("http shutdown: %w", shutdownErr)
			}
		}
		s.hub.Close()

		if s.cancel != nil {
			if doErr := s.loop.Do(ctx, func(m *ability.Manager) error {
				m.Shutdown()
				return nil
			}); doErr != nil {
				s.logger.Warn("Controller shutdown incomplete", zap.Error(doErr))
			}
			s.cancel()
			<-s.loop.Done()
		}

		s.spawner.Close()
		s.tracer.Close()
		_ = s.logger.Sync()
	})
	return err
}
