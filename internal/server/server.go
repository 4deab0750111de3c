package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/adforge/preview/internal/api/http"
	"github.com/adforge/preview/internal/api/middleware"
	"github.com/adforge/preview/internal/api/ws"
	"github.com/adforge/preview/internal/infrastructure/config"
	"github.com/adforge/preview/internal/infrastructure/logging"
	"github.com/adforge/preview/internal/infrastructure/monitoring"
	"github.com/adforge/preview/internal/mraid"
	"github.com/adforge/preview/internal/remote"
	"github.com/adforge/preview/internal/router"
	"github.com/adforge/preview/internal/surface"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	router  *router.Router
	adapter *surface.Adapter
	hub     *ws.Hub
	logger  *logging.Logger
	cfg     *config.Config
}

// New assembles the preview service: the virtual bundle origin, the script
// host, the event stream, and the REST control surface.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefault()
	}
	metrics := monitoring.New()
	hub := ws.NewHub(logger.Logger)

	previewCfg := mraid.Config{
		Width:     cfg.Preview.Width,
		Height:    cfg.Preview.Height,
		Placement: mraid.ParsePlacement(cfg.Preview.Placement),
	}

	rt := router.New(router.Config{
		Width:     previewCfg.Width,
		Height:    previewCfg.Height,
		Placement: previewCfg.Placement,
	}, logger.Logger, metrics)

	adapter := surface.NewAdapter(surface.AdapterOptions{
		Config: previewCfg,
		Sink: func(in mraid.Intent) {
			metrics.IntentsEmitted.WithLabelValues(string(in.Kind)).Inc()
			hub.PublishIntent(in)
		},
		Events:  hub.PublishEvent,
		Console: hub.PublishConsole,
		Resolve: func(ctx context.Context, path string) (string, bool) {
			content, _, ok := rt.Raw(ctx, path)
			return content, ok
		},
		Logger:  logger.Logger,
		Metrics: metrics,
	})

	handlers := api.NewHandlers(cfg.Preview, rt, adapter, remote.NewFetcher(logger.Logger), logger.Logger)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	engine.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	engine.GET("/", handlers.Root)
	engine.GET("/health", handlers.Health)
	engine.GET("/metrics", metrics.Handler())

	// Preview control
	engine.GET("/preview", handlers.Status)
	engine.POST("/preview/creative", middleware.Decompress(), handlers.LoadCreative)
	engine.POST("/preview/bundle", middleware.Decompress(), handlers.LoadBundle)
	engine.POST("/preview/config", handlers.UpdateConfig)
	engine.POST("/preview/resize", handlers.Resize)
	engine.DELETE("/preview", handlers.ClearPreview)
	engine.GET("/preview/remote", handlers.LoadRemote)
	engine.GET("/preview/document", handlers.ExportDocument)

	// Virtual bundle origin
	engine.GET(cfg.Preview.VirtualRoot+"/*path", rt.Handler())

	// Event stream
	engine.GET("/stream", hub.HandleConnection)

	return &Server{
		engine:  engine,
		router:  rt,
		adapter: adapter,
		hub:     hub,
		logger:  logger,
		cfg:     cfg,
	}
}

// Engine exposes the gin engine, primarily for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.logger.Info("starting preview service", zap.String("addr", addr))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests, then releases the stream, the script
// host, and the bundle origin.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.hub.Close()
	s.adapter.Close()
	s.router.Close()
	return err
}
