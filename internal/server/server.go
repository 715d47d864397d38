// Package server exposes the block backend over HTTP: upload endpoints
// compatible with the uploader client, stored file serving, block CRUD and a
// websocket event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"inkwell/internal/events"
	"inkwell/internal/fetch"
	"inkwell/internal/filestore"
	"inkwell/internal/host/blockstore"
	"inkwell/internal/logging"
	"inkwell/internal/observability"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Config carries the HTTP-facing settings.
type Config struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	Debug          bool          `json:"debug"`
	EnableCORS     bool          `json:"enable_cors"`
	AllowedOrigins []string      `json:"allowed_origins"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`

	// MaxUploadBytes caps a single upload request body.
	MaxUploadBytes int64 `json:"max_upload_bytes"`

	// AcceptTypes is the comma separated accept list for direct file
	// uploads, with type/* wildcards.
	AcceptTypes string `json:"accept_types"`
}

// DefaultConfig returns the local-development settings.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		EnableCORS:     true,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxUploadBytes: 16 << 20,
		AcceptTypes:    "image/*",
	}
}

// Deps bundles the services the server drives. Store and Files are required;
// the rest degrade to no-ops when nil.
type Deps struct {
	Store   *blockstore.Store
	Files   *filestore.Store
	Fetcher *fetch.Service
	Metrics *observability.MetricsCollector
	Sink    events.Sink
	Logger  logging.Logger
}

// Server is the HTTP facade over the block backend.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	httpSrv *http.Server

	store   *blockstore.Store
	files   *filestore.Store
	fetcher *fetch.Service
	metrics *observability.MetricsCollector
	sink    events.Sink
	hub     *Hub
	logger  logging.Logger

	startTime time.Time
}

// New assembles the server and its routes.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: block store is required")
	}
	if deps.Files == nil {
		return nil, fmt.Errorf("server: file store is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.AcceptTypes == "" {
		cfg.AcceptTypes = DefaultConfig().AcceptTypes
	}

	logger := logging.OrNop(deps.Logger)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		if len(cfg.AllowedOrigins) > 0 {
			corsConfig.AllowOrigins = cfg.AllowedOrigins
		} else {
			corsConfig.AllowAllOrigins = true
		}
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	hub := NewHub(logger)

	// The hub always joins the sink fanout so websocket subscribers see the
	// same events the caller's sinks do.
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		store:     deps.Store,
		files:     deps.Files,
		fetcher:   deps.Fetcher,
		metrics:   deps.Metrics,
		sink:      events.Fanout(deps.Sink, hub),
		hub:       hub,
		logger:    logger,
		startTime: time.Now(),
	}

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)

	uploads := api.Group("/upload")
	uploads.Use(s.limitBody())
	{
		uploads.POST("/file", s.handleUploadFile)
		uploads.POST("/url", s.handleUploadURL)
	}

	api.GET("/files/:name", s.handleGetFile)

	blocks := api.Group("/blocks")
	{
		blocks.POST("", s.handleSaveBlock)
		blocks.GET("", s.handleListBlocks)
		blocks.GET("/:id", s.handleGetBlock)
		blocks.DELETE("/:id", s.handleDeleteBlock)
		blocks.PUT("/:id/stretched", s.handleSetStretched)
		blocks.GET("/:id/stretched", s.handleGetStretched)
	}

	api.GET("/events", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// limitBody caps request bodies so an oversized upload fails cleanly.
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
		c.Next()
	}
}

// Hub exposes the event hub so callers can fan tool events into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and disconnects event subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
