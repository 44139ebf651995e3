package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ambience-chat/internal/api/http"
	"github.com/GriffinCanCode/ambience-chat/internal/api/middleware"
	"github.com/GriffinCanCode/ambience-chat/internal/chain"
	"github.com/GriffinCanCode/ambience-chat/internal/chat"
	"github.com/GriffinCanCode/ambience-chat/internal/history"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/config"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ambience-chat/internal/notify"
	"github.com/GriffinCanCode/ambience-chat/internal/ratelimit"
	"github.com/GriffinCanCode/ambience-chat/internal/realtime"
	"github.com/GriffinCanCode/ambience-chat/internal/sanitize"
	"github.com/GriffinCanCode/ambience-chat/internal/txn"
	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

// Timeouts of the HTTP listener
const (
	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 10 * time.Second
	CleanupInterval   = time.Minute
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	chat        *chat.Service
	chain       *chain.Client
	realtime    *realtime.Manager
	coordinator *txn.Coordinator
	board       *notify.Board
	limiter     *ratelimit.Limiter
	registry    *prometheus.Registry
	metrics     *monitoring.Metrics
	logger      *logging.Logger
	config      *config.Config
}

// NewServer creates a new server instance. Nothing is dialed until Run.
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	rt := realtime.NewManager(realtime.Config{
		URL:                  cfg.Realtime.URL,
		Origin:               cfg.Realtime.Origin,
		Host:                 cfg.Realtime.Host,
		Path:                 cfg.Realtime.Path,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		ReconnectInterval:    cfg.Realtime.ReconnectInterval,
		HandshakeTimeout:     cfg.Realtime.HandshakeTimeout,
	}, logger).WithMetrics(metrics)

	networks, err := chain.NetworksFromConfig(cfg.Networks)
	if err != nil {
		return nil, err
	}
	chainClient := chain.NewClient(networks, chain.Options{
		PollInterval: cfg.Chain.PollInterval,
		DialTimeout:  cfg.Chain.DialTimeout,
	}, logger).WithMetrics(metrics)

	var wallet *chain.Wallet
	if cfg.Chain.PrivateKey != "" {
		wallet, err = chain.NewWallet(cfg.Chain.PrivateKey)
		if err != nil {
			return nil, err
		}
		logger.Info("Wallet loaded", zap.String("address", chain.FormatAddress(wallet.Address().Hex(), 6, 4)))
	} else {
		logger.Warn("No wallet configured, running read-only")
	}

	board := notify.NewBoard(logger)
	coordinator := txn.NewCoordinator(chainClient, board, logger).WithChain(chainClient).WithMetrics(metrics)
	if wallet != nil {
		coordinator.WithSwitcher(chainClient)
	}

	var hist chat.History
	if cfg.History.URL != "" {
		hc, err := history.New(cfg.History, logger)
		if err != nil {
			return nil, err
		}
		hist = hc.WithMetrics(metrics)
	}

	limiter := ratelimit.New(nil)
	chatService := chat.NewService(chat.Deps{
		Realtime:    rt,
		Rooms:       chain.NewRooms(chainClient, wallet),
		History:     hist,
		Coordinator: coordinator,
		Notifier:    board,
		Limiter:     limiter,
		Validator:   validation.New(),
		Sanitizer:   sanitize.New(cfg.Sanitize.MaxMessageLength),
	}, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.Middleware(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Realtime.Origin)))
	router.Use(middleware.RateLimit(limiter, cfg.RateLimit))

	router.GET("/metrics", gin.WrapH(monitoring.Handler(registry)))
	apihttp.NewHandlers(chatService, coordinator, board, chainClient, logger).Register(router)

	logger.Info("Server initialized successfully",
		zap.Int("networks", len(networks)),
		zap.Bool("history", hist != nil),
	)

	return &Server{
		router:      router,
		chat:        chatService,
		chain:       chainClient,
		realtime:    rt,
		coordinator: coordinator,
		board:       board,
		limiter:     limiter,
		registry:    registry,
		metrics:     metrics,
		logger:      logger,
		config:      cfg,
	}, nil
}

// Handler returns the HTTP handler of the control API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Start connects to the configured chain and the realtime server. Failures
// are logged; the API keeps serving and reports them through /health.
func (s *Server) Start(ctx context.Context) {
	if err := s.chain.SwitchChain(ctx, s.config.Chain.ChainID); err != nil {
		s.logger.Warn("Failed to connect to chain", zap.Uint64("chain_id", s.config.Chain.ChainID), zap.Error(err))
	}
	if err := s.chat.Start(ctx); err != nil {
		s.logger.Warn("Realtime connection not established", zap.Error(err))
	}
}

// Run starts the components and serves HTTP until ctx is done
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)
	go middleware.RunCleanup(ctx, s.limiter, CleanupInterval)

	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.chat.Stop()
	s.chain.Close()
	s.logger.Info("Closed chain connection")

	s.logger.Sync()
	return nil
}
