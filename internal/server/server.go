package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dshills/aicr/internal/github"
	"github.com/dshills/aicr/internal/review"
)

// Reviewer runs the review pipeline on diff text.
type Reviewer interface {
	Review(ctx context.Context, diffText string) (*review.Report, error)
}

// PRClient is the subset of the GitHub client the webhook worker needs.
type PRClient interface {
	GetPRDiff(ctx context.Context, owner, repo string, prNumber int) (string, error)
	PostComment(ctx context.Context, owner, repo string, prNumber int, body string) error
}

// Config holds server settings.
type Config struct {
	Addr          string
	GinMode       string
	WebhookSecret string
	ReviewTimeout time.Duration
	Exclude       []string
	QueueSize     int
	Workers       int
}

// Server wraps the HTTP server and the webhook workers.
type Server struct {
	router   *gin.Engine
	cfg      Config
	reviewer Reviewer
	github   PRClient
	logger   *zap.Logger
	server   *http.Server

	jobs   chan github.PullRequestRef
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server and starts its webhook workers. Webhook deliveries
// are rejected unless gh is non-nil and cfg.WebhookSecret is set.
func New(cfg Config, reviewer Reviewer, gh PRClient, logger *zap.Logger) *Server {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	if cfg.ReviewTimeout <= 0 {
		cfg.ReviewTimeout = 5 * time.Minute
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:   router,
		cfg:      cfg,
		reviewer: reviewer,
		github:   gh,
		logger:   logger,
		jobs:     make(chan github.PullRequestRef, cfg.QueueSize),
		cancel:   cancel,
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.ReviewTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.routes()

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)
	v1 := s.router.Group("/v1")
	v1.POST("/review", s.handleReview)
	v1.POST("/webhooks/github", s.handleGitHubWebhook)
}

// Router returns the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start listens on cfg.Addr until Shutdown is called. Start after Shutdown
// returns nil immediately.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.cfg.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for queued reviews to stop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	err := s.server.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()
	select {
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("stop webhook workers: %w", ctx.Err()))
	case <-done:
		return err
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
