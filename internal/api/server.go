// Package api serves the Switchyard board over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/access"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options configures a Server.
type Options struct {
	DB         *gorm.DB
	Logger     *zap.Logger
	Resolver   access.Resolver
	Authorizer access.Authorizer
	// Now stamps every mutation. Defaults to time.Now.
	Now func() time.Time
}

// Server provides the JSON API handlers.
type Server struct {
	engine  *gin.Engine
	db      *gorm.DB
	logger  *zap.Logger
	resolve access.Resolver
	authz   access.Authorizer
	now     func() time.Time
}

// New constructs a Server with routes and middleware configured.
func New(opts Options) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("api: resolver is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Authorizer == nil {
		opts.Authorizer = access.NewDBAuthorizer(opts.DB)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(opts.Logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(opts.Logger, true))

	s := &Server{
		engine:  router,
		db:      opts.DB,
		logger:  opts.Logger,
		resolve: opts.Resolver,
		authz:   opts.Authorizer,
		now:     opts.Now,
	}
	s.registerRoutes()
	return s, nil
}

// Handler exposes the underlying router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB         *gorm.DB
	Port       int
	Logger     *zap.Logger
	Resolver   access.Resolver
	Authorizer access.Authorizer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	gin.SetMode(gin.ReleaseMode)
	s, err := New(Options{DB: opts.DB, Logger: opts.Logger, Resolver: opts.Resolver, Authorizer: opts.Authorizer})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api listening", zap.Int("port", opts.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)

	authed := api.Group("", s.authenticate)
	{
		projects := authed.Group("/projects")
		projects.GET("", s.handleListProjects)
		projects.POST("", s.handleCreateProject)
		projects.GET("/:id", s.member(s.handleGetProject))
		projects.DELETE("/:id", s.manager(s.handleDeleteProject))
		projects.GET("/:id/settings", s.member(s.handleGetSettings))
		projects.PATCH("/:id/settings", s.manager(s.handleUpdateSettings))
		projects.GET("/:id/lifecycle", s.member(s.handleSnapshot))
		projects.POST("/:id/lifecycle", s.manager(s.handleLifecycle))
		projects.GET("/:id/board", s.member(s.handleBoard))
		projects.GET("/:id/stats", s.member(s.handleStats))
		projects.GET("/:id/columns", s.member(s.handleListColumns))
		projects.POST("/:id/columns", s.manager(s.handleCreateColumn))
		projects.POST("/:id/cards", s.member(s.handleCreateCard))
		projects.GET("/:id/labels", s.member(s.handleListLabels))
		projects.POST("/:id/labels", s.manager(s.handleCreateLabel))
		projects.DELETE("/:id/labels/:labelId", s.manager(s.handleDeleteLabel))
		projects.GET("/:id/priorities", s.member(s.handleListPriorities))
		projects.POST("/:id/priorities", s.manager(s.handleCreatePriority))
		projects.DELETE("/:id/priorities/:priorityId", s.manager(s.handleDeletePriority))
		projects.GET("/:id/members", s.member(s.handleListMembers))
		projects.POST("/:id/members", s.manager(s.handleAddMember))
		projects.GET("/:id/audit", s.member(s.handleAudit))

		authed.PATCH("/columns/:id", s.columnManager(s.handleUpdateColumn))
		authed.DELETE("/columns/:id", s.columnManager(s.handleDeleteColumn))

		authed.GET("/cards/:id", s.cardMember(s.handleGetCard))
		authed.PATCH("/cards/:id", s.cardMember(s.handleUpdateCard))
		authed.DELETE("/cards/:id", s.cardMember(s.handleDeleteCard))
		authed.PATCH("/cards/:id/move", s.cardMember(s.handleMoveCard))
		authed.GET("/cards/:id/timeline", s.cardMember(s.handleTimeline))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
