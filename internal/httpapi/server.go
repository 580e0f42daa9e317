// Package httpapi serves the operational HTTP endpoints: health, statistics and
// Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgard/rosterbot/internal/broadcast"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Server is the ops HTTP server.
type Server struct {
	store        database.Store
	settings     *broadcast.Settings
	targetChatID int64
	topChats     int
	logger       *slog.Logger
	router       *gin.Engine
	srv          *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, store database.Store, settings *broadcast.Settings,
	targetChatID int64, topChats int, logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:        store,
		settings:     settings,
		targetChatID: targetChatID,
		topChats:     topChats,
		logger:       logger.With("component", "http"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	r.GET("/healthz", s.health)
	r.GET("/stats", s.stats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = r
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status())
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.WarnContext(c.Request.Context(), "Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.store.GetStatistics(c.Request.Context(), s.targetChatID, s.topChats)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}

	snap := s.settings.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"statistics": stats,
		"broadcast": gin.H{
			"running":         s.settings.Running(),
			"target_members":  snap.TargetMembers,
			"target_chat":     snap.TargetChat,
			"network":         snap.Network,
			"mode":            snap.Mode,
			"available_chats": len(snap.Available),
			"selected_chats":  len(snap.Selected),
		},
	})
}
