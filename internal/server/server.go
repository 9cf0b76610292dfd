// Package server exposes the watch-mode status endpoint: health plus the
// last completed run report.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/celltrace-lab/celltrace/internal/pipeline"
)

// ReportStore keeps the most recent run report for serving. Safe for
// concurrent use: the watcher publishes, HTTP handlers read.
type ReportStore struct {
	mu   sync.RWMutex
	last *pipeline.Report
}

// Publish replaces the stored report.
func (s *ReportStore) Publish(r *pipeline.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
}

// Last returns the most recent report, or nil before the first run finishes.
func (s *ReportStore) Last() *pipeline.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

type Server struct {
	Engine *gin.Engine
	Addr   string
	store  *ReportStore
}

func New(addr string, store *ReportStore, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	s := &Server{
		Engine: r,
		Addr:   addr,
		store:  store,
	}

	r.GET("/health", s.healthHandler)
	r.GET("/report", s.reportHandler)

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	status := gin.H{"status": "healthy"}
	if last := s.store.Last(); last != nil {
		status["last_run_id"] = last.RunID
		status["last_run_finished_at"] = last.FinishedAt
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) reportHandler(c *gin.Context) {
	last := s.store.Last()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed run yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[Server] Status server listening", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
