// Package server exposes the receipt store and the session store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zombor/eco-receipts/internal/receipt"
	"github.com/zombor/eco-receipts/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Server handles HTTP requests for receipts and sessions
type Server struct {
	receipts *receipt.Store
	sessions *session.Store
	router   *gin.Engine
}

// New creates a Server with its routes registered
func New(receipts *receipt.Store, sessions *session.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors())

	s := &Server{
		receipts: receipts,
		sessions: sessions,
		router:   router,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.GET("/session", s.handleSession)

	protected := api.Group("", s.requireAuth)
	protected.POST("/logout", s.handleLogout)
	protected.GET("/receipts", s.handleListReceipts)
	protected.GET("/receipts/export", s.handleExportReceipts)
	protected.GET("/receipts/:id", s.handleGetReceipt)
	protected.GET("/receipts/:id/file", s.handleGetReceiptFile)
	protected.DELETE("/receipts/:id", s.handleDeleteReceipt)
	protected.POST("/upload", s.handleUploadReceipt)
	protected.GET("/stats", s.handleStats)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
