package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server until an interrupt, then shuts down
// gracefully: stop accepting, drain dispatchers, close the database.
func (s *Server) Start() {
	go func() {
		if err := s.E.Start(s.Cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("Server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.E.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}

	s.chatManager.Close()
	if err := s.bus.Close(); err != nil {
		slog.Error("Bus close failed", "error", err)
	}
	s.profiles.Close()
	s.geocoder.Close()
	if err := s.db.Close(ctx); err != nil {
		slog.Error("Database close failed", "error", err)
	}
}
