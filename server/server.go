package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitpair/coachlink/config"
	"github.com/fitpair/coachlink/db"
	"github.com/fitpair/coachlink/realtime"
	"github.com/fitpair/coachlink/services"
)

type Server struct {
	Config                 *config.Config
	UserRepository         db.UserRepository
	ConversationRepository db.ConversationRepository
	ChatService            services.ChatService
	NotificationService    services.NotificationService
	MediaService           services.MediaService
	Hub                    *realtime.Hub
	Presence               *realtime.PresenceRegistry
}

// Start runs the hub and the HTTP server until SIGINT/SIGTERM, then shuts
// both down.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub.Run(ctx)

	r := s.setupRouter()
	port := s.Config.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		log.Printf("server started on port %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("server exited")
}
