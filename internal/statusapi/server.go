package statusapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server wraps the loopback HTTP server, adapted from the teacher's
// internal/server.Server: same Gin setup, logger, and graceful-shutdown
// lifecycle, minus the queue/CORS middleware a local single-user tool
// doesn't need.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
}

// NewServer builds the status API bound to addr (expected to be a loopback
// address such as "127.0.0.1:8090"), serving snapshots from registry.
func NewServer(addr string, registry *Registry) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	SetupRoutes(router, registry)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: httpServer, router: router}
}

func (s *Server) Start() error {
	slog.Info("starting status API", "address", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down status API")
	return s.httpServer.Shutdown(ctx)
}
