package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/logger"
)

// RouteRegistrar mounts a group of routes.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// NewRouter builds the engine with logging and recovery and mounts every
// registrar under /api/v1.
func NewRouter(log *zap.Logger, registrars ...RouteRegistrar) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	engine := gin.New()
	engine.Use(logger.Recovery(log), logger.GinMiddleware(log))

	v1 := engine.Group("/api/v1")
	for _, r := range registrars {
		r.RegisterRoutes(v1)
	}
	return engine
}

// Server runs the API in the background.
type Server struct {
	http *http.Server
	log  *zap.Logger
	addr net.Addr
}

// Start listens on addr and serves handler until Shutdown.
func Start(addr string, handler http.Handler, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:  log,
		addr: ln.Addr(),
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server stopped", zap.Error(err))
		}
	}()
	log.Info("api listening", zap.String("addr", s.addr.String()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
