package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
)

const (
	readHeaderTimeout = 2 * time.Second
	maxHeaderBytes    = 64 << 10
)

type Server struct {
	httpServer *http.Server
	logger     logger.Logger
	ready      chan struct{}
	addr       net.Addr
}

func NewServer(handler http.Handler, cfg *cfg.HTTPConfig, logger logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Run слушает порт и обслуживает запросы до Stop. После Stop возвращает http.ErrServerClosed.
func (s *Server) Run() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.addr = lis.Addr()
	close(s.ready)
	s.logger.Infof("HTTP server listening on %s", s.addr)

	return s.httpServer.Serve(lis)
}

// Addr ждёт, пока Run откроет порт, и возвращает фактический адрес.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.addr
}

// Stop дожидается завершения активных запросов; по истечении ctx рвёт соединения.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
		s.logger.Warnf("HTTP server forced to stop: %v", err)
		return err
	}

	s.logger.Infof("HTTP server stopped gracefully")
	return nil
}
