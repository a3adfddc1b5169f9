package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"singalong/internal/api"
	"singalong/internal/config"
	"singalong/internal/logging"
)

const apiShutdownTimeout = 5 * time.Second

type apiServer struct {
	bind   string
	logger *slog.Logger
	server *api.Server

	listener net.Listener
	cancel   context.CancelFunc
	served   chan struct{}
}

// apiService adapts the daemon to the HTTP surface.
type apiService struct {
	*Daemon
}

func (s apiService) Status(ctx context.Context) api.DaemonStatus {
	return s.Daemon.Status(ctx).DTO()
}

// DTO converts the status to its wire form.
func (s Status) DTO() api.DaemonStatus {
	return api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		LockFilePath: s.LockFilePath,
		DataDir:      s.DataDir,
		CatalogPath:  s.CatalogPath,
		Downloads:    api.SummarizeDownloads(s.Downloads),
		Separations:  api.SummarizeSeparations(s.Separations),
		Models:       api.FromModelStatuses(s.Models),
		Dependencies: s.Dependencies,
		Checks:       s.Checks,
	}
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		logger: logger,
		server: api.New(apiService{d}, api.Options{Token: cfg.Paths.APIToken, Logger: logger}),
	}
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	serveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.served = make(chan struct{})
	s.server.Attach()
	go func() {
		defer close(s.served)
		if err := s.server.Serve(serveCtx, listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	if s == nil || s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log().Warn("api server shutdown incomplete", logging.Error(err))
	}
	_ = s.listener.Close()
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.served:
	case <-shutdownCtx.Done():
	}
	s.listener = nil
}

func (s *apiServer) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
