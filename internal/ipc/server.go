package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"singalong/internal/acquisition"
	"singalong/internal/api"
	"singalong/internal/catalog"
	"singalong/internal/daemon"
	"singalong/internal/logging"
	"singalong/internal/models"
	"singalong/internal/services"
)

// ServiceName is the RPC receiver name clients call.
const ServiceName = "Singalong"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx, validate: validator.New()}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until Close.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file. Connected clients
// finish their current call first.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	validate *validator.Validate
}

func (s *service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	sort.Strings(parts)
	return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(parts, ", "))
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	// Reply before the socket goes away with the daemon.
	go s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).DTO()
	return nil
}

func (s *service) DownloadValidate(req DownloadValidateRequest, resp *DownloadValidateResponse) error {
	if err := s.check(req); err != nil {
		return err
	}
	meta, err := s.daemon.ValidateDownload(s.ctx, req.URL)
	if err != nil {
		return err
	}
	*resp = api.FromMetadata(meta)
	return nil
}

func (s *service) DownloadAdd(req DownloadAddRequest, resp *DownloadAddResponse) error {
	if err := s.check(req); err != nil {
		return err
	}
	job, err := s.daemon.QueueDownload(s.ctx, acquisition.Request{
		SourceRef:  req.URL,
		Quality:    req.Quality,
		Title:      req.Title,
		Artist:     req.Artist,
		Kind:       req.Kind,
		LyricsText: req.LyricsText,
	})
	if err != nil {
		return err
	}
	resp.Job = api.FromDownloadJob(job)
	s.logger.Info("download queued via IPC",
		logging.String(logging.FieldEventType, "download_queued"),
		logging.String(logging.FieldJobID, job.ID))
	return nil
}

func (s *service) DownloadList(_ DownloadListRequest, resp *DownloadListResponse) error {
	resp.Jobs = api.FromDownloadJobs(s.daemon.Downloads())
	return nil
}

func (s *service) SeparateAdd(req SeparateAddRequest, resp *SeparateAddResponse) error {
	if err := s.check(req); err != nil {
		return err
	}
	job, err := s.daemon.QueueSeparation(s.ctx, req.CatalogID, req.Quality)
	if err != nil {
		return err
	}
	resp.Job = api.FromSeparationJob(job)
	s.logger.Info("separation queued via IPC",
		logging.String(logging.FieldEventType, "separation_queued"),
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCatalogID, job.CatalogID))
	return nil
}

func (s *service) SeparateList(_ SeparateListRequest, resp *SeparateListResponse) error {
	resp.Jobs = api.FromSeparationJobs(s.daemon.Separations())
	return nil
}

func (s *service) LibraryList(_ LibraryListRequest, resp *LibraryListResponse) error {
	entries, err := s.daemon.Library(s.ctx)
	if err != nil {
		return err
	}
	resp.Entries = api.FromEntries(entries)
	return nil
}

func (s *service) LibraryRemove(req LibraryRemoveRequest, resp *LibraryRemoveResponse) error {
	if err := s.check(req); err != nil {
		return err
	}
	if err := s.daemon.RemoveEntry(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) LibraryImport(req LibraryImportRequest, resp *LibraryImportResponse) error {
	if err := s.check(req); err != nil {
		return err
	}
	entry, err := s.daemon.ImportLocal(s.ctx, catalog.LocalRequest{
		SourcePath: req.SourcePath,
		Title:      req.Title,
		Artist:     req.Artist,
		Type:       req.Type,
		LyricsText: req.LyricsText,
	})
	if err != nil {
		return err
	}
	resp.Entry = api.FromEntry(*entry)
	return nil
}

func (s *service) ModelList(_ ModelListRequest, resp *ModelListResponse) error {
	resp.Models = api.FromModelStatuses(s.daemon.Models())
	return nil
}

func (s *service) ModelDownload(req ModelDownloadRequest, resp *ModelDownloadResponse) error {
	if err := s.check(req); err != nil {
		return err
	}
	tier, err := models.ParseTier(req.Tier)
	if err != nil {
		return err
	}
	status, err := s.daemon.DownloadModel(s.ctx, tier)
	if err != nil {
		return err
	}
	resp.Model = api.FromModelStatus(status)
	return nil
}

func (s *service) SettingsShow(_ SettingsShowRequest, resp *SettingsResponse) error {
	*resp = api.FromSettings(s.daemon.Settings())
	return nil
}

func (s *service) SettingsSetQuality(req SettingsSetQualityRequest, resp *SettingsResponse) error {
	if err := s.check(req); err != nil {
		return err
	}
	value, err := s.daemon.SetSeparationQuality(models.Tier(req.Quality))
	if err != nil {
		return err
	}
	*resp = api.FromSettings(value)
	return nil
}
