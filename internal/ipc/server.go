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
	"strings"
	"sync"
	"time"

	"logsite/internal/daemon"
	"logsite/internal/logging"
	"logsite/internal/services"
)

const maxEventWait = 30 * time.Second

// Server exposes the daemon via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
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
	srv := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until Close is called.
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
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrack(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		_ = s.listener.Close()
		s.closeConns()
	}()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// closeConns ends connections still held by clients so ServeCodec returns.
func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// Close stops the server and removes the socket file.
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
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// requestContext scopes a call to the server lifetime and tags it with the
// caller's request id.
func (s *service) requestContext(requestID, site string) context.Context {
	ctx := s.ctx
	if id := strings.TrimSpace(requestID); id != "" {
		ctx = services.WithRequestID(ctx, id)
	}
	if site = strings.TrimSpace(site); site != "" {
		ctx = services.WithSite(ctx, site)
	}
	return ctx
}

func (s *service) ListSites(req ListSitesRequest, resp *ListSitesResponse) error {
	names, err := s.daemon.Backend().ListConfiguredSites(s.requestContext(req.RequestID, ""))
	if err != nil {
		return err
	}
	resp.Names = names
	return nil
}

func (s *service) GetSite(req GetSiteRequest, resp *GetSiteResponse) error {
	cfg, err := s.daemon.Backend().GetSiteConfig(s.requestContext(req.RequestID, req.Name), req.Name)
	if err != nil {
		return err
	}
	resp.Config = cfg
	return nil
}

func (s *service) SaveSite(req SaveSiteRequest, _ *SaveSiteResponse) error {
	return s.daemon.Backend().SaveSiteConfig(s.requestContext(req.RequestID, req.Config.Name), req.Config)
}

func (s *service) DeleteSite(req DeleteSiteRequest, _ *DeleteSiteResponse) error {
	return s.daemon.Backend().DeleteSiteConfig(s.requestContext(req.RequestID, req.Name), req.Name)
}

func (s *service) RemoteListing(req ListingRequest, resp *ListingResponse) error {
	snap, err := s.daemon.Backend().FetchRemoteListing(s.requestContext(req.RequestID, req.Config.Name), req.Config)
	if err != nil {
		return err
	}
	resp.Snapshot = snap
	return nil
}

func (s *service) LocalListing(req ListingRequest, resp *ListingResponse) error {
	snap, err := s.daemon.Backend().FetchLocalListing(s.requestContext(req.RequestID, req.Config.Name), req.Config)
	if err != nil {
		return err
	}
	resp.Snapshot = snap
	return nil
}

func (s *service) RemoteLog(req RemoteLogRequest, resp *LogResponse) error {
	log, err := s.daemon.Backend().FetchRemoteLog(s.requestContext(req.RequestID, req.Snapshot.Name), req.Snapshot, req.Entry)
	if err != nil {
		return err
	}
	resp.Log = log
	return nil
}

func (s *service) LocalLog(req LocalLogRequest, resp *LogResponse) error {
	log, err := s.daemon.Backend().FetchLocalLog(s.requestContext(req.RequestID, req.Site), req.Site, req.File)
	if err != nil {
		return err
	}
	resp.Log = log
	return nil
}

func (s *service) EmitLog(req EmitLogRequest, _ *EmitLogResponse) error {
	s.daemon.Backend().EmitLog(s.requestContext(req.RequestID, ""), req.Level, req.Message)
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	*resp = StatusResponse{
		Running:    status.Running,
		PID:        status.PID,
		SessionID:  status.SessionID,
		StartedAt:  status.StartedAt,
		Sites:      status.Sites,
		LockPath:   status.LockPath,
		DBPath:     status.DBPath,
		DataDir:    status.DataDir,
		LogPath:    status.LogPath,
		SocketPath: status.SocketPath,
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	hub := s.daemon.Hub()
	if hub == nil {
		resp.Next = req.Since
		return nil
	}
	if req.Tail {
		resp.Events, resp.Next = hub.Tail(req.Limit)
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if req.Follow && wait <= 0 {
		wait = time.Second
	}
	if wait > maxEventWait {
		wait = maxEventWait
	}
	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := hub.Fetch(ctx, req.Since, req.Limit, req.Follow)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Events = events
	resp.Next = next
	return nil
}
