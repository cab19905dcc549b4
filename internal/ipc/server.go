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
	"sync"

	"github.com/google/uuid"

	"natrender/internal/daemon"
	"natrender/internal/logging"
	"natrender/internal/queue"
	"natrender/internal/render"
	"natrender/internal/services"
)

// ServiceName is the RPC receiver name shared by server and client.
const ServiceName = "Natrender"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption customizes the IPC server.
type ServerOption func(*service)

// WithShutdown registers fn to run after a Stop request stopped the daemon.
// The daemon runtime uses it to exit the process.
func WithShutdown(fn func()) ServerOption {
	return func(s *service) {
		s.shutdown = fn
	}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	for _, opt := range opts {
		opt(srv)
	}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
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

// Close stops the server and removes the socket file. Connections still
// open are served until their clients hang up.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun natrender stop"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
	stopOnce sync.Once
}

func (s *service) requestContext() context.Context {
	return services.WithRequestID(s.ctx, uuid.NewString())
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	ctx := s.requestContext()
	logging.WithContext(ctx, s.logger).Debug("submit requested",
		logging.Int("writers", len(req.Writers)),
		logging.Bool("blocking", req.Blocking),
	)
	sub, err := s.daemon.Submit(ctx, render.SubmitRequest{
		Writers:  req.Writers,
		Ranges:   req.Ranges,
		Stats:    req.Stats,
		Restart:  req.Restart,
		Blocking: req.Blocking,
	})
	if err != nil {
		return err
	}
	resp.Outcomes = make([]Outcome, 0, len(sub.Outcomes))
	for _, outcome := range sub.Outcomes {
		resp.Outcomes = append(resp.Outcomes, convertOutcome(outcome))
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.SessionID = status.SessionID
	resp.Project = status.Project
	resp.ProjectName = status.ProjectName
	resp.Settings = status.Settings
	resp.Active = status.Active
	resp.Pending = status.Pending
	resp.JournalPath = status.JournalPath
	resp.LockPath = status.LockPath
	resp.History = make(map[string]int, len(status.History))
	for k, v := range status.History {
		resp.History[string(k)] = v
	}
	resp.Preflight = make([]PreflightResult, 0, len(status.Preflight))
	for _, result := range status.Preflight {
		resp.Preflight = append(resp.Preflight, PreflightResult{
			Name:   result.Name,
			Passed: result.Passed,
			Detail: result.Detail,
		})
	}
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if err := s.daemon.Cancel(req.Writer); err != nil {
		return err
	}
	resp.Cancelled = true
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	if err := s.daemon.Remove(req.Writer); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) Settings(req SettingsRequest, resp *SettingsResponse) error {
	if req.Update == nil {
		resp.Settings = s.daemon.Settings()
		return nil
	}
	applied, err := s.daemon.SetSettings(*req.Update)
	if err != nil {
		return err
	}
	resp.Settings = applied
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return services.Wrap(services.ErrInvalidArgument, "ipc", "history",
				fmt.Sprintf("unknown status %q", raw), nil)
		}
		statuses = append(statuses, status)
	}
	records, err := s.daemon.History(s.ctx, req.Limit, statuses...)
	if err != nil {
		return err
	}
	resp.Records = make([]HistoryRecord, 0, len(records))
	for _, record := range records {
		resp.Records = append(resp.Records, convertRecord(record))
	}
	return nil
}

func (s *service) ClearHistory(req ClearHistoryRequest, resp *ClearHistoryResponse) error {
	removed, err := s.daemon.ClearHistory(s.ctx, req.All)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	s.daemon.Stop()
	resp.Stopped = true
	if s.shutdown != nil {
		s.stopOnce.Do(func() {
			// Reply first; shutdown closes the listener this call arrived on.
			go s.shutdown()
		})
	}
	return nil
}

func convertOutcome(outcome render.Outcome) Outcome {
	out := Outcome{Item: outcome.Item, Status: string(outcome.Status)}
	if outcome.Err != nil {
		out.Error = outcome.Err.Error()
		out.ErrorKind = services.Kind(outcome.Err)
	}
	return out
}

func convertRecord(record *queue.Record) HistoryRecord {
	return HistoryRecord{
		ID:              record.ID,
		Writer:          record.Writer,
		SequenceName:    record.SequenceName,
		FirstFrame:      record.FirstFrame,
		LastFrame:       record.LastFrame,
		FrameStep:       record.FrameStep,
		Mode:            record.Mode,
		Status:          string(record.Status),
		PID:             record.PID,
		ProgressPercent: record.ProgressPercent,
		ErrorKind:       record.ErrorKind,
		ErrorMessage:    record.ErrorMessage,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
		StartedAt:       record.StartedAt,
		FinishedAt:      record.FinishedAt,
	}
}
