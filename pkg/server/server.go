package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bobboyms/corvusdb/pkg/metrics"
	"github.com/bobboyms/corvusdb/pkg/protocol"
	"github.com/bobboyms/corvusdb/pkg/storage"
	"github.com/bobboyms/corvusdb/pkg/txn"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Server is the length-framed TCP wire server: one accept loop, a pool of
// per-connection goroutines, and a background reaper, coordinated by a
// shared context cancellation tree (§5, §9's "coroutine-style flow").
type Server struct {
	cfg    Config
	engine *storage.Engine
	txns   *txn.Manager
	logger zerolog.Logger

	pool       *connectionPool
	listener   net.Listener
	startedAt  time.Time
	wg         sync.WaitGroup
}

// New builds a Server over engine and txns. Logging is a no-op until
// SetLogger is called.
func New(cfg Config, engine *storage.Engine, txns *txn.Manager) *Server {
	return &Server{
		cfg:    cfg,
		engine: engine,
		txns:   txns,
		logger: zerolog.Nop(),
		pool:   newConnectionPool(cfg),
	}
}

// SetLogger attaches a structured logger. Log lines carry conn_id/method
// fields rather than interpolated strings.
func (s *Server) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// Run binds the listener and blocks, serving connections until ctx is
// canceled. On cancellation it stops accepting, lets the reaper exit,
// issues a final checkpoint, syncs the WAL, and waits for in-flight
// connection handlers to unwind before returning.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startedAt = time.Now().UTC()
	s.logger.Info().Str("bind_address", s.cfg.BindAddress).Msg("server listening")

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go s.acceptLoop(connCtx)

	s.wg.Add(1)
	go s.reaperLoop(connCtx)

	<-ctx.Done()
	s.logger.Info().Msg("server shutting down")

	_ = listener.Close()
	cancel()
	s.wg.Wait()

	if _, err := s.engine.Checkpoint(); err != nil {
		s.logger.Error().Err(err).Msg("final checkpoint failed")
	}
	return s.engine.Close()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Error().Err(err).Msg("accept failed")
				return
			}
		}

		id := uuid.NewString()
		cc := newClientConnection(id, conn.RemoteAddr().String(), conn)
		if !s.pool.Add(cc) {
			metrics.ConnectionsRejected.Inc()
			_ = conn.Close()
			continue
		}

		metrics.ConnectionsActive.Inc()
		metrics.ConnectionsTotal.Inc()

		s.wg.Add(1)
		go s.handleConnection(ctx, conn, cc)
	}
}

func (s *Server) reaperLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			for _, cc := range s.pool.idleConnections(now, s.cfg.IdleTimeout) {
				s.logger.Info().Str("conn_id", cc.ID).Msg("closing idle connection")
				cc.CloseIdle()
			}
			if expired := s.txns.AbortExpired(now); len(expired) > 0 {
				for range expired {
					metrics.TransactionsAborted.WithLabelValues("deadline").Inc()
				}
			}
			if victims := s.txns.DetectDeadlocks(); len(victims) > 0 {
				for range victims {
					metrics.TransactionsAborted.WithLabelValues("deadlock").Inc()
				}
			}
			s.txns.VacuumConcluded(s.txns.MinActiveLSN())
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, cc *ClientConnection) {
	defer s.wg.Done()
	defer func() {
		for _, id := range cc.ActiveTxIDs() {
			_ = s.txns.Rollback(id)
		}
		s.pool.Remove(cc.ID)
		metrics.ConnectionsActive.Dec()
		_ = conn.Close()
		s.logger.Info().Str("conn_id", cc.ID).Msg("connection closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.RequestTimeout))
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			if err == io.EOF {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.writeResponse(conn, protocol.NewErrorResponse("", &protocol.Error{
					Code: protocol.CodeInvalidRequest, Message: "request timeout",
				}))
				continue
			}
			return
		}

		if len(msg) > s.cfg.MaxRequestSize {
			s.writeResponse(conn, protocol.NewErrorResponse("", &protocol.Error{
				Code: protocol.CodeInvalidRequest, Message: "request exceeds max_request_size",
			}))
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			s.writeResponse(conn, protocol.NewErrorResponse("", &protocol.Error{
				Code: protocol.CodeSerializationError, Message: "malformed request: " + err.Error(),
			}))
			continue
		}
		if verr := req.Validate(); verr != nil {
			s.writeResponse(conn, protocol.NewErrorResponse(req.ID, verr))
			continue
		}

		start := time.Now()
		resp := s.dispatch(&req, cc)
		elapsed := time.Since(start)

		outcome := "ok"
		if resp.Error != nil {
			outcome = "error"
		}
		metrics.RequestsTotal.WithLabelValues(req.Method, outcome).Inc()
		metrics.RequestDuration.WithLabelValues(req.Method).Observe(elapsed.Seconds())

		if resp.Metadata == nil {
			resp.Metadata = make(map[string]string)
		}
		resp.Metadata["duration_ms"] = formatMillis(elapsed)

		written, ok := s.writeResponse(conn, resp)
		cc.touch(len(msg), written)
		if !ok {
			return
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp protocol.Response) (int, bool) {
	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal response failed")
		return 0, false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.RequestTimeout))
	if err := protocol.WriteMessage(conn, body); err != nil {
		return 0, false
	}
	return len(body), true
}

func formatMillis(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
