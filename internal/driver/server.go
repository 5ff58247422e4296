package driver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/storage"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
)

// ServerConfig is what a listening pesitd process needs to accept
// inbound sessions and dispatch their file-phase requests.
type ServerConfig struct {
	ListenAddr     string
	ServerID       string
	Lookup         session.PartnerLookup
	Store          storage.ObjectStore
	Restarts       syncpkg.RestartStore
	MaxEntitySize  int
	SyncIntervalKB uint16
}

// Server listens for inbound PeSIT-E connections and runs
// ServeTransfer on each connection in its own goroutine, with
// WaitGroup-tracked graceful shutdown.
type Server struct {
	listener net.Listener
	logger   *zap.SugaredLogger
	cfg      ServerConfig

	wg           sync.WaitGroup
	shuttingDown bool
}

func NewServer(cfg ServerConfig, logger *zap.SugaredLogger) *Server {
	return &Server{logger: logger, cfg: cfg}
}

// Listen binds cfg.ListenAddr without accepting yet, so callers that
// bound port 0 can read the chosen address via Addr before Start.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = l
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens on cfg.ListenAddr (unless Listen was already called)
// and accepts connections until Stop is called.
func (s *Server) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Infof("pesitd listening as %s on %s", s.cfg.ServerID, s.listener.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shuttingDown {
				return nil
			}
			s.logger.Errorf("accept error: %v", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess, err := Accept(conn, AcceptConfig{
		ServerID:      s.cfg.ServerID,
		Lookup:        s.cfg.Lookup,
		MaxEntitySize: s.cfg.MaxEntitySize,
	}, s.logger)
	if err != nil {
		s.logger.Warnf("connect handshake failed: %v", err)
		return
	}
	sess.Logger.Infof("connected, demander=%s", sess.DemanderID)

	err = ServeTransfer(context.Background(), sess, ServeConfig{
		Store:          s.cfg.Store,
		Restarts:       s.cfg.Restarts,
		MaxEntitySize:  s.cfg.MaxEntitySize,
		SyncIntervalKB: s.cfg.SyncIntervalKB,
	})
	if err != nil {
		sess.Logger.Warnf("session ended with error: %v", err)
		sendAbort(sess, err)
	}
	_ = sess.Close()
	sess.Logger.Info("disconnected")
}

// Stop closes the listener and waits up to timeout for in-flight
// sessions to finish.
func (s *Server) Stop(timeout time.Duration) error {
	s.shuttingDown = true
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for sessions to close")
	}
}
