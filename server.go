package memcached

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pior/memcached/internal/logging"
	"github.com/pior/memcached/protocol"
)

// DefaultMaxFrameSize fits a 1MiB value plus its command line.
const DefaultMaxFrameSize = 1<<20 + 512

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("memcached: server closed")

var replyFrameTooLarge = ServerErrorReply("object too large for cache")

// ServerConfig configures a Server.
type ServerConfig struct {
	// MaxFrameSize bounds a frame in bytes. Zero means DefaultMaxFrameSize.
	// A client sending a larger frame receives a SERVER_ERROR and is disconnected.
	MaxFrameSize int

	// ReadTimeout bounds the wait for each frame. Zero means no timeout.
	ReadTimeout time.Duration

	// WriteTimeout bounds each reply write. Zero means no timeout.
	WriteTimeout time.Duration

	// CloseOnError drops the connection after replying to an unknown
	// operation or a malformed frame.
	CloseOnError bool

	// Logger defaults to the operational logger.
	Logger *slog.Logger
}

// Server serves the text protocol over stream listeners.
type Server struct {
	handler FrameHandler
	config  ServerConfig
	logger  *slog.Logger
	stats   *serverStatsCollector

	mu         sync.Mutex
	listeners  map[net.Listener]struct{}
	conns      map[net.Conn]struct{}
	inShutdown atomic.Bool
	wg         sync.WaitGroup
}

// NewServer creates a Server dispatching every frame to handler.
func NewServer(handler FrameHandler, config ServerConfig) *Server {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.Logger == nil {
		config.Logger = logging.Op()
	}
	return &Server{
		handler:   handler,
		config:    config,
		logger:    config.Logger,
		stats:     newServerStatsCollector(),
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	if s.inShutdown.Load() {
		return ErrServerClosed
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called, serving each
// one in its own goroutine. Serve always closes ln.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln, true) {
		ln.Close()
		return ErrServerClosed
	}
	defer ln.Close()
	defer s.trackListener(ln, false)

	s.logger.Info("server listening", "addr", ln.Addr().String())

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				tempDelay = max(5*time.Millisecond, min(2*tempDelay, time.Second))
				s.logger.Warn("accept error, retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		if !s.trackConn(conn, true) {
			conn.Close()
			return ErrServerClosed
		}
		go s.serveConn(conn)
	}
}

// Shutdown stops accepting connections, interrupts connections waiting for
// a frame and waits for in-flight frames to complete, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	var err error
	for ln := range s.listeners {
		if cerr := ln.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	for conn := range s.conns {
		// wakes up the blocked read without cutting a reply being written
		_ = conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped")
		return err
	case <-ctx.Done():
		s.closeConns()
		return ctx.Err()
	}
}

// Stats returns a snapshot of the transport counters.
func (s *Server) Stats() ServerStats {
	return s.stats.snapshot()
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.listeners[ln] = struct{}{}
		return true
	}
	delete(s.listeners, ln)
	return true
}

func (s *Server) trackConn(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.inShutdown.Load() {
			return false
		}
		// Added under mu so Shutdown cannot reach wg.Wait before it.
		s.wg.Add(1)
		s.conns[conn] = struct{}{}
		s.stats.recordOpen()
		return true
	}
	delete(s.conns, conn)
	s.stats.recordClose()
	return true
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.trackConn(conn, false)

	logger := s.logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
	logger.Debug("connection opened")

	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warn("error closing connection", "error", err)
		}
		logger.Debug("connection closed")
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		if s.inShutdown.Load() {
			return
		}

		if s.config.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
				logger.Warn("error setting read deadline", "error", err)
				return
			}
		}

		frame, err := ReadFrame(r, s.config.MaxFrameSize)
		if err != nil {
			s.handleReadError(logger, w, conn, err)
			return
		}
		s.stats.recordRead(len(frame))

		reply := s.handler.Handle(frame)

		if err := s.writeReply(conn, w, reply, r.Buffered() == 0); err != nil {
			logger.Warn("error writing reply", "error", err)
			return
		}

		if perr := reply.Err(); perr != nil {
			logger.Debug("protocol error", "error", perr)

			var pe *protocol.ProtocolError
			if s.config.CloseOnError && errors.As(perr, &pe) && pe.ShouldCloseConnection() {
				w.Flush()
				return
			}
		}
	}
}

// writeReply buffers the reply and flushes once no pipelined frame is pending.
func (s *Server) writeReply(conn net.Conn, w *bufio.Writer, reply Reply, flush bool) error {
	if s.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
			return err
		}
	}

	n, err := reply.WriteTo(w)
	if err != nil {
		return err
	}
	s.stats.recordWrite(n)

	if flush {
		return w.Flush()
	}
	return nil
}

func (s *Server) handleReadError(logger *slog.Logger, w *bufio.Writer, conn net.Conn, err error) {
	switch {
	case errors.Is(err, io.EOF):
		w.Flush()
	case errors.Is(err, ErrFrameTooLarge):
		s.stats.recordFrameTooLarge()
		logger.Debug("frame too large", "limit", s.config.MaxFrameSize)
		if werr := s.writeReply(conn, w, replyFrameTooLarge, true); werr != nil {
			logger.Warn("error writing reply", "error", werr)
		}
	case errors.Is(err, os.ErrDeadlineExceeded):
		if !s.inShutdown.Load() {
			logger.Debug("read timeout")
		}
		w.Flush()
	case errors.Is(err, net.ErrClosed):
	default:
		logger.Warn("error reading frame", "error", err)
	}
}
