// Package server accepts raw ESC/POS jobs over TCP (the JetDirect-style
// port 9100) and forwards them to the connected printer.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Writer receives the raw bytes of a print job
type Writer interface {
	WriteRaw(ctx context.Context, data []byte) (int, error)
}

// Server is a TCP server that forwards data to the printer. It does not own
// the printer connection; jobs sent while no printer is connected end the
// client's session.
type Server struct {
	printer  Writer
	address  string
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new server instance
func New(printer Writer, address string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		printer: printer,
		address: address,
		conns:   make(map[net.Conn]struct{}),
		logger:  logger.Named("server"),
	}
}

// listen opens the listener and returns the accept loop's context
func (s *Server) listen() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error("Failed to start server", zap.String("address", s.address), zap.Error(err))
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.running = true
	s.logger.Info("Server listening", zap.String("address", listener.Addr().String()))
	return ctx, nil
}

// Start starts the TCP server and blocks until Stop is called
func (s *Server) Start() error {
	ctx, err := s.listen()
	if err != nil {
		return err
	}
	s.wg.Add(1)
	s.acceptConnections(ctx)
	return nil
}

// StartAsync starts the TCP server in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	ctx, err := s.listen()
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go s.acceptConnections(ctx)
	return nil
}

// acceptConnections handles incoming client connections
func (s *Server) acceptConnections(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Debug("Accept loop stopped")
				return
			}
			s.logger.Warn("Error accepting connection", zap.Error(err))
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.logger.Info("Client connected", zap.String("client", conn.RemoteAddr().String()))
		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
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

// handleConnection forwards one client's bytes until it disconnects
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	client := conn.RemoteAddr().String()
	defer func() {
		s.untrack(conn)
		conn.Close()
		s.logger.Info("Client disconnected", zap.String("client", client))
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			written, writeErr := s.printer.WriteRaw(ctx, buf[:n])
			if writeErr != nil {
				s.logger.Warn("Error writing to printer",
					zap.String("client", client), zap.Int("written", written), zap.Error(writeErr))
				return
			}
			s.logger.Debug("Forwarded job data", zap.String("client", client), zap.Int("bytes", written))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Warn("Error reading from client", zap.String("client", client), zap.Error(err))
			}
			return
		}
	}
}

// Stop closes the listener and all client connections and waits for the
// handlers to return
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	s.logger.Info("Stopping server")
	s.running = false
	s.cancel()
	err := s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Server stopped")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured server address
func (s *Server) Address() string {
	return s.address
}

// ListenAddr returns the bound address while running, else nil
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.listener.Addr()
}
