// Package ipc implements the UNIX-socket control protocol: one JSON
// request object in, one JSON reply object out, per connection.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nbfc-linux/nbfcd/internal/service"
)

// MaxConsecutiveAcceptFailures bounds how many accept() failures in a
// row the listen loop tolerates before giving up, mirroring the
// control loop's own failure budget.
const MaxConsecutiveAcceptFailures = 100

// Server accepts connections on a UNIX stream socket and dispatches
// each one's single request to svc under its lock.
type Server struct {
	SocketPath string

	svc *service.Service
	log zerolog.Logger

	listener net.Listener
}

// NewServer builds a Server bound to svc. Call Listen before Serve.
func NewServer(socketPath string, svc *service.Service, log zerolog.Logger) *Server {
	return &Server{SocketPath: socketPath, svc: svc, log: log}
}

// Listen creates the socket, making it world read/writable the way
// the rest of nbfc's clients expect. The listen backlog is whatever
// net.Listen uses by default; no explicit backlog is set.
func (s *Server) Listen() error {
	if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", s.SocketPath, err)
	}

	l, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.SocketPath, err)
	}
	if err := os.Chmod(s.SocketPath, 0666); err != nil {
		l.Close()
		return fmt.Errorf("chmod %s: %w", s.SocketPath, err)
	}

	s.listener = l
	return nil
}

// Close closes the listener and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.SocketPath)
	return err
}

// Serve accepts connections until the listener is closed or
// MaxConsecutiveAcceptFailures accepts fail in a row, handling each
// connection in its own goroutine.
func (s *Server) Serve() error {
	failures := 0
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			failures++
			s.log.Warn().Err(err).Int("failures", failures).Msg("ipc accept failed")
			if failures >= MaxConsecutiveAcceptFailures {
				return fmt.Errorf("%d consecutive accept failures, last: %w", failures, err)
			}
			continue
		}
		failures = 0
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	reqID := uuid.New()
	log := s.log.With().Str("request_id", reqID.String()).Logger()
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("ipc decode request")
		writeError(conn, log, fmt.Sprintf("invalid request: %v", err))
		return
	}

	s.svc.Lock.Lock()
	defer s.svc.Lock.Unlock()

	cmd := req.command()
	var resp any
	var err error
	switch cmd {
	case "set-fan-speed":
		resp, err = handleSetFanSpeed(s.svc, req)
	case "status":
		resp, err = handleStatus(s.svc, req)
	case "":
		err = fmt.Errorf("missing 'Command' field")
	default:
		err = fmt.Errorf("invalid command")
	}

	if err != nil {
		log.Info().Err(err).Str("command", cmd).Msg("ipc request failed")
		writeError(conn, log, err.Error())
		return
	}

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("ipc encode response")
	}
}

func writeError(conn net.Conn, log zerolog.Logger, message string) {
	if err := json.NewEncoder(conn).Encode(ErrorResponse{Error: message}); err != nil {
		log.Warn().Err(err).Msg("ipc encode error response")
	}
}
