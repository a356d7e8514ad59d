// Package zmqtransport carries the kernel channels over ZeroMQ: ROUTER
// sockets for shell, control, and stdin, PUB for iopub, and a REP heartbeat
// echo loop. Socket bring-up, polling, and teardown all live here; the
// dispatcher only sees frames.
package zmqtransport

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/spennihana/xeus/internal/config"
	"github.com/spennihana/xeus/internal/log"
	"github.com/spennihana/xeus/internal/transport"
)

// pollInterval bounds how long Stop waits for the loops to notice.
const pollInterval = 100 * time.Millisecond

// Server implements transport.Transport over ZeroMQ sockets.
//
// All request/reply sockets are used exclusively from the poll goroutine:
// listener callbacks (and therefore all sends) run inside it, which is what
// zmq's socket threading rules require. The heartbeat socket has its own
// goroutine.
type Server struct {
	shell   *zmq.Socket
	control *zmq.Socket
	stdin   *zmq.Socket
	iopub   *zmq.Socket
	hb      *zmq.Socket

	mu        sync.Mutex
	shellFn   transport.Listener
	controlFn transport.Listener
	stdinFn   transport.Listener

	stopped atomic.Bool
	done    chan struct{}
	hbDone  chan struct{}
	logger  *slog.Logger
}

// New creates and binds all five sockets from the connection file.
func New(conn *config.Connection) (*Server, error) {
	s := &Server{
		done:   make(chan struct{}),
		hbDone: make(chan struct{}),
		logger: log.WithComponent("zmq"),
	}

	sockets := []struct {
		target **zmq.Socket
		kind   zmq.Type
		port   int
		name   string
	}{
		{&s.shell, zmq.ROUTER, conn.ShellPort, "shell"},
		{&s.control, zmq.ROUTER, conn.ControlPort, "control"},
		{&s.stdin, zmq.ROUTER, conn.StdinPort, "stdin"},
		{&s.iopub, zmq.PUB, conn.IOPubPort, "iopub"},
		{&s.hb, zmq.REP, conn.HeartbeatPort, "heartbeat"},
	}
	for _, sock := range sockets {
		soc, err := zmq.NewSocket(sock.kind)
		if err != nil {
			s.closeAll()
			return nil, fmt.Errorf("create %s socket: %w", sock.name, err)
		}
		endpoint := conn.Endpoint(sock.port)
		if err := soc.Bind(endpoint); err != nil {
			soc.Close()
			s.closeAll()
			return nil, fmt.Errorf("bind %s socket to %s: %w", sock.name, endpoint, err)
		}
		*sock.target = soc
		s.logger.Debug("socket bound", "channel", sock.name, "endpoint", endpoint)
	}

	return s, nil
}

// RegisterShellListener implements transport.Transport.
func (s *Server) RegisterShellListener(fn transport.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shellFn = fn
}

// RegisterControlListener implements transport.Transport.
func (s *Server) RegisterControlListener(fn transport.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controlFn = fn
}

// RegisterStdinListener implements transport.Transport.
func (s *Server) RegisterStdinListener(fn transport.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdinFn = fn
}

// Run polls the three inbound sockets and delivers messages serially until
// Stop. Blocking; the heartbeat echo runs on its own goroutine.
func (s *Server) Run() error {
	go s.heartbeatLoop()
	defer close(s.done)
	defer s.closeSockets()

	poller := zmq.NewPoller()
	poller.Add(s.shell, zmq.POLLIN)
	poller.Add(s.control, zmq.POLLIN)
	poller.Add(s.stdin, zmq.POLLIN)

	for !s.stopped.Load() {
		polled, err := poller.Poll(pollInterval)
		if err != nil {
			if s.stopped.Load() {
				return nil
			}
			return fmt.Errorf("poll sockets: %w", err)
		}

		for _, p := range polled {
			frames, err := p.Socket.RecvMessageBytes(0)
			if err != nil {
				s.logger.Error("receive failed", "error", err)
				continue
			}
			s.deliver(p.Socket, frames)
		}
	}
	return nil
}

func (s *Server) deliver(soc *zmq.Socket, frames [][]byte) {
	s.mu.Lock()
	var fn transport.Listener
	switch soc {
	case s.shell:
		fn = s.shellFn
	case s.control:
		fn = s.controlFn
	case s.stdin:
		fn = s.stdinFn
	}
	s.mu.Unlock()

	if fn != nil {
		fn(frames)
	}
}

// heartbeatLoop echoes whatever arrives on the heartbeat socket.
func (s *Server) heartbeatLoop() {
	defer close(s.hbDone)
	defer s.hb.Close()

	poller := zmq.NewPoller()
	poller.Add(s.hb, zmq.POLLIN)

	for !s.stopped.Load() {
		polled, err := poller.Poll(pollInterval)
		if err != nil {
			return
		}
		for range polled {
			frames, err := s.hb.RecvMessageBytes(0)
			if err != nil {
				continue
			}
			if _, err := s.hb.SendMessage(frames); err != nil {
				s.logger.Error("heartbeat echo failed", "error", err)
			}
		}
	}
}

// SendShell implements transport.Transport.
func (s *Server) SendShell(frames [][]byte) error {
	if _, err := s.shell.SendMessage(frames); err != nil {
		return fmt.Errorf("send on shell: %w", err)
	}
	return nil
}

// SendControl implements transport.Transport.
func (s *Server) SendControl(frames [][]byte) error {
	if _, err := s.control.SendMessage(frames); err != nil {
		return fmt.Errorf("send on control: %w", err)
	}
	return nil
}

// SendStdin implements transport.Transport.
func (s *Server) SendStdin(frames [][]byte) error {
	if _, err := s.stdin.SendMessage(frames); err != nil {
		return fmt.Errorf("send on stdin: %w", err)
	}
	return nil
}

// Publish implements transport.Transport.
func (s *Server) Publish(frames [][]byte) error {
	if _, err := s.iopub.SendMessage(frames); err != nil {
		return fmt.Errorf("publish on iopub: %w", err)
	}
	return nil
}

// AbortQueue implements transport.Transport: drains messages already queued
// on the shell socket for up to timeout. Runs on the poll goroutine (it is
// called from an execute handler), so socket access stays single-threaded.
func (s *Server) AbortQueue(drain transport.DrainFunc, timeout time.Duration) {
	poller := zmq.NewPoller()
	poller.Add(s.shell, zmq.POLLIN)

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		polled, err := poller.Poll(remaining)
		if err != nil || len(polled) == 0 {
			return
		}
		frames, err := s.shell.RecvMessageBytes(0)
		if err != nil {
			s.logger.Error("receive during abort drain failed", "error", err)
			return
		}
		drain(frames)
	}
}

// Stop implements transport.Transport. Loops exit at their next poll tick;
// callable from inside a handler.
func (s *Server) Stop() {
	s.stopped.Store(true)
}

// Wait blocks until the poll loop has exited and sockets are closed.
func (s *Server) Wait() {
	<-s.done
	<-s.hbDone
}

func (s *Server) closeSockets() {
	for _, soc := range []*zmq.Socket{s.shell, s.control, s.stdin, s.iopub} {
		if soc != nil {
			soc.Close()
		}
	}
	// The heartbeat socket belongs to its goroutine, which closes it on exit.
}

// closeAll is for construction failures, before the heartbeat goroutine owns
// its socket.
func (s *Server) closeAll() {
	s.closeSockets()
	if s.hb != nil {
		s.hb.Close()
	}
}

var _ transport.Transport = (*Server)(nil)
