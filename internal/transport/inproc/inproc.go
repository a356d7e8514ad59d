// Package inproc is a channel-backed transport for tests and in-process
// front-ends. Inbound messages from all three request channels funnel into
// one delivery goroutine; outbound frames land on buffered channels the
// client side reads.
package inproc

import (
	"fmt"
	"sync"
	"time"

	"github.com/spennihana/xeus/internal/transport"
)

const queueDepth = 64

type inbound struct {
	channel string
	frames  [][]byte
}

// Transport implements transport.Transport over Go channels.
type Transport struct {
	mu        sync.Mutex
	shellFn   transport.Listener
	controlFn transport.Listener
	stdinFn   transport.Listener
	stopped   bool

	in     chan inbound
	shellQ chan [][]byte // inbound shell messages waiting behind the current one
	stop   chan struct{}
	done   chan struct{}

	// Outbound sinks, read by the client side.
	ShellOut   chan [][]byte
	ControlOut chan [][]byte
	StdinOut   chan [][]byte
	IOPub      chan [][]byte
}

// New creates an inproc transport. Run must be called before traffic flows.
func New() *Transport {
	return &Transport{
		in:         make(chan inbound, queueDepth),
		shellQ:     make(chan [][]byte, queueDepth),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		ShellOut:   make(chan [][]byte, queueDepth),
		ControlOut: make(chan [][]byte, queueDepth),
		StdinOut:   make(chan [][]byte, queueDepth),
		IOPub:      make(chan [][]byte, queueDepth),
	}
}

// RegisterShellListener implements transport.Transport.
func (t *Transport) RegisterShellListener(fn transport.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shellFn = fn
}

// RegisterControlListener implements transport.Transport.
func (t *Transport) RegisterControlListener(fn transport.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controlFn = fn
}

// RegisterStdinListener implements transport.Transport.
func (t *Transport) RegisterStdinListener(fn transport.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stdinFn = fn
}

// Run delivers inbound messages serially until Stop. Blocking; callers run
// it in a goroutine.
func (t *Transport) Run() {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			return
		case msg := <-t.in:
			t.deliver(msg)
		}
	}
}

func (t *Transport) deliver(msg inbound) {
	t.mu.Lock()
	var fn transport.Listener
	switch msg.channel {
	case "shell":
		fn = t.shellFn
	case "control":
		fn = t.controlFn
	case "stdin":
		fn = t.stdinFn
	}
	t.mu.Unlock()

	if fn != nil {
		fn(msg.frames)
	}
}

// InjectShell enqueues a client message on the shell channel.
func (t *Transport) InjectShell(frames [][]byte) {
	t.in <- inbound{channel: "shell", frames: frames}
}

// InjectControl enqueues a client message on the control channel.
func (t *Transport) InjectControl(frames [][]byte) {
	t.in <- inbound{channel: "control", frames: frames}
}

// InjectStdin enqueues a client message on the stdin channel.
func (t *Transport) InjectStdin(frames [][]byte) {
	t.in <- inbound{channel: "stdin", frames: frames}
}

// QueueShell parks a message in the pending shell queue, visible only to
// AbortQueue. Models traffic that arrived behind the request currently
// being handled.
func (t *Transport) QueueShell(frames [][]byte) {
	select {
	case t.shellQ <- frames:
	default:
	}
}

// SendShell implements transport.Transport.
func (t *Transport) SendShell(frames [][]byte) error {
	return t.send(t.ShellOut, frames)
}

// SendControl implements transport.Transport.
func (t *Transport) SendControl(frames [][]byte) error {
	return t.send(t.ControlOut, frames)
}

// SendStdin implements transport.Transport.
func (t *Transport) SendStdin(frames [][]byte) error {
	return t.send(t.StdinOut, frames)
}

// Publish implements transport.Transport.
func (t *Transport) Publish(frames [][]byte) error {
	return t.send(t.IOPub, frames)
}

func (t *Transport) send(ch chan [][]byte, frames [][]byte) error {
	select {
	case ch <- frames:
		return nil
	default:
		return fmt.Errorf("outbound queue full")
	}
}

// AbortQueue implements transport.Transport: drains the pending shell queue
// for up to timeout.
func (t *Transport) AbortQueue(drain transport.DrainFunc, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case frames := <-t.shellQ:
			drain(frames)
		case <-deadline.C:
			return
		default:
			// Queue is empty; nothing left to abort.
			return
		}
	}
}

// Stop implements transport.Transport. Safe to call from inside a handler
// (shutdown_request runs on the delivery goroutine); the loop exits after
// the in-flight delivery returns, so Stop does not wait on it.
func (t *Transport) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	close(t.stop)
}

// Wait blocks until the delivery loop has exited.
func (t *Transport) Wait() {
	<-t.done
}

// Stopped reports whether Stop has completed.
func (t *Transport) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

var _ transport.Transport = (*Transport)(nil)
