// Package transport defines the socket-layer contract the kernel core
// consumes. Implementations own socket bring-up, polling, and teardown; the
// core only sees inbound frame callbacks and outbound frame sinks.
package transport

import "time"

// Listener receives the frames of one inbound wire message.
type Listener func(frames [][]byte)

// DrainFunc is invoked per queued shell message during an abort drain.
type DrainFunc func(frames [][]byte)

// Transport is the collaborator carrying the four kernel channels.
//
// Implementations must deliver shell, control, and stdin messages to a
// single serialization point unless the kernel asked for a dedicated
// control domain. After Stop returns no further listeners fire.
type Transport interface {
	RegisterShellListener(fn Listener)
	RegisterControlListener(fn Listener)
	RegisterStdinListener(fn Listener)

	SendShell(frames [][]byte) error
	SendControl(frames [][]byte) error
	SendStdin(frames [][]byte) error
	Publish(frames [][]byte) error

	// AbortQueue drains queued inbound shell messages for up to timeout,
	// invoking drain per message.
	AbortQueue(drain DrainFunc, timeout time.Duration)

	Stop()
}
