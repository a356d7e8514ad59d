// Package interpreter defines the contract between the kernel core and the
// backend that evaluates user code. The core calls the semantic operations;
// the interpreter calls back through the registered publisher and stdin
// sender, and reaches comms through the capability interface it receives at
// registration.
package interpreter

import (
	"encoding/json"

	"github.com/spennihana/xeus/internal/comm"
)

// HistoryArgs carries the parsed content of a history_request.
type HistoryArgs struct {
	HistAccessType string
	Output         bool
	Raw            bool
	Session        int
	Start          int
	Stop           int
	N              int
	Pattern        string
	Unique         bool
}

// Publisher broadcasts a publication on iopub on the interpreter's behalf.
type Publisher func(msgType string, metadata, content json.RawMessage)

// StdinSender sends an input prompt to the front-end on the stdin channel.
type StdinSender func(msgType string, metadata, content json.RawMessage)

// CommManager is the capability surface handed to the interpreter instead of
// the registry itself: open targets, list sessions, send on a comm.
type CommManager interface {
	RegisterTarget(name string, handler comm.TargetHandler)
	UnregisterTarget(name string)
	Comms() map[string]string
	Open(target string, data json.RawMessage) (*comm.Comm, error)
	Send(commID string, data json.RawMessage) error
}

//go:generate mockgen -source=interpreter.go -destination=mocks/mock_interpreter.go -package=mocks

// Interpreter is the pluggable execution backend.
//
// The JSON results are reply content verbatim; the core adds headers,
// parents, and signatures. An error return means the operation itself
// failed — the core logs it and sends no reply.
type Interpreter interface {
	Execute(code string, silent, storeHistory bool, userExpressions json.RawMessage, allowStdin bool) (json.RawMessage, error)
	Complete(code string, cursorPos int) (json.RawMessage, error)
	Inspect(code string, cursorPos, detailLevel int) (json.RawMessage, error)
	History(args HistoryArgs) (json.RawMessage, error)
	IsComplete(code string) (json.RawMessage, error)
	KernelInfo() (json.RawMessage, error)
	Interrupt()
	InputReply(value string)

	RegisterPublisher(publish Publisher)
	RegisterStdinSender(send StdinSender)
	RegisterCommManager(comms CommManager)
}
