// Package kernel implements the protocol dispatcher: it authenticates and
// routes inbound shell/control/stdin traffic, synthesizes replies,
// broadcasts status and side-band publications on iopub, and owns the comm
// registry shared with the interpreter.
package kernel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spennihana/xeus/internal/auth"
	"github.com/spennihana/xeus/internal/comm"
	"github.com/spennihana/xeus/internal/events"
	"github.com/spennihana/xeus/internal/interpreter"
	"github.com/spennihana/xeus/internal/log"
	"github.com/spennihana/xeus/internal/protocol"
	"github.com/spennihana/xeus/internal/transport"
)

// Channel identifies which request/reply socket a message belongs to.
type Channel int

const (
	Shell Channel = iota
	Control
)

func (c Channel) String() string {
	if c == Control {
		return "control"
	}
	return "shell"
}

// requestContext bundles everything a handler needs to answer one request:
// the requester's routing identities, the request header to propagate as
// parent, and the reply channel.
type requestContext struct {
	channel      Channel
	identities   [][]byte
	parentHeader json.RawMessage
}

type handlerFunc func(ctx *requestContext, msg *protocol.Message) error

// parentRef is the per-domain mutable parent state read by outbound paths.
type parentRef struct {
	identities [][]byte
	header     json.RawMessage
}

// Options configures a Kernel.
type Options struct {
	KernelID  string
	UserName  string
	SessionID string // generated when empty

	Auth        *auth.Authenticator
	Transport   transport.Transport
	Interpreter interpreter.Interpreter

	// Hub, when set, receives a copy of every iopub publication.
	Hub *events.Hub

	// DedicatedControl partitions parent state so the transport may deliver
	// control traffic on its own serialization domain.
	DedicatedControl bool
}

// Kernel is the dispatcher core. All dispatch entry points are serialized
// by the transport; the mutex guards the parent state for the allowed
// dedicated-control refinement.
type Kernel struct {
	kernelID  string
	userName  string
	sessionID string

	auth      *auth.Authenticator
	transport transport.Transport
	interp    interpreter.Interpreter
	comms     *comm.Registry
	hub       *events.Hub
	handlers  map[string]handlerFunc
	logger    *slog.Logger

	dedicatedControl bool

	mu      sync.Mutex
	parents [2]parentRef

	busy atomic.Int32
}

// New wires a Kernel to its collaborators: transport listeners, interpreter
// upcalls, and the comm registry back-reference.
func New(opts Options) (*Kernel, error) {
	if opts.KernelID == "" {
		return nil, fmt.Errorf("kernel id is required")
	}
	if opts.Auth == nil || opts.Transport == nil || opts.Interpreter == nil {
		return nil, fmt.Errorf("auth, transport, and interpreter are required")
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	k := &Kernel{
		kernelID:         opts.KernelID,
		userName:         opts.UserName,
		sessionID:        opts.SessionID,
		auth:             opts.Auth,
		transport:        opts.Transport,
		interp:           opts.Interpreter,
		hub:              opts.Hub,
		logger:           log.WithComponent("kernel"),
		dedicatedControl: opts.DedicatedControl,
	}
	for i := range k.parents {
		k.parents[i].header = protocol.EmptyObject
	}

	k.comms = comm.NewRegistry(k.Publish)

	k.handlers = map[string]handlerFunc{
		"execute_request":     k.executeRequest,
		"complete_request":    k.completeRequest,
		"inspect_request":     k.inspectRequest,
		"history_request":     k.historyRequest,
		"is_complete_request": k.isCompleteRequest,
		"comm_info_request":   k.commInfoRequest,
		"comm_open":           k.commOpen,
		"comm_close":          k.commClose,
		"comm_msg":            k.commMsg,
		"kernel_info_request": k.kernelInfoRequest,
		"shutdown_request":    k.shutdownRequest,
		"interrupt_request":   k.interruptRequest,
	}

	opts.Transport.RegisterShellListener(k.DispatchShell)
	opts.Transport.RegisterControlListener(k.DispatchControl)
	opts.Transport.RegisterStdinListener(k.DispatchStdin)

	opts.Interpreter.RegisterPublisher(k.Publish)
	opts.Interpreter.RegisterStdinSender(k.SendInputRequest)
	opts.Interpreter.RegisterCommManager(k.comms)

	return k, nil
}

// Comms exposes the registry for introspection surfaces.
func (k *Kernel) Comms() *comm.Registry {
	return k.comms
}

// KernelID returns the stable logical kernel name.
func (k *Kernel) KernelID() string { return k.kernelID }

// SessionID returns this launch's session identifier.
func (k *Kernel) SessionID() string { return k.sessionID }

// UserName returns the kernel's user name.
func (k *Kernel) UserName() string { return k.userName }

// Busy reports whether a request is currently being handled.
func (k *Kernel) Busy() bool { return k.busy.Load() > 0 }

// DispatchShell handles one inbound shell message.
func (k *Kernel) DispatchShell(frames [][]byte) {
	k.dispatch(frames, Shell)
}

// DispatchControl handles one inbound control message.
func (k *Kernel) DispatchControl(frames [][]byte) {
	k.dispatch(frames, Control)
}

// DispatchStdin records the parent and routes input replies straight to the
// interpreter. No handler table, no status bracketing.
func (k *Kernel) DispatchStdin(frames [][]byte) {
	msg, err := protocol.Deserialize(frames, k.auth)
	if err != nil {
		k.logger.Error("could not deserialize stdin message", "error", err)
		return
	}

	header, err := msg.ParsedHeader()
	if err != nil {
		k.logger.Error("stdin message has unparseable header", "error", err)
		return
	}

	k.setParent(Shell, msg.Identities, msg.Header)

	if header.MsgType != "input_reply" {
		k.logger.Debug("ignoring stdin message", "msg_type", header.MsgType)
		return
	}

	var content struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		k.logger.Error("input_reply has bad content", "error", err, "content", string(msg.Content))
		return
	}
	k.interp.InputReply(content.Value)
}

// dispatch is the common shell/control path: deserialize, record parent,
// bracket with busy/idle, route to the handler table.
func (k *Kernel) dispatch(frames [][]byte, c Channel) {
	msg, err := protocol.Deserialize(frames, k.auth)
	if err != nil {
		k.logger.Error("could not deserialize message", "channel", c.String(), "error", err)
		return
	}

	header, err := msg.ParsedHeader()
	if err != nil {
		k.logger.Error("message has unparseable header", "channel", c.String(), "error", err)
		return
	}

	ctx := &requestContext{
		channel:      c,
		identities:   msg.Identities,
		parentHeader: msg.Header,
	}
	k.setParent(c, msg.Identities, msg.Header)

	k.busy.Add(1)
	k.publishStatus(ctx, "busy")

	handler, ok := k.handlers[header.MsgType]
	if !ok {
		k.logger.Error("received unknown message", "msg_type", header.MsgType, "channel", c.String())
	} else if err := k.invoke(handler, ctx, msg); err != nil {
		k.logger.Error("handler failed",
			"msg_type", header.MsgType,
			"channel", c.String(),
			"error", err,
			"content", string(msg.Content))
	}

	k.publishStatus(ctx, "idle")
	k.busy.Add(-1)
}

// invoke runs a handler, converting panics into errors so idle is always
// published.
func (k *Kernel) invoke(handler handlerFunc, ctx *requestContext, msg *protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

// domain maps a channel onto a parent-state slot. Control shares the shell
// slot unless a dedicated control domain was requested.
func (k *Kernel) domain(c Channel) int {
	if k.dedicatedControl && c == Control {
		return 1
	}
	return 0
}

func (k *Kernel) setParent(c Channel, identities [][]byte, header json.RawMessage) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.parents[k.domain(c)] = parentRef{identities: identities, header: header}
}

func (k *Kernel) parent(c Channel) parentRef {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.parents[k.domain(c)]
}

// sendReply emits a reply carrying the request's identities and header.
func (k *Kernel) sendReply(ctx *requestContext, replyType string, metadata, content json.RawMessage) error {
	header, err := protocol.NewHeader(replyType, k.userName, k.sessionID).Encode()
	if err != nil {
		return fmt.Errorf("encode %s header: %w", replyType, err)
	}

	msg := &protocol.Message{
		Identities:   ctx.identities,
		Header:       header,
		ParentHeader: ctx.parentHeader,
		Metadata:     metadata,
		Content:      content,
	}
	frames := msg.Serialize(k.auth)

	if ctx.channel == Control {
		if err := k.transport.SendControl(frames); err != nil {
			return fmt.Errorf("send %s on control: %w", replyType, err)
		}
		return nil
	}
	if err := k.transport.SendShell(frames); err != nil {
		return fmt.Errorf("send %s on shell: %w", replyType, err)
	}
	return nil
}

// Publish broadcasts a publication on iopub under the current parent. It is
// also the upcall registered with the interpreter and the comm registry.
func (k *Kernel) Publish(msgType string, metadata, content json.RawMessage) {
	k.publishAs(k.parent(Shell).header, msgType, metadata, content)
}

// publishStatus brackets a request with execution_state transitions under
// that request's own header.
func (k *Kernel) publishStatus(ctx *requestContext, state string) {
	content, err := json.Marshal(map[string]string{"execution_state": state})
	if err != nil {
		k.logger.Error("marshal status content", "error", err)
		return
	}
	k.publishAs(ctx.parentHeader, "status", protocol.EmptyObject, content)
}

func (k *Kernel) publishAs(parentHeader json.RawMessage, msgType string, metadata, content json.RawMessage) {
	header, err := protocol.NewHeader(msgType, k.userName, k.sessionID).Encode()
	if err != nil {
		k.logger.Error("encode publication header", "msg_type", msgType, "error", err)
		return
	}

	topic := k.topic(msgType)
	msg := &protocol.PubMessage{
		Topic:        topic,
		Header:       header,
		ParentHeader: parentHeader,
		Metadata:     metadata,
		Content:      content,
	}
	if err := k.transport.Publish(msg.Serialize(k.auth)); err != nil {
		k.logger.Error("publish failed", "msg_type", msgType, "error", err)
		return
	}

	if k.hub != nil {
		k.hub.Publish(msgType, topic, content)
	}
}

// SendInputRequest is the stdin upcall registered with the interpreter: it
// prompts the front-end that issued the current request.
func (k *Kernel) SendInputRequest(msgType string, metadata, content json.RawMessage) {
	header, err := protocol.NewHeader(msgType, k.userName, k.sessionID).Encode()
	if err != nil {
		k.logger.Error("encode stdin header", "msg_type", msgType, "error", err)
		return
	}

	parent := k.parent(Shell)
	msg := &protocol.Message{
		Identities:   parent.identities,
		Header:       header,
		ParentHeader: parent.header,
		Metadata:     metadata,
		Content:      content,
	}
	if err := k.transport.SendStdin(msg.Serialize(k.auth)); err != nil {
		k.logger.Error("send stdin request failed", "msg_type", msgType, "error", err)
	}
}

func (k *Kernel) topic(msgType string) string {
	return "kernel_core." + k.kernelID + "." + msgType
}
