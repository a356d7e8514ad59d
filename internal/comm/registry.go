// Package comm manages bidirectional comm sessions multiplexed over the
// shell and iopub channels. Front-ends open comms against named targets;
// the interpreter registers target handlers and may open, message, or close
// comms from its side.
package comm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/spennihana/xeus/internal/log"
	"github.com/spennihana/xeus/internal/protocol"
)

// Publisher emits a publication on iopub. The registry uses it to broadcast
// comm_open, comm_msg, and comm_close originated on the kernel side.
type Publisher func(msgType string, metadata, content json.RawMessage)

// TargetHandler is invoked when a front-end opens a comm against a target.
// The handler may set OnMessage and OnClose on the comm before returning.
type TargetHandler func(c *Comm, data json.RawMessage)

// Comm is one active session.
type Comm struct {
	ID         string
	TargetName string

	// Set by the target handler. Either may be nil.
	OnMessage func(data json.RawMessage)
	OnClose   func(data json.RawMessage)
}

// Registry maps comm_id to active session and target name to handler.
// All methods are safe for concurrent use; the dispatcher and the
// interpreter share one registry.
type Registry struct {
	mu      sync.Mutex
	targets map[string]TargetHandler
	comms   map[string]*Comm
	publish Publisher
	logger  *slog.Logger
}

// NewRegistry creates an empty registry publishing through publish.
func NewRegistry(publish Publisher) *Registry {
	return &Registry{
		targets: make(map[string]TargetHandler),
		comms:   make(map[string]*Comm),
		publish: publish,
		logger:  log.WithComponent("comm"),
	}
}

// RegisterTarget installs the handler for a target name, replacing any
// previous registration.
func (r *Registry) RegisterTarget(name string, handler TargetHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[name] = handler
}

// UnregisterTarget removes a target registration. Existing comms stay open.
func (r *Registry) UnregisterTarget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, name)
}

// commContent is the content section of comm_open/comm_msg/comm_close.
type commContent struct {
	CommID     string          `json:"comm_id"`
	TargetName string          `json:"target_name,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// HandleOpen processes a front-end comm_open. An open for an existing
// comm_id is ignored; an open against an unregistered target is answered
// with a comm_close broadcast and dropped.
func (r *Registry) HandleOpen(msg *protocol.Message) error {
	var content commContent
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse comm_open content: %w", err)
	}
	if content.CommID == "" {
		return fmt.Errorf("comm_open without comm_id")
	}

	r.mu.Lock()
	if _, exists := r.comms[content.CommID]; exists {
		r.mu.Unlock()
		r.logger.Debug("ignoring duplicate comm_open", "comm_id", content.CommID)
		return nil
	}

	handler, ok := r.targets[content.TargetName]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("comm_open for unregistered target",
			"comm_id", content.CommID, "target_name", content.TargetName)
		r.publishClose(content.CommID)
		return nil
	}

	c := &Comm{ID: content.CommID, TargetName: content.TargetName}
	r.comms[content.CommID] = c
	r.mu.Unlock()

	handler(c, content.Data)
	return nil
}

// HandleMessage delivers comm_msg data to the session's message callback.
// Unknown comm_ids are dropped silently.
func (r *Registry) HandleMessage(msg *protocol.Message) error {
	var content commContent
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse comm_msg content: %w", err)
	}

	r.mu.Lock()
	c, ok := r.comms[content.CommID]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("dropping comm_msg for unknown comm", "comm_id", content.CommID)
		return nil
	}

	if c.OnMessage != nil {
		c.OnMessage(content.Data)
	}
	return nil
}

// HandleClose removes the session and fires its close callback. Idempotent.
func (r *Registry) HandleClose(msg *protocol.Message) error {
	var content commContent
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse comm_close content: %w", err)
	}

	r.mu.Lock()
	c, ok := r.comms[content.CommID]
	delete(r.comms, content.CommID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if c.OnClose != nil {
		c.OnClose(content.Data)
	}
	return nil
}

// Comms returns a snapshot of comm_id to target_name for every open session.
func (r *Registry) Comms() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.comms))
	for id, c := range r.comms {
		out[id] = c.TargetName
	}
	return out
}

// Open creates a kernel-side comm against a target and broadcasts comm_open
// so front-ends can mirror the session.
func (r *Registry) Open(targetName string, data json.RawMessage) (*Comm, error) {
	if targetName == "" {
		return nil, fmt.Errorf("comm target name is empty")
	}

	c := &Comm{ID: uuid.NewString(), TargetName: targetName}
	r.mu.Lock()
	r.comms[c.ID] = c
	r.mu.Unlock()

	content, err := json.Marshal(commContent{CommID: c.ID, TargetName: targetName, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal comm_open content: %w", err)
	}
	r.publish("comm_open", protocol.EmptyObject, content)
	return c, nil
}

// Send broadcasts comm_msg data on an open comm.
func (r *Registry) Send(commID string, data json.RawMessage) error {
	r.mu.Lock()
	_, ok := r.comms[commID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("comm %q is not open", commID)
	}

	content, err := json.Marshal(commContent{CommID: commID, Data: data})
	if err != nil {
		return fmt.Errorf("marshal comm_msg content: %w", err)
	}
	r.publish("comm_msg", protocol.EmptyObject, content)
	return nil
}

// Close removes a kernel-side comm and broadcasts comm_close. Idempotent.
func (r *Registry) Close(commID string, data json.RawMessage) error {
	r.mu.Lock()
	c, ok := r.comms[commID]
	delete(r.comms, commID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if c.OnClose != nil {
		c.OnClose(data)
	}

	content, err := json.Marshal(commContent{CommID: commID, Data: data})
	if err != nil {
		return fmt.Errorf("marshal comm_close content: %w", err)
	}
	r.publish("comm_close", protocol.EmptyObject, content)
	return nil
}

func (r *Registry) publishClose(commID string) {
	content, err := json.Marshal(commContent{CommID: commID})
	if err != nil {
		return
	}
	r.publish("comm_close", protocol.EmptyObject, content)
}
