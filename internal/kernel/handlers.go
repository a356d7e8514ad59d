package kernel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spennihana/xeus/internal/interpreter"
	"github.com/spennihana/xeus/internal/protocol"
)

// abortDrainTimeout bounds the post-error shell queue drain.
const abortDrainTimeout = 50 * time.Millisecond

func (k *Kernel) executeRequest(ctx *requestContext, msg *protocol.Message) error {
	var content struct {
		Code            string          `json:"code"`
		Silent          bool            `json:"silent"`
		StoreHistory    *bool           `json:"store_history"`
		UserExpressions json.RawMessage `json:"user_expressions"`
		AllowStdin      *bool           `json:"allow_stdin"`
		StopOnError     bool            `json:"stop_on_error"`
	}
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse execute_request content: %w", err)
	}

	storeHistory := content.StoreHistory == nil || *content.StoreHistory
	if content.Silent {
		storeHistory = false
	}
	allowStdin := content.AllowStdin == nil || *content.AllowStdin

	metadata, err := json.Marshal(map[string]string{
		"started": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal execute metadata: %w", err)
	}

	reply, err := k.interp.Execute(content.Code, content.Silent, storeHistory, content.UserExpressions, allowStdin)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	status := replyStatus(reply)
	if err := k.sendReply(ctx, "execute_reply", metadata, reply); err != nil {
		return err
	}

	if !content.Silent && status == "error" && content.StopOnError {
		k.transport.AbortQueue(k.abortRequest, abortDrainTimeout)
	}
	return nil
}

func (k *Kernel) completeRequest(ctx *requestContext, msg *protocol.Message) error {
	var content struct {
		Code      string `json:"code"`
		CursorPos *int   `json:"cursor_pos"`
	}
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse complete_request content: %w", err)
	}
	cursorPos := -1
	if content.CursorPos != nil {
		cursorPos = *content.CursorPos
	}

	reply, err := k.interp.Complete(content.Code, cursorPos)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return k.sendReply(ctx, "complete_reply", protocol.EmptyObject, reply)
}

func (k *Kernel) inspectRequest(ctx *requestContext, msg *protocol.Message) error {
	var content struct {
		Code        string `json:"code"`
		CursorPos   *int   `json:"cursor_pos"`
		DetailLevel int    `json:"detail_level"`
	}
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse inspect_request content: %w", err)
	}
	cursorPos := -1
	if content.CursorPos != nil {
		cursorPos = *content.CursorPos
	}

	reply, err := k.interp.Inspect(content.Code, cursorPos, content.DetailLevel)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	return k.sendReply(ctx, "inspect_reply", protocol.EmptyObject, reply)
}

func (k *Kernel) historyRequest(ctx *requestContext, msg *protocol.Message) error {
	content := struct {
		HistAccessType string `json:"hist_access_type"`
		Output         bool   `json:"output"`
		Raw            bool   `json:"raw"`
		Session        int    `json:"session"`
		Start          int    `json:"start"`
		Stop           int    `json:"stop"`
		N              int    `json:"n"`
		Pattern        string `json:"pattern"`
		Unique         bool   `json:"unique"`
	}{HistAccessType: "tail"}
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse history_request content: %w", err)
	}

	reply, err := k.interp.History(interpreter.HistoryArgs{
		HistAccessType: content.HistAccessType,
		Output:         content.Output,
		Raw:            content.Raw,
		Session:        content.Session,
		Start:          content.Start,
		Stop:           content.Stop,
		N:              content.N,
		Pattern:        content.Pattern,
		Unique:         content.Unique,
	})
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return k.sendReply(ctx, "history_reply", protocol.EmptyObject, reply)
}

func (k *Kernel) isCompleteRequest(ctx *requestContext, msg *protocol.Message) error {
	var content struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(msg.Content, &content); err != nil {
		return fmt.Errorf("parse is_complete_request content: %w", err)
	}

	reply, err := k.interp.IsComplete(content.Code)
	if err != nil {
		return fmt.Errorf("is_complete: %w", err)
	}
	return k.sendReply(ctx, "is_complete_reply", protocol.EmptyObject, reply)
}

func (k *Kernel) commInfoRequest(ctx *requestContext, msg *protocol.Message) error {
	var content struct {
		TargetName string `json:"target_name"`
	}
	if len(msg.Content) > 0 {
		if err := json.Unmarshal(msg.Content, &content); err != nil {
			return fmt.Errorf("parse comm_info_request content: %w", err)
		}
	}

	type commInfo struct {
		TargetName string `json:"target_name"`
	}
	comms := make(map[string]commInfo)
	for id, target := range k.comms.Comms() {
		if content.TargetName == "" || target == content.TargetName {
			comms[id] = commInfo{TargetName: target}
		}
	}

	reply, err := json.Marshal(map[string]any{
		"comms":  comms,
		"status": "ok",
	})
	if err != nil {
		return fmt.Errorf("marshal comm_info_reply: %w", err)
	}
	return k.sendReply(ctx, "comm_info_reply", protocol.EmptyObject, reply)
}

func (k *Kernel) commOpen(ctx *requestContext, msg *protocol.Message) error {
	return k.comms.HandleOpen(msg)
}

func (k *Kernel) commClose(ctx *requestContext, msg *protocol.Message) error {
	return k.comms.HandleClose(msg)
}

func (k *Kernel) commMsg(ctx *requestContext, msg *protocol.Message) error {
	return k.comms.HandleMessage(msg)
}

func (k *Kernel) kernelInfoRequest(ctx *requestContext, msg *protocol.Message) error {
	info, err := k.interp.KernelInfo()
	if err != nil {
		return fmt.Errorf("kernel_info: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(info, &fields); err != nil {
		return fmt.Errorf("parse interpreter kernel info: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	version, err := json.Marshal(protocol.Version)
	if err != nil {
		return fmt.Errorf("marshal protocol version: %w", err)
	}
	fields["protocol_version"] = version

	reply, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal kernel_info_reply: %w", err)
	}
	return k.sendReply(ctx, "kernel_info_reply", protocol.EmptyObject, reply)
}

func (k *Kernel) shutdownRequest(ctx *requestContext, msg *protocol.Message) error {
	var content struct {
		Restart bool `json:"restart"`
	}
	if len(msg.Content) > 0 {
		if err := json.Unmarshal(msg.Content, &content); err != nil {
			return fmt.Errorf("parse shutdown_request content: %w", err)
		}
	}

	k.transport.Stop()

	reply, err := json.Marshal(map[string]bool{"restart": content.Restart})
	if err != nil {
		return fmt.Errorf("marshal shutdown content: %w", err)
	}
	k.publishAs(ctx.parentHeader, "shutdown", protocol.EmptyObject, reply)
	return k.sendReply(ctx, "shutdown_reply", protocol.EmptyObject, reply)
}

func (k *Kernel) interruptRequest(ctx *requestContext, msg *protocol.Message) error {
	k.interp.Interrupt()
	return k.sendReply(ctx, "interrupt_reply", protocol.EmptyObject, protocol.EmptyObject)
}

// abortRequest is the drain callback handed to the transport after an
// execution error with stop_on_error: every queued shell request is
// answered with a matching error reply so the front-end is not left
// waiting on a dead queue.
func (k *Kernel) abortRequest(frames [][]byte) {
	msg, err := protocol.Deserialize(frames, k.auth)
	if err != nil {
		k.logger.Error("could not deserialize queued message during abort", "error", err)
		return
	}

	header, err := msg.ParsedHeader()
	if err != nil {
		k.logger.Error("queued message has unparseable header during abort", "error", err)
		return
	}

	replyType := header.MsgType
	if idx := strings.LastIndex(replyType, "_request"); idx >= 0 {
		replyType = replyType[:idx] + "_reply"
	}

	content, err := json.Marshal(map[string]string{"status": "error"})
	if err != nil {
		k.logger.Error("marshal abort reply content", "error", err)
		return
	}

	ctx := &requestContext{
		channel:      Shell,
		identities:   msg.Identities,
		parentHeader: msg.Header,
	}
	if err := k.sendReply(ctx, replyType, protocol.EmptyObject, content); err != nil {
		k.logger.Error("send abort reply failed", "msg_type", replyType, "error", err)
	}
}

// replyStatus pulls the status field out of an interpreter reply, defaulting
// to error when absent.
func replyStatus(reply json.RawMessage) string {
	var content struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(reply, &content); err != nil || content.Status == "" {
		return "error"
	}
	return content.Status
}
