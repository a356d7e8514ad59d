// Package echo is the builtin interpreter: it evaluates nothing and echoes
// code back as its result. It exists so the kernel runs end to end without
// an external backend, and so tests exercise the full interpreter surface
// (publications, history, stdin, comms).
package echo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spennihana/xeus/internal/history"
	"github.com/spennihana/xeus/internal/interpreter"
	"github.com/spennihana/xeus/internal/log"
	"github.com/spennihana/xeus/internal/protocol"
)

const languageVersion = "0.1.0"

// Interpreter echoes executed code. History is optional; without a store,
// history_request replies with an empty list.
type Interpreter struct {
	mu        sync.Mutex
	publish   interpreter.Publisher
	sendStdin interpreter.StdinSender
	comms     interpreter.CommManager
	hist      *history.Store
	session   int
	count     int
	lastInput string
	logger    *slog.Logger
}

// New creates the echo interpreter. hist may be nil.
func New(ctx context.Context, hist *history.Store) (*Interpreter, error) {
	session := 1
	if hist != nil {
		max, err := hist.MaxSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("determine history session: %w", err)
		}
		session = max + 1
	}

	return &Interpreter{
		hist:    hist,
		session: session,
		logger:  log.WithComponent("echo"),
	}, nil
}

// RegisterPublisher implements interpreter.Interpreter.
func (i *Interpreter) RegisterPublisher(publish interpreter.Publisher) {
	i.publish = publish
}

// RegisterStdinSender implements interpreter.Interpreter.
func (i *Interpreter) RegisterStdinSender(send interpreter.StdinSender) {
	i.sendStdin = send
}

// RegisterCommManager implements interpreter.Interpreter.
func (i *Interpreter) RegisterCommManager(comms interpreter.CommManager) {
	i.comms = comms
}

// Execute echoes code as a text/plain execute_result.
func (i *Interpreter) Execute(code string, silent, storeHistory bool, userExpressions json.RawMessage, allowStdin bool) (json.RawMessage, error) {
	i.mu.Lock()
	i.count++
	count := i.count
	session := i.session
	i.mu.Unlock()

	if !silent && i.publish != nil {
		input, _ := json.Marshal(map[string]any{
			"code":            code,
			"execution_count": count,
		})
		i.publish("execute_input", protocol.EmptyObject, input)
	}

	if storeHistory && i.hist != nil {
		if err := i.hist.Append(context.Background(), session, count, code); err != nil {
			return nil, fmt.Errorf("record history: %w", err)
		}
	}

	if !silent && i.publish != nil {
		result, _ := json.Marshal(map[string]any{
			"execution_count": count,
			"data":            map[string]string{"text/plain": code},
			"metadata":        map[string]any{},
		})
		i.publish("execute_result", protocol.EmptyObject, result)
	}

	if len(userExpressions) == 0 {
		userExpressions = protocol.EmptyObject
	}
	reply, err := json.Marshal(map[string]any{
		"status":           "ok",
		"execution_count":  count,
		"payload":          []any{},
		"user_expressions": json.RawMessage(userExpressions),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal execute reply: %w", err)
	}
	return reply, nil
}

// Complete offers the executed history lines that extend the current word.
func (i *Interpreter) Complete(code string, cursorPos int) (json.RawMessage, error) {
	if cursorPos < 0 || cursorPos > len(code) {
		cursorPos = len(code)
	}
	start := strings.LastIndexAny(code[:cursorPos], " \t\n") + 1
	prefix := code[start:cursorPos]

	matches := []string{}
	if prefix != "" && i.hist != nil {
		entries, err := i.hist.Search(context.Background(), prefix+"*", 20, true)
		if err != nil {
			return nil, fmt.Errorf("search history for completions: %w", err)
		}
		for _, e := range entries {
			matches = append(matches, e.Source)
		}
	}

	return json.Marshal(map[string]any{
		"status":       "ok",
		"matches":      matches,
		"cursor_start": start,
		"cursor_end":   cursorPos,
		"metadata":     map[string]any{},
	})
}

// Inspect reports the echoed form of the code under the cursor.
func (i *Interpreter) Inspect(code string, cursorPos, detailLevel int) (json.RawMessage, error) {
	found := strings.TrimSpace(code) != ""
	data := map[string]any{}
	if found {
		data["text/plain"] = fmt.Sprintf("echo: %s", strings.TrimSpace(code))
	}
	return json.Marshal(map[string]any{
		"status":   "ok",
		"found":    found,
		"data":     data,
		"metadata": map[string]any{},
	})
}

// History replays recorded lines per the requested access type.
func (i *Interpreter) History(args interpreter.HistoryArgs) (json.RawMessage, error) {
	var entries []history.Entry
	var err error

	if i.hist != nil {
		ctx := context.Background()
		switch args.HistAccessType {
		case "search":
			entries, err = i.hist.Search(ctx, args.Pattern, args.N, args.Unique)
		case "range":
			entries, err = i.hist.Range(ctx, args.Session, args.Start, args.Stop)
		default: // "tail"
			entries, err = i.hist.Tail(ctx, args.N)
		}
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
	}

	items := make([][]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, []any{e.Session, e.Line, e.Source})
	}
	return json.Marshal(map[string]any{
		"status":  "ok",
		"history": items,
	})
}

// IsComplete treats a trailing backslash as a continuation.
func (i *Interpreter) IsComplete(code string) (json.RawMessage, error) {
	status := "complete"
	indent := ""
	if strings.HasSuffix(strings.TrimRight(code, " \t\n"), "\\") {
		status = "incomplete"
		indent = "  "
	}
	reply := map[string]any{"status": status}
	if status == "incomplete" {
		reply["indent"] = indent
	}
	return json.Marshal(reply)
}

// KernelInfo describes the echo backend. The core injects protocol_version.
func (i *Interpreter) KernelInfo() (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"implementation":         "xeus-go",
		"implementation_version": languageVersion,
		"language_info": map[string]any{
			"name":           "echo",
			"version":        languageVersion,
			"mimetype":       "text/plain",
			"file_extension": ".txt",
		},
		"banner": "xeus-go echo kernel",
	})
}

// Interrupt is a no-op; echo execution never blocks.
func (i *Interpreter) Interrupt() {
	i.logger.Debug("interrupt requested")
}

// InputReply records the front-end's answer to the last input_request.
func (i *Interpreter) InputReply(value string) {
	i.mu.Lock()
	i.lastInput = value
	i.mu.Unlock()
	i.logger.Debug("input reply received", "value", value)
}

// LastInput returns the most recent input_reply value.
func (i *Interpreter) LastInput() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastInput
}

// RequestInput prompts the front-end on the stdin channel.
func (i *Interpreter) RequestInput(prompt string, password bool) error {
	if i.sendStdin == nil {
		return fmt.Errorf("stdin sender not registered")
	}
	content, err := json.Marshal(map[string]any{
		"prompt":   prompt,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("marshal input_request content: %w", err)
	}
	i.sendStdin("input_request", protocol.EmptyObject, content)
	return nil
}

var _ interpreter.Interpreter = (*Interpreter)(nil)
