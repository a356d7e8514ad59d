package kernel

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spennihana/xeus/internal/auth"
	"github.com/spennihana/xeus/internal/events"
	"github.com/spennihana/xeus/internal/history"
	"github.com/spennihana/xeus/internal/interpreter/echo"
	"github.com/spennihana/xeus/internal/protocol"
	"github.com/spennihana/xeus/internal/transport/inproc"
)

// Full path: echo interpreter behind the dispatcher over the inproc
// transport, driven like a front-end would.
func setupE2E(t *testing.T) (*inproc.Transport, *auth.Authenticator) {
	t.Helper()

	a, err := auth.New("hmac-sha256", []byte("e2e-key"))
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}

	hist, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	interp, err := echo.New(context.Background(), hist)
	if err != nil {
		t.Fatalf("echo.New: %v", err)
	}

	tr := inproc.New()
	_, err = New(Options{
		KernelID:    "e2e-kernel",
		UserName:    "tester",
		Auth:        a,
		Transport:   tr,
		Interpreter: interp,
		Hub:         events.NewHub(64),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	go tr.Run()
	t.Cleanup(func() { tr.Stop(); tr.Wait() })

	return tr, a
}

func recvFrames(t *testing.T, ch <-chan [][]byte) [][]byte {
	t.Helper()
	select {
	case frames := <-ch:
		return frames
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frames")
		return nil
	}
}

func TestEndToEndExecute(t *testing.T) {
	tr, a := setupE2E(t)

	tr.InjectShell(request(t, a, "execute_request", `{"code":"x = 41 + 1"}`))

	reply := decodeReply(t, a, recvFrames(t, tr.ShellOut))
	h, err := reply.ParsedHeader()
	if err != nil {
		t.Fatalf("parse reply header: %v", err)
	}
	if h.MsgType != "execute_reply" {
		t.Errorf("reply msg_type = %q", h.MsgType)
	}

	var content struct {
		Status         string `json:"status"`
		ExecutionCount int    `json:"execution_count"`
	}
	if err := json.Unmarshal(reply.Content, &content); err != nil {
		t.Fatalf("parse reply content: %v", err)
	}
	if content.Status != "ok" || content.ExecutionCount != 1 {
		t.Errorf("reply content = %s", reply.Content)
	}

	// iopub carries busy, execute_input, execute_result, idle in order.
	var types []string
	for i := 0; i < 4; i++ {
		pub := decodePub(t, a, recvFrames(t, tr.IOPub))
		h, err := pub.ParsedHeader()
		if err != nil {
			t.Fatalf("parse publication header: %v", err)
		}
		types = append(types, h.MsgType)
	}
	want := []string{"status", "execute_input", "execute_result", "status"}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("iopub order = %v, want %v", types, want)
		}
	}
}

func TestEndToEndKernelInfoAndShutdown(t *testing.T) {
	tr, a := setupE2E(t)

	tr.InjectShell(request(t, a, "kernel_info_request", `{}`))
	reply := decodeReply(t, a, recvFrames(t, tr.ShellOut))
	var info struct {
		ProtocolVersion string `json:"protocol_version"`
		Implementation  string `json:"implementation"`
	}
	if err := json.Unmarshal(reply.Content, &info); err != nil {
		t.Fatalf("parse kernel_info_reply: %v", err)
	}
	if info.ProtocolVersion != protocol.Version || info.Implementation != "xeus-go" {
		t.Errorf("kernel info = %s", reply.Content)
	}

	tr.InjectShell(request(t, a, "shutdown_request", `{"restart":false}`))
	reply = decodeReply(t, a, recvFrames(t, tr.ShellOut))
	h, err := reply.ParsedHeader()
	if err != nil {
		t.Fatalf("parse reply header: %v", err)
	}
	if h.MsgType != "shutdown_reply" {
		t.Errorf("reply msg_type = %q", h.MsgType)
	}

	deadline := time.After(2 * time.Second)
	for !tr.Stopped() {
		select {
		case <-deadline:
			t.Fatal("transport not stopped after shutdown_request")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEndToEndHistoryAcrossRequests(t *testing.T) {
	tr, a := setupE2E(t)

	tr.InjectShell(request(t, a, "execute_request", `{"code":"first"}`))
	recvFrames(t, tr.ShellOut)
	tr.InjectShell(request(t, a, "execute_request", `{"code":"second"}`))
	recvFrames(t, tr.ShellOut)

	tr.InjectShell(request(t, a, "history_request", `{"hist_access_type":"tail","n":10}`))
	reply := decodeReply(t, a, recvFrames(t, tr.ShellOut))

	var content struct {
		History [][]any `json:"history"`
	}
	if err := json.Unmarshal(reply.Content, &content); err != nil {
		t.Fatalf("parse history_reply: %v", err)
	}
	if len(content.History) != 2 {
		t.Fatalf("history = %v, want 2 entries", content.History)
	}
	if content.History[0][2] != "first" || content.History[1][2] != "second" {
		t.Errorf("history order = %v", content.History)
	}
}
