package kernel

import (
	"encoding/json"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spennihana/xeus/internal/auth"
	"github.com/spennihana/xeus/internal/interpreter"
	"github.com/spennihana/xeus/internal/interpreter/mocks"
)

// newMockKernel wires the kernel to a gomock interpreter so tests can pin
// exactly what reaches the backend.
func newMockKernel(t *testing.T) (*Kernel, *fakeTransport, *mocks.MockInterpreter, *auth.Authenticator) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mi := mocks.NewMockInterpreter(ctrl)
	mi.EXPECT().RegisterPublisher(gomock.Any())
	mi.EXPECT().RegisterStdinSender(gomock.Any())
	mi.EXPECT().RegisterCommManager(gomock.Any())

	a, err := auth.New("hmac-sha256", []byte("handlers-test-key"))
	require.NoError(t, err)

	ft := &fakeTransport{}
	k, err := New(Options{
		KernelID:    "test-kernel",
		UserName:    "tester",
		SessionID:   "session-abc",
		Auth:        a,
		Transport:   ft,
		Interpreter: mi,
	})
	require.NoError(t, err)
	return k, ft, mi, a
}

func TestCompleteRequestDefaultsCursorPos(t *testing.T) {
	k, ft, mi, a := newMockKernel(t)

	mi.EXPECT().Complete("pri", -1).Return(json.RawMessage(`{"status":"ok","matches":["print"]}`), nil)

	k.DispatchShell(request(t, a, "complete_request", `{"code":"pri"}`))

	require.Len(t, ft.shellOut, 1)
	reply := decodeReply(t, a, ft.shellOut[0])
	h, err := reply.ParsedHeader()
	require.NoError(t, err)
	assert.Equal(t, "complete_reply", h.MsgType)
	assert.JSONEq(t, `{"status":"ok","matches":["print"]}`, string(reply.Content))
}

func TestCompleteRequestForwardsCursorPos(t *testing.T) {
	k, _, mi, a := newMockKernel(t)

	mi.EXPECT().Complete("print(x)", 5).Return(json.RawMessage(`{"status":"ok"}`), nil)

	k.DispatchShell(request(t, a, "complete_request", `{"code":"print(x)","cursor_pos":5}`))
}

func TestInspectRequestDefaults(t *testing.T) {
	k, ft, mi, a := newMockKernel(t)

	mi.EXPECT().Inspect("x", -1, 0).Return(json.RawMessage(`{"status":"ok","found":true}`), nil)

	k.DispatchShell(request(t, a, "inspect_request", `{"code":"x"}`))

	require.Len(t, ft.shellOut, 1)
	h, err := decodeReply(t, a, ft.shellOut[0]).ParsedHeader()
	require.NoError(t, err)
	assert.Equal(t, "inspect_reply", h.MsgType)
}

func TestHistoryRequestDefaults(t *testing.T) {
	k, ft, mi, a := newMockKernel(t)

	want := interpreter.HistoryArgs{HistAccessType: "tail"}
	mi.EXPECT().History(want).Return(json.RawMessage(`{"status":"ok","history":[]}`), nil)

	k.DispatchShell(request(t, a, "history_request", `{}`))

	require.Len(t, ft.shellOut, 1)
	h, err := decodeReply(t, a, ft.shellOut[0]).ParsedHeader()
	require.NoError(t, err)
	assert.Equal(t, "history_reply", h.MsgType)
}

func TestHistoryRequestForwardsArgs(t *testing.T) {
	k, _, mi, a := newMockKernel(t)

	want := interpreter.HistoryArgs{
		HistAccessType: "search",
		Output:         true,
		N:              5,
		Pattern:        "x*",
		Unique:         true,
	}
	mi.EXPECT().History(want).Return(json.RawMessage(`{"status":"ok","history":[]}`), nil)

	k.DispatchShell(request(t, a, "history_request",
		`{"hist_access_type":"search","output":true,"n":5,"pattern":"x*","unique":true}`))
}

func TestIsCompleteRequest(t *testing.T) {
	k, ft, mi, a := newMockKernel(t)

	mi.EXPECT().IsComplete("x=1").Return(json.RawMessage(`{"status":"complete"}`), nil)

	k.DispatchShell(request(t, a, "is_complete_request", `{"code":"x=1"}`))

	require.Len(t, ft.shellOut, 1)
	reply := decodeReply(t, a, ft.shellOut[0])
	h, err := reply.ParsedHeader()
	require.NoError(t, err)
	assert.Equal(t, "is_complete_reply", h.MsgType)
	assert.JSONEq(t, `{"status":"complete"}`, string(reply.Content))
}

func TestKernelInfoPreservesInterpreterFields(t *testing.T) {
	k, ft, mi, a := newMockKernel(t)

	mi.EXPECT().KernelInfo().Return(json.RawMessage(`{"implementation":"mock","banner":"b"}`), nil)

	k.DispatchShell(request(t, a, "kernel_info_request", `{}`))

	require.Len(t, ft.shellOut, 1)
	reply := decodeReply(t, a, ft.shellOut[0])
	var content map[string]any
	require.NoError(t, json.Unmarshal(reply.Content, &content))
	assert.Equal(t, "mock", content["implementation"])
	assert.Equal(t, "5.3", content["protocol_version"])
}
