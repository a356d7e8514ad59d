package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spennihana/xeus/internal/auth"
)

func testAuth(t *testing.T) *auth.Authenticator {
	t.Helper()
	a, err := auth.New("hmac-sha256", []byte("codec-test-key"))
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	return a
}

func testMessage(t *testing.T) *Message {
	t.Helper()
	header, err := NewHeader("execute_request", "tester", "session-1").Encode()
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	return &Message{
		Identities:   [][]byte{[]byte("client-7")},
		Header:       header,
		ParentHeader: EmptyObject,
		Metadata:     EmptyObject,
		Content:      json.RawMessage(`{"code":"x=1","silent":false}`),
		Buffers:      [][]byte{{0x01, 0x02, 0x03}},
	}
}

func TestRoundTrip(t *testing.T) {
	a := testAuth(t)
	msg := testMessage(t)

	frames := msg.Serialize(a)
	got, err := Deserialize(frames, a)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if len(got.Identities) != 1 || !bytes.Equal(got.Identities[0], []byte("client-7")) {
		t.Errorf("identities = %q", got.Identities)
	}
	if !bytes.Equal(got.Header, msg.Header) {
		t.Errorf("header = %s, want %s", got.Header, msg.Header)
	}
	if !bytes.Equal(got.ParentHeader, msg.ParentHeader) {
		t.Errorf("parent header = %s, want %s", got.ParentHeader, msg.ParentHeader)
	}
	if !bytes.Equal(got.Content, msg.Content) {
		t.Errorf("content = %s, want %s", got.Content, msg.Content)
	}
	if len(got.Buffers) != 1 || !bytes.Equal(got.Buffers[0], msg.Buffers[0]) {
		t.Errorf("buffers = %v, want %v", got.Buffers, msg.Buffers)
	}
}

func TestSerializeSignatureMatchesSign(t *testing.T) {
	a := testAuth(t)
	msg := testMessage(t)

	frames := msg.Serialize(a)
	// frames: [ident, delim, sig, header, parent, metadata, content, buffer]
	sig := frames[2]
	want := a.Sign(frames[3], frames[4], frames[5], frames[6])
	if string(sig) != want {
		t.Errorf("signature frame = %s, want %s", sig, want)
	}
}

func TestDeserializeMissingDelimiter(t *testing.T) {
	a := testAuth(t)
	frames := [][]byte{[]byte("ident"), []byte("{}"), []byte("{}")}

	_, err := Deserialize(frames, a)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestDeserializeTruncated(t *testing.T) {
	a := testAuth(t)
	msg := testMessage(t)
	frames := msg.Serialize(a)

	// Drop the content frame and the buffer.
	_, err := Deserialize(frames[:len(frames)-2], a)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestDeserializeBadSignature(t *testing.T) {
	a := testAuth(t)
	msg := testMessage(t)
	frames := msg.Serialize(a)
	frames[2] = []byte("0000000000000000000000000000000000000000000000000000000000000000")

	_, err := Deserialize(frames, a)
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}
}

func TestDeserializeTamperedContent(t *testing.T) {
	a := testAuth(t)
	msg := testMessage(t)
	frames := msg.Serialize(a)

	// Flip a byte in every signed frame in turn; all must fail verification.
	for i := 3; i <= 6; i++ {
		tampered := make([][]byte, len(frames))
		copy(tampered, frames)
		frame := make([]byte, len(frames[i]))
		copy(frame, frames[i])
		frame[0] ^= 0x01
		tampered[i] = frame

		if _, err := Deserialize(tampered, a); !errors.Is(err, ErrBadSignature) {
			t.Errorf("frame %d: err = %v, want ErrBadSignature", i, err)
		}
	}
}

func TestDeserializeBadJSON(t *testing.T) {
	// Signing is disabled so the bad JSON survives verification.
	a, err := auth.New("hmac-sha256", nil)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}

	frames := [][]byte{
		[]byte("ident"),
		delimiter,
		nil,
		[]byte(`{not json`),
		[]byte(`{}`),
		[]byte(`{}`),
		[]byte(`{}`),
	}

	_, err = Deserialize(frames, a)
	if !errors.Is(err, ErrBadJSON) {
		t.Errorf("err = %v, want ErrBadJSON", err)
	}
}

func TestPubRoundTrip(t *testing.T) {
	a := testAuth(t)
	header, _ := NewHeader("status", "kernel", "session-1").Encode()
	msg := &PubMessage{
		Topic:        "kernel_core.test.status",
		Header:       header,
		ParentHeader: EmptyObject,
		Metadata:     EmptyObject,
		Content:      json.RawMessage(`{"execution_state":"busy"}`),
	}

	frames := msg.Serialize(a)
	if string(frames[0]) != "kernel_core.test.status" {
		t.Errorf("topic frame = %q", frames[0])
	}

	got, err := DeserializePub(frames, a)
	if err != nil {
		t.Fatalf("DeserializePub: %v", err)
	}
	if got.Topic != msg.Topic {
		t.Errorf("topic = %q, want %q", got.Topic, msg.Topic)
	}
	if !bytes.Equal(got.Content, msg.Content) {
		t.Errorf("content = %s, want %s", got.Content, msg.Content)
	}
}

func TestNewHeaderFields(t *testing.T) {
	h := NewHeader("kernel_info_request", "alice", "sess")
	if h.MsgID == "" {
		t.Error("msg_id is empty")
	}
	if h.MsgType != "kernel_info_request" || h.Username != "alice" || h.Session != "sess" {
		t.Errorf("unexpected header %+v", h)
	}
	if h.Version != Version {
		t.Errorf("version = %q, want %q", h.Version, Version)
	}
	if h.Date == "" {
		t.Error("date is empty")
	}

	h2 := NewHeader("kernel_info_request", "alice", "sess")
	if h2.MsgID == h.MsgID {
		t.Error("msg_id not unique across headers")
	}
}

func TestEmptySectionsSerializeAsEmptyObjects(t *testing.T) {
	a := testAuth(t)
	header, _ := NewHeader("interrupt_reply", "kernel", "s").Encode()
	msg := &Message{Header: header}

	frames := msg.Serialize(a)
	// No identities: [delim, sig, header, parent, metadata, content].
	for i := 2; i <= 5; i++ {
		if i == 2 {
			continue // header
		}
		if string(frames[i]) != "{}" {
			t.Errorf("frame %d = %q, want {}", i, frames[i])
		}
	}

	if _, err := Deserialize(frames, a); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
}
