package auth

import (
	"strings"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	a, err := New("hmac-sha256", []byte("test-session-key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frames := [][]byte{
		[]byte(`{"msg_id":"1","msg_type":"kernel_info_request"}`),
		[]byte(`{}`),
		[]byte(`{}`),
		[]byte(`{}`),
	}

	sig := a.Sign(frames...)
	if sig == "" {
		t.Fatal("Sign returned empty signature with non-empty key")
	}
	if !a.Verify([]byte(sig), frames...) {
		t.Error("Verify rejected a signature produced by Sign")
	}
}

func TestVerifyRejectsTamperedFrames(t *testing.T) {
	a, err := New("", []byte("test-session-key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frames := [][]byte{
		[]byte(`{"msg_id":"1"}`),
		[]byte(`{}`),
		[]byte(`{}`),
		[]byte(`{"code":"x=1"}`),
	}
	sig := a.Sign(frames...)

	// Flip one byte in each signed frame in turn.
	for i := range frames {
		tampered := make([][]byte, len(frames))
		for j, f := range frames {
			cp := make([]byte, len(f))
			copy(cp, f)
			tampered[j] = cp
		}
		tampered[i][0] ^= 0x01

		if a.Verify([]byte(sig), tampered...) {
			t.Errorf("Verify accepted signature after tampering with frame %d", i)
		}
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	a1, _ := New("hmac-sha256", []byte("key-one"))
	a2, _ := New("hmac-sha256", []byte("key-two"))

	frames := [][]byte{[]byte(`{}`), []byte(`{}`), []byte(`{}`), []byte(`{}`)}
	sig := a1.Sign(frames...)

	if a2.Verify([]byte(sig), frames...) {
		t.Error("Verify accepted signature computed with a different key")
	}
}

func TestEmptyKeyDisablesSigning(t *testing.T) {
	a, err := New("hmac-sha256", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frames := [][]byte{[]byte(`{}`), []byte(`{}`), []byte(`{}`), []byte(`{}`)}

	if sig := a.Sign(frames...); sig != "" {
		t.Errorf("Sign = %q, want empty with empty key", sig)
	}
	if !a.Verify(nil, frames...) {
		t.Error("Verify rejected empty signature with empty key")
	}
	if a.Verify([]byte("deadbeef"), frames...) {
		t.Error("Verify accepted non-empty signature with empty key")
	}
}

func TestSchemes(t *testing.T) {
	for _, scheme := range []string{"", "hmac-sha256", "hmac-sha1", "hmac-sha512"} {
		if _, err := New(scheme, []byte("k")); err != nil {
			t.Errorf("New(%q) failed: %v", scheme, err)
		}
	}

	_, err := New("hmac-md5", []byte("k"))
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("New(hmac-md5) error = %v, want unsupported scheme", err)
	}
}
