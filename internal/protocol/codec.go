package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spennihana/xeus/internal/auth"
)

// Decode failures. Callers match with errors.Is; the dispatcher drops the
// message without replying on any of them.
var (
	ErrMalformedFrame = errors.New("wire message has no delimiter frame")
	ErrTruncated      = errors.New("wire message truncated")
	ErrBadSignature   = errors.New("wire message signature mismatch")
	ErrBadJSON        = errors.New("wire message has invalid JSON section")
)

// Deserialize parses and authenticates a wire message.
//
// Frame layout: [identities..., <IDS|MSG>, signature, header, parent_header,
// metadata, content, buffers...].
func Deserialize(frames [][]byte, a *auth.Authenticator) (*Message, error) {
	split := -1
	for i, frame := range frames {
		if bytes.Equal(frame, delimiter) {
			split = i
			break
		}
	}
	if split < 0 {
		return nil, ErrMalformedFrame
	}

	// Signature frame plus the four signed sections.
	if len(frames) < split+6 {
		return nil, fmt.Errorf("%w: %d frames after delimiter, need 5", ErrTruncated, len(frames)-split-1)
	}

	signature := frames[split+1]
	signed := frames[split+2 : split+6]
	if !a.Verify(signature, signed...) {
		return nil, ErrBadSignature
	}

	for _, section := range signed {
		if !json.Valid(section) {
			return nil, fmt.Errorf("%w: %q", ErrBadJSON, truncateForLog(section))
		}
	}

	return &Message{
		Identities:   frames[:split],
		Header:       json.RawMessage(signed[0]),
		ParentHeader: json.RawMessage(signed[1]),
		Metadata:     json.RawMessage(signed[2]),
		Content:      json.RawMessage(signed[3]),
		Buffers:      frames[split+6:],
	}, nil
}

// DeserializePub parses and authenticates a publication. The first frame is
// the topic; there are no identity frames.
func DeserializePub(frames [][]byte, a *auth.Authenticator) (*PubMessage, error) {
	if len(frames) < 2 || !bytes.Equal(frames[1], delimiter) {
		return nil, ErrMalformedFrame
	}

	msg, err := Deserialize(frames[1:], a)
	if err != nil {
		return nil, err
	}

	return &PubMessage{
		Topic:        string(frames[0]),
		Header:       msg.Header,
		ParentHeader: msg.ParentHeader,
		Metadata:     msg.Metadata,
		Content:      msg.Content,
		Buffers:      msg.Buffers,
	}, nil
}

// Serialize renders the message to wire frames, signing the four sections.
func (m *Message) Serialize(a *auth.Authenticator) [][]byte {
	header := orEmpty(m.Header)
	parent := orEmpty(m.ParentHeader)
	metadata := orEmpty(m.Metadata)
	content := orEmpty(m.Content)

	sig := a.Sign(header, parent, metadata, content)

	frames := make([][]byte, 0, len(m.Identities)+6+len(m.Buffers))
	frames = append(frames, m.Identities...)
	frames = append(frames, delimiter, []byte(sig), header, parent, metadata, content)
	frames = append(frames, m.Buffers...)
	return frames
}

// Serialize renders the publication to wire frames with the topic first.
func (m *PubMessage) Serialize(a *auth.Authenticator) [][]byte {
	inner := Message{
		Header:       m.Header,
		ParentHeader: m.ParentHeader,
		Metadata:     m.Metadata,
		Content:      m.Content,
		Buffers:      m.Buffers,
	}
	return append([][]byte{[]byte(m.Topic)}, inner.Serialize(a)...)
}

// truncateForLog keeps dropped-message diagnostics bounded.
func truncateForLog(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
