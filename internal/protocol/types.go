// Package protocol implements the multi-frame wire format spoken on the
// kernel sockets: routing identities, a delimiter, an HMAC signature, and
// four JSON sections (header, parent header, metadata, content) followed by
// optional opaque binary buffers.
//
// The four signed sections are carried as raw bytes end to end. Whatever
// bytes were signed are the bytes emitted, so signer and verifier always
// agree on the encoding.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the wire protocol version advertised in kernel_info_reply.
const Version = "5.3"

// delimiter separates routing identities from the signed section.
var delimiter = []byte("<IDS|MSG>")

// EmptyObject is the canonical empty JSON section.
var EmptyObject = json.RawMessage("{}")

// Header identifies a single message.
type Header struct {
	MsgID    string `json:"msg_id"`
	Username string `json:"username"`
	Session  string `json:"session"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

// NewHeader returns a header with a fresh msg_id and the current UTC time.
func NewHeader(msgType, username, session string) Header {
	return Header{
		MsgID:    uuid.NewString(),
		Username: username,
		Session:  session,
		Date:     time.Now().UTC().Format(time.RFC3339),
		MsgType:  msgType,
		Version:  Version,
	}
}

// Encode marshals the header once; the resulting bytes are what gets signed.
func (h Header) Encode() (json.RawMessage, error) {
	return json.Marshal(h)
}

// Message is a request or reply carrying routing identities.
type Message struct {
	Identities   [][]byte
	Header       json.RawMessage
	ParentHeader json.RawMessage
	Metadata     json.RawMessage
	Content      json.RawMessage
	Buffers      [][]byte
}

// PubMessage is a broadcast publication; a topic frame replaces identities.
type PubMessage struct {
	Topic        string
	Header       json.RawMessage
	ParentHeader json.RawMessage
	Metadata     json.RawMessage
	Content      json.RawMessage
	Buffers      [][]byte
}

// ParsedHeader decodes the raw header section.
func (m *Message) ParsedHeader() (Header, error) {
	var h Header
	err := json.Unmarshal(m.Header, &h)
	return h, err
}

// ParsedHeader decodes the raw header section.
func (m *PubMessage) ParsedHeader() (Header, error) {
	var h Header
	err := json.Unmarshal(m.Header, &h)
	return h, err
}

// orEmpty substitutes the canonical empty object for a nil section.
func orEmpty(section json.RawMessage) json.RawMessage {
	if len(section) == 0 {
		return EmptyObject
	}
	return section
}
