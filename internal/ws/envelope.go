// Package ws implements the realtime side channel: a registry of live
// WebSocket sessions keyed by user id and the JSON envelope protocol spoken
// over them.
package ws

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Type identifies the payload of an Envelope.
type Type string

const (
	TypeSystem       Type = "system"
	TypeError        Type = "error"
	TypeHeartbeat    Type = "heartbeat"
	TypeChat         Type = "chat"
	TypeTyping       Type = "typing"
	TypeContactApply Type = "contact_apply"
	TypeContactReply Type = "contact_reply"
)

// Envelope is the unit of every frame sent to a client.
//
// MessageID is set for anything a client may deduplicate or acknowledge and
// is encoded as a JSON string, since browsers cannot hold 64-bit integers.
// SenderID is 0 for server-originated frames.
type Envelope struct {
	Type      Type      `json:"type"`
	MessageID *uint64   `json:"messageId,string,omitempty"`
	SenderID  int64     `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// inbound is the shape accepted from clients.
type inbound struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type typingData struct {
	ReceiverID userRef `json:"receiverId"`
}

// userRef is a user id sent by a client either as a JSON number or as a
// decimal string.
type userRef int64

func (r *userRef) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*r = userRef(n)
	return nil
}
