package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// PipePrefix marks outbound pipe frames.
const PipePrefix = "pipe:"

// ChatMessageSchema is the JSON Schema an inbound frame must satisfy to be
// classified as chat. Additional properties are allowed.
const ChatMessageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["sender", "content", "timestamp"],
  "properties": {
    "sender": {
      "type": "string"
    },
    "content": {
      "type": "string"
    },
    "timestamp": {
      "type": "integer",
      "minimum": 0
    }
  }
}`

var chatSchema = mustCompileSchema(ChatMessageSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("relay: invalid chat schema: %v", err))
	}
	return schema
}

// ChatMessage is a structured chat entry. Timestamp is set by the sender
// and is never rewritten by the relay.
type ChatMessage struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp uint64 `json:"timestamp"`
}

// FrameKind tells which topic a frame belongs to.
type FrameKind int

const (
	FramePipe FrameKind = iota
	FrameChat
)

// String returns the topic label used in logs and metrics.
func (k FrameKind) String() string {
	switch k {
	case FrameChat:
		return "chat"
	default:
		return "pipe"
	}
}

// Frame is one classified text frame.
type Frame struct {
	Kind FrameKind
	Text string
	Chat ChatMessage
}

// ClassifyFrame sorts an inbound payload into chat or pipe data. Any payload
// that does not parse as a chat message is pipe data, verbatim.
func ClassifyFrame(payload []byte) Frame {
	if msg, ok := parseChat(payload); ok {
		return Frame{Kind: FrameChat, Chat: msg}
	}
	return Frame{Kind: FramePipe, Text: string(payload)}
}

func parseChat(payload []byte) (ChatMessage, bool) {
	result, err := chatSchema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil || !result.Valid() {
		return ChatMessage{}, false
	}

	// Fields are taken by exact key. encoding/json would also fill Sender
	// from "Sender" or "SENDER", which the schema treats as extra fields.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ChatMessage{}, false
	}

	var msg ChatMessage
	// The schema accepts 1.0 as an integer; a strict decode still rejects it.
	if json.Unmarshal(fields["sender"], &msg.Sender) != nil ||
		json.Unmarshal(fields["content"], &msg.Content) != nil ||
		json.Unmarshal(fields["timestamp"], &msg.Timestamp) != nil {
		return ChatMessage{}, false
	}
	return msg, true
}

// EncodePipe frames a pipe line for delivery to a subscriber.
func EncodePipe(text string) []byte {
	return []byte(PipePrefix + text)
}

// EncodeChat serializes a chat message for delivery to a subscriber.
func EncodeChat(msg ChatMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat message: %w", err)
	}
	return data, nil
}

// DecodeFrame interprets an outbound frame as received by a subscriber.
func DecodeFrame(payload []byte) (Frame, error) {
	text := string(payload)
	if strings.HasPrefix(text, PipePrefix) {
		return Frame{Kind: FramePipe, Text: strings.TrimPrefix(text, PipePrefix)}, nil
	}

	var msg ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrUnrecognizedFrame, err)
	}
	return Frame{Kind: FrameChat, Chat: msg}, nil
}
