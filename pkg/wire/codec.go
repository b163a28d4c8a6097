package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/queuesync/queuesync-go/pkg/topic"
)

// Codec errors.
var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrHandshakeRejected  = errors.New("handshake rejected")
)

// EncodeHandshake returns the handshake request record for the JSON protocol.
func EncodeHandshake() ([]byte, error) {
	return json.Marshal(HandshakeRequest{Protocol: ProtocolName, Version: ProtocolVersion})
}

// DecodeHandshakeResponse parses the server's handshake answer.
// A response carrying an error is reported as ErrHandshakeRejected.
func DecodeHandshakeResponse(data []byte) error {
	var resp HandshakeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("%w: handshake response: %v", ErrMalformedMessage, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Error)
	}
	return nil
}

// EncodeMessage encodes a message to a single JSON record (without separator).
func EncodeMessage(msg *Message) ([]byte, error) {
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, int(msg.Type))
	}
	return json.Marshal(msg)
}

// DecodeMessage decodes a single JSON record.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, int(msg.Type))
	}
	if msg.Type == TypeInvocation && msg.Target == "" {
		return nil, fmt.Errorf("%w: invocation without target", ErrMalformedMessage)
	}
	if msg.Type == TypeCompletion && msg.InvocationID == "" {
		return nil, fmt.Errorf("%w: completion without invocationId", ErrMalformedMessage)
	}
	return &msg, nil
}

// DecodeQueueUpdated extracts the notification carried by a QueueUpdated
// invocation.
func DecodeQueueUpdated(msg *Message) (topic.Notification, error) {
	if msg.Type != TypeInvocation || msg.Target != TargetQueueUpdated {
		return topic.Notification{}, fmt.Errorf("%w: not a %s invocation", ErrMalformedMessage, TargetQueueUpdated)
	}
	if len(msg.Arguments) != 1 {
		return topic.Notification{}, fmt.Errorf("%w: %s expects 1 argument, got %d",
			ErrMalformedMessage, TargetQueueUpdated, len(msg.Arguments))
	}
	var n topic.Notification
	if err := json.Unmarshal(msg.Arguments[0], &n); err != nil {
		return topic.Notification{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if !n.Valid() {
		return topic.Notification{}, fmt.Errorf("%w: notification without site", ErrMalformedMessage)
	}
	return n, nil
}

// JoinInvocation returns the hub method and arguments that join t.
func JoinInvocation(t topic.Topic) (string, []any) {
	if t.Kind() == topic.KindRoom {
		return MethodJoinRoom, []any{t.SiteKey, t.RoomKey}
	}
	return MethodJoinSite, []any{t.SiteKey}
}
