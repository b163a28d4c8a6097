package wire

import (
	"encoding/json"
	"fmt"
)

// Protocol identification sent in the handshake.
const (
	ProtocolName    = "json"
	ProtocolVersion = 1
)

// Hub method and event names.
const (
	// MethodJoinRoom subscribes the connection to a single room.
	MethodJoinRoom = "JoinRoom"

	// MethodJoinSite subscribes the connection to every room of a site.
	MethodJoinSite = "JoinSite"

	// TargetQueueUpdated is the server-pushed change notification.
	TargetQueueUpdated = "QueueUpdated"
)

// MessageType identifies a hub protocol record.
type MessageType int

const (
	TypeInvocation       MessageType = 1
	TypeStreamItem       MessageType = 2
	TypeCompletion       MessageType = 3
	TypeStreamInvocation MessageType = 4
	TypeCancelInvocation MessageType = 5
	TypePing             MessageType = 6
	TypeClose            MessageType = 7
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeInvocation:
		return "INVOCATION"
	case TypeStreamItem:
		return "STREAM_ITEM"
	case TypeCompletion:
		return "COMPLETION"
	case TypeStreamInvocation:
		return "STREAM_INVOCATION"
	case TypeCancelInvocation:
		return "CANCEL_INVOCATION"
	case TypePing:
		return "PING"
	case TypeClose:
		return "CLOSE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

// IsValid returns true if t is a known message type.
func (t MessageType) IsValid() bool {
	return t >= TypeInvocation && t <= TypeClose
}

// HandshakeRequest is the first record sent by the client.
type HandshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// HandshakeResponse is the server's answer to the handshake.
type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// Message is a decoded hub protocol record. Only the fields relevant to the
// message type are populated.
type Message struct {
	Type MessageType `json:"type"`

	// Invocation and Completion.
	InvocationID string `json:"invocationId,omitempty"`

	// Invocation.
	Target    string            `json:"target,omitempty"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`

	// Completion.
	Result json.RawMessage `json:"result,omitempty"`

	// Completion and Close.
	Error string `json:"error,omitempty"`

	// Close.
	AllowReconnect bool `json:"allowReconnect,omitempty"`
}

// NewInvocation builds an invocation record. An empty invocationID makes it
// a fire-and-forget call that the server will not complete.
func NewInvocation(invocationID, target string, args ...any) (*Message, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		raw = append(raw, data)
	}
	return &Message{
		Type:         TypeInvocation,
		InvocationID: invocationID,
		Target:       target,
		Arguments:    raw,
	}, nil
}

// NewCompletion builds a completion record. A non-empty errMsg marks failure.
func NewCompletion(invocationID, errMsg string) *Message {
	return &Message{
		Type:         TypeCompletion,
		InvocationID: invocationID,
		Error:        errMsg,
	}
}

// NewPing builds a ping record.
func NewPing() *Message {
	return &Message{Type: TypePing}
}

// NewClose builds a close record.
func NewClose(errMsg string, allowReconnect bool) *Message {
	return &Message{Type: TypeClose, Error: errMsg, AllowReconnect: allowReconnect}
}
