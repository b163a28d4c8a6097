package log

import "time"

// Event is a single protocol trace record captured by the hub client.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the underlying websocket connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the hub URL the connection was opened against.
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// Topic is the composite key of the topic involved, if any.
	Topic string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Hub protocol message
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Channel state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Ping/close
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the websocket record layer.
	LayerTransport Layer = 0
	// LayerWire is the hub message layer (decoded JSON).
	LayerWire Layer = 1
	// LayerHub is the subscription and replay layer.
	LayerHub Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerHub:
		return "HUB"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an invocation or completion.
	CategoryMessage Category = 0
	// CategoryControl indicates a control message (ping/close).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw record at the transport layer.
type FrameEvent struct {
	// Size is the record size in bytes (excluding the terminator).
	Size int `cbor:"1,keyasint"`

	// Data is the raw record (may be truncated for large records).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxFrameData is the number of record bytes kept in a FrameEvent.
const MaxFrameData = 512

// NewFrameEvent builds a FrameEvent from a record, truncating long data.
func NewFrameEvent(record []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(record)}
	if len(record) > MaxFrameData {
		fe.Data = append([]byte(nil), record[:MaxFrameData]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), record...)
	}
	return fe
}

// MessageEvent captures a decoded hub message.
type MessageEvent struct {
	// Type is the hub message type number (1 invocation, 3 completion).
	Type uint8 `cbor:"1,keyasint"`

	// InvocationID correlates invocations with completions.
	InvocationID string `cbor:"2,keyasint,omitempty"`

	// Target is the invoked method or pushed event name.
	Target string `cbor:"3,keyasint,omitempty"`

	// Arguments holds the JSON-encoded invocation arguments.
	Arguments []string `cbor:"4,keyasint,omitempty"`

	// Error is the completion error text, if any.
	Error string `cbor:"5,keyasint,omitempty"`

	// Latency is the time from invocation to completion (completion only).
	Latency *time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures channel and subscription lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityChannel indicates a notification channel state change.
	StateEntityChannel StateEntity = 0
	// StateEntityReplay indicates a subscription replay run.
	StateEntityReplay StateEntity = 1
	// StateEntityFailsafe indicates a failsafe coordinator state change.
	StateEntityFailsafe StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityChannel:
		return "CHANNEL"
	case StateEntityReplay:
		return "REPLAY"
	case StateEntityFailsafe:
		return "FAILSAFE"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures hub control messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Reason is the error text carried by a close message.
	Reason string `cbor:"2,keyasint,omitempty"`

	// AllowReconnect mirrors the close message flag.
	AllowReconnect bool `cbor:"3,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgPing indicates a ping message.
	ControlMsgPing ControlMsgType = 0
	// ControlMsgClose indicates a close message.
	ControlMsgClose ControlMsgType = 1
	// ControlMsgHandshake indicates a handshake request or response.
	ControlMsgHandshake ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgClose:
		return "CLOSE"
	case ControlMsgHandshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
