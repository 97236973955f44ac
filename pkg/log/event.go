package log

import (
	"time"

	"github.com/e133-protocol/e133-go/pkg/rdm"
)

// Event represents a protocol event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the TCP session, or "udp" for datagrams.
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Transport is "TCP" or "UDP".
	Transport string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// CID is the local component identifier.
	CID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Heartbeat   *HeartbeatEvent   `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
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

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the preamble layer (raw blocks).
	LayerTransport Layer = 0
	// LayerPDU is the Root/E1.33/RDM PDU layer.
	LayerPDU Layer = 1
	// LayerDevice is the device orchestration layer.
	LayerDevice Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerPDU:
		return "PDU"
	case LayerDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an RDM request or response.
	CategoryMessage Category = 0
	// CategoryControl indicates a heartbeat.
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

// FrameEvent captures a raw block at the transport layer.
type FrameEvent struct {
	// Size is the block size in bytes, preamble included.
	Size int `cbor:"1,keyasint"`

	// Data is the raw block (may be truncated for large blocks).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxFrameData is the number of block bytes kept in a FrameEvent.
const MaxFrameData = 512

// NewFrameEvent captures data, truncating it to MaxFrameData bytes.
func NewFrameEvent(data []byte) *FrameEvent {
	f := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameData {
		data = data[:MaxFrameData]
		f.Truncated = true
	}
	f.Data = append([]byte(nil), data...)
	return f
}

// MessageEvent captures a decoded E1.33 RDM message.
type MessageEvent struct {
	// Type distinguishes request and response.
	Type MessageType `cbor:"1,keyasint"`

	// Sequence is the E1.33 sequence number.
	Sequence uint32 `cbor:"2,keyasint"`

	// Endpoint is the target or replying endpoint.
	Endpoint uint16 `cbor:"3,keyasint"`

	// SourceName is the E1.33 source name of the sender.
	SourceName string `cbor:"4,keyasint,omitempty"`

	// CommandClass is the RDM command class.
	CommandClass *rdm.CommandClass `cbor:"5,keyasint,omitempty"`

	// ParamID is the RDM parameter id.
	ParamID *uint16 `cbor:"6,keyasint,omitempty"`

	// ResponseCode is the endpoint's completion code (response only).
	ResponseCode *rdm.ResponseCode `cbor:"7,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to reply.
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"8,keyasint,omitempty"`
}

// MessageType distinguishes requests and responses.
type MessageType uint8

const (
	// MessageTypeRequest indicates an RDM request.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates an RDM response.
	MessageTypeResponse MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and endpoint lifecycle events.
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
	// StateEntityConnection indicates a TCP connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityHealth indicates a health monitor state change.
	StateEntityHealth StateEntity = 1
	// StateEntityEndpoint indicates an endpoint was added or removed.
	StateEntityEndpoint StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityHealth:
		return "HEALTH"
	case StateEntityEndpoint:
		return "ENDPOINT"
	default:
		return "UNKNOWN"
	}
}

// HeartbeatEvent captures a heartbeat sent or counted as received.
type HeartbeatEvent struct {
	// Sequence is the E1.33 sequence of the heartbeat (0 when received
	// traffic was counted as a heartbeat).
	Sequence uint32 `cbor:"1,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the RDM response code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
