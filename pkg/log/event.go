package log

import (
	"time"
)

// Event is one protocol or control activity record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the synchronization session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole is the side that recorded the event.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address, when a transport knows it.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceID is the device the event concerns (0 if none).
	DeviceID int `cbor:"8,keyasint,omitempty"`

	// ControlID is the control the event concerns (0 if none).
	ControlID int `cbor:"9,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Tree layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Session, binding, power
	Activity    *ActivityEvent    `cbor:"13,keyasint,omitempty"` // Control actions
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionLocal marks events that never crossed a transport.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the frame encoding layer.
	LayerWire Layer = 1
	// LayerTree is the command-tree synchronization layer.
	LayerTree Layer = 2
	// LayerControl is the local device/control layer.
	LayerControl Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerTree:
		return "TREE"
	case LayerControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a command or result tree.
	CategoryMessage Category = 0
	// CategoryActivity indicates a control action (power on, volume set).
	CategoryActivity Category = 1
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
	case CategoryActivity:
		return "ACTIVITY"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side of the synchronization recorded the event.
type Role uint8

const (
	// RoleOriginator owns the real device graph.
	RoleOriginator Role = 0
	// RoleMirror owns the proxy graph.
	RoleMirror Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleOriginator:
		return "ORIGINATOR"
	case RoleMirror:
		return "MIRROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent summarizes a command or result tree.
type MessageEvent struct {
	// Type distinguishes commands from results.
	Type MessageType `cbor:"1,keyasint"`

	// Seq is the frame sequence number (0 when not framed).
	Seq uint32 `cbor:"2,keyasint,omitempty"`

	// Path is the addressed node, e.g. "root/Controls[2]".
	Path string `cbor:"3,keyasint,omitempty"`

	// Properties, Events and Methods name the members carried at Path.
	Properties []string `cbor:"4,keyasint,omitempty"`
	Events     []string `cbor:"5,keyasint,omitempty"`
	Methods    []string `cbor:"6,keyasint,omitempty"`

	// Groups lists the node-group entries, e.g. "Controls[2]".
	Groups []string `cbor:"7,keyasint,omitempty"`

	// Payload is an optional CBOR-compatible rendering of the tree.
	Payload any `cbor:"8,keyasint,omitempty"`
}

// MessageType distinguishes commands from results.
type MessageType uint8

const (
	// MessageTypeCommand indicates a command tree.
	MessageTypeCommand MessageType = 0
	// MessageTypeResult indicates a result tree.
	MessageTypeResult MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeResult:
		return "RESULT"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures lifecycle and state-machine transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// ExpectedDuration is a hint for transient states.
	ExpectedDuration time.Duration `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a session lifecycle change.
	StateEntitySession StateEntity = 0
	// StateEntityBinding indicates a node was bound or unbound.
	StateEntityBinding StateEntity = 1
	// StateEntityPower indicates a power state transition.
	StateEntityPower StateEntity = 2
	// StateEntityDevice indicates a device online change.
	StateEntityDevice StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityBinding:
		return "BINDING"
	case StateEntityPower:
		return "POWER"
	case StateEntityDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// ActivityEvent records a control action and its outcome.
type ActivityEvent struct {
	// Action names what was done, e.g. "PowerOn" or "SetVolumeRaw".
	Action string `cbor:"1,keyasint"`

	// Value is the action argument, if any.
	Value any `cbor:"2,keyasint,omitempty"`

	// Error is the failure text; empty on success.
	Error string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
