package rdm

// ResponseCode reports how an RDM request completed.
type ResponseCode uint8

const (
	// CompletedOK indicates a response was received and is valid.
	CompletedOK ResponseCode = iota

	// WasBroadcast indicates the request was broadcast; no response is expected.
	WasBroadcast

	// FailedToSend indicates the request could not be sent.
	FailedToSend

	// Timeout indicates no response arrived in time.
	Timeout

	// InvalidResponse indicates the response could not be decoded.
	InvalidResponse

	// UnknownUID indicates no responder with the destination UID exists.
	UnknownUID

	// ChecksumIncorrect indicates the response checksum did not match.
	ChecksumIncorrect

	// TransactionMismatch indicates the transaction number did not match.
	TransactionMismatch

	// SubDeviceMismatch indicates the sub-device did not match.
	SubDeviceMismatch

	// SrcUIDMismatch indicates the response came from the wrong UID.
	SrcUIDMismatch

	// DestUIDMismatch indicates the response was addressed elsewhere.
	DestUIDMismatch

	// WrongSubStartCode indicates the sub-start code was not 0x01.
	WrongSubStartCode

	// PacketTooShort indicates the response was shorter than the minimum size.
	PacketTooShort

	// PacketLengthMismatch indicates the length field did not match the data.
	PacketLengthMismatch

	// ParamLengthMismatch indicates the PDL did not match the data.
	ParamLengthMismatch

	// InvalidCommandClass indicates the command class was not recognised.
	InvalidCommandClass

	// CommandClassMismatch indicates the response command class was wrong.
	CommandClassMismatch

	// InvalidResponseType indicates the response type was not recognised.
	InvalidResponseType

	// DiscoveryNotSupported indicates the handler cannot perform discovery.
	DiscoveryNotSupported

	// DUBResponse indicates a discovery-unique-branch response was received.
	DUBResponse
)

// ResponseCodeToString returns a human readable description of a response code.
func ResponseCodeToString(code ResponseCode) string {
	switch code {
	case CompletedOK:
		return "Completed Ok"
	case WasBroadcast:
		return "Request was broadcast"
	case FailedToSend:
		return "Failed to send request"
	case Timeout:
		return "Response Timeout"
	case InvalidResponse:
		return "Invalid Response"
	case UnknownUID:
		return "Unknown UID"
	case ChecksumIncorrect:
		return "Incorrect Checksum"
	case TransactionMismatch:
		return "Transaction number mismatch"
	case SubDeviceMismatch:
		return "Sub device mismatch"
	case SrcUIDMismatch:
		return "Source UID in response doesn't match"
	case DestUIDMismatch:
		return "Destination UID in response doesn't match"
	case WrongSubStartCode:
		return "Incorrect sub start code"
	case PacketTooShort:
		return "RDM response was smaller than the minimum size"
	case PacketLengthMismatch:
		return "The length field of packet didn't match length received"
	case ParamLengthMismatch:
		return "The parameter length exceeds the remaining packet size"
	case InvalidCommandClass:
		return "The command class was not one of GET_RESPONSE or SET_RESPONSE"
	case CommandClassMismatch:
		return "The command class didn't match the request"
	case InvalidResponseType:
		return "The response type was not ACK, ACK_OVERFLOW, ACK_TIMER or NACK"
	case DiscoveryNotSupported:
		return "The output plugin does not support DISCOVERY commands"
	case DUBResponse:
		return "DUB response"
	default:
		return "Unknown"
	}
}

// String returns the response code description.
func (c ResponseCode) String() string {
	return ResponseCodeToString(c)
}

// CommandClass is the RDM command class.
type CommandClass uint8

const (
	DiscoverCommand         CommandClass = 0x10
	DiscoverCommandResponse CommandClass = 0x11
	GetCommand              CommandClass = 0x20
	GetCommandResponse      CommandClass = 0x21
	SetCommand              CommandClass = 0x30
	SetCommandResponse      CommandClass = 0x31
)

// String returns the command class name.
func (c CommandClass) String() string {
	switch c {
	case DiscoverCommand:
		return "DISCOVER"
	case DiscoverCommandResponse:
		return "DISCOVER_RESPONSE"
	case GetCommand:
		return "GET"
	case GetCommandResponse:
		return "GET_RESPONSE"
	case SetCommand:
		return "SET"
	case SetCommandResponse:
		return "SET_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// IsRequest reports whether c is a request command class.
func (c CommandClass) IsRequest() bool {
	return c == DiscoverCommand || c == GetCommand || c == SetCommand
}

// ResponseType is carried in the port id field of a response.
type ResponseType uint8

const (
	ResponseTypeAck         ResponseType = 0x00
	ResponseTypeAckTimer    ResponseType = 0x01
	ResponseTypeNackReason  ResponseType = 0x02
	ResponseTypeAckOverflow ResponseType = 0x03
)

// NackReason explains a NACK response.
type NackReason uint16

const (
	NRUnknownPID              NackReason = 0x0000
	NRFormatError             NackReason = 0x0001
	NRHardwareFault           NackReason = 0x0002
	NRProxyReject             NackReason = 0x0003
	NRWriteProtect            NackReason = 0x0004
	NRUnsupportedCommandClass NackReason = 0x0005
	NRDataOutOfRange          NackReason = 0x0006
	NRBufferFull              NackReason = 0x0007
	NRPacketSizeUnsupported   NackReason = 0x0008
	NRSubDeviceOutOfRange     NackReason = 0x0009
)

// Parameter IDs used by this module.
const (
	PIDSupportedParameters  uint16 = 0x0050
	PIDDeviceInfo           uint16 = 0x0060
	PIDManufacturerLabel    uint16 = 0x0081
	PIDDeviceLabel          uint16 = 0x0082
	PIDSoftwareVersionLabel uint16 = 0x00c0
	PIDIdentifyDevice       uint16 = 0x1000
)

// Sub-device numbers.
const (
	RootRDMDevice    uint16 = 0x0000
	AllRDMSubDevices uint16 = 0xffff
)

// MaxLabelSize is the longest label a responder stores.
const MaxLabelSize = 32
