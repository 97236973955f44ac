package rdm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire constants.
const (
	// StartCode is the RDM start code; it is carried by the PDU vector.
	StartCode = 0xcc

	// SubStartCode is the first byte of an encoded message.
	SubStartCode = 0x01

	// headerSize is the size from the start code up to and including the PDL.
	headerSize = 24

	// checksumSize is the size of the trailing checksum.
	checksumSize = 2

	// MaxParamDataSize is the largest parameter data block.
	MaxParamDataSize = 231
)

// Parse errors.
var (
	ErrPacketTooShort      = errors.New("rdm: packet too short")
	ErrWrongSubStartCode   = errors.New("rdm: wrong sub start code")
	ErrLengthMismatch      = errors.New("rdm: message length mismatch")
	ErrParamLengthMismatch = errors.New("rdm: parameter length mismatch")
	ErrChecksumMismatch    = errors.New("rdm: checksum mismatch")
	ErrInvalidCommandClass = errors.New("rdm: invalid command class")
	ErrParamDataTooLarge   = errors.New("rdm: parameter data too large")
	ErrInvalidResponseType = errors.New("rdm: invalid response type")
)

// Callback receives the outcome of an RDM request. It is called exactly once.
// packets holds the raw response frames when the handler has them.
type Callback func(code ResponseCode, response *Response, packets []string)

// command holds the fields shared by requests and responses.
type command struct {
	Source            UID
	Destination       UID
	TransactionNumber uint8
	PortID            uint8
	MessageCount      uint8
	SubDevice         uint16
	CommandClass      CommandClass
	ParamID           uint16
	ParamData         []byte
}

// Request is an RDM GET, SET or DISCOVER command.
type Request struct {
	command
}

// NewRequest creates a request.
func NewRequest(src, dst UID, tn uint8, portID uint8, subDevice uint16, cc CommandClass, pid uint16, data []byte) *Request {
	return &Request{command{
		Source:            src,
		Destination:       dst,
		TransactionNumber: tn,
		PortID:            portID,
		SubDevice:         subDevice,
		CommandClass:      cc,
		ParamID:           pid,
		ParamData:         data,
	}}
}

// Response is the reply to a Request.
type Response struct {
	command
}

// ResponseType returns the response type (stored in the port id field).
func (r *Response) ResponseType() ResponseType {
	return ResponseType(r.PortID)
}

// NackReason returns the NACK reason carried in the parameter data.
func (r *Response) NackReason() (NackReason, bool) {
	if r.ResponseType() != ResponseTypeNackReason || len(r.ParamData) != 2 {
		return 0, false
	}
	return NackReason(binary.BigEndian.Uint16(r.ParamData)), true
}

// NewAckResponse builds an ACK for req carrying data.
func NewAckResponse(req *Request, data []byte) *Response {
	return newResponse(req, ResponseTypeAck, data)
}

// NewNackResponse builds a NACK for req.
func NewNackResponse(req *Request, reason NackReason) *Response {
	var data [2]byte
	binary.BigEndian.PutUint16(data[:], uint16(reason))
	return newResponse(req, ResponseTypeNackReason, data[:])
}

func newResponse(req *Request, rt ResponseType, data []byte) *Response {
	return &Response{command{
		Source:            req.Destination,
		Destination:       req.Source,
		TransactionNumber: req.TransactionNumber,
		PortID:            uint8(rt),
		SubDevice:         req.SubDevice,
		CommandClass:      req.CommandClass + 1,
		ParamID:           req.ParamID,
		ParamData:         data,
	}}
}

// Pack encodes the request without the start code.
func (r *Request) Pack() ([]byte, error) {
	return r.command.pack()
}

// Pack encodes the response without the start code.
func (r *Response) Pack() ([]byte, error) {
	return r.command.pack()
}

// ParseRequest decodes a request. The data must not include the start code.
func ParseRequest(data []byte) (*Request, error) {
	c, err := parseCommand(data)
	if err != nil {
		return nil, err
	}
	if !c.CommandClass.IsRequest() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommandClass, c.CommandClass)
	}
	return &Request{*c}, nil
}

// ParseResponse decodes a response. The data must not include the start code.
func ParseResponse(data []byte) (*Response, error) {
	c, err := parseCommand(data)
	if err != nil {
		return nil, err
	}
	switch c.CommandClass {
	case DiscoverCommandResponse, GetCommandResponse, SetCommandResponse:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommandClass, c.CommandClass)
	}
	if ResponseType(c.PortID) > ResponseTypeAckOverflow {
		return nil, fmt.Errorf("%w: %d", ErrInvalidResponseType, c.PortID)
	}
	return &Response{*c}, nil
}

func (c *command) pack() ([]byte, error) {
	if len(c.ParamData) > MaxParamDataSize {
		return nil, fmt.Errorf("%w: %d", ErrParamDataTooLarge, len(c.ParamData))
	}
	msgLen := headerSize + len(c.ParamData)
	buf := make([]byte, msgLen-1+checksumSize)
	buf[0] = SubStartCode
	buf[1] = byte(msgLen)
	c.Destination.put(buf[2:8])
	c.Source.put(buf[8:14])
	buf[14] = c.TransactionNumber
	buf[15] = c.PortID
	buf[16] = c.MessageCount
	binary.BigEndian.PutUint16(buf[17:19], c.SubDevice)
	buf[19] = byte(c.CommandClass)
	binary.BigEndian.PutUint16(buf[20:22], c.ParamID)
	buf[22] = byte(len(c.ParamData))
	copy(buf[23:], c.ParamData)
	binary.BigEndian.PutUint16(buf[msgLen-1:], checksum(buf[:msgLen-1]))
	return buf, nil
}

func parseCommand(data []byte) (*command, error) {
	if len(data) < headerSize-1+checksumSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(data))
	}
	if data[0] != SubStartCode {
		return nil, fmt.Errorf("%w: 0x%02x", ErrWrongSubStartCode, data[0])
	}
	msgLen := int(data[1])
	if msgLen < headerSize || msgLen-1+checksumSize != len(data) {
		return nil, fmt.Errorf("%w: field %d, have %d bytes", ErrLengthMismatch, msgLen, len(data))
	}
	pdl := int(data[22])
	if headerSize+pdl != msgLen {
		return nil, fmt.Errorf("%w: pdl %d", ErrParamLengthMismatch, pdl)
	}
	want := binary.BigEndian.Uint16(data[msgLen-1:])
	if got := checksum(data[:msgLen-1]); got != want {
		return nil, fmt.Errorf("%w: got 0x%04x want 0x%04x", ErrChecksumMismatch, got, want)
	}

	c := &command{
		Destination:       uidFrom(data[2:8]),
		Source:            uidFrom(data[8:14]),
		TransactionNumber: data[14],
		PortID:            data[15],
		MessageCount:      data[16],
		SubDevice:         binary.BigEndian.Uint16(data[17:19]),
		CommandClass:      CommandClass(data[19]),
		ParamID:           binary.BigEndian.Uint16(data[20:22]),
	}
	if pdl > 0 {
		c.ParamData = append([]byte(nil), data[23:23+pdl]...)
	}
	return c, nil
}

// checksum sums the start code and data, mod 2^16.
func checksum(data []byte) uint16 {
	sum := uint16(StartCode)
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}
