package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"
)

// TransportType identifies the transport a PDU block arrived on.
type TransportType uint8

const (
	// TransportUDP indicates a UDP datagram.
	TransportUDP TransportType = iota

	// TransportTCP indicates the TCP session stream.
	TransportTCP
)

// String returns the transport name.
func (t TransportType) String() string {
	switch t {
	case TransportUDP:
		return "UDP"
	case TransportTCP:
		return "TCP"
	default:
		return "UNKNOWN"
	}
}

// TransportHeader describes where a block came from.
type TransportHeader struct {
	Source    netip.AddrPort
	Transport TransportType
}

// SourceIP returns the sender address.
func (h TransportHeader) SourceIP() netip.Addr {
	return h.Source.Addr()
}

// SourcePort returns the sender port.
func (h TransportHeader) SourcePort() uint16 {
	return h.Source.Port()
}

// RootHeader is the root layer header.
type RootHeader struct {
	CID CID
}

// E1.33 header layout.
const (
	// SourceNameSize is the fixed size of the source name field.
	SourceNameSize = 64

	// E133HeaderSize is the encoded size of an E133Header.
	E133HeaderSize = SourceNameSize + 4 + 2 + 1

	optionRxAck   = 0x80
	optionTimeout = 0x40
)

// E133Header is the E1.33 framing layer header.
type E133Header struct {
	// Source is the sender's name, at most 63 bytes on the wire.
	Source string

	// Sequence correlates a reply with its request.
	Sequence uint32

	// Endpoint is the target (or replying) endpoint id.
	Endpoint uint16

	// RxAck requests an acknowledgement.
	RxAck bool

	// Timeout marks a reply generated because the endpoint timed out.
	Timeout bool
}

// NewE133Header creates a header with both option flags cleared.
func NewE133Header(source string, sequence uint32, endpoint uint16) E133Header {
	return E133Header{Source: source, Sequence: sequence, Endpoint: endpoint}
}

func (h E133Header) pack() []byte {
	buf := make([]byte, E133HeaderSize)
	name := h.Source
	if len(name) > SourceNameSize-1 {
		name = name[:SourceNameSize-1]
	}
	copy(buf[:SourceNameSize], name)
	binary.BigEndian.PutUint32(buf[SourceNameSize:], h.Sequence)
	binary.BigEndian.PutUint16(buf[SourceNameSize+4:], h.Endpoint)
	var options byte
	if h.RxAck {
		options |= optionRxAck
	}
	if h.Timeout {
		options |= optionTimeout
	}
	buf[SourceNameSize+6] = options
	return buf
}

func unpackE133Header(b []byte) (E133Header, error) {
	if len(b) != E133HeaderSize {
		return E133Header{}, fmt.Errorf("%w: E1.33 header is %d bytes", ErrInvalidHeader, len(b))
	}
	name := b[:SourceNameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	options := b[SourceNameSize+6]
	return E133Header{
		Source:   string(name),
		Sequence: binary.BigEndian.Uint32(b[SourceNameSize:]),
		Endpoint: binary.BigEndian.Uint16(b[SourceNameSize+4:]),
		RxAck:    options&optionRxAck != 0,
		Timeout:  options&optionTimeout != 0,
	}, nil
}
