package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
)

// ACNPacketIdentifier starts every UDP and TCP preamble.
var ACNPacketIdentifier = []byte{0x41, 0x53, 0x43, 0x2d, 0x45, 0x31, 0x2e, 0x31, 0x37, 0x00, 0x00, 0x00}

// Preamble sizes.
const (
	// UDPPreambleSize is preamble size, postamble size and identifier.
	UDPPreambleSize = 4 + 12

	// TCPPreambleSize is the identifier and the block length.
	TCPPreambleSize = 12 + 4

	// DefaultMaxBlockSize bounds a TCP block.
	DefaultMaxBlockSize = 65536
)

var udpPreamble = append([]byte{0x00, 0x10, 0x00, 0x00}, ACNPacketIdentifier...)

// IncomingUDPTransport strips the UDP preamble and feeds the pipeline.
type IncomingUDPTransport struct {
	pipeline *Pipeline
}

// NewIncomingUDPTransport creates the UDP input path.
func NewIncomingUDPTransport(pipeline *Pipeline) *IncomingUDPTransport {
	return &IncomingUDPTransport{pipeline: pipeline}
}

// Receive handles one datagram.
func (t *IncomingUDPTransport) Receive(data []byte, source netip.AddrPort) error {
	if len(data) < UDPPreambleSize || !bytes.Equal(data[:UDPPreambleSize], udpPreamble) {
		return fmt.Errorf("udp: %w", ErrInvalidPreamble)
	}
	header := TransportHeader{Source: source, Transport: TransportUDP}
	return t.pipeline.Inflate(header, data[UDPPreambleSize:])
}

// IncomingTCPTransport reassembles preamble-delimited blocks from a TCP
// stream. Bytes must be passed in arrival order. Once the stream carries an
// invalid preamble it cannot be resynchronised and all further data is dropped.
type IncomingTCPTransport struct {
	pipeline     *Pipeline
	source       netip.AddrPort
	buf          []byte
	invalid      bool
	maxBlockSize uint32
}

// NewIncomingTCPTransport creates the input path for one TCP session.
func NewIncomingTCPTransport(pipeline *Pipeline, source netip.AddrPort) *IncomingTCPTransport {
	return &IncomingTCPTransport{
		pipeline:     pipeline,
		source:       source,
		maxBlockSize: DefaultMaxBlockSize,
	}
}

// StreamValid reports whether the stream is still being decoded.
func (t *IncomingTCPTransport) StreamValid() bool {
	return !t.invalid
}

// Receive appends a chunk read from the connection and inflates every
// complete block. The first block error is returned after the remaining
// complete blocks have been processed.
func (t *IncomingTCPTransport) Receive(chunk []byte) error {
	if t.invalid {
		return nil
	}
	t.buf = append(t.buf, chunk...)

	header := TransportHeader{Source: t.source, Transport: TransportTCP}
	var firstErr error
	for len(t.buf) >= TCPPreambleSize {
		if !bytes.Equal(t.buf[:len(ACNPacketIdentifier)], ACNPacketIdentifier) {
			t.invalid = true
			t.buf = nil
			return fmt.Errorf("tcp: %w", ErrInvalidPreamble)
		}
		length := binary.BigEndian.Uint32(t.buf[len(ACNPacketIdentifier):TCPPreambleSize])
		if length > t.maxBlockSize {
			t.invalid = true
			t.buf = nil
			return fmt.Errorf("tcp: %w: %d > %d", ErrBlockTooLarge, length, t.maxBlockSize)
		}
		total := TCPPreambleSize + int(length)
		if len(t.buf) < total {
			break
		}
		block := t.buf[TCPPreambleSize:total]
		if err := t.pipeline.Inflate(header, block); err != nil && firstErr == nil {
			firstErr = err
		}
		t.buf = t.buf[total:]
	}
	if len(t.buf) == 0 {
		t.buf = nil
	}
	return firstErr
}

// OutgoingTransport writes a root PDU block to the network.
type OutgoingTransport interface {
	Send(block []byte) error
}

// PacketSender sends a datagram to an address.
type PacketSender interface {
	SendTo(data []byte, dst netip.AddrPort) error
}

// OutgoingUDPTransport sends blocks as unicast datagrams to one destination.
type OutgoingUDPTransport struct {
	sender PacketSender
	dst    netip.AddrPort
}

// NewOutgoingUDPTransport creates a UDP output path to dst.
func NewOutgoingUDPTransport(sender PacketSender, dst netip.AddrPort) *OutgoingUDPTransport {
	return &OutgoingUDPTransport{sender: sender, dst: dst}
}

// Send prepends the UDP preamble and sends the datagram.
func (t *OutgoingUDPTransport) Send(block []byte) error {
	packet := make([]byte, 0, UDPPreambleSize+len(block))
	packet = append(packet, udpPreamble...)
	packet = append(packet, block...)
	return t.sender.SendTo(packet, t.dst)
}

// OutgoingTCPTransport writes blocks to a TCP stream.
type OutgoingTCPTransport struct {
	w io.Writer
}

// NewOutgoingTCPTransport creates a TCP output path.
func NewOutgoingTCPTransport(w io.Writer) *OutgoingTCPTransport {
	return &OutgoingTCPTransport{w: w}
}

// Send prepends the TCP preamble and writes the block in a single call.
func (t *OutgoingTCPTransport) Send(block []byte) error {
	packet := make([]byte, TCPPreambleSize+len(block))
	copy(packet, ACNPacketIdentifier)
	binary.BigEndian.PutUint32(packet[len(ACNPacketIdentifier):], uint32(len(block)))
	copy(packet[TCPPreambleSize:], block)
	if _, err := t.w.Write(packet); err != nil {
		return fmt.Errorf("tcp send: %w", err)
	}
	return nil
}
