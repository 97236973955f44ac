package pdu

import "fmt"

// RootSender wraps blocks in a root PDU carrying the local CID.
type RootSender struct {
	cid CID
}

// NewRootSender creates a root layer encoder.
func NewRootSender(cid CID) *RootSender {
	return &RootSender{cid: cid}
}

// CID returns the CID stamped on every root PDU.
func (s *RootSender) CID() CID {
	return s.cid
}

// Pack builds a root PDU with the given vector around data.
func (s *RootSender) Pack(vector uint32, data []byte) ([]byte, error) {
	return packPDU(vector32(vector), s.cid[:], data)
}

// SendPDU packs data in a root PDU and sends it.
func (s *RootSender) SendPDU(vector uint32, data []byte, transport OutgoingTransport) error {
	block, err := s.Pack(vector, data)
	if err != nil {
		return fmt.Errorf("root layer: %w", err)
	}
	return transport.Send(block)
}

// E133Sender builds E1.33 packets.
type E133Sender struct {
	root *RootSender
}

// NewE133Sender creates an E1.33 layer encoder on top of root.
func NewE133Sender(root *RootSender) *E133Sender {
	return &E133Sender{root: root}
}

// PackRDM builds the root block for one RDM message. rdmData excludes the
// start code.
func (s *E133Sender) PackRDM(header E133Header, rdmData []byte) ([]byte, error) {
	rdmPDU, err := packPDU([]byte{VectorRDMNetData}, nil, rdmData)
	if err != nil {
		return nil, fmt.Errorf("rdm layer: %w", err)
	}
	return s.packE133(header, rdmPDU)
}

// SendRDM sends one RDM message through transport.
func (s *E133Sender) SendRDM(header E133Header, rdmData []byte, transport OutgoingTransport) error {
	block, err := s.PackRDM(header, rdmData)
	if err != nil {
		return err
	}
	return transport.Send(block)
}

// PackHeartbeat builds an E1.33 PDU with no RDM data.
func (s *E133Sender) PackHeartbeat(header E133Header) ([]byte, error) {
	return s.packE133(header, nil)
}

// SendHeartbeat sends an E1.33 PDU with no RDM data. Peers treat any valid
// E1.33 traffic as proof the connection is alive.
func (s *E133Sender) SendHeartbeat(header E133Header, transport OutgoingTransport) error {
	block, err := s.PackHeartbeat(header)
	if err != nil {
		return err
	}
	return transport.Send(block)
}

func (s *E133Sender) packE133(header E133Header, data []byte) ([]byte, error) {
	e133PDU, err := packPDU(vector32(VectorFramingRDMNet), header.pack(), data)
	if err != nil {
		return nil, fmt.Errorf("e1.33 layer: %w", err)
	}
	return s.root.Pack(VectorRootE133, e133PDU)
}
