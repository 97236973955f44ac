package pdu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// RDMHandler receives one RDM message addressed to an endpoint.
// raw is the RDM message without the start code.
type RDMHandler func(transport TransportHeader, header E133Header, raw []byte)

// e133Message is a decoded E1.33 PDU and the RDM payloads it carries.
type e133Message struct {
	root     RootHeader
	header   E133Header
	payloads [][]byte
}

// RootInflator decodes the root layer and hands E1.33 data to its child.
type RootInflator struct {
	e133 *E133Inflator
}

// NewRootInflator creates a root layer decoder on top of e133.
func NewRootInflator(e133 *E133Inflator) *RootInflator {
	return &RootInflator{e133: e133}
}

func (i *RootInflator) decode(block []byte) ([]e133Message, error) {
	pdus, err := splitBlock(block, 4, CIDSize)
	if err != nil {
		return nil, fmt.Errorf("root layer: %w", err)
	}

	var out []e133Message
	for _, p := range pdus {
		vector := binary.BigEndian.Uint32(p.vector)
		if vector != VectorRootE133 {
			return nil, fmt.Errorf("root layer: %w: %d", ErrUnknownVector, vector)
		}
		cid, err := CIDFromBytes(p.header)
		if err != nil {
			return nil, fmt.Errorf("root layer: %w", err)
		}
		msgs, err := i.e133.decode(p.data)
		if err != nil {
			return nil, err
		}
		for j := range msgs {
			msgs[j].root = RootHeader{CID: cid}
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// E133Inflator decodes the E1.33 framing layer.
type E133Inflator struct {
	rdm *RDMInflator
}

// NewE133Inflator creates an E1.33 layer decoder on top of rdm.
func NewE133Inflator(rdm *RDMInflator) *E133Inflator {
	return &E133Inflator{rdm: rdm}
}

func (i *E133Inflator) decode(block []byte) ([]e133Message, error) {
	pdus, err := splitBlock(block, 4, E133HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("e1.33 layer: %w", err)
	}

	out := make([]e133Message, 0, len(pdus))
	for _, p := range pdus {
		vector := binary.BigEndian.Uint32(p.vector)
		if vector != VectorFramingRDMNet {
			return nil, fmt.Errorf("e1.33 layer: %w: %d", ErrUnknownVector, vector)
		}
		header, err := unpackE133Header(p.header)
		if err != nil {
			return nil, fmt.Errorf("e1.33 layer: %w", err)
		}
		payloads, err := i.rdm.decode(p.data)
		if err != nil {
			return nil, err
		}
		out = append(out, e133Message{header: header, payloads: payloads})
	}
	return out, nil
}

// RDMInflator decodes the RDM layer and routes each message to the handler
// installed for its endpoint.
type RDMInflator struct {
	mu       sync.RWMutex
	handlers map[uint16]RDMHandler

	onE133Data func(TransportHeader)
	logger     *slog.Logger
}

// NewRDMInflator creates an RDM layer decoder. onE133Data, if not nil, runs
// once for every E1.33 PDU dispatched, before its RDM payloads.
func NewRDMInflator(onE133Data func(TransportHeader)) *RDMInflator {
	return &RDMInflator{
		handlers:   make(map[uint16]RDMHandler),
		onE133Data: onE133Data,
	}
}

// SetLogger sets the logger used for dropped messages. Pass nil to disable.
func (i *RDMInflator) SetLogger(logger *slog.Logger) {
	i.logger = logger
}

// SetRDMHandler installs the handler for an endpoint, replacing any previous one.
func (i *RDMInflator) SetRDMHandler(endpoint uint16, handler RDMHandler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handlers[endpoint] = handler
}

// RemoveRDMHandler removes the handler for an endpoint.
// It returns false if none was installed.
func (i *RDMInflator) RemoveRDMHandler(endpoint uint16) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.handlers[endpoint]; !ok {
		return false
	}
	delete(i.handlers, endpoint)
	return true
}

// HandlerIDs returns the endpoints with an installed handler, sorted.
func (i *RDMInflator) HandlerIDs() []uint16 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ids := make([]uint16, 0, len(i.handlers))
	for id := range i.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (i *RDMInflator) decode(block []byte) ([][]byte, error) {
	pdus, err := splitBlock(block, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("rdm layer: %w", err)
	}

	payloads := make([][]byte, 0, len(pdus))
	for _, p := range pdus {
		if p.vector[0] != VectorRDMNetData {
			return nil, fmt.Errorf("rdm layer: %w: 0x%02x", ErrUnknownVector, p.vector[0])
		}
		payloads = append(payloads, p.data)
	}
	return payloads, nil
}

func (i *RDMInflator) dispatch(transport TransportHeader, msg e133Message) {
	if i.onE133Data != nil {
		i.onE133Data(transport)
	}

	if len(msg.payloads) == 0 {
		return
	}

	i.mu.RLock()
	handler, ok := i.handlers[msg.header.Endpoint]
	i.mu.RUnlock()

	if !ok {
		if i.logger != nil {
			i.logger.Warn("no RDM handler for endpoint, dropping message",
				"endpoint", msg.header.Endpoint,
				"source", transport.Source.String())
		}
		return
	}

	for _, raw := range msg.payloads {
		handler(transport, msg.header, raw)
	}
}

// Pipeline is the fixed Root → E1.33 → RDM decode chain.
type Pipeline struct {
	root *RootInflator
	rdm  *RDMInflator
}

// NewPipeline builds the decode chain ending in rdm.
func NewPipeline(rdm *RDMInflator) *Pipeline {
	return &Pipeline{
		root: NewRootInflator(NewE133Inflator(rdm)),
		rdm:  rdm,
	}
}

// RDM returns the RDM layer of the pipeline.
func (p *Pipeline) RDM() *RDMInflator {
	return p.rdm
}

// Inflate decodes a root PDU block. The block is validated at every layer
// before any handler runs; on error nothing has been dispatched.
func (p *Pipeline) Inflate(transport TransportHeader, block []byte) error {
	msgs, err := p.root.decode(block)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		p.rdm.dispatch(transport, msg)
	}
	return nil
}
