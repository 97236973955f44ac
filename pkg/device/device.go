package device

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/log"
	"github.com/e133-protocol/e133-go/pkg/pdu"
	"github.com/e133-protocol/e133-go/pkg/transport"
)

// udpConnectionID tags protocol events that did not arrive on a session.
const udpConnectionID = "udp"

// Registry is the view of the endpoint registry the device needs.
// Implemented by *endpoint.Manager.
type Registry interface {
	Lookup(id uint16) (endpoint.Endpoint, bool)
	EndpointIDs() []uint16
	Subscribe(observer endpoint.Observer) endpoint.SubscriptionID
	Unsubscribe(id endpoint.SubscriptionID)
}

// Device terminates E1.33 for a set of endpoints.
type Device struct {
	config   Config
	registry Registry
	stats    *TCPConnectionStats
	cid      pdu.CID
	port     int

	logger         *slog.Logger
	protocolLogger log.Logger
	metrics        *Metrics

	subscription endpoint.SubscriptionID

	// Decode pipeline and senders
	rdmInflator *pdu.RDMInflator
	pipeline    *pdu.Pipeline
	udpIn       *pdu.IncomingUDPTransport
	e133Sender  *pdu.E133Sender

	// Sockets
	acceptor *transport.TCPAcceptor
	udp      *transport.UDPSocket

	mu      sync.Mutex
	root    endpoint.Endpoint
	session *tcpSession
	started bool
	closed  bool
}

// New creates a device that routes requests to the endpoints in registry.
// The device mirrors the registry into the decode pipeline: every registered
// id gets an RDM handler and every unregistered id loses it. The registry
// must not change while New runs. stats may be nil.
func New(cfg Config, registry Registry, stats *TCPConnectionStats) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stats == nil {
		stats = NewTCPConnectionStats()
	}

	d := &Device{
		config:         cfg,
		registry:       registry,
		stats:          stats,
		cid:            pdu.NewCID(),
		port:           pdu.E133Port,
		logger:         cfg.Logger,
		protocolLogger: cfg.ProtocolLogger,
		metrics:        cfg.Metrics,
	}

	// Root → E1.33 → RDM, wired explicitly.
	d.rdmInflator = pdu.NewRDMInflator(d.e133DataReceived)
	d.rdmInflator.SetLogger(cfg.Logger)
	d.pipeline = pdu.NewPipeline(d.rdmInflator)
	d.udpIn = pdu.NewIncomingUDPTransport(d.pipeline)
	d.e133Sender = pdu.NewE133Sender(pdu.NewRootSender(d.cid))

	d.acceptor = transport.NewTCPAcceptor(d.handleNewTCPConnection)
	d.acceptor.SetLogger(cfg.Logger)
	d.udp = transport.NewUDPSocket()
	d.udp.SetLogger(cfg.Logger)

	d.subscription = registry.Subscribe(d.endpointChanged)
	for _, id := range registry.EndpointIDs() {
		if id != endpoint.RootEndpointID {
			d.installHandler(id)
		}
	}

	return d, nil
}

// CID returns the component identifier generated for this device.
func (d *Device) CID() pdu.CID {
	return d.cid
}

// Stats returns the TCP session statistics.
func (d *Device) Stats() *TCPConnectionStats {
	return d.stats
}

// SetRootEndpoint binds endpoint 0. It can be called once; ownership is
// not transferred.
func (d *Device) SetRootEndpoint(ep endpoint.Endpoint) error {
	if ep == nil {
		return ErrNilEndpoint
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root != nil {
		return ErrRootEndpointSet
	}
	d.root = ep
	d.rdmInflator.SetRDMHandler(endpoint.RootEndpointID, d.rdmHandler(endpoint.RootEndpointID))
	return nil
}

// Start opens the TCP listener and the UDP socket on the E1.33 port. If the
// listener fails the UDP socket is not attempted; if the UDP socket fails
// the listener is closed again.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	address := net.JoinHostPort(d.config.IPAddress, strconv.Itoa(d.port))
	d.infoLog("attempting to start E1.33 device", "address", address, "cid", d.cid.String())

	if err := d.acceptor.Listen(ctx, address); err != nil {
		_ = d.acceptor.Close()
		d.setStarted(false)
		return fmt.Errorf("tcp listen: %w", err)
	}

	d.udp.SetOnData(d.udpDataReceived)
	if err := d.udp.Bind(ctx, address); err != nil {
		_ = d.acceptor.Close()
		d.setStarted(false)
		return fmt.Errorf("udp bind: %w", err)
	}

	d.logState("", log.StateEntityConnection, "", "LISTENING", address)
	return nil
}

// TCPAddr returns the listen address, or nil before Start.
func (d *Device) TCPAddr() net.Addr {
	return d.acceptor.Addr()
}

// UDPAddr returns the bound UDP address, or an invalid value before Start.
func (d *Device) UDPAddr() netip.AddrPort {
	return d.udp.LocalAddr()
}

// Close stops the sockets, tears down the active session and detaches from
// the registry. Endpoints still registered at this point are reported and
// their handlers removed. Completions that arrive after Close fail to send
// their reply; each is logged and counted as send_failed.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	// Waits for the accept loop, so no handler can install a session after
	// the snapshot below.
	_ = d.acceptor.Close()
	_ = d.udp.Close()

	d.mu.Lock()
	session := d.session
	d.mu.Unlock()

	if session != nil {
		// Runs tcpConnectionClosed through the close notification.
		_ = session.conn.Close()
	}

	d.registry.Unsubscribe(d.subscription)
	if ids := d.registry.EndpointIDs(); len(ids) > 0 {
		d.warnLog("some endpoints weren't removed correctly", "endpoints", ids)
		for _, id := range ids {
			if id != endpoint.RootEndpointID {
				d.rdmInflator.RemoveRDMHandler(id)
			}
		}
	}
	return nil
}

// HandlerIDs returns the endpoints with an RDM handler installed.
func (d *Device) HandlerIDs() []uint16 {
	return d.rdmInflator.HandlerIDs()
}

// endpointChanged mirrors registry changes into the RDM inflator. The root
// handler belongs to SetRootEndpoint and is never touched here.
func (d *Device) endpointChanged(event endpoint.EventType, id uint16) {
	if id == endpoint.RootEndpointID {
		d.warnLog("ignoring registry event for the root endpoint", "event", event.String())
		return
	}
	switch event {
	case endpoint.EventAdded:
		d.infoLog("endpoint has been added", "endpoint", id)
		d.installHandler(id)
	case endpoint.EventRemoved:
		d.infoLog("endpoint has been removed", "endpoint", id)
		d.rdmInflator.RemoveRDMHandler(id)
	}
	d.logState("", log.StateEntityEndpoint, "", event.String(), strconv.Itoa(int(id)))
}

func (d *Device) installHandler(id uint16) {
	d.rdmInflator.SetRDMHandler(id, d.rdmHandler(id))
}

func (d *Device) rdmHandler(id uint16) pdu.RDMHandler {
	return func(th pdu.TransportHeader, header pdu.E133Header, raw []byte) {
		d.endpointRequest(id, th, header, raw)
	}
}

// udpDataReceived feeds one datagram into the pipeline.
func (d *Device) udpDataReceived(data []byte, source netip.AddrPort) {
	d.logEvent(log.Event{
		ConnectionID: udpConnectionID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Transport:    pdu.TransportUDP.String(),
		RemoteAddr:   source.String(),
		Frame:        log.NewFrameEvent(data),
	})

	if err := d.udpIn.Receive(data, source); err != nil {
		d.decodeFailed(udpConnectionID, pdu.TransportUDP, source, err)
	}
}

// decodeFailed records a dropped buffer.
func (d *Device) decodeFailed(connID string, transport pdu.TransportType, source netip.AddrPort, err error) {
	d.warnLog("dropping malformed E1.33 data", "transport", transport.String(), "source", source.String(), "error", err)
	d.metrics.dropped(dropMalformed)
	d.logEvent(log.Event{
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerPDU,
		Category:     log.CategoryError,
		Transport:    transport.String(),
		RemoteAddr:   source.String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerPDU,
			Message: err.Error(),
			Context: "inflate",
		},
	})
}

// e133DataReceived runs for every decoded E1.33 PDU. Traffic on the active
// TCP session counts as a heartbeat.
func (d *Device) e133DataReceived(th pdu.TransportHeader) {
	d.debugLog("got E1.33 data", "source", th.Source.String(), "transport", th.Transport.String())
	if th.Transport != pdu.TransportTCP {
		return
	}

	d.mu.Lock()
	session := d.session
	d.mu.Unlock()

	if session != nil && session.peer == th.Source {
		session.monitor.HeartbeatReceived()
	}
}

func (d *Device) setStarted(started bool) {
	d.mu.Lock()
	d.started = started
	d.mu.Unlock()
}

func (d *Device) logEvent(event log.Event) {
	if d.protocolLogger == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.CID = d.cid.String()
	d.protocolLogger.Log(event)
}

func (d *Device) logState(connID string, entity log.StateEntity, oldState, newState, reason string) {
	d.logEvent(log.Event{
		ConnectionID: connID,
		Layer:        log.LayerDevice,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// debugLog logs a debug message if a logger is configured.
func (d *Device) debugLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Device) infoLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Device) warnLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
