package device

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/log"
	"github.com/e133-protocol/e133-go/pkg/pdu"
	"github.com/e133-protocol/e133-go/pkg/transport"
)

// tcpSession is the single active TCP connection with its health monitor
// and stream decoder. It is owned by the Device and released only by
// tcpConnectionClosed.
type tcpSession struct {
	id       string
	peer     netip.AddrPort
	conn     *transport.TCPConn
	monitor  *transport.HealthCheckedConnection
	incoming *pdu.IncomingTCPTransport
	outgoing *pdu.OutgoingTCPTransport
	started  time.Time

	heartbeatSeq atomic.Uint32
}

// handleNewTCPConnection runs on the accept goroutine for every connection.
func (d *Device) handleNewTCPConnection(conn *transport.TCPConn) {
	peer := conn.PeerAddr()
	d.infoLog("new TCP connection", "peer", peer.String())

	d.mu.Lock()
	if d.closed || d.session != nil {
		d.mu.Unlock()
		d.warnLog("already got a TCP connection open, closing this one", "peer", peer.String())
		d.metrics.dropped(dropRejectedConns)
		_ = conn.Close()
		return
	}

	// A stalled peer must not hold a write past one heartbeat interval.
	conn.WriteTimeout = d.config.HeartbeatInterval

	session := &tcpSession{
		id:       uuid.New().String(),
		peer:     peer,
		conn:     conn,
		incoming: pdu.NewIncomingTCPTransport(d.pipeline, peer),
		outgoing: pdu.NewOutgoingTCPTransport(conn),
		started:  time.Now(),
	}
	session.monitor = transport.NewHealthCheckedConnection(
		d.config.HeartbeatInterval,
		func() error { return d.sendHeartbeat(session) },
		func() { d.tcpConnectionUnhealthy(session) },
	)
	d.session = session
	d.mu.Unlock()

	d.stats.connectionAccepted(peer)
	conn.SetOnClose(func() { d.tcpConnectionClosed(session) })

	if err := session.monitor.Setup(); err != nil {
		d.warnLog("failed to set up health checked connection, closing TCP connection",
			"peer", peer.String(), "error", err)
		d.mu.Lock()
		if d.session == session {
			d.session = nil
		}
		d.mu.Unlock()
		d.stats.connectionClosed()
		session.monitor.Close()
		conn.SetOnClose(nil)
		_ = conn.Close()
		return
	}

	d.logState(session.id, log.StateEntityConnection, "", "CONNECTED", peer.String())

	// A second heartbeat marks this as the live connection.
	if err := session.monitor.SendHeartbeat(); err != nil {
		d.debugLog("heartbeat send failed", "peer", peer.String(), "error", err)
	}

	conn.SetOnData(func(chunk []byte) { d.tcpDataReceived(session, chunk) })
	if err := conn.StartReading(); err != nil {
		d.warnLog("failed to start reading TCP connection", "peer", peer.String(), "error", err)
		_ = conn.Close()
	}
}

// tcpDataReceived feeds a chunk of the session stream into the pipeline.
func (d *Device) tcpDataReceived(session *tcpSession, chunk []byte) {
	d.logEvent(log.Event{
		ConnectionID: session.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Transport:    pdu.TransportTCP.String(),
		RemoteAddr:   session.peer.String(),
		Frame:        log.NewFrameEvent(chunk),
	})

	if err := session.incoming.Receive(chunk); err != nil {
		d.decodeFailed(session.id, pdu.TransportTCP, session.peer, err)
	}
}

// sendHeartbeat sends one heartbeat on the session.
func (d *Device) sendHeartbeat(session *tcpSession) error {
	seq := session.heartbeatSeq.Add(1)
	header := pdu.NewE133Header(d.config.SourceName, seq, endpoint.RootEndpointID)
	if err := d.e133Sender.SendHeartbeat(header, session.outgoing); err != nil {
		return err
	}

	d.metrics.heartbeatSent()
	d.logEvent(log.Event{
		ConnectionID: session.id,
		Direction:    log.DirectionOut,
		Layer:        log.LayerPDU,
		Category:     log.CategoryControl,
		Transport:    pdu.TransportTCP.String(),
		RemoteAddr:   session.peer.String(),
		Heartbeat:    &log.HeartbeatEvent{Sequence: seq},
	})
	return nil
}

// tcpConnectionUnhealthy runs on the monitor goroutine when the controller
// went quiet. Closing the connection runs the close notification, which
// releases the session.
func (d *Device) tcpConnectionUnhealthy(session *tcpSession) {
	d.infoLog("TCP connection went unhealthy, closing", "peer", session.peer.String())
	d.stats.connectionUnhealthy()
	d.logState(session.id, log.StateEntityHealth, transport.StateHealthy.String(), transport.StateUnhealthy.String(), "heartbeat timeout")
	_ = session.conn.Close()
}

// tcpConnectionClosed is the only place a session is released.
func (d *Device) tcpConnectionClosed(session *tcpSession) {
	d.mu.Lock()
	if d.session != session {
		d.mu.Unlock()
		return
	}
	d.session = nil
	d.mu.Unlock()

	d.infoLog("TCP connection closed", "peer", session.peer.String(),
		"duration", time.Since(session.started).Round(time.Millisecond))
	d.stats.connectionClosed()

	session.monitor.Close()
	session.conn.SetOnData(nil)
	_ = session.conn.Close()

	d.logState(session.id, log.StateEntityConnection, "CONNECTED", "CLOSED", "")
}
