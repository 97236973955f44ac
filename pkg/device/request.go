package device

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/log"
	"github.com/e133-protocol/e133-go/pkg/pdu"
	"github.com/e133-protocol/e133-go/pkg/rdm"
)

// pendingRequest correlates a request with its eventual completion.
type pendingRequest struct {
	source     netip.AddrPort
	transport  pdu.TransportType
	sequence   uint32
	endpointID uint16
	received   time.Time
}

// endpointRequest runs for every decoded RDM PDU addressed to a handler id.
func (d *Device) endpointRequest(id uint16, th pdu.TransportHeader, header pdu.E133Header, raw []byte) {
	var ep endpoint.Endpoint
	if id == endpoint.RootEndpointID {
		d.mu.Lock()
		ep = d.root
		d.mu.Unlock()
	} else if e, ok := d.registry.Lookup(id); ok {
		ep = e
	}

	if ep == nil {
		d.warnLog("no endpoint for handler id, this is a bug", "endpoint", id)
		d.metrics.dropped(dropNoEndpoint)
		return
	}

	request, err := rdm.ParseRequest(raw)
	if err != nil {
		d.warnLog("failed to unpack E1.33 RDM message, ignoring request",
			"endpoint", id, "source", th.Source.String(), "error", err)
		d.metrics.dropped(dropBadRDM)
		return
	}

	d.metrics.requestReceived(th.Transport.String())
	cc := request.CommandClass
	pid := request.ParamID
	d.logEvent(log.Event{
		ConnectionID: d.connectionIDFor(th),
		Direction:    log.DirectionIn,
		Layer:        log.LayerPDU,
		Category:     log.CategoryMessage,
		Transport:    th.Transport.String(),
		RemoteAddr:   th.Source.String(),
		Message: &log.MessageEvent{
			Type:         log.MessageTypeRequest,
			Sequence:     header.Sequence,
			Endpoint:     id,
			SourceName:   header.Source,
			CommandClass: &cc,
			ParamID:      &pid,
		},
	})

	pending := pendingRequest{
		source:     th.Source,
		transport:  th.Transport,
		sequence:   header.Sequence,
		endpointID: id,
		received:   time.Now(),
	}
	var done atomic.Bool
	ep.SendRDMRequest(request, func(code rdm.ResponseCode, response *rdm.Response, _ []string) {
		if !done.CompareAndSwap(false, true) {
			d.warnLog("endpoint completed a request twice", "endpoint", id, "sequence", pending.sequence)
			return
		}
		d.endpointRequestComplete(pending, code, response)
	})
}

// endpointRequestComplete sends the reply for a completed request. Replies
// always go out over UDP to the request's source, whatever transport the
// request arrived on.
func (d *Device) endpointRequestComplete(pending pendingRequest, code rdm.ResponseCode, response *rdm.Response) {
	if code == rdm.WasBroadcast {
		d.metrics.dropped(dropBroadcast)
		return
	}
	if code != rdm.CompletedOK || response == nil {
		d.warnLog("E1.33 request failed", "endpoint", pending.endpointID,
			"sequence", pending.sequence, "code", rdm.ResponseCodeToString(code))
		d.metrics.dropped(dropFailed)
		return
	}

	data, err := response.Pack()
	if err != nil {
		d.warnLog("failed to pack RDM response", "endpoint", pending.endpointID, "error", err)
		d.metrics.dropped(dropFailed)
		return
	}

	header := pdu.NewE133Header(d.config.SourceName, pending.sequence, pending.endpointID)
	out := pdu.NewOutgoingUDPTransport(d.udp, pending.source)
	if err := d.e133Sender.SendRDM(header, data, out); err != nil {
		d.warnLog("failed to send E1.33 response", "endpoint", pending.endpointID,
			"destination", pending.source.String(), "error", err)
		d.metrics.dropped(dropSendFailed)
		return
	}

	d.metrics.replySent()
	elapsed := time.Since(pending.received)
	cc := response.CommandClass
	pid := response.ParamID
	d.logEvent(log.Event{
		ConnectionID: udpConnectionID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerPDU,
		Category:     log.CategoryMessage,
		Transport:    pdu.TransportUDP.String(),
		RemoteAddr:   pending.source.String(),
		Message: &log.MessageEvent{
			Type:           log.MessageTypeResponse,
			Sequence:       pending.sequence,
			Endpoint:       pending.endpointID,
			CommandClass:   &cc,
			ParamID:        &pid,
			ResponseCode:   &code,
			ProcessingTime: &elapsed,
		},
	})
}

// connectionIDFor returns the protocol log connection id for a transport.
func (d *Device) connectionIDFor(th pdu.TransportHeader) string {
	if th.Transport != pdu.TransportTCP {
		return udpConnectionID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil && d.session.peer == th.Source {
		return d.session.id
	}
	return ""
}
