package device

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/log"
	"github.com/e133-protocol/e133-go/pkg/pdu"
	"github.com/e133-protocol/e133-go/pkg/rdm"
)

var (
	controllerUID = rdm.NewUID(0x7a70, 1)
	responderUID  = rdm.NewUID(0x7a70, 0x200)
)

const noReplyWait = 200 * time.Millisecond

// newTestDevice creates a loopback device on ephemeral ports.
func newTestDevice(t *testing.T, registry Registry, mutate func(*Config)) *Device {
	t.Helper()
	cfg := DefaultConfig()
	cfg.IPAddress = "127.0.0.1"
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(cfg, registry, nil)
	require.NoError(t, err)
	d.port = 0
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func startDevice(t *testing.T, d *Device) {
	t.Helper()
	require.NoError(t, d.Start(context.Background()))
}

func getLabel(tn uint8) *rdm.Request {
	return rdm.NewRequest(controllerUID, responderUID, tn, 1, rdm.RootRDMDevice, rdm.GetCommand, rdm.PIDDeviceLabel, nil)
}

// fakeRegistry is a fixed registry. It may hold id 0, which Manager refuses.
type fakeRegistry struct {
	endpoints map[uint16]endpoint.Endpoint
	ids       []uint16
}

func (r *fakeRegistry) Lookup(id uint16) (endpoint.Endpoint, bool) {
	ep, ok := r.endpoints[id]
	return ep, ok
}

func (r *fakeRegistry) EndpointIDs() []uint16                               { return r.ids }
func (r *fakeRegistry) Subscribe(endpoint.Observer) endpoint.SubscriptionID { return 1 }
func (r *fakeRegistry) Unsubscribe(endpoint.SubscriptionID)                 {}

// udpController sends requests over UDP and decodes the replies.
type udpController struct {
	t      *testing.T
	conn   *net.UDPConn
	sender *pdu.E133Sender
}

func newUDPController(t *testing.T, port int) *udpController {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &udpController{
		t:      t,
		conn:   conn,
		sender: pdu.NewE133Sender(pdu.NewRootSender(pdu.NewCID())),
	}
}

func (c *udpController) addr() netip.AddrPort {
	ap := c.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// SendTo implements pdu.PacketSender.
func (c *udpController) SendTo(data []byte, dst netip.AddrPort) error {
	_, err := c.conn.WriteToUDPAddrPort(data, dst)
	return err
}

func (c *udpController) packRequest(endpointID uint16, seq uint32, req *rdm.Request) []byte {
	c.t.Helper()
	raw, err := req.Pack()
	require.NoError(c.t, err)
	return c.packRaw(endpointID, seq, raw)
}

func (c *udpController) packRaw(endpointID uint16, seq uint32, raw []byte) []byte {
	c.t.Helper()
	block, err := c.sender.PackRDM(pdu.NewE133Header("test controller", seq, endpointID), raw)
	require.NoError(c.t, err)
	return block
}

func (c *udpController) send(dst netip.AddrPort, block []byte) {
	c.t.Helper()
	require.NoError(c.t, pdu.NewOutgoingUDPTransport(c, dst).Send(block))
}

func (c *udpController) sendHeartbeat(dst netip.AddrPort) {
	c.t.Helper()
	block, err := c.sender.PackHeartbeat(pdu.NewE133Header("test controller", 0, 0))
	require.NoError(c.t, err)
	c.send(dst, block)
}

type reply struct {
	source   netip.AddrPort
	header   pdu.E133Header
	response *rdm.Response
}

// readReply waits for one datagram and decodes it as a reply from endpointID.
func (c *udpController) readReply(endpointID uint16, timeout time.Duration) (reply, bool) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 1500)
	n, src, err := c.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return reply{}, false
	}

	var got reply
	var decoded bool
	inflator := pdu.NewRDMInflator(nil)
	inflator.SetRDMHandler(endpointID, func(_ pdu.TransportHeader, header pdu.E133Header, raw []byte) {
		resp, err := rdm.ParseResponse(raw)
		require.NoError(c.t, err)
		got = reply{source: src, header: header, response: resp}
		decoded = true
	})
	require.NoError(c.t, pdu.NewIncomingUDPTransport(pdu.NewPipeline(inflator)).Receive(buf[:n], src))
	return got, decoded
}

// tcpController holds a session and counts the E1.33 PDUs it receives.
type tcpController struct {
	conn   net.Conn
	e133   chan struct{}
	closed chan struct{}
}

func dialController(t *testing.T, d *Device) *tcpController {
	t.Helper()
	conn, err := net.Dial("tcp", d.TCPAddr().String())
	require.NoError(t, err)

	c := &tcpController{
		conn:   conn,
		e133:   make(chan struct{}, 64),
		closed: make(chan struct{}),
	}
	inflator := pdu.NewRDMInflator(func(pdu.TransportHeader) {
		select {
		case c.e133 <- struct{}{}:
		default:
		}
	})
	incoming := pdu.NewIncomingTCPTransport(pdu.NewPipeline(inflator), netip.AddrPort{})

	go func() {
		defer close(c.closed)
		buf := make([]byte, 1024)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				_ = incoming.Receive(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	t.Cleanup(func() {
		_ = conn.Close()
		<-c.closed
	})
	return c
}

func (c *tcpController) localPort() int {
	return c.conn.LocalAddr().(*net.TCPAddr).Port
}

func (c *tcpController) send(t *testing.T, block []byte) {
	t.Helper()
	require.NoError(t, pdu.NewOutgoingTCPTransport(c.conn).Send(block))
}

func (c *tcpController) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// lockedBuffer collects slog output from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newBufferLogger() (*slog.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// metricValue returns the value of a counter or gauge sample.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	return m, reg
}

func pduHeartbeatHeader() pdu.E133Header {
	return pdu.NewE133Header("test controller", 0, 0)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// logFunc reports a short kind for every protocol event.
func logFunc(report func(kind string)) log.Logger {
	return log.LoggerFunc(func(e log.Event) {
		switch {
		case e.Frame != nil:
			report("frame")
		case e.Message != nil:
			report(e.Message.Type.String())
		case e.StateChange != nil:
			report(e.StateChange.NewState)
		}
	})
}
