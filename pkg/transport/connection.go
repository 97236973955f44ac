package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrAlreadyReading   = errors.New("connection already reading")
)

// DefaultReadBufferSize is the size of the buffer used by the read loop.
const DefaultReadBufferSize = 4096

// TCPConn wraps an accepted TCP connection.
//
// Data is delivered in arrival order by a single read loop. The close
// notification runs exactly once, whether the peer closed the connection, a
// read failed, or Close was called locally.
type TCPConn struct {
	conn net.Conn
	peer netip.AddrPort

	onData  func(chunk []byte)
	onClose func()

	// WriteTimeout bounds each Send (0 = no timeout).
	WriteTimeout time.Duration

	reading  atomic.Bool
	closed   atomic.Bool
	notified atomic.Bool
	writeMu  sync.Mutex
	cbMu     sync.Mutex
}

// NewTCPConn wraps conn. Reading starts with StartReading.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{
		conn: conn,
		peer: addrPortOf(conn.RemoteAddr()),
	}
}

// PeerAddr returns the remote address and port.
func (c *TCPConn) PeerAddr() netip.AddrPort {
	return c.peer
}

// LocalAddr returns the local address and port.
func (c *TCPConn) LocalAddr() netip.AddrPort {
	return addrPortOf(c.conn.LocalAddr())
}

// SetOnData sets the handler for received chunks. A chunk is only valid
// for the duration of the call.
func (c *TCPConn) SetOnData(fn func(chunk []byte)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onData = fn
}

// SetOnClose sets the close notification.
func (c *TCPConn) SetOnClose(fn func()) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onClose = fn
}

// StartReading starts the read loop.
func (c *TCPConn) StartReading() error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if !c.reading.CompareAndSwap(false, true) {
		return ErrAlreadyReading
	}
	go c.readLoop()
	return nil
}

// Send writes data to the connection in a single write.
func (c *TCPConn) Send(data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("write to %s: %w", c.peer, err)
	}
	return nil
}

// Write implements io.Writer on top of Send.
func (c *TCPConn) Write(p []byte) (int, error) {
	if err := c.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the socket and runs the close notification if it has not
// run yet. The notification runs on the calling goroutine.
func (c *TCPConn) Close() error {
	var err error
	if c.closed.CompareAndSwap(false, true) {
		err = c.conn.Close()
	}
	c.notifyClose()
	return err
}

// IsClosed reports whether the connection has been closed.
func (c *TCPConn) IsClosed() bool {
	return c.closed.Load()
}

// readLoop reads until the connection fails or is closed.
func (c *TCPConn) readLoop() {
	buf := make([]byte, DefaultReadBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.cbMu.Lock()
			onData := c.onData
			c.cbMu.Unlock()
			if onData != nil {
				onData(buf[:n])
			}
		}
		if err != nil {
			c.closed.Store(true)
			_ = c.conn.Close()
			c.notifyClose()
			return
		}
	}
}

func (c *TCPConn) notifyClose() {
	if !c.notified.CompareAndSwap(false, true) {
		return
	}
	c.cbMu.Lock()
	onClose := c.onClose
	c.cbMu.Unlock()
	if onClose != nil {
		onClose()
	}
}

// addrPortOf converts a TCP or UDP address, unmapping IPv4-in-IPv6.
func addrPortOf(addr net.Addr) netip.AddrPort {
	var ap netip.AddrPort
	switch a := addr.(type) {
	case *net.TCPAddr:
		ap = a.AddrPort()
	case *net.UDPAddr:
		ap = a.AddrPort()
	default:
		if addr != nil {
			ap, _ = netip.ParseAddrPort(addr.String())
		}
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
