package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
)

// Socket errors.
var (
	ErrNotBound     = errors.New("udp socket not bound")
	ErrAlreadyBound = errors.New("udp socket already bound")
)

// maxDatagramSize covers any UDP payload.
const maxDatagramSize = 65536

// UDPSocket is a bound UDP socket with a receive loop.
type UDPSocket struct {
	mu     sync.RWMutex
	conn   *net.UDPConn
	onData func(data []byte, source netip.AddrPort)
	logger *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewUDPSocket creates an unbound socket.
func NewUDPSocket() *UDPSocket {
	return &UDPSocket{}
}

// SetLogger sets the logger for receive errors.
func (s *UDPSocket) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetOnData sets the datagram handler. data is only valid for the duration
// of the call. Datagrams are delivered one at a time.
func (s *UDPSocket) SetOnData(fn func(data []byte, source netip.AddrPort)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

// Bind opens the socket on address and starts the receive loop.
func (s *UDPSocket) Bind(ctx context.Context, address string) error {
	if s.running.Load() {
		return ErrAlreadyBound
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		return fmt.Errorf("failed to bind UDP %s: %w", address, err)
	}

	s.mu.Lock()
	s.conn = pc.(*net.UDPConn)
	s.mu.Unlock()
	s.running.Store(true)

	s.wg.Add(1)
	go s.readLoop()
	return nil
}

// LocalAddr returns the bound address.
func (s *UDPSocket) LocalAddr() netip.AddrPort {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return netip.AddrPort{}
	}
	return addrPortOf(s.conn.LocalAddr())
}

// SendTo sends one datagram to dst.
func (s *UDPSocket) SendTo(data []byte, dst netip.AddrPort) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil || !s.running.Load() {
		return ErrNotBound
	}
	if _, err := conn.WriteToUDPAddrPort(data, dst); err != nil {
		return fmt.Errorf("send to %s: %w", dst, err)
	}
	return nil
}

// Close closes the socket and waits for the receive loop to exit.
func (s *UDPSocket) Close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.RLock()
	err := s.conn.Close()
	s.mu.RUnlock()
	s.wg.Wait()
	return err
}

// readLoop reads datagrams until the socket is closed.
func (s *UDPSocket) readLoop() {
	defer s.wg.Done()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if s.logger != nil {
				s.logger.Warn("udp receive failed", "error", err)
			}
			continue
		}

		s.mu.RLock()
		onData := s.onData
		s.mu.RUnlock()
		if onData != nil {
			onData(buf[:n], netip.AddrPortFrom(src.Addr().Unmap(), src.Port()))
		}
	}
}
