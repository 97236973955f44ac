package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// ErrAlreadyListening is returned by Listen on a running acceptor.
var ErrAlreadyListening = errors.New("acceptor already listening")

// TCPAcceptor accepts TCP connections and hands them to its owner.
type TCPAcceptor struct {
	listener net.Listener
	onAccept func(conn *TCPConn)
	logger   *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewTCPAcceptor creates an acceptor. onAccept runs on the accept goroutine
// for every new connection; the connection is not reading yet.
func NewTCPAcceptor(onAccept func(conn *TCPConn)) *TCPAcceptor {
	return &TCPAcceptor{onAccept: onAccept}
}

// SetLogger sets the logger for accept errors.
func (a *TCPAcceptor) SetLogger(logger *slog.Logger) {
	a.logger = logger
}

// Listen opens the listening socket on address and starts accepting.
func (a *TCPAcceptor) Listen(ctx context.Context, address string) error {
	if a.running.Load() {
		return ErrAlreadyListening
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	a.listener = listener
	a.running.Store(true)

	a.wg.Add(1)
	go a.acceptLoop()
	return nil
}

// Addr returns the listen address, or nil before Listen.
func (a *TCPAcceptor) Addr() net.Addr {
	if a.listener != nil {
		return a.listener.Addr()
	}
	return nil
}

// Close stops accepting and waits for the accept loop to exit.
// Accepted connections are not closed.
func (a *TCPAcceptor) Close() error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}
	err := a.listener.Close()
	a.wg.Wait()
	return err
}

// acceptLoop accepts incoming connections.
func (a *TCPAcceptor) acceptLoop() {
	defer a.wg.Done()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if !a.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if a.logger != nil {
				a.logger.Warn("accept failed", "error", err)
			}
			continue
		}

		tcpConn := NewTCPConn(conn)
		if a.onAccept == nil {
			_ = tcpConn.Close()
			continue
		}
		a.onAccept(tcpConn)
	}
}
