package transport

import (
	"errors"
	"sync"
	"time"
)

// DefaultHeartbeatInterval is the default interval between heartbeats, and
// the time allowed between received heartbeats.
const DefaultHeartbeatInterval = 2 * time.Second

// HealthState is the state of a health checked connection.
type HealthState int

const (
	// StateHealthy indicates heartbeats are arriving in time.
	StateHealthy HealthState = iota

	// StateUnhealthy indicates an interval elapsed without a heartbeat.
	StateUnhealthy

	// StateClosed indicates the monitor was released by its owner.
	StateClosed
)

// String returns the state name.
func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Health monitor errors.
var (
	ErrAlreadySetup  = errors.New("health monitor already set up")
	ErrMonitorClosed = errors.New("health monitor closed")
)

// HealthCheckedConnection monitors the liveness of one connection.
//
// Heartbeats are sent on a fixed timer regardless of received traffic. If no
// heartbeat is received for a full interval the connection is declared
// unhealthy and onUnhealthy runs exactly once, on the monitor goroutine.
type HealthCheckedConnection struct {
	interval time.Duration

	// Callbacks
	sendHeartbeat func() error
	onUnhealthy   func()

	mu          sync.Mutex
	state       HealthState
	started     bool
	lastReceive time.Time
	sent        uint64

	stopCh      chan struct{}
	heartbeatCh chan struct{}
}

// NewHealthCheckedConnection creates a monitor. A zero interval selects
// DefaultHeartbeatInterval.
func NewHealthCheckedConnection(interval time.Duration, sendHeartbeat func() error, onUnhealthy func()) *HealthCheckedConnection {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HealthCheckedConnection{
		interval:      interval,
		sendHeartbeat: sendHeartbeat,
		onUnhealthy:   onUnhealthy,
		state:         StateHealthy,
		stopCh:        make(chan struct{}),
		heartbeatCh:   make(chan struct{}, 1),
	}
}

// Setup enters the healthy state, sends one heartbeat immediately and starts
// the timers. If the first heartbeat cannot be sent the monitor is not started.
func (h *HealthCheckedConnection) Setup() error {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return ErrMonitorClosed
	}
	if h.started {
		h.mu.Unlock()
		return ErrAlreadySetup
	}
	h.started = true
	h.lastReceive = time.Now()
	h.mu.Unlock()

	if err := h.SendHeartbeat(); err != nil {
		return err
	}

	go h.loop()
	return nil
}

// SendHeartbeat sends one heartbeat outside the regular schedule.
func (h *HealthCheckedConnection) SendHeartbeat() error {
	h.mu.Lock()
	h.sent++
	h.mu.Unlock()
	return h.sendHeartbeat()
}

// HeartbeatReceived resets the receive timeout.
func (h *HealthCheckedConnection) HeartbeatReceived() {
	h.mu.Lock()
	h.lastReceive = time.Now()
	h.mu.Unlock()

	select {
	case h.heartbeatCh <- struct{}{}:
	default:
		// A reset is already pending.
	}
}

// Close stops the monitor. It is safe to call more than once and from
// within onUnhealthy.
func (h *HealthCheckedConnection) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateClosed {
		return
	}
	h.state = StateClosed
	close(h.stopCh)
}

// State returns the current state.
func (h *HealthCheckedConnection) State() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Stats returns heartbeat statistics.
func (h *HealthCheckedConnection) Stats() HealthStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthStats{
		State:             h.state,
		LastHeartbeat:     h.lastReceive,
		HeartbeatsSent:    h.sent,
		HeartbeatInterval: h.interval,
	}
}

// HealthStats contains health monitor statistics.
type HealthStats struct {
	State             HealthState
	LastHeartbeat     time.Time
	HeartbeatsSent    uint64
	HeartbeatInterval time.Duration
}

// loop drives the send ticker and the receive timeout. Sends run on their
// own goroutine so a blocked write cannot hold off the timeout.
func (h *HealthCheckedConnection) loop() {
	sendCh := make(chan struct{}, 1)
	go h.sendLoop(sendCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	timeout := time.NewTimer(h.interval)
	defer timeout.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			select {
			case sendCh <- struct{}{}:
			default:
				// The previous heartbeat is still being written.
			}
		case <-h.heartbeatCh:
			timeout.Reset(h.interval)
		case <-timeout.C:
			h.declareUnhealthy()
			return
		}
	}
}

func (h *HealthCheckedConnection) sendLoop(sendCh <-chan struct{}) {
	for {
		select {
		case <-h.stopCh:
			return
		case <-sendCh:
			// A failed send shows up as a missed heartbeat from the peer.
			_ = h.SendHeartbeat()
		}
	}
}

func (h *HealthCheckedConnection) declareUnhealthy() {
	h.mu.Lock()
	if h.state != StateHealthy {
		h.mu.Unlock()
		return
	}
	h.state = StateUnhealthy
	h.mu.Unlock()

	if h.onUnhealthy != nil {
		h.onUnhealthy()
	}
}
