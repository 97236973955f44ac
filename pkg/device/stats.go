package device

import (
	"net/netip"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TCPConnectionStats counts TCP session events. The device updates it;
// everyone else reads snapshots.
type TCPConnectionStats struct {
	mu               sync.RWMutex
	connectionEvents uint64
	unhealthyEvents  uint64
	peer             netip.AddrPort
}

// StatsSnapshot is a point-in-time copy of TCPConnectionStats.
type StatsSnapshot struct {
	// ConnectionEvents counts accepted sessions.
	ConnectionEvents uint64 `json:"connection_events"`

	// UnhealthyEvents counts sessions closed by the health monitor.
	UnhealthyEvents uint64 `json:"unhealthy_events"`

	// PeerAddress is the controller of the active session, or invalid
	// when there is none.
	PeerAddress netip.AddrPort `json:"peer_address"`
}

// Connected reports whether a session was active.
func (s StatsSnapshot) Connected() bool {
	return s.PeerAddress.IsValid()
}

// NewTCPConnectionStats creates zeroed statistics.
func NewTCPConnectionStats() *TCPConnectionStats {
	return &TCPConnectionStats{}
}

// Snapshot returns the current values.
func (s *TCPConnectionStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		ConnectionEvents: s.connectionEvents,
		UnhealthyEvents:  s.unhealthyEvents,
		PeerAddress:      s.peer,
	}
}

// ResetCounters zeroes the event counters. The peer address is kept.
func (s *TCPConnectionStats) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionEvents = 0
	s.unhealthyEvents = 0
}

func (s *TCPConnectionStats) connectionAccepted(peer netip.AddrPort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionEvents++
	s.peer = peer
}

func (s *TCPConnectionStats) connectionUnhealthy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unhealthyEvents++
}

func (s *TCPConnectionStats) connectionClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = netip.AddrPort{}
}

// StatsCollector exports TCPConnectionStats as Prometheus metrics.
type StatsCollector struct {
	stats *TCPConnectionStats

	connectionEvents *prometheus.Desc
	unhealthyEvents  *prometheus.Desc
	connected        *prometheus.Desc
}

// NewStatsCollector creates a collector reading stats on every scrape.
func NewStatsCollector(stats *TCPConnectionStats) *StatsCollector {
	return &StatsCollector{
		stats: stats,
		connectionEvents: prometheus.NewDesc(
			"e133_tcp_connection_events_total",
			"Number of accepted E1.33 TCP sessions.",
			nil, nil),
		unhealthyEvents: prometheus.NewDesc(
			"e133_tcp_unhealthy_events_total",
			"Number of E1.33 TCP sessions closed by the health monitor.",
			nil, nil),
		connected: prometheus.NewDesc(
			"e133_tcp_connected",
			"Whether an E1.33 TCP session is active.",
			[]string{"peer"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectionEvents
	ch <- c.unhealthyEvents
	ch <- c.connected
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.connectionEvents, prometheus.CounterValue, float64(snap.ConnectionEvents))
	ch <- prometheus.MustNewConstMetric(c.unhealthyEvents, prometheus.CounterValue, float64(snap.UnhealthyEvents))

	var connected float64
	peer := ""
	if snap.Connected() {
		connected = 1
		peer = snap.PeerAddress.String()
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected, peer)
}

// Compile-time interface satisfaction check.
var _ prometheus.Collector = (*StatsCollector)(nil)
