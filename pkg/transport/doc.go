// Package transport provides the socket primitives used by an E1.33 device.
//
// The package handles:
//   - A TCP acceptor that hands each accepted connection to its owner
//   - TCP connections with a read loop and a single close notification
//   - A UDP socket with a receive loop and unicast send
//   - Heartbeat based health checking of the active TCP connection
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│        RDM messages            │
//	├────────────────────────────────┤
//	│   Root / E1.33 / RDM PDUs      │
//	├────────────────────────────────┤
//	│   ACN preamble (UDP or TCP)    │
//	├────────────────────────────────┤
//	│        TCP   |   UDP           │
//	└────────────────────────────────┘
//
// # Health Checking
//
// The authoritative TCP connection is monitored with heartbeats:
//   - Heartbeat interval: 2 seconds
//   - A heartbeat is sent on every interval regardless of traffic
//   - Any E1.33 message received on the connection counts as a heartbeat
//   - No heartbeat for one full interval marks the connection unhealthy
package transport
