// Package device implements an E1.33 device: it terminates RDM over IP and
// routes requests from remote controllers to local endpoints.
//
// A Device owns one TCP listener and one UDP socket on the E1.33 port, the
// Root → E1.33 → RDM decode pipeline and at most one active TCP session.
//
// # Sessions
//
// Only one TCP connection is authoritative at a time. A second connection
// is closed as soon as it is accepted and the existing session is left
// alone. The active session is health checked with heartbeats; if the
// controller goes quiet for a full heartbeat interval the session is torn
// down through the same path as a peer close.
//
// # Requests
//
// Requests may arrive over UDP or the TCP session. Endpoint 0 is the root
// endpoint set with SetRootEndpoint; every other id is looked up in the
// endpoint registry. Endpoints complete asynchronously. A successful
// completion is answered with a unicast UDP datagram to the address and
// port the request came from, even when the request arrived over TCP.
// Broadcast completions and failures are not answered.
//
// # Usage
//
//	registry := endpoint.NewManager()
//	stats := device.NewTCPConnectionStats()
//
//	cfg := device.DefaultConfig()
//	cfg.Logger = slog.Default()
//
//	dev, err := device.New(cfg, registry, stats)
//	if err != nil {
//	    return err
//	}
//	dev.SetRootEndpoint(rootEndpoint)
//	if err := dev.Start(ctx); err != nil {
//	    return err
//	}
//	defer dev.Close()
package device
