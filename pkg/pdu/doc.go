// Package pdu implements the ACN PDU layers that carry RDM over E1.33.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   RDM PDU (vector 0xCC)        │
//	├────────────────────────────────┤
//	│   E1.33 PDU (seq, endpoint)    │
//	├────────────────────────────────┤
//	│   Root PDU (vector, CID)       │
//	├────────────────────────────────┤
//	│   UDP or TCP preamble          │
//	└────────────────────────────────┘
//
// Inbound data is decoded by a Pipeline, a fixed Root → E1.33 → RDM chain
// built with NewPipeline. A buffer is validated completely before any handler
// runs: if any layer rejects it, nothing is dispatched.
//
// Outbound packets are built by E133Sender and written through an
// OutgoingTransport, which adds the UDP or TCP preamble.
package pdu
