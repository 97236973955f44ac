// Package endpoint defines E1.33 endpoints and the registry that tracks them.
//
// An endpoint is a logical sub-device behind an E1.33 device, for example
// one DMX universe or an RDM gateway port. Endpoints are identified by a
// 16-bit id. Id 0 is the root endpoint, which is bound directly on the
// device and never stored in the registry.
//
// # Registry
//
// The Manager maps endpoint ids to endpoints without owning them. Observers
// subscribe to Added and Removed events and are called synchronously, in
// subscription order, for every change. Changes are serialized, so an
// observer that mirrors the registry (for example by installing a protocol
// handler per id) always sees the same sequence of ids the registry holds.
package endpoint
