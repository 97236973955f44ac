// Package rdm provides the subset of ANSI E1.20 Remote Device Management that
// an E1.33 device needs: parsing requests, building responses and the
// response codes reported by request handlers.
//
// # Message Layout
//
// Messages carried in an E1.33 RDM PDU omit the 0xCC start code; the PDU
// vector carries it instead. The remaining layout is:
//
//	┌──────────────┬────────┬─────────┬─────────┬────┬──────┬─────────┐
//	│ sub-start 01 │ length │ dst UID │ src UID │ TN │ port │ msg cnt │
//	├──────────────┴─────┬──┴─────────┴───┬─────┴────┴──────┴─────────┤
//	│ sub-device (2)     │ command class  │ PID (2) │ PDL │ data │ ck │
//	└────────────────────┴────────────────┴─────────┴─────┴──────┴────┘
//
// The checksum covers the start code, so 0xCC is added back when checking it.
package rdm
