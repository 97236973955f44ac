// Package log provides structured protocol capture for E1.33 devices.
//
// This package defines the Logger interface and Event types for capturing
// protocol events at the transport, PDU and device layers. It is separate
// from operational logging (slog): a capture is a machine-readable trace of
// every frame, decoded E1.33 message, heartbeat and session change.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/e133/device.elog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Transport: raw blocks received or sent (FrameEvent)
//   - PDU: decoded E1.33 messages with sequence, endpoint and PID (MessageEvent)
//   - Device: session state changes (StateChangeEvent)
//
// Heartbeats and decode errors have dedicated event types.
//
// # File Format
//
// Capture files are a stream of CBOR encoded events with integer keys and
// use the .elog extension. The e133-log command prints them.
package log
