package device

import "errors"

// Device errors.
var (
	ErrInvalidConfig   = errors.New("invalid device configuration")
	ErrAlreadyStarted  = errors.New("device already started")
	ErrClosed          = errors.New("device closed")
	ErrRootEndpointSet = errors.New("root endpoint already set")
	ErrNilEndpoint     = errors.New("endpoint is nil")
)
