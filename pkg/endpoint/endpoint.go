package endpoint

import (
	"github.com/e133-protocol/e133-go/pkg/rdm"
)

// Endpoint accepts RDM requests and completes them asynchronously.
//
// SendRDMRequest must call done exactly once. It may call done before
// returning, but callers must not rely on that.
type Endpoint interface {
	SendRDMRequest(request *rdm.Request, done rdm.Callback)
}

// Responder answers an RDM request synchronously.
type Responder interface {
	HandleRDMRequest(request *rdm.Request) (rdm.ResponseCode, *rdm.Response)
}

// ResponderEndpoint is an Endpoint backed by a Responder. Each request is
// answered on its own goroutine.
type ResponderEndpoint struct {
	responder Responder
}

// NewResponderEndpoint wraps responder.
func NewResponderEndpoint(responder Responder) *ResponderEndpoint {
	return &ResponderEndpoint{responder: responder}
}

// SendRDMRequest implements Endpoint.
func (e *ResponderEndpoint) SendRDMRequest(request *rdm.Request, done rdm.Callback) {
	go func() {
		code, response := e.responder.HandleRDMRequest(request)
		done(code, response, nil)
	}()
}

// Compile-time interface satisfaction check.
var _ Endpoint = (*ResponderEndpoint)(nil)
