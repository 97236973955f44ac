package endpoint_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/rdm"
)

type staticResponder struct {
	code rdm.ResponseCode
}

func (r staticResponder) HandleRDMRequest(req *rdm.Request) (rdm.ResponseCode, *rdm.Response) {
	if r.code != rdm.CompletedOK {
		return r.code, nil
	}
	return r.code, rdm.NewAckResponse(req, []byte{0x42})
}

func TestResponderEndpointCompletesAsynchronously(t *testing.T) {
	ep := endpoint.NewResponderEndpoint(staticResponder{code: rdm.CompletedOK})
	req := rdm.NewRequest(rdm.NewUID(1, 2), rdm.NewUID(3, 4), 9, 1, 0, rdm.GetCommand, rdm.PIDDeviceLabel, nil)

	type result struct {
		code     rdm.ResponseCode
		response *rdm.Response
	}
	done := make(chan result, 1)
	ep.SendRDMRequest(req, func(code rdm.ResponseCode, response *rdm.Response, _ []string) {
		done <- result{code, response}
	})

	select {
	case r := <-done:
		assert.Equal(t, rdm.CompletedOK, r.code)
		require.NotNil(t, r.response)
		assert.Equal(t, req.TransactionNumber, r.response.TransactionNumber)
		assert.Equal(t, []byte{0x42}, r.response.ParamData)
	case <-time.After(time.Second):
		t.Fatal("request did not complete")
	}
}

func TestResponderEndpointFailureCode(t *testing.T) {
	ep := endpoint.NewResponderEndpoint(staticResponder{code: rdm.UnknownUID})
	req := rdm.NewRequest(rdm.NewUID(1, 2), rdm.NewUID(3, 4), 1, 1, 0, rdm.GetCommand, rdm.PIDDeviceInfo, nil)

	done := make(chan rdm.ResponseCode, 1)
	ep.SendRDMRequest(req, func(code rdm.ResponseCode, response *rdm.Response, _ []string) {
		assert.Nil(t, response)
		done <- code
	})

	select {
	case code := <-done:
		assert.Equal(t, rdm.UnknownUID, code)
	case <-time.After(time.Second):
		t.Fatal("request did not complete")
	}
}
