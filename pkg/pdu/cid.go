package pdu

import (
	"fmt"

	"github.com/google/uuid"
)

// CIDSize is the length of a component identifier.
const CIDSize = 16

// CID identifies the component that sent a root PDU.
type CID [CIDSize]byte

// NewCID generates a random CID.
func NewCID() CID {
	return CID(uuid.New())
}

// CIDFromBytes copies a CID out of b.
func CIDFromBytes(b []byte) (CID, error) {
	var cid CID
	if len(b) != CIDSize {
		return cid, fmt.Errorf("%w: CID needs %d bytes, got %d", ErrInvalidHeader, CIDSize, len(b))
	}
	copy(cid[:], b)
	return cid, nil
}

// IsNil reports whether the CID is all zeros.
func (c CID) IsNil() bool {
	return c == CID{}
}

// String returns the canonical UUID form.
func (c CID) String() string {
	return uuid.UUID(c).String()
}
