package pdu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// E133Port is the well-known E1.33 port, used for both TCP and UDP.
const E133Port = 5569

// Root layer vectors.
const (
	VectorRootE131 uint32 = 4
	VectorRootE133 uint32 = 5
)

// VectorFramingRDMNet is the E1.33 layer vector for RDM traffic.
const VectorFramingRDMNet uint32 = 1

// VectorRDMNetData is the RDM layer vector (the RDM start code).
const VectorRDMNetData uint8 = 0xcc

// Flag bits in the first byte of a PDU.
const (
	flagLength = 0x80
	flagVector = 0x40
	flagHeader = 0x20
	flagData   = 0x10
)

const (
	maxShortLength = 0x0fff
	maxLongLength  = 0x0fffff
)

// Decode errors.
var (
	ErrTruncated        = errors.New("pdu truncated")
	ErrInvalidLength    = errors.New("invalid pdu length")
	ErrUnknownVector    = errors.New("unknown vector")
	ErrInvalidHeader    = errors.New("invalid pdu header")
	ErrMissingInherited = errors.New("first pdu cannot inherit fields")
	ErrInvalidPreamble  = errors.New("invalid preamble")
	ErrBlockTooLarge    = errors.New("pdu block too large")
)

// rawPDU is one PDU of a block with inheritance resolved.
type rawPDU struct {
	vector []byte
	header []byte
	data   []byte
}

// splitBlock decodes the PDUs in a block. vectorSize and headerSize are the
// fixed field sizes for the layer.
func splitBlock(block []byte, vectorSize, headerSize int) ([]rawPDU, error) {
	var (
		pdus []rawPDU
		prev *rawPDU
	)

	for offset := 0; offset < len(block); {
		rest := block[offset:]
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: %d bytes left at offset %d", ErrTruncated, len(rest), offset)
		}

		flags := rest[0]
		length := int(binary.BigEndian.Uint16(rest[0:2]) & maxShortLength)
		lenSize := 2
		if flags&flagLength != 0 {
			if len(rest) < 3 {
				return nil, fmt.Errorf("%w: extended length at offset %d", ErrTruncated, offset)
			}
			length = length<<8 | int(rest[2])
			lenSize = 3
		}
		if length < lenSize || length > len(rest) {
			return nil, fmt.Errorf("%w: %d at offset %d (%d bytes left)", ErrInvalidLength, length, offset, len(rest))
		}

		body := rest[lenSize:length]
		var pdu rawPDU

		if flags&flagVector != 0 {
			if len(body) < vectorSize {
				return nil, fmt.Errorf("%w: vector at offset %d", ErrTruncated, offset)
			}
			pdu.vector, body = body[:vectorSize], body[vectorSize:]
		} else if prev != nil {
			pdu.vector = prev.vector
		} else {
			return nil, fmt.Errorf("%w: vector", ErrMissingInherited)
		}

		if flags&flagHeader != 0 {
			if len(body) < headerSize {
				return nil, fmt.Errorf("%w: header at offset %d", ErrTruncated, offset)
			}
			pdu.header, body = body[:headerSize], body[headerSize:]
		} else if prev != nil {
			pdu.header = prev.header
		} else if headerSize > 0 {
			return nil, fmt.Errorf("%w: header", ErrMissingInherited)
		}

		if flags&flagData != 0 {
			pdu.data = body
		} else if len(body) != 0 {
			return nil, fmt.Errorf("%w: %d data bytes without data flag", ErrInvalidLength, len(body))
		} else if prev != nil {
			pdu.data = prev.data
		}

		pdus = append(pdus, pdu)
		prev = &pdus[len(pdus)-1]
		offset += length
	}

	return pdus, nil
}

// packPDU encodes a PDU with all of the vector, header and data flags set.
func packPDU(vector, header, data []byte) ([]byte, error) {
	length := 2 + len(vector) + len(header) + len(data)
	lenSize := 2
	if length > maxShortLength {
		length++
		lenSize = 3
	}
	if length > maxLongLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockTooLarge, length)
	}

	buf := make([]byte, length)
	if lenSize == 3 {
		buf[0] = flagLength | flagVector | flagHeader | flagData | byte(length>>16)
		buf[1] = byte(length >> 8)
		buf[2] = byte(length)
	} else {
		binary.BigEndian.PutUint16(buf, uint16(length))
		buf[0] |= flagVector | flagHeader | flagData
	}
	n := lenSize
	n += copy(buf[n:], vector)
	n += copy(buf[n:], header)
	copy(buf[n:], data)
	return buf, nil
}

func vector32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
