package rdm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UIDSize is the length of an encoded UID.
const UIDSize = 6

// AllManufacturers is the manufacturer id used by the all-devices broadcast.
const AllManufacturers = 0xffff

// AllDevices is the device id that addresses every device of a manufacturer.
const AllDevices = 0xffffffff

// ErrInvalidUID is returned when a UID string cannot be parsed.
var ErrInvalidUID = errors.New("invalid UID")

// UID identifies an RDM responder.
type UID struct {
	ManufacturerID uint16
	DeviceID       uint32
}

// NewUID creates a UID.
func NewUID(manufacturerID uint16, deviceID uint32) UID {
	return UID{ManufacturerID: manufacturerID, DeviceID: deviceID}
}

// BroadcastUID returns the UID that addresses all devices.
func BroadcastUID() UID {
	return UID{ManufacturerID: AllManufacturers, DeviceID: AllDevices}
}

// VendorcastUID returns the UID that addresses all devices of a manufacturer.
func VendorcastUID(manufacturerID uint16) UID {
	return UID{ManufacturerID: manufacturerID, DeviceID: AllDevices}
}

// ParseUID parses the "mmmm:dddddddd" hex form.
func ParseUID(s string) (UID, error) {
	man, dev, ok := strings.Cut(s, ":")
	if !ok {
		return UID{}, fmt.Errorf("%w: %q", ErrInvalidUID, s)
	}
	m, err := strconv.ParseUint(man, 16, 16)
	if err != nil {
		return UID{}, fmt.Errorf("%w: %q", ErrInvalidUID, s)
	}
	d, err := strconv.ParseUint(dev, 16, 32)
	if err != nil {
		return UID{}, fmt.Errorf("%w: %q", ErrInvalidUID, s)
	}
	return NewUID(uint16(m), uint32(d)), nil
}

// IsBroadcast reports whether the UID is a broadcast or vendorcast address.
func (u UID) IsBroadcast() bool {
	return u.DeviceID == AllDevices
}

// DirectedToUID reports whether a message sent to u should be handled by
// the responder with the given uid.
func (u UID) DirectedToUID(uid UID) bool {
	if u == uid {
		return true
	}
	if !u.IsBroadcast() {
		return false
	}
	return u.ManufacturerID == AllManufacturers || u.ManufacturerID == uid.ManufacturerID
}

// String returns the UID in "mmmm:dddddddd" form.
func (u UID) String() string {
	return fmt.Sprintf("%04x:%08x", u.ManufacturerID, u.DeviceID)
}

func (u UID) put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], u.ManufacturerID)
	binary.BigEndian.PutUint32(b[2:6], u.DeviceID)
}

func uidFrom(b []byte) UID {
	return UID{
		ManufacturerID: binary.BigEndian.Uint16(b[0:2]),
		DeviceID:       binary.BigEndian.Uint32(b[2:6]),
	}
}
